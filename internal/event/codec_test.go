package event_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SynthVault/internal/event"
	"SynthVault/internal/testutil"
)

func TestPayloadRoundTrip(t *testing.T) {
	deposited := &event.CollateralDeposited{
		User:   uuid.New(),
		Asset:  "WETH",
		Amount: uint256.MustFromDecimal("10000000000000000000"),
	}

	data, err := event.MarshalPayload(deposited)
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}
	// Amounts must be on the wire as decimal strings, not hex.
	if !strings.Contains(string(data), `"10000000000000000000"`) {
		t.Errorf("wire form not decimal: %s", data)
	}

	got, err := event.UnmarshalPayload(event.TypeCollateralDeposited, data)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	back, ok := got.(*event.CollateralDeposited)
	if !ok {
		t.Fatalf("decoded wrong type %T", got)
	}
	if back.User != deposited.User || back.Asset != deposited.Asset || !back.Amount.Eq(deposited.Amount) {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestLiquidationRoundTrip(t *testing.T) {
	liq := &event.Liquidation{
		Target:            uuid.New(),
		Liquidator:        uuid.New(),
		Asset:             "WETH",
		DebtCovered:       uint256.MustFromDecimal("8000000000000000000000"),
		CollateralSeized:  uint256.MustFromDecimal("5500000000000000000"),
		Bonus:             uint256.MustFromDecimal("500000000000000000"),
		StartHealthFactor: uint256.MustFromDecimal("800000000000000000"),
		EndHealthFactor:   uint256.MustFromDecimal("1800000000000000000"),
	}

	data, err := event.MarshalPayload(liq)
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}
	got, err := event.UnmarshalPayload(event.TypeLiquidation, data)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	back := got.(*event.Liquidation)
	if back.Target != liq.Target || back.Liquidator != liq.Liquidator {
		t.Errorf("accounts mismatch: %+v", back)
	}
	for _, pair := range []struct {
		name string
		got  *uint256.Int
		want *uint256.Int
	}{
		{"debt_covered", back.DebtCovered, liq.DebtCovered},
		{"collateral_seized", back.CollateralSeized, liq.CollateralSeized},
		{"bonus", back.Bonus, liq.Bonus},
		{"start_health_factor", back.StartHealthFactor, liq.StartHealthFactor},
		{"end_health_factor", back.EndHealthFactor, liq.EndHealthFactor},
	} {
		if !pair.got.Eq(pair.want) {
			t.Errorf("%s: got %s, want %s", pair.name, pair.got.Dec(), pair.want.Dec())
		}
	}
}

// TestLiquidationWireGolden pins the exact wire form of the richest payload:
// field names and decimal-string amounts are a storage contract, not an
// implementation detail.
func TestLiquidationWireGolden(t *testing.T) {
	liq := &event.Liquidation{
		Target:            uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427"),
		Liquidator:        uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Asset:             "WETH",
		DebtCovered:       uint256.MustFromDecimal("8000000000000000000000"),
		CollateralSeized:  uint256.MustFromDecimal("5500000000000000000"),
		Bonus:             uint256.MustFromDecimal("500000000000000000"),
		StartHealthFactor: uint256.MustFromDecimal("800000000000000000"),
		EndHealthFactor:   uint256.MustFromDecimal("1800000000000000000"),
	}

	data, err := event.MarshalPayload(liq)
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}
	testutil.AssertGolden(t, "liquidation_payload.json", append(data, '\n'))
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := event.UnmarshalPayload(event.TypeDebtMinted, []byte(`{"user":"not-a-uuid","amount":"1"}`)); err == nil {
		t.Error("expected error for malformed user")
	}
	if _, err := event.UnmarshalPayload(event.TypeDebtMinted, []byte(`{"user":"`+uuid.NewString()+`","amount":"0x10"}`)); err == nil {
		t.Error("expected error for hex amount")
	}
	if _, err := event.UnmarshalPayload(event.Type(99), []byte(`{}`)); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestTypeFromString(t *testing.T) {
	for _, typ := range []event.Type{
		event.TypeCollateralDeposited,
		event.TypeCollateralRedeemed,
		event.TypeDebtMinted,
		event.TypeDebtBurned,
		event.TypeLiquidation,
	} {
		got, err := event.TypeFromString(typ.String())
		if err != nil {
			t.Fatalf("TypeFromString(%s): %v", typ, err)
		}
		if got != typ {
			t.Errorf("TypeFromString(%s) = %d", typ, got)
		}
	}
	if _, err := event.TypeFromString("Nonsense"); err == nil {
		t.Error("expected error for unknown name")
	}
}
