package risk_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SynthVault/internal/debt"
	"SynthVault/internal/ledger"
	fpmath "SynthVault/internal/math"
	"SynthVault/internal/oracle"
	"SynthVault/internal/risk"
	"SynthVault/internal/token"
)

type fixture struct {
	calc   *risk.Calculator
	ledger *ledger.Ledger
	debts  *debt.Gateway
	feed   *oracle.MemoryFeed
}

// newFixture wires a calculator over one asset priced at 2000 USD.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	custody := uuid.New()
	feed := oracle.NewMemoryFeed(2000_00000000, 8)
	adapter, err := oracle.NewAdapter([]string{"WETH"}, []oracle.PriceFeed{feed})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	l := ledger.New()
	g := debt.NewGateway(token.NewMemory("sUSD", custody).Bind(custody), custody)
	return &fixture{
		calc:   risk.NewCalculator(l, g, adapter),
		ledger: l,
		debts:  g,
		feed:   feed,
	}
}

func TestCollateralValue(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.ledger.Credit(user, "WETH", fpmath.NewWad(10))

	value, err := f.calc.CollateralValue(user)
	if err != nil {
		t.Fatalf("CollateralValue: %v", err)
	}
	if want := fpmath.NewWad(20000); !value.Eq(want) {
		t.Errorf("got %s, want %s", value.Dec(), want.Dec())
	}
}

func TestCollateralValue_EmptyAccount(t *testing.T) {
	f := newFixture(t)

	value, err := f.calc.CollateralValue(uuid.New())
	if err != nil {
		t.Fatalf("CollateralValue: %v", err)
	}
	if !value.IsZero() {
		t.Errorf("empty account: got %s, want 0", value.Dec())
	}
}

func TestHealthFactor_ZeroDebtIsMax(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.ledger.Credit(user, "WETH", fpmath.NewWad(10))

	hf, err := f.calc.HealthFactor(user)
	if err != nil {
		t.Fatalf("HealthFactor: %v", err)
	}
	if !hf.Eq(risk.MaxHealthFactor) {
		t.Errorf("zero debt should report max: got %s", hf.Dec())
	}
}

func TestHealthFactor_AtThreshold(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()

	// 10 WETH = 20000 USD, threshold-adjusted 10000. Debt of 10000 puts the
	// ratio exactly at 1.0.
	f.ledger.Credit(user, "WETH", fpmath.NewWad(10))
	f.debts.Increase(user, fpmath.NewWad(10000))

	hf, err := f.calc.HealthFactor(user)
	if err != nil {
		t.Fatalf("HealthFactor: %v", err)
	}
	if !hf.Eq(risk.MinHealthFactor) {
		t.Errorf("got %s, want exactly 1e18", hf.Dec())
	}

	if err := f.calc.Assert(user); err != nil {
		t.Errorf("Assert at exactly 1.0 should pass: %v", err)
	}
}

func TestHealthFactor_BelowThreshold(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()

	f.ledger.Credit(user, "WETH", fpmath.NewWad(10))
	f.debts.Increase(user, fpmath.NewWad(20000))

	hf, err := f.calc.HealthFactor(user)
	if err != nil {
		t.Fatalf("HealthFactor: %v", err)
	}
	// Adjusted 10000 / debt 20000 = 0.5.
	if want := uint256.MustFromDecimal("500000000000000000"); !hf.Eq(want) {
		t.Errorf("got %s, want %s", hf.Dec(), want.Dec())
	}

	err = f.calc.Assert(user)
	var breaks *risk.BreaksHealthFactorError
	if !errors.As(err, &breaks) {
		t.Fatalf("expected BreaksHealthFactorError, got %v", err)
	}
	if breaks.User != user || !breaks.HealthFactor.Eq(hf) {
		t.Errorf("error payload: user=%s ratio=%s", breaks.User, breaks.HealthFactor.Dec())
	}
}

func TestHealthFactor_TracksPrice(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()

	f.ledger.Credit(user, "WETH", fpmath.NewWad(10))
	f.debts.Increase(user, fpmath.NewWad(8000))

	if err := f.calc.Assert(user); err != nil {
		t.Fatalf("healthy at 2000 USD: %v", err)
	}

	// Price halves: adjusted value 5000 vs debt 8000, ratio 0.625.
	f.feed.Update(1000_00000000, time.Now())
	if err := f.calc.Assert(user); err == nil {
		t.Fatal("expected assert failure after price drop")
	}
}

func TestAccountInfo(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()

	f.ledger.Credit(user, "WETH", fpmath.NewWad(3))
	f.debts.Increase(user, fpmath.NewWad(100))

	debtMinted, collateralUSD, err := f.calc.AccountInfo(user)
	if err != nil {
		t.Fatalf("AccountInfo: %v", err)
	}
	if !debtMinted.Eq(fpmath.NewWad(100)) {
		t.Errorf("debt: got %s", debtMinted.Dec())
	}
	if !collateralUSD.Eq(fpmath.NewWad(6000)) {
		t.Errorf("collateral: got %s", collateralUSD.Dec())
	}
}

func TestHealthFactor_OracleFaultPropagates(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.ledger.Credit(user, "WETH", fpmath.NewWad(1))

	f.feed.Update(-1, time.Now())

	_, err := f.calc.HealthFactor(user)
	var invalid *oracle.InvalidPriceError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidPriceError, got %v", err)
	}
}
