package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Wire DTOs for the event log. Amounts are decimal strings: readable in
// psql and castable to NUMERIC, where uint256's native JSON form (hex)
// would be neither.

type collateralDepositedWire struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type collateralRedeemedWire struct {
	RedeemedFrom string `json:"redeemed_from"`
	RedeemedTo   string `json:"redeemed_to"`
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
}

type debtMintedWire struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

type debtBurnedWire struct {
	OnBehalfOf string `json:"on_behalf_of"`
	Payer      string `json:"payer"`
	Amount     string `json:"amount"`
}

type liquidationWire struct {
	Target            string `json:"target"`
	Liquidator        string `json:"liquidator"`
	Asset             string `json:"asset"`
	DebtCovered       string `json:"debt_covered"`
	CollateralSeized  string `json:"collateral_seized"`
	Bonus             string `json:"bonus"`
	StartHealthFactor string `json:"start_health_factor"`
	EndHealthFactor   string `json:"end_health_factor"`
}

// MarshalPayload encodes an event payload for the event log.
func MarshalPayload(evt Event) ([]byte, error) {
	switch e := evt.(type) {
	case *CollateralDeposited:
		return json.Marshal(collateralDepositedWire{
			User: e.User.String(), Asset: e.Asset, Amount: e.Amount.Dec(),
		})
	case *CollateralRedeemed:
		return json.Marshal(collateralRedeemedWire{
			RedeemedFrom: e.RedeemedFrom.String(), RedeemedTo: e.RedeemedTo.String(),
			Asset: e.Asset, Amount: e.Amount.Dec(),
		})
	case *DebtMinted:
		return json.Marshal(debtMintedWire{
			User: e.User.String(), Amount: e.Amount.Dec(),
		})
	case *DebtBurned:
		return json.Marshal(debtBurnedWire{
			OnBehalfOf: e.OnBehalfOf.String(), Payer: e.Payer.String(), Amount: e.Amount.Dec(),
		})
	case *Liquidation:
		return json.Marshal(liquidationWire{
			Target: e.Target.String(), Liquidator: e.Liquidator.String(), Asset: e.Asset,
			DebtCovered: e.DebtCovered.Dec(), CollateralSeized: e.CollateralSeized.Dec(),
			Bonus: e.Bonus.Dec(), StartHealthFactor: e.StartHealthFactor.Dec(),
			EndHealthFactor: e.EndHealthFactor.Dec(),
		})
	default:
		return nil, fmt.Errorf("event: marshal unknown payload %T", evt)
	}
}

// UnmarshalPayload decodes a stored payload back into its typed event.
func UnmarshalPayload(t Type, data []byte) (Event, error) {
	switch t {
	case TypeCollateralDeposited:
		var w collateralDepositedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		user, err := uuid.Parse(w.User)
		if err != nil {
			return nil, fmt.Errorf("event: parse user: %w", err)
		}
		amount, err := parseAmount(w.Amount)
		if err != nil {
			return nil, err
		}
		return &CollateralDeposited{User: user, Asset: w.Asset, Amount: amount}, nil

	case TypeCollateralRedeemed:
		var w collateralRedeemedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		from, err := uuid.Parse(w.RedeemedFrom)
		if err != nil {
			return nil, fmt.Errorf("event: parse redeemed_from: %w", err)
		}
		to, err := uuid.Parse(w.RedeemedTo)
		if err != nil {
			return nil, fmt.Errorf("event: parse redeemed_to: %w", err)
		}
		amount, err := parseAmount(w.Amount)
		if err != nil {
			return nil, err
		}
		return &CollateralRedeemed{RedeemedFrom: from, RedeemedTo: to, Asset: w.Asset, Amount: amount}, nil

	case TypeDebtMinted:
		var w debtMintedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		user, err := uuid.Parse(w.User)
		if err != nil {
			return nil, fmt.Errorf("event: parse user: %w", err)
		}
		amount, err := parseAmount(w.Amount)
		if err != nil {
			return nil, err
		}
		return &DebtMinted{User: user, Amount: amount}, nil

	case TypeDebtBurned:
		var w debtBurnedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		onBehalfOf, err := uuid.Parse(w.OnBehalfOf)
		if err != nil {
			return nil, fmt.Errorf("event: parse on_behalf_of: %w", err)
		}
		payer, err := uuid.Parse(w.Payer)
		if err != nil {
			return nil, fmt.Errorf("event: parse payer: %w", err)
		}
		amount, err := parseAmount(w.Amount)
		if err != nil {
			return nil, err
		}
		return &DebtBurned{OnBehalfOf: onBehalfOf, Payer: payer, Amount: amount}, nil

	case TypeLiquidation:
		var w liquidationWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		target, err := uuid.Parse(w.Target)
		if err != nil {
			return nil, fmt.Errorf("event: parse target: %w", err)
		}
		liquidator, err := uuid.Parse(w.Liquidator)
		if err != nil {
			return nil, fmt.Errorf("event: parse liquidator: %w", err)
		}
		evt := &Liquidation{Target: target, Liquidator: liquidator, Asset: w.Asset}
		for _, f := range []struct {
			dst **uint256.Int
			src string
		}{
			{&evt.DebtCovered, w.DebtCovered},
			{&evt.CollateralSeized, w.CollateralSeized},
			{&evt.Bonus, w.Bonus},
			{&evt.StartHealthFactor, w.StartHealthFactor},
			{&evt.EndHealthFactor, w.EndHealthFactor},
		} {
			v, err := parseAmount(f.src)
			if err != nil {
				return nil, err
			}
			*f.dst = v
		}
		return evt, nil

	default:
		return nil, fmt.Errorf("event: unmarshal unknown type %d", t)
	}
}

// TypeFromString is the inverse of Type.String, for log rehydration.
func TypeFromString(s string) (Type, error) {
	switch s {
	case "CollateralDeposited":
		return TypeCollateralDeposited, nil
	case "CollateralRedeemed":
		return TypeCollateralRedeemed, nil
	case "DebtMinted":
		return TypeDebtMinted, nil
	case "DebtBurned":
		return TypeDebtBurned, nil
	case "Liquidation":
		return TypeLiquidation, nil
	default:
		return TypeUnknown, fmt.Errorf("event: unknown type %q", s)
	}
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("event: parse amount %q: %w", s, err)
	}
	return v, nil
}
