package oracle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"

	fpmath "SynthVault/internal/math"
	"SynthVault/internal/oracle"
)

// Feed prices use 8 decimals throughout: 2000 USD = 200000000000.
const (
	ethPrice = 2000_00000000
	btcPrice = 30000_00000000
)

func newAdapter(t *testing.T) (*oracle.Adapter, *oracle.MemoryFeed) {
	t.Helper()
	feed := oracle.NewMemoryFeed(ethPrice, 8)
	a, err := oracle.NewAdapter([]string{"WETH"}, []oracle.PriceFeed{feed})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return a, feed
}

func TestNewAdapter_LengthMismatch(t *testing.T) {
	feed := oracle.NewMemoryFeed(ethPrice, 8)

	_, err := oracle.NewAdapter([]string{"WETH"}, []oracle.PriceFeed{feed, feed})
	var mismatch *oracle.ConfigMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ConfigMismatchError, got %v", err)
	}
	if mismatch.Assets != 1 || mismatch.Feeds != 2 {
		t.Errorf("error payload: assets=%d feeds=%d", mismatch.Assets, mismatch.Feeds)
	}
}

func TestNewAdapter_DuplicateAsset(t *testing.T) {
	feed := oracle.NewMemoryFeed(ethPrice, 8)
	_, err := oracle.NewAdapter([]string{"WETH", "WETH"}, []oracle.PriceFeed{feed, feed})
	if err == nil {
		t.Fatal("expected error for duplicate asset")
	}
}

func TestNewAdapter_NilFeed(t *testing.T) {
	_, err := oracle.NewAdapter([]string{"WETH"}, []oracle.PriceFeed{nil})
	if err == nil {
		t.Fatal("expected error for nil feed")
	}
}

func TestScaledPrice_8To18Decimals(t *testing.T) {
	a, _ := newAdapter(t)

	price, err := a.ScaledPrice("WETH")
	if err != nil {
		t.Fatalf("ScaledPrice: %v", err)
	}
	if want := fpmath.NewWad(2000); !price.Eq(want) {
		t.Errorf("scaled price: got %s, want %s", price.Dec(), want.Dec())
	}
}

func TestScaledPrice_18DecimalFeedUnchanged(t *testing.T) {
	feed := oracle.NewMemoryFeed(1_000_000_000_000_000_000, 18)
	a, err := oracle.NewAdapter([]string{"DAI"}, []oracle.PriceFeed{feed})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	price, err := a.ScaledPrice("DAI")
	if err != nil {
		t.Fatalf("ScaledPrice: %v", err)
	}
	if !price.Eq(fpmath.NewWad(1)) {
		t.Errorf("18-dec feed should pass through: got %s", price.Dec())
	}
}

func TestScaledPrice_UnknownAsset(t *testing.T) {
	a, _ := newAdapter(t)

	_, err := a.ScaledPrice("DOGE")
	var unknown *oracle.UnknownAssetError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownAssetError, got %v", err)
	}
}

func TestScaledPrice_NonPositiveRejected(t *testing.T) {
	a, feed := newAdapter(t)

	for _, price := range []int64{0, -1, -ethPrice} {
		feed.Update(price, time.Now())
		_, err := a.ScaledPrice("WETH")
		var invalid *oracle.InvalidPriceError
		if !errors.As(err, &invalid) {
			t.Fatalf("price %d: expected InvalidPriceError, got %v", price, err)
		}
		if invalid.Price != price {
			t.Errorf("error payload price: got %d, want %d", invalid.Price, price)
		}
	}
}

func TestUSDValue(t *testing.T) {
	a, _ := newAdapter(t)

	// 15 WETH at 2000 USD = 30000 USD
	usd, err := a.USDValue("WETH", fpmath.NewWad(15))
	if err != nil {
		t.Fatalf("USDValue: %v", err)
	}
	if want := fpmath.NewWad(30000); !usd.Eq(want) {
		t.Errorf("USDValue: got %s, want %s", usd.Dec(), want.Dec())
	}
}

func TestTokenAmountFromUSD(t *testing.T) {
	a, _ := newAdapter(t)

	// 100 USD at 2000 USD/token = 0.05 tokens
	amount, err := a.TokenAmountFromUSD("WETH", fpmath.NewWad(100))
	if err != nil {
		t.Fatalf("TokenAmountFromUSD: %v", err)
	}
	if want := uint256.MustFromDecimal("50000000000000000"); !amount.Eq(want) {
		t.Errorf("TokenAmountFromUSD: got %s, want %s", amount.Dec(), want.Dec())
	}
}

func TestConversionTracksFeedUpdate(t *testing.T) {
	a, feed := newAdapter(t)

	feed.Update(btcPrice, time.Now())

	usd, err := a.USDValue("WETH", fpmath.NewWad(1))
	if err != nil {
		t.Fatalf("USDValue: %v", err)
	}
	if want := fpmath.NewWad(30000); !usd.Eq(want) {
		t.Errorf("after update: got %s, want %s", usd.Dec(), want.Dec())
	}
}

func TestAssets_RegistrationOrder(t *testing.T) {
	eth := oracle.NewMemoryFeed(ethPrice, 8)
	btc := oracle.NewMemoryFeed(btcPrice, 8)
	a, err := oracle.NewAdapter([]string{"WETH", "WBTC"}, []oracle.PriceFeed{eth, btc})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	assets := a.Assets()
	if len(assets) != 2 || assets[0] != "WETH" || assets[1] != "WBTC" {
		t.Errorf("Assets: got %v", assets)
	}
	if !a.Supported("WBTC") || a.Supported("DOGE") {
		t.Error("Supported misreports registry membership")
	}
}
