package oracle

import (
	"fmt"

	"github.com/holiman/uint256"

	fpmath "SynthVault/internal/math"
)

// Adapter normalizes external price-feed readings to 18-decimal precision
// and converts between asset amounts and USD values. No caching: every call
// re-reads the feed.
type Adapter struct {
	feeds  map[string]PriceFeed
	assets []string
}

// NewAdapter binds each supported asset to its price feed. The two lists
// are positional pairs; construction fails on a length mismatch before any
// state is built.
func NewAdapter(assets []string, feeds []PriceFeed) (*Adapter, error) {
	if len(assets) != len(feeds) {
		return nil, &ConfigMismatchError{Assets: len(assets), Feeds: len(feeds)}
	}

	bound := make(map[string]PriceFeed, len(assets))
	ordered := make([]string, 0, len(assets))
	for i, asset := range assets {
		if _, dup := bound[asset]; dup {
			return nil, fmt.Errorf("oracle: duplicate asset %q", asset)
		}
		if feeds[i] == nil {
			return nil, fmt.Errorf("oracle: nil feed for asset %q", asset)
		}
		bound[asset] = feeds[i]
		ordered = append(ordered, asset)
	}

	return &Adapter{feeds: bound, assets: ordered}, nil
}

// Assets returns the supported assets in registration order.
func (a *Adapter) Assets() []string {
	out := make([]string, len(a.assets))
	copy(out, a.assets)
	return out
}

// Supported reports whether asset has a registered feed.
func (a *Adapter) Supported(asset string) bool {
	_, ok := a.feeds[asset]
	return ok
}

// ScaledPrice reads the asset's feed and returns the price scaled to
// 18-decimal precision. Non-positive readings are rejected as an oracle
// fault rather than silently reinterpreted as a huge unsigned magnitude.
func (a *Adapter) ScaledPrice(asset string) (*uint256.Int, error) {
	feed, ok := a.feeds[asset]
	if !ok {
		return nil, &UnknownAssetError{Asset: asset}
	}

	round, err := feed.LatestRound()
	if err != nil {
		return nil, fmt.Errorf("oracle: read feed for %s: %w", asset, err)
	}
	if round.Price <= 0 {
		return nil, &InvalidPriceError{Asset: asset, Price: round.Price}
	}
	if round.Decimals > 18 {
		return nil, fmt.Errorf("oracle: feed for %s reports %d decimals, max 18", asset, round.Decimals)
	}

	price := uint256.NewInt(uint64(round.Price))
	return price.Mul(price, fpmath.Pow10(18-round.Decimals)), nil
}

// USDValue converts an asset amount (18-dec fixed point, asset-native
// units) to its USD value: amount × scaledPrice / 1e18.
func (a *Adapter) USDValue(asset string, amount *uint256.Int) (*uint256.Int, error) {
	price, err := a.ScaledPrice(asset)
	if err != nil {
		return nil, err
	}
	return fpmath.MulWad(amount, price), nil
}

// TokenAmountFromUSD converts a USD value back into an asset amount:
// usd × 1e18 / scaledPrice. Integer division truncates, so round trips are
// not exact.
func (a *Adapter) TokenAmountFromUSD(asset string, usd *uint256.Int) (*uint256.Int, error) {
	price, err := a.ScaledPrice(asset)
	if err != nil {
		return nil, err
	}
	return fpmath.DivWad(usd, price), nil
}
