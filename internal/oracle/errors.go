package oracle

import "fmt"

// ConfigMismatchError is returned when the asset and feed lists given at
// construction have different lengths.
type ConfigMismatchError struct {
	Assets int
	Feeds  int
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("oracle: %d assets but %d price feeds", e.Assets, e.Feeds)
}

// UnknownAssetError is returned for an asset with no registered feed.
type UnknownAssetError struct {
	Asset string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("oracle: no price feed for asset %q", e.Asset)
}

// InvalidPriceError is returned when a feed reports a non-positive price.
type InvalidPriceError struct {
	Asset string
	Price int64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("oracle: feed for %s returned non-positive price %d", e.Asset, e.Price)
}
