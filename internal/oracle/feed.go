package oracle

import (
	"errors"
	"sync"
	"time"
)

// Round is a single price-feed reading. Price is signed with Decimals
// fractional digits (8 by convention for USD feeds); the adapter validates
// positivity before any arithmetic.
type Round struct {
	Price     int64
	Decimals  uint8
	RoundID   uint64
	UpdatedAt time.Time
}

// PriceFeed is the external oracle contract: a synchronously queryable
// source of the latest asset/USD price. No staleness guarantee is part of
// the contract.
type PriceFeed interface {
	LatestRound() (Round, error)
}

var errNoReading = errors.New("oracle: feed has no reading yet")

// MemoryFeed is an in-process PriceFeed fed by the price listener (or set
// directly in tests). Safe for concurrent use.
type MemoryFeed struct {
	mu       sync.RWMutex
	decimals uint8
	price    int64
	round    uint64
	updated  time.Time
}

// NewMemoryFeed creates a feed with an initial price. decimals is the
// feed-native precision of price.
func NewMemoryFeed(price int64, decimals uint8) *MemoryFeed {
	return &MemoryFeed{
		decimals: decimals,
		price:    price,
		round:    1,
		updated:  time.Now(),
	}
}

// Update records a new reading and advances the round counter.
func (f *MemoryFeed) Update(price int64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = price
	f.round++
	f.updated = at
}

func (f *MemoryFeed) LatestRound() (Round, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.round == 0 {
		return Round{}, errNoReading
	}
	return Round{
		Price:     f.price,
		Decimals:  f.decimals,
		RoundID:   f.round,
		UpdatedAt: f.updated,
	}, nil
}
