package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"SynthVault/internal/observability"
	"SynthVault/internal/oracle"
)

// PriceUpdate is the wire format published by the external oracle relay on
// synth.oracle.prices.{asset}. Price keeps the feed's native precision
// (8 decimals by convention); the oracle adapter scales it on read.
type PriceUpdate struct {
	Price     int64 `json:"price"`
	Timestamp int64 `json:"timestamp"` // unix micros
}

// PriceListener subscribes to per-asset price subjects and pushes readings
// into the in-memory feeds. Plain NATS (not JetStream): only the latest
// price matters, missed updates are superseded by the next one.
type PriceListener struct {
	nc      *nats.Conn
	feeds   map[string]*oracle.MemoryFeed
	subs    []*nats.Subscription
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewPriceListener(nc *nats.Conn, feeds map[string]*oracle.MemoryFeed, metrics *observability.Metrics, log zerolog.Logger) *PriceListener {
	return &PriceListener{
		nc:      nc,
		feeds:   feeds,
		metrics: metrics,
		log:     log,
	}
}

// Start subscribes to synth.oracle.prices.{asset} for every feed.
func (pl *PriceListener) Start() error {
	for asset, feed := range pl.feeds {
		asset, feed := asset, feed
		subject := fmt.Sprintf("synth.oracle.prices.%s", asset)

		sub, err := pl.nc.Subscribe(subject, func(msg *nats.Msg) {
			var update PriceUpdate
			if err := json.Unmarshal(msg.Data, &update); err != nil {
				pl.log.Warn().Err(err).Str("asset", asset).Msg("malformed price update")
				if pl.metrics != nil {
					pl.metrics.PriceErrors.WithLabelValues(asset).Inc()
				}
				return
			}
			if update.Price <= 0 {
				pl.log.Warn().Str("asset", asset).Int64("price", update.Price).Msg("non-positive price dropped")
				if pl.metrics != nil {
					pl.metrics.PriceErrors.WithLabelValues(asset).Inc()
				}
				return
			}

			feed.Update(update.Price, time.UnixMicro(update.Timestamp))
			if pl.metrics != nil {
				pl.metrics.PriceUpdates.WithLabelValues(asset).Inc()
			}
		})
		if err != nil {
			pl.Stop()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}

		pl.subs = append(pl.subs, sub)
		pl.log.Info().Str("subject", subject).Msg("price subscription started")
	}

	return nil
}

// Stop unsubscribes all price subscriptions.
func (pl *PriceListener) Stop() {
	for _, sub := range pl.subs {
		sub.Unsubscribe()
	}
	pl.subs = nil
}
