package marketdata

import (
	"context"
	"fmt"
	"log"
	"time"

	"algotrader/internal/model"
	"algotrader/pkg/mstock"
)

const (
	niftySymbol    = "NIFTY 50"
	candleInterval = 5 // minutes
)

// LiveFeed sources NIFTY candles and ticks from the M.Stock API.
type LiveFeed struct {
	client  *mstock.Client
	lastLTP float64
}

func NewLiveFeed(client *mstock.Client) *LiveFeed {
	return &LiveFeed{client: client}
}

// Initialize establishes the broker session and primes the last price.
func (f *LiveFeed) Initialize(ctx context.Context) error {
	if err := f.client.GenerateSession(ctx); err != nil {
		return fmt.Errorf("mstock session: %w", err)
	}
	q, err := f.client.Quote(ctx, niftySymbol)
	if err != nil {
		return fmt.Errorf("initial quote: %w", err)
	}
	f.lastLTP = q.LTP
	log.Printf("[marketdata] live feed ready, nifty=%.2f", q.LTP)
	return nil
}

// LatestCandle fetches the most recently closed 5-minute bar. A transient
// API failure is returned as (nil, nil) so the loop can carry on with the
// previous bar.
func (f *LiveFeed) LatestCandle(ctx context.Context) (*model.Candle, error) {
	raw, err := f.client.LatestCandle(ctx, niftySymbol, candleInterval)
	if err != nil {
		log.Printf("[marketdata] candle fetch failed: %v", err)
		return nil, nil
	}
	if raw == nil {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw.Time)
	if err != nil {
		return nil, fmt.Errorf("bad candle timestamp %q: %w", raw.Time, err)
	}
	return &model.Candle{
		TS:     ts,
		Open:   raw.Open,
		High:   raw.High,
		Low:    raw.Low,
		Close:  raw.Close,
		Volume: int64(raw.Volume),
	}, nil
}

// LatestTick fetches the spot LTP, falling back to the last known price when
// the API hiccups.
func (f *LiveFeed) LatestTick(ctx context.Context) (*model.Tick, error) {
	ltp, err := f.client.LTP(ctx, niftySymbol)
	if err != nil {
		log.Printf("[marketdata] ltp fetch failed: %v", err)
		if f.lastLTP == 0 {
			return nil, nil
		}
		return &model.Tick{LTP: f.lastLTP}, nil
	}
	f.lastLTP = ltp
	return &model.Tick{LTP: ltp}, nil
}
