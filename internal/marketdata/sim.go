package marketdata

import (
	"context"
	"math/rand"
	"time"

	"algotrader/internal/model"
)

const (
	simSeedCandles  = 50
	simBasePrice    = 22000.0
	simCandlePeriod = 5 * time.Minute
	simPollsPerBar  = 12 // 60s bar cadence at a 5s poll interval
	simHistoryLimit = 200
)

// SimFeed generates a synthetic NIFTY random walk for demo mode. It seeds a
// block of history on Initialize and then closes a new bar every
// simPollsPerBar polls. Not safe for concurrent use; the trading loop is the
// only caller.
type SimFeed struct {
	rng      *rand.Rand
	history  []model.Candle
	price    float64
	pollSeq  int
	lastMint time.Time
}

// NewSimFeed creates a demo feed. Pass a fixed seed for reproducible runs.
func NewSimFeed(seed int64) *SimFeed {
	return &SimFeed{rng: rand.New(rand.NewSource(seed))}
}

// Initialize seeds the candle history with a random walk ending now.
func (s *SimFeed) Initialize(_ context.Context) error {
	now := time.Now().Truncate(time.Minute)
	base := simBasePrice + s.rng.Float64()*400 - 200

	s.history = s.history[:0]
	for i := 0; i < simSeedCandles; i++ {
		ts := now.Add(-time.Duration(simSeedCandles-i) * simCandlePeriod)
		o := base + s.rng.Float64()*30 - 15
		h := o + s.rng.Float64()*30
		l := o - s.rng.Float64()*20
		c := l + s.rng.Float64()*(h-l)
		s.history = append(s.history, model.Candle{
			TS:     ts,
			Open:   model.Round2(o),
			High:   model.Round2(h),
			Low:    model.Round2(l),
			Close:  model.Round2(c),
			Volume: int64(5000 + s.rng.Intn(15000)),
		})
		base = c
	}
	s.price = base
	s.lastMint = now
	return nil
}

// Backfill hands over the seeded history.
func (s *SimFeed) Backfill() []model.Candle {
	out := make([]model.Candle, len(s.history))
	copy(out, s.history)
	return out
}

// LatestCandle returns the most recently closed bar. A new bar is minted
// every simPollsPerBar calls; in between, the previous bar is repeated and
// the caller dedupes on the timestamp.
func (s *SimFeed) LatestCandle(_ context.Context) (*model.Candle, error) {
	s.pollSeq++
	if s.pollSeq%simPollsPerBar != 0 {
		if len(s.history) == 0 {
			return nil, nil
		}
		c := s.history[len(s.history)-1]
		return &c, nil
	}

	trend := 1.0
	if s.rng.Float64() <= 0.45 {
		trend = -1
	}
	o := s.price + s.rng.Float64()*10 - 5
	c := o + (5+s.rng.Float64()*35)*trend
	h := max2(o, c) + s.rng.Float64()*15
	l := min2(o, c) - s.rng.Float64()*15

	s.lastMint = s.lastMint.Add(simCandlePeriod)
	candle := model.Candle{
		TS:     s.lastMint,
		Open:   model.Round2(o),
		High:   model.Round2(h),
		Low:    model.Round2(l),
		Close:  model.Round2(c),
		Volume: int64(5000 + s.rng.Intn(20000)),
	}
	s.history = append(s.history, candle)
	if len(s.history) > simHistoryLimit {
		s.history = s.history[1:]
	}
	s.price = c
	return &candle, nil
}

// LatestTick drifts the simulated spot a little each poll.
func (s *SimFeed) LatestTick(_ context.Context) (*model.Tick, error) {
	s.price += s.rng.Float64()*6 - 3
	return &model.Tick{LTP: model.Round2(s.price)}, nil
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
