package model

import "context"

// ── Collaborator Port Interfaces ──
// These decouple the trading pipeline from its I/O collaborators
// (market data, trade persistence, event delivery). The core treats a
// nil candle/tick as "no update this cycle" and must not fail on it.

// MarketFeed supplies the most recently closed interval candle and the
// latest tick quote on demand.
type MarketFeed interface {
	// Initialize prepares the feed (session login, history seed).
	Initialize(ctx context.Context) error

	// LatestCandle returns the most recently closed 5-minute candle,
	// or nil when no candle is available this cycle.
	LatestCandle(ctx context.Context) (*Candle, error)

	// LatestTick returns the latest quote, or nil when unavailable.
	LatestTick(ctx context.Context) (*Tick, error)
}

// Backfiller is optionally implemented by feeds that can hand over a seed
// history before polling starts.
type Backfiller interface {
	Backfill() []Candle
}

// TradeStore receives normalized entry and exit records. The pipeline never
// reads persisted state back during a cycle.
type TradeStore interface {
	// SaveEntry persists an opened position, returning the journal row id.
	SaveEntry(pos *Position) (int64, error)

	// CloseTrade records the exit against a previously saved entry.
	CloseTrade(journalID int64, rec ExitRecord) error
}

// EventSink receives typed bot events. Implementations must be non-blocking
// from the pipeline's point of view; delivery failure to one sink must not
// affect others or the loop.
type EventSink interface {
	Publish(ev Event)
}
