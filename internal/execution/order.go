// Package execution turns triggered signals into positions, settles exits,
// and journals both to SQLite.
package execution

import (
	"context"
	"fmt"
	"log"
	"time"

	"algotrader/internal/model"
	"algotrader/internal/session"
)

// EntryRequest is the broker-side order for opening a position. The trigger
// sits at the breakout level and the stop is attached as a GTT leg.
type EntryRequest struct {
	Symbol       string
	Quantity     int64
	Price        float64
	TriggerPrice float64
	StopLoss     float64
}

// OrderPlacer submits real orders to the broker. Implemented by the M.Stock
// client; paper mode never touches it.
type OrderPlacer interface {
	PlaceGTT(ctx context.Context, req EntryRequest) error
}

// Engine opens and closes positions. Trade ids are monotonic within a
// process; the journal row id is the durable identifier.
type Engine struct {
	placer   OrderPlacer
	tradeSeq int64
}

func NewEngine(placer OrderPlacer) *Engine {
	return &Engine{placer: placer}
}

// TryEntry opens a position from a triggered signal. It returns nil when
// there is no signal or a position is already open. In LIVE mode a broker
// rejection aborts the entry.
func (e *Engine) TryEntry(ctx context.Context, sig *model.Signal, current *model.Position, symbol string, mode model.Mode, set session.Settings, now time.Time) (*model.Position, error) {
	if sig == nil || current != nil {
		return nil, nil
	}

	e.tradeSeq++
	pos := &model.Position{
		TradeID:    e.tradeSeq,
		Symbol:     symbol,
		Mode:       mode,
		EntryPrice: sig.BuyPrice,
		Quantity:   set.Quantity,
		InitialSL:  sig.InitialSL,
		CurrentSL:  sig.InitialSL,
		SignalHigh: sig.SignalHigh,
		SignalLow:  sig.SignalLow,
		EntryTime:  now,
	}

	if mode == model.ModeLive {
		if e.placer == nil {
			return nil, fmt.Errorf("live mode without a broker client")
		}
		req := EntryRequest{
			Symbol:       symbol,
			Quantity:     pos.Quantity,
			Price:        pos.EntryPrice,
			TriggerPrice: pos.EntryPrice,
			StopLoss:     pos.InitialSL,
		}
		if err := e.placer.PlaceGTT(ctx, req); err != nil {
			return nil, fmt.Errorf("place entry order: %w", err)
		}
	}

	log.Printf("[execution] entry %s %s qty=%d @ %.2f sl=%.2f trade_id=%d",
		mode, symbol, pos.Quantity, pos.EntryPrice, pos.InitialSL, pos.TradeID)
	return pos, nil
}

// ExecuteExit settles the position at the last traded price. Paper mode
// subtracts the configured slippage from the fill.
func (e *Engine) ExecuteExit(pos *model.Position, reason model.ExitReason, ltp float64, set session.Settings, now time.Time) model.ExitRecord {
	exitPrice := ltp
	if pos.Mode == model.ModePaper {
		exitPrice -= set.PaperSlippage
	}
	exitPrice = model.Round2(exitPrice)

	rec := model.ExitRecord{
		TradeID:   pos.TradeID,
		ExitPrice: exitPrice,
		ExitTime:  now,
		Reason:    reason,
		PnL:       model.Round2((exitPrice - pos.EntryPrice) * float64(pos.Quantity)),
	}
	log.Printf("[execution] exit %s trade_id=%d reason=%s @ %.2f pnl=%.2f",
		pos.Symbol, pos.TradeID, reason, exitPrice, rec.PnL)
	return rec
}
