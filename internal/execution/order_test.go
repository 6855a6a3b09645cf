package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"algotrader/internal/markethours"
	"algotrader/internal/model"
	"algotrader/internal/session"
)

type fakePlacer struct {
	calls []EntryRequest
	err   error
}

func (f *fakePlacer) PlaceGTT(_ context.Context, req EntryRequest) error {
	f.calls = append(f.calls, req)
	return f.err
}

func testSignal() *model.Signal {
	return &model.Signal{
		Type:       "CE_BUY",
		SignalHigh: 103,
		SignalLow:  101,
		BuyPrice:   105,
		InitialSL:  100,
		SLDistance: 5,
	}
}

func TestTryEntry_PaperOpensPosition(t *testing.T) {
	e := NewEngine(nil)
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, markethours.IST)

	pos, err := e.TryEntry(context.Background(), testSignal(), nil, "NIFTY 22100 CE", model.ModePaper, session.DefaultSettings(), now)
	if err != nil {
		t.Fatalf("try entry: %v", err)
	}
	if pos == nil {
		t.Fatal("expected a position")
	}
	if pos.EntryPrice != 105 || pos.InitialSL != 100 || pos.CurrentSL != 100 {
		t.Errorf("position prices wrong: %+v", pos)
	}
	if pos.Quantity != 130 {
		t.Errorf("quantity = %d, want settings default 130", pos.Quantity)
	}
	if pos.TradeID != 1 {
		t.Errorf("trade id = %d, want 1", pos.TradeID)
	}

	// Trade ids are monotonic.
	pos2, err := e.TryEntry(context.Background(), testSignal(), nil, "NIFTY 22100 CE", model.ModePaper, session.DefaultSettings(), now)
	if err != nil {
		t.Fatalf("try entry: %v", err)
	}
	if pos2.TradeID != 2 {
		t.Errorf("trade id = %d, want 2", pos2.TradeID)
	}
}

func TestTryEntry_NoSignalOrOpenPosition(t *testing.T) {
	e := NewEngine(nil)
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, markethours.IST)

	if pos, err := e.TryEntry(context.Background(), nil, nil, "X", model.ModePaper, session.DefaultSettings(), now); pos != nil || err != nil {
		t.Errorf("nil signal: got (%v, %v)", pos, err)
	}

	open := &model.Position{TradeID: 1}
	if pos, err := e.TryEntry(context.Background(), testSignal(), open, "X", model.ModePaper, session.DefaultSettings(), now); pos != nil || err != nil {
		t.Errorf("open position: got (%v, %v)", pos, err)
	}
}

func TestTryEntry_LivePlacesGTT(t *testing.T) {
	placer := &fakePlacer{}
	e := NewEngine(placer)
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, markethours.IST)

	pos, err := e.TryEntry(context.Background(), testSignal(), nil, "NIFTY 22100 CE", model.ModeLive, session.DefaultSettings(), now)
	if err != nil {
		t.Fatalf("try entry: %v", err)
	}
	if pos == nil || pos.Mode != model.ModeLive {
		t.Fatalf("expected live position, got %+v", pos)
	}
	if len(placer.calls) != 1 {
		t.Fatalf("expected 1 broker call, got %d", len(placer.calls))
	}
	req := placer.calls[0]
	if req.Price != 105 || req.TriggerPrice != 105 || req.StopLoss != 100 || req.Quantity != 130 {
		t.Errorf("broker request wrong: %+v", req)
	}
}

func TestTryEntry_LiveRejectionAborts(t *testing.T) {
	placer := &fakePlacer{err: errors.New("margin shortfall")}
	e := NewEngine(placer)
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, markethours.IST)

	pos, err := e.TryEntry(context.Background(), testSignal(), nil, "X", model.ModeLive, session.DefaultSettings(), now)
	if err == nil {
		t.Fatal("expected error from rejected order")
	}
	if pos != nil {
		t.Errorf("rejected entry must not return a position, got %+v", pos)
	}
}

func TestExecuteExit_PaperSlippage(t *testing.T) {
	e := NewEngine(nil)
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, markethours.IST)
	pos := &model.Position{
		TradeID:    7,
		Mode:       model.ModePaper,
		EntryPrice: 105,
		Quantity:   130,
	}

	rec := e.ExecuteExit(pos, model.ExitVWAP, 112, session.DefaultSettings(), now)
	if rec.ExitPrice != 111 { // default slippage 1
		t.Errorf("exit price = %v, want 111", rec.ExitPrice)
	}
	if rec.PnL != 780 { // (111-105)*130
		t.Errorf("pnl = %v, want 780", rec.PnL)
	}
	if rec.TradeID != 7 || rec.Reason != model.ExitVWAP {
		t.Errorf("record metadata wrong: %+v", rec)
	}
}

func TestExecuteExit_LiveNoSlippage(t *testing.T) {
	e := NewEngine(nil)
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, markethours.IST)
	pos := &model.Position{
		TradeID:    1,
		Mode:       model.ModeLive,
		EntryPrice: 105,
		Quantity:   130,
	}

	rec := e.ExecuteExit(pos, model.ExitSLHit, 100, session.DefaultSettings(), now)
	if rec.ExitPrice != 100 {
		t.Errorf("exit price = %v, want 100", rec.ExitPrice)
	}
	if rec.PnL != -650 {
		t.Errorf("pnl = %v, want -650", rec.PnL)
	}
}
