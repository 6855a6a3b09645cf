package marketdata

import (
	"context"
	"testing"
	"time"
)

func TestATMStrike(t *testing.T) {
	cases := []struct {
		price float64
		want  int
	}{
		{22000, 22000},
		{22024.9, 22000},
		{22025, 22050},
		{22075.5, 22100},
		{21987.3, 22000},
	}
	for _, tc := range cases {
		if got := ATMStrike(tc.price); got != tc.want {
			t.Errorf("ATMStrike(%v) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestExpiryLabel(t *testing.T) {
	mon := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)  // Monday
	wed := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC) // Wednesday

	if got := ExpiryLabel(mon, true); got != "next week" {
		t.Errorf("monday with rollover = %q", got)
	}
	if got := ExpiryLabel(mon, false); got != "this week" {
		t.Errorf("monday without rollover = %q", got)
	}
	if got := ExpiryLabel(wed, true); got != "this week" {
		t.Errorf("wednesday = %q", got)
	}
}

func TestATMSymbols(t *testing.T) {
	wed := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	ce, pe := ATMSymbols(22024, wed, true)
	if ce != "NIFTY 22000 CE (this week)" {
		t.Errorf("ce = %q", ce)
	}
	if pe != "NIFTY 22000 PE (this week)" {
		t.Errorf("pe = %q", pe)
	}
}

func TestSimFeed_SeedsHistory(t *testing.T) {
	s := NewSimFeed(1)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	hist := s.Backfill()
	if len(hist) != simSeedCandles {
		t.Fatalf("expected %d seed candles, got %d", simSeedCandles, len(hist))
	}
	for i, c := range hist {
		if c.High < c.Low {
			t.Errorf("candle %d: high %v below low %v", i, c.High, c.Low)
		}
		if c.Close > c.High || c.Close < c.Low {
			t.Errorf("candle %d: close %v outside range", i, c.Close)
		}
		if i > 0 && !hist[i-1].TS.Before(c.TS) {
			t.Errorf("candle %d: timestamps not increasing", i)
		}
	}
}

func TestSimFeed_MintsBarEveryTwelfthPoll(t *testing.T) {
	s := NewSimFeed(1)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	last := s.Backfill()[simSeedCandles-1]

	for i := 0; i < simPollsPerBar-1; i++ {
		c, err := s.LatestCandle(context.Background())
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if !c.TS.Equal(last.TS) {
			t.Fatalf("poll %d minted a bar early", i)
		}
	}

	c, err := s.LatestCandle(context.Background())
	if err != nil {
		t.Fatalf("mint poll: %v", err)
	}
	if !c.TS.After(last.TS) {
		t.Fatal("twelfth poll should mint a new bar")
	}
	if c.High < c.Low || c.Close > c.High || c.Close < c.Low {
		t.Errorf("minted bar out of range: %+v", c)
	}
}

func TestSimFeed_TickDrifts(t *testing.T) {
	s := NewSimFeed(1)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	tick, err := s.LatestTick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if tick == nil || tick.LTP <= 0 {
		t.Fatalf("bad tick: %+v", tick)
	}
}
