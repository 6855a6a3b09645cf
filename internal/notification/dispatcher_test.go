package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"algotrader/internal/model"
)

type captureNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (c *captureNotifier) Send(_ context.Context, a Alert) error {
	c.mu.Lock()
	c.alerts = append(c.alerts, a)
	c.mu.Unlock()
	return c.err
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatcher_DeliversTradingEvents(t *testing.T) {
	cap1 := &captureNotifier{}
	d := NewDispatcher(cap1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Publish(model.NewEvent(model.EventSignal, &model.Signal{
		Type: "CE_BUY", BuyPrice: 105, InitialSL: 100, SLDistance: 5,
	}))
	d.Publish(model.NewEvent(model.EventEntry, &model.Position{
		Symbol: "NIFTY 22100 CE", Mode: model.ModePaper,
		EntryPrice: 105, Quantity: 130, InitialSL: 100,
	}))
	d.Publish(model.NewEvent(model.EventExit, model.ExitRecord{
		Reason: model.ExitSLHit, ExitPrice: 100, PnL: -650,
	}))

	waitFor(t, func() bool { return cap1.count() == 3 })

	cap1.mu.Lock()
	defer cap1.mu.Unlock()
	if cap1.alerts[0].Title != "Breakout Signal" || cap1.alerts[0].Level != AlertInfo {
		t.Errorf("signal alert wrong: %+v", cap1.alerts[0])
	}
	if cap1.alerts[1].Title != "Trade Entry" || cap1.alerts[1].Level != AlertInfo {
		t.Errorf("entry alert wrong: %+v", cap1.alerts[1])
	}
	if cap1.alerts[2].Title != "Trade Exit" || cap1.alerts[2].Level != AlertWarning {
		t.Errorf("losing exit should be a warning: %+v", cap1.alerts[2])
	}
}

func TestDispatcher_IgnoresNoise(t *testing.T) {
	cap1 := &captureNotifier{}
	d := NewDispatcher(cap1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Publish(model.NewEvent(model.EventStateUpdate, nil))
	d.Publish(model.NewEvent(model.EventBotStatus, map[string]string{"status": "PAUSED"}))
	d.Publish(model.NewEvent(model.EventError, map[string]string{"message": "feed down"}))

	waitFor(t, func() bool { return cap1.count() == 1 })

	cap1.mu.Lock()
	defer cap1.mu.Unlock()
	if cap1.alerts[0].Level != AlertCritical || cap1.alerts[0].Message != "feed down" {
		t.Errorf("error alert wrong: %+v", cap1.alerts[0])
	}
}

func TestDispatcher_FailingBackendDoesNotBlockOthers(t *testing.T) {
	bad := &captureNotifier{err: errors.New("telegram down")}
	good := &captureNotifier{}
	d := NewDispatcher(bad, good)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Publish(model.NewEvent(model.EventError, map[string]string{"message": "boom"}))

	waitFor(t, func() bool { return good.count() == 1 && bad.count() == 1 })
}
