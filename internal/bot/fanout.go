package bot

import (
	"log"

	"algotrader/internal/model"
)

// Fanout delivers each event to every sink. A panic in one sink is contained
// so a broken subscriber cannot take down the loop or starve the others.
type Fanout []model.EventSink

func (f Fanout) Publish(ev model.Event) {
	for _, sink := range f {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[fanout] sink panic on %s event: %v", ev.Type, r)
				}
			}()
			sink.Publish(ev)
		}()
	}
}
