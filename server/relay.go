package server

import (
	"context"

	"scotty/models"
)

// Relay forwards pipeline events to the broadcaster until the context is
// cancelled. The events channel is left open on shutdown so a cycle still
// winding down can keep publishing into it; unread events are simply
// dropped with the channel.
func Relay(ctx context.Context, events <-chan interface{}, bc *Broadcaster) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			switch event := event.(type) {
			case models.ItemCreatedEvent:
				bc.BroadcastItemCreated(event)
			case models.CycleCompletedEvent:
				bc.BroadcastCycleCompleted(event)
			}
		}
	}
}
