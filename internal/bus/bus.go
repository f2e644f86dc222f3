// Package bus carries invalidation events from the control plane to
// whatever is playing content. Delivery is at-least-once and unordered
// across targets; a receiver only learns that its decision may be stale.
package bus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

type EventKind string

const (
	ScreenUpdated EventKind = "screen_updated"
	GroupUpdated  EventKind = "group_updated"
)

type Payload struct {
	ID string `json:"id"`
}

// Event is the wire shape: {"event":"screen_updated","payload":{"id":"5"}}.
type Event struct {
	Kind    EventKind `json:"event"`
	Payload Payload   `json:"payload"`
}

func EventFor(t model.Target) Event {
	kind := ScreenUpdated
	if t.Type == model.TargetGroup {
		kind = GroupUpdated
	}
	return Event{Kind: kind, Payload: Payload{ID: t.Key()}}
}

// Target maps the event back to the target it names.
func (e Event) Target() (model.Target, error) {
	id, err := strconv.Atoi(e.Payload.ID)
	if err != nil {
		return model.Target{}, fmt.Errorf("bad event id %q: %w", e.Payload.ID, err)
	}
	switch e.Kind {
	case ScreenUpdated:
		return model.ScreenTarget(id), nil
	case GroupUpdated:
		return model.GroupTarget(id), nil
	}
	return model.Target{}, fmt.Errorf("unknown event kind %q", e.Kind)
}

// Handler is called once per delivered event. It runs on the transport's
// goroutine and must not block.
type Handler func(Event)

type Bus interface {
	// Publish sends a batch of events. Duplicates in the batch are sent once.
	Publish(ctx context.Context, events ...Event) error
	// Subscribe registers handler for events naming target until the
	// returned function is called.
	Subscribe(ctx context.Context, target model.Target, handler Handler) (func(), error)
	Close() error
}

// Dedupe drops repeated events, keeping first-seen order.
func Dedupe(events []Event) []Event {
	seen := make(map[Event]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev]; ok {
			continue
		}
		seen[ev] = struct{}{}
		out = append(out, ev)
	}
	return out
}
