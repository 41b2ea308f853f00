package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestInProcessBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewInProcessBus()

	var got []EventType
	bus.Subscribe(EventMessageNew, EventHandlerFunc(func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	}))
	bus.Subscribe(EventMessageRead, EventHandlerFunc(func(_ context.Context, e Event) error {
		t.Errorf("read handler invoked for %s", e.Type)
		return nil
	}))

	if err := bus.Publish(context.Background(), Event{Type: EventMessageNew, ConversationID: uuid.New()}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 || got[0] != EventMessageNew {
		t.Fatalf("expected one message.new delivery, got %v", got)
	}
}

func TestInProcessBusOrderAndErrorPropagation(t *testing.T) {
	bus := NewInProcessBus()
	boom := errors.New("handler failed")

	var calls []int
	bus.Subscribe(EventMessageNew, EventHandlerFunc(func(context.Context, Event) error {
		calls = append(calls, 1)
		return nil
	}))
	bus.Subscribe(EventMessageNew, EventHandlerFunc(func(context.Context, Event) error {
		calls = append(calls, 2)
		return boom
	}))
	bus.Subscribe(EventMessageNew, EventHandlerFunc(func(context.Context, Event) error {
		calls = append(calls, 3)
		return nil
	}))

	err := bus.Publish(context.Background(), Event{Type: EventMessageNew})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Fatalf("expected handlers [1 2] in order, got %v", calls)
	}
}

func TestInProcessBusNoSubscribers(t *testing.T) {
	bus := NewInProcessBus()
	if err := bus.Publish(context.Background(), Event{Type: EventMessageRead}); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}
