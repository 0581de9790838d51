package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/stageflow/pkg/channels/gochannel"
	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newBus(t)
	received := make(chan *events.JobStageChanged, 1)

	require.NoError(t, bus.Handle(events.JobStageChangedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.JobStageChanged)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	id := bus.GenerateID()
	require.NotEmpty(t, id)

	err := bus.Publish(ctx, "job-1", events.JobStageChanged{
		BaseEvent: events.NewBaseEvent(id, events.JobStageChangedEvent),
		JobID:     "job-1",
		ToStageID: "st2",
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, id, event.ID)
		assert.Equal(t, "job-1", event.JobID)
		assert.Equal(t, "st2", event.ToStageID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_RedeliversOnHandlerError(t *testing.T) {
	bus := newBus(t)
	attempts := make(chan struct{}, 4)

	require.NoError(t, bus.Handle(events.JobCreatedEvent, func(context.Context, any) error {
		attempts <- struct{}{}
		if len(attempts) == 1 {
			return errors.New("transient")
		}

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "job-2", events.JobCreated{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.JobCreatedEvent),
		JobID:     "job-2",
	}))

	for range 2 {
		select {
		case <-attempts:
		case <-time.After(5 * time.Second):
			t.Fatal("expected the message to be redelivered")
		}
	}
}

func TestWatermillEventBus_AcksEventsWithoutHandler(t *testing.T) {
	bus := newBus(t)
	received := make(chan *events.JobStageChanged, 1)

	require.NoError(t, bus.Handle(events.JobStageChangedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.JobStageChanged)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "job-3", events.JobCreated{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.JobCreatedEvent),
		JobID:     "job-3",
	}))
	require.NoError(t, bus.Publish(ctx, "job-3", events.JobStageChanged{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.JobStageChangedEvent),
		JobID:     "job-3",
		ToStageID: "st3",
	}))

	select {
	case event := <-received:
		assert.Equal(t, "job-3", event.JobID)
	case <-time.After(5 * time.Second):
		t.Fatal("unhandled event blocked the subscription")
	}
}

func TestWatermillEventBus_HandleReplacesHandler(t *testing.T) {
	bus := newBus(t)
	received := make(chan string, 2)

	require.NoError(t, bus.Handle(events.JobCreatedEvent, func(context.Context, any) error {
		received <- "first"

		return nil
	}))
	require.NoError(t, bus.Handle(events.JobCreatedEvent, func(context.Context, any) error {
		received <- "second"

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "job-4", events.JobCreated{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.JobCreatedEvent),
		JobID:     "job-4",
	}))

	select {
	case name := <-received:
		assert.Equal(t, "second", name)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}
