package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int
	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: "b-1", TotalPrice: decimal.NewFromInt(300)})
	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventBookingCreated, received.Type)

	var decoded BookingEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "b-1", decoded.BookingID)
	assert.True(t, decoded.TotalPrice.Equal(decimal.NewFromInt(300)))
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	require.NoError(t, bus.Publish(&Event{Type: "event"}))
	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	var secondCalled bool

	bus.Subscribe("event", func(_ *Event) error { return boom })
	bus.Subscribe("event", func(_ *Event) error { secondCalled = true; return nil })

	err := bus.PublishJSON("event", map[string]string{"k": "v"})
	assert.ErrorIs(t, err, boom)
	assert.True(t, secondCalled)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "unknown"}))
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestNewJSONEventRawPayload(t *testing.T) {
	raw := json.RawMessage(`{"booking_id":"b-9"}`)
	event, err := NewJSONEvent(EventBookingClosed, raw)
	require.NoError(t, err)
	assert.False(t, event.CreatedAt.IsZero())
	assert.JSONEq(t, `{"booking_id":"b-9"}`, string(event.Payload))
}
