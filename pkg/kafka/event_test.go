package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]string{"email": "jane@example.com"}

	event, err := NewEvent("user.registered", "user-123", "user", "user-service", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "user.registered", event.EventType)
	assert.Equal(t, "user-123", event.AggregateID)
	assert.Equal(t, "user", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, "user-service", event.Source)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("user.registered", "user-123", "user", "user-service", make(chan int))
	assert.Error(t, err)
}

func TestEvent_RoundTrip(t *testing.T) {
	event, err := NewEvent("user.updated", "user-7", "user", "user-service", map[string]string{"first_name": "Ada"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-42")

	data, err := event.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "corr-42", decoded.CorrelationID)

	var body map[string]string
	require.NoError(t, decoded.UnmarshalData(&body))
	assert.Equal(t, "Ada", body["first_name"])
}

func TestUnmarshalEvent_InvalidJSON(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)
}
