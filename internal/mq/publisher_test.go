package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	env, err := NewEnvelope(EventBookingConfirmed, "res-1", map[string]string{"courtId": "c1"}, at)
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EventBookingConfirmed, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Equal(t, "res-1", env.CorrelationID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "c1", payload["courtId"])
}

func TestNewEnvelope_BadPayload(t *testing.T) {
	_, err := NewEnvelope(EventPaymentUnbooked, "x", make(chan int), time.Now())
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), EventBookingCancelled, "r", nil))
}
