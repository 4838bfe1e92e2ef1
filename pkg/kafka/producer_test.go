package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completedPayload struct {
	OrderID    string `json:"order_id"`
	TotalMinor int64  `json:"total_minor"`
}

func TestNewEvent_Envelope(t *testing.T) {
	data := completedPayload{OrderID: "ord-123", TotalMinor: 4999}
	event, err := NewEvent("ecommerce.checkout.completed", "chk-123", "checkout", "checkout-service", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID, "EventID should be a non-empty UUID")
	assert.Equal(t, "ecommerce.checkout.completed", event.EventType)
	assert.Equal(t, "chk-123", event.AggregateID)
	assert.Equal(t, "checkout", event.AggregateType)
	assert.Equal(t, "checkout-service", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var decoded completedPayload
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, data, decoded)
}

func TestNewEvent_UnserializableData(t *testing.T) {
	_, err := NewEvent("ecommerce.checkout.created", "chk-1", "checkout", "checkout-service", make(chan int))
	require.Error(t, err)
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	original, err := NewEvent("ecommerce.checkout.failed", "chk-456", "checkout", "checkout-service",
		map[string]string{"failure_reason": "payment declined"})
	require.NoError(t, err)
	original.WithCorrelationID("corr-abc").WithMetadata("attempt", "2")

	bytes, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(bytes)
	require.NoError(t, err)

	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, original.EventType, restored.EventType)
	assert.Equal(t, original.AggregateID, restored.AggregateID)
	assert.Equal(t, original.AggregateType, restored.AggregateType)
	assert.Equal(t, original.Version, restored.Version)
	assert.Equal(t, original.Source, restored.Source)
	assert.Equal(t, "corr-abc", restored.CorrelationID)
	assert.Equal(t, original.Metadata, restored.Metadata)
	assert.JSONEq(t, string(original.Data), string(restored.Data))
	assert.WithinDuration(t, original.Timestamp, restored.Timestamp, time.Millisecond)
}

func TestEvent_WithCorrelationID_Chains(t *testing.T) {
	event, err := NewEvent("ecommerce.checkout.expired", "chk-1", "checkout", "checkout-service", nil)
	require.NoError(t, err)

	result := event.WithCorrelationID("corr-xyz")
	assert.Same(t, event, result)
	assert.Equal(t, "corr-xyz", event.CorrelationID)
}

func TestEvent_WithMetadata_AllocatesLazily(t *testing.T) {
	event, err := NewEvent("ecommerce.checkout.cancelled", "chk-1", "checkout", "checkout-service", nil)
	require.NoError(t, err)
	assert.Nil(t, event.Metadata)

	result := event.WithMetadata("sweep", "expiry").WithMetadata("region", "eu")
	assert.Same(t, event, result)
	assert.Equal(t, "expiry", event.Metadata["sweep"])
	assert.Equal(t, "eu", event.Metadata["region"])
}

func TestEvent_UnmarshalData(t *testing.T) {
	payload := completedPayload{OrderID: "ord-9", TotalMinor: 7999}
	event, err := NewEvent("ecommerce.checkout.completed", "chk-9", "checkout", "checkout-service", payload)
	require.NoError(t, err)

	var target completedPayload
	require.NoError(t, event.UnmarshalData(&target))
	assert.Equal(t, payload, target)
}

func TestEvent_UnmarshalData_InvalidPayload(t *testing.T) {
	event := &Event{Data: json.RawMessage(`not valid json`)}
	var target map[string]string
	require.Error(t, event.UnmarshalData(&target))
}

func TestUnmarshalEvent_InvalidInput(t *testing.T) {
	for _, input := range [][]byte{[]byte(`{broken json`), {}} {
		_, err := UnmarshalEvent(input)
		require.Error(t, err)
	}
}

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"broker1:9092", "broker2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async, "lifecycle events are published synchronously")
}

func TestEventHeaders(t *testing.T) {
	event := &Event{EventType: "ecommerce.checkout.created", Source: "checkout-service"}

	headers := eventHeaders(event)
	require.Len(t, headers, 2)
	assert.Equal(t, "event_type", headers[0].Key)
	assert.Equal(t, "ecommerce.checkout.created", string(headers[0].Value))
	assert.Equal(t, "source", headers[1].Key)

	event.CorrelationID = "corr-1"
	headers = eventHeaders(event)
	require.Len(t, headers, 3)
	assert.Equal(t, "correlation_id", headers[2].Key)
	assert.Equal(t, "corr-1", string(headers[2].Value))
}

func TestNewProducer_ClosesWithoutBroker(t *testing.T) {
	// The writer does not connect until the first publish, so construction
	// and close both succeed with an unreachable address.
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokersConfigured(t *testing.T) {
	for _, brokers := range [][]string{nil, {}} {
		err := PingBrokers(t.Context(), brokers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no brokers configured")
	}
}
