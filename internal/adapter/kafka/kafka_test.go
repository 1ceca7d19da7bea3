package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("req-1"),
		Value:     []byte(`{"id":"req-1"}`),
		Topic:     "crop-recommendation-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("field-app")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("req-1"), raw.Key)
	assert.JSONEq(t, `{"id":"req-1"}`, string(raw.Value))
	assert.Equal(t, "crop-recommendation-requests", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "field-app", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestToMessage(t *testing.T) {
	event := domain.OutputEvent{
		Key:   []byte("req-1"),
		Value: []byte(`{"request_id":"req-1"}`),
		Headers: map[string]string{
			"processed_at": "2026-04-26T15:10:00Z",
			"outcome":      "ranked",
			"model_id":     "m-1",
		},
	}

	msg := toMessage(event)

	assert.Equal(t, []byte("req-1"), msg.Key)
	assert.JSONEq(t, `{"request_id":"req-1"}`, string(msg.Value))
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "model_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("m-1"), msg.Headers[0].Value)
	assert.Equal(t, "outcome", msg.Headers[1].Key)
	assert.Equal(t, []byte("ranked"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
}

func TestToMessage_NoHeaders(t *testing.T) {
	msg := toMessage(domain.OutputEvent{Key: []byte("k"), Value: []byte("{}")})
	assert.Empty(t, msg.Headers)
}
