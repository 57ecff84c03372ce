package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestNewValidatesArguments(t *testing.T) {
	noop := HandlerFunc(func(context.Context, *Message) error { return nil })

	_, err := New(nil, "g", []string{"t"}, noop)
	assert.Error(t, err)
	_, err = New([]string{"localhost:9092"}, "", []string{"t"}, noop)
	assert.Error(t, err)
	_, err = New([]string{"localhost:9092"}, "g", nil, noop)
	assert.Error(t, err)
	_, err = New([]string{"localhost:9092"}, "g", []string{"t"}, nil)
	assert.Error(t, err)
}

func TestFromRecord(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := fromRecord(&kgo.Record{
		Topic:     "hope.jobs",
		Partition: 2,
		Offset:    41,
		Key:       []byte("k"),
		Value:     []byte(`{"kind":"x"}`),
		Headers:   []kgo.RecordHeader{{Key: "event_type", Value: []byte("job")}},
		Timestamp: ts,
	})

	require.NotNil(t, msg)
	assert.Equal(t, "hope.jobs", msg.Topic)
	assert.Equal(t, int32(2), msg.Partition)
	assert.Equal(t, int64(41), msg.Offset)
	assert.Equal(t, map[string]string{"event_type": "job"}, msg.Headers)
	assert.Equal(t, ts, msg.Timestamp)
}
