package kafka

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 4, 26, 15, 10, 0, 0, time.UTC)
	event := port.ReadingsPurgedEvent{Deleted: 3, Cutoff: now, OccurredAt: now}

	msg, err := serializeToMessage(port.SubjectReadingsPurged, event, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("water.readings.purged"), msg.Key)
	assert.Contains(t, string(msg.Value), `"deleted":3`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "subject", msg.Headers[0].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_Unmarshalable(t *testing.T) {
	_, err := serializeToMessage("s", make(chan int), time.Now())
	assert.Error(t, err)
}

func TestKafkaPublisher_PublishEvent(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisher(writer, logger.NewWithWriter("error", io.Discard))

	err := publisher.PublishEvent(context.Background(), port.SubjectReadingsIngested, port.ReadingsIngestedEvent{Accepted: 2})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "water.readings.ingested", string(writer.messages[0].Key))

	writer.err = errors.New("leader not available")
	err = publisher.PublishEvent(context.Background(), port.SubjectReadingsIngested, port.ReadingsIngestedEvent{})
	assert.ErrorContains(t, err, "failed to publish event")

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestNewKafkaPublisher_RequiresConfig(t *testing.T) {
	log := logger.NewWithWriter("error", io.Discard)

	_, err := NewKafkaPublisher(Options{Topic: "t"}, log)
	assert.Error(t, err)

	_, err = NewKafkaPublisher(Options{Brokers: []string{"localhost:9092"}}, log)
	assert.Error(t, err)
}
