package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 5, nil)
	t.Cleanup(func() { _ = p.Close() })

	require.NotNil(t, p.writer)
	assert.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	assert.Equal(t, 5, p.writer.MaxAttempts)
	assert.Equal(t, kafka.RequireOne, p.writer.RequiredAcks)
}

func TestProducer_PublishRejectsUnencodablePayload(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 1, nil)
	t.Cleanup(func() { _ = p.Close() })

	err := p.Publish(context.Background(), "parking.reservations", "1", make(chan int))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal payload")
}

func TestProducer_CloseWithoutWriter(t *testing.T) {
	assert.NoError(t, (&Producer{}).Close())
	assert.NoError(t, (*Consumer)(nil).Close())
}
