package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickflow/internal/core/domain"
)

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(nil, "clickflow.")
	assert.Error(t, err)
}

func TestPublisherTopicPerTriggerType(t *testing.T) {
	p, err := NewPublisher([]string{"localhost:9092"}, "clickflow.")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, "clickflow.conversion.created", p.Topic(domain.TriggerConversionCreated))
	assert.Equal(t, "clickflow.conversion.refunded.partial", p.Topic(domain.TriggerPartialRefund))
	assert.Equal(t, "clickflow.pixel.fire", p.Topic(domain.TriggerPixelFire))
}
