package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icc.tech/wpan-agent/internal/config"
	"icc.tech/wpan-agent/internal/stack"
)

func newTestConsumer(t *testing.T) *KafkaCommandConsumer {
	t.Helper()
	stk := stack.New(stack.Config{Capacity: 4, Backlog: 8})
	return &KafkaCommandConsumer{
		hostname: "node-01",
		handler:  NewCommandHandler(stk, &fakeReloader{}),
		ttl:      5 * time.Minute,
	}
}

func kafkaMessage(t *testing.T, cmd RemoteCommand) kafka.Message {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	return kafka.Message{Value: data}
}

func TestProcessMessageTargeted(t *testing.T) {
	c := newTestConsumer(t)

	msg := kafkaMessage(t, RemoteCommand{
		Version:   "v1",
		Target:    "node-01",
		Command:   "registry_stats",
		Timestamp: time.Now(),
		RequestID: "req-1",
	})
	assert.NoError(t, c.processMessage(context.Background(), msg))
}

func TestProcessMessageBroadcast(t *testing.T) {
	c := newTestConsumer(t)

	msg := kafkaMessage(t, RemoteCommand{
		Version:   "v1",
		Target:    "*",
		Command:   "daemon_status",
		Timestamp: time.Now(),
		RequestID: "req-2",
	})
	assert.NoError(t, c.processMessage(context.Background(), msg))
}

func TestProcessMessageWrongTarget(t *testing.T) {
	c := newTestConsumer(t)

	// Commands for other nodes are skipped without error.
	msg := kafkaMessage(t, RemoteCommand{
		Version:   "v1",
		Target:    "node-99",
		Command:   "daemon_shutdown",
		Timestamp: time.Now(),
		RequestID: "req-3",
	})
	assert.NoError(t, c.processMessage(context.Background(), msg))
}

func TestProcessMessageStale(t *testing.T) {
	c := newTestConsumer(t)
	c.ttl = time.Minute

	// Stale commands are dropped, not executed. daemon_shutdown with no
	// registered callback would otherwise report an error.
	msg := kafkaMessage(t, RemoteCommand{
		Version:   "v1",
		Target:    "node-01",
		Command:   "daemon_shutdown",
		Timestamp: time.Now().Add(-time.Hour),
		RequestID: "req-4",
	})
	assert.NoError(t, c.processMessage(context.Background(), msg))
}

func TestProcessMessageCommandError(t *testing.T) {
	c := newTestConsumer(t)

	msg := kafkaMessage(t, RemoteCommand{
		Version:   "v1",
		Target:    "node-01",
		Command:   "no_such_method",
		Timestamp: time.Now(),
		RequestID: "req-5",
	})
	assert.Error(t, c.processMessage(context.Background(), msg))
}

func TestProcessMessageBadJSON(t *testing.T) {
	c := newTestConsumer(t)
	err := c.processMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}

func TestNewKafkaCommandConsumerValidation(t *testing.T) {
	stk := stack.New(stack.Config{Capacity: 2, Backlog: 8})
	h := NewCommandHandler(stk, nil)

	_, err := NewKafkaCommandConsumer(config.CommandChannelConfig{}, "node-01", h)
	assert.Error(t, err)

	_, err = NewKafkaCommandConsumer(config.CommandChannelConfig{
		Kafka: config.KafkaConfig{Brokers: []string{"kafka:9092"}},
	}, "node-01", h)
	assert.Error(t, err)

	_, err = NewKafkaCommandConsumer(config.CommandChannelConfig{
		Kafka: config.KafkaConfig{
			Brokers: []string{"kafka:9092"},
			Topic:   "wpan-commands",
			GroupID: "g1",
		},
		CommandTTL: "not-a-duration",
	}, "node-01", h)
	assert.Error(t, err)

	c, err := NewKafkaCommandConsumer(config.CommandChannelConfig{
		Kafka: config.KafkaConfig{
			Brokers: []string{"kafka:9092"},
			Topic:   "wpan-commands",
			GroupID: "g1",
		},
	}, "node-01", h)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, c.ttl)
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
}
