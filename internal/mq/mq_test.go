package mq

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidhub/apiserver/config"
)

type recordingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	closed  bool
}

func (b *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.channel, b.data, b.attrs = channel, data, attrs
	return "msg-1", nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return handler(ctx, Message{ID: "msg-1", Data: b.data, Attributes: b.attrs})
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestMQ_PublishJSON(t *testing.T) {
	backend := &recordingBackend{}
	q := New(backend)

	id, err := q.PublishJSON(context.Background(), "accounts.events", map[string]any{"type": "user.registered", "userId": 3}, map[string]string{"type": "user.registered"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "accounts.events", backend.channel)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(backend.data, &decoded))
	assert.Equal(t, "user.registered", decoded["type"])
	assert.Equal(t, float64(3), decoded["userId"])

	var got Message
	require.NoError(t, q.Subscribe(context.Background(), "accounts.events", func(ctx context.Context, msg Message) error {
		got = msg
		return nil
	}))
	assert.Equal(t, "user.registered", got.Attributes["type"])

	require.NoError(t, q.Close())
	assert.True(t, backend.closed)
}

func TestMQ_PublishJSONEncodeError(t *testing.T) {
	q := New(&recordingBackend{})
	_, err := q.PublishJSON(context.Background(), "c", make(chan int), nil)
	assert.ErrorContains(t, err, "encode message")
}

func TestOpen_Disabled(t *testing.T) {
	for _, backend := range []string{"", "none"} {
		q, err := Open(context.Background(), config.MQConfig{Backend: backend})
		require.NoError(t, err)
		assert.Nil(t, q)
	}

	_, err := Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)
}

func TestOpen_RequiresSettings(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.ErrorContains(t, err, "rabbitmq url is required")

	_, err = Open(context.Background(), config.MQConfig{Backend: "pubsub"})
	assert.ErrorContains(t, err, "pubsub project id is required")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))

	attrs := headersToAttributes(amqp.Table{"type": "user.registered", "raw": []byte("x"), "n": int32(4)})
	assert.Equal(t, map[string]string{"type": "user.registered", "raw": "x", "n": "4"}, attrs)
}
