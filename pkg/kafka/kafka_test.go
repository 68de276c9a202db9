package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	msg, err := encode(Event{Key: "search", Type: "search", Value: map[string]int{"total_hits": 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte("search"), msg.Key)
	assert.JSONEq(t, `{"total_hits":3}`, string(msg.Value))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "search", headers[headerEventType])
	assert.Equal(t, "application/json", headers[headerContentType])

	_, err = encode(Event{Type: "bad", Value: make(chan int)})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Query string `json:"query"`
	}
	v, err := DecodeJSON[payload]([]byte(`{"query":"add"}`))
	require.NoError(t, err)
	assert.Equal(t, "add", v.Query)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.Error(t, err)
}

func TestConsume_HandlerErrorCountsFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := &Consumer{
		handler: func(context.Context, []byte, []byte) error { return boom },
		logger:  newTestLogger(),
	}
	c.consume(context.Background(), kafkaMessage("k", "v"))
	processed, failed := c.Stats()
	assert.Zero(t, processed)
	assert.Equal(t, int64(1), failed)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func kafkaMessage(key, value string) kafka.Message {
	return kafka.Message{Key: []byte(key), Value: []byte(value)}
}
