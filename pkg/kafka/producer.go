package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Event is one record to publish. Key picks the partition; Value is sent as
// JSON. Type, when set, travels in the event-type header so consumers can
// route without decoding the body.
type Event struct {
	Key   string
	Type  string
	Value any
}

// Publisher is what the analytics collector writes to.
type Publisher interface {
	PublishBatch(ctx context.Context, events []Event) error
}

// Producer writes events to a single topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 20 * time.Millisecond,
			MaxAttempts:  3,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Lz4,
		},
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch encodes events and writes them in one call. Nothing is sent
// if any event fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		m, err := encode(e)
		if err != nil {
			return err
		}
		msgs[i] = m
	}
	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing %d events to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("events published", "count", len(msgs), "took", time.Since(start))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

const (
	headerEventType   = "event-type"
	headerContentType = "content-type"
)

func encode(e Event) (kafka.Message, error) {
	body, err := json.Marshal(e.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %s event: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:     []byte(e.Key),
		Value:   body,
		Headers: []kafka.Header{{Key: headerContentType, Value: []byte("application/json")}},
	}
	if e.Type != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: headerEventType, Value: []byte(e.Type)})
	}
	return msg, nil
}
