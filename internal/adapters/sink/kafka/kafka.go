// Package kafka streams committed changes to a Kafka topic keyed by the
// change's partition key, so consumers see one owner's changes in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/repdao/internal/domain/model"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	sinkName = "kafka"

	// DefaultTopic receives every change unless overridden.
	DefaultTopic = "repdao.changes"

	headerKind = "kind"
)

// MessageWriter is the subset of kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Option configures the sink.
type Option func(*Sink)

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(s *Sink) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithWriter replaces the kafka writer.
func WithWriter(w MessageWriter) Option {
	return func(s *Sink) {
		if w != nil {
			s.writer = w
		}
	}
}

// Sink publishes changes to Kafka.
type Sink struct {
	writer MessageWriter
	topic  string
}

// New creates a sink writing to brokers.
func New(brokers []string, opts ...Option) (*Sink, error) {
	s := &Sink{topic: DefaultTopic}
	for _, opt := range opts {
		opt(s)
	}
	if s.writer == nil {
		if len(brokers) == 0 {
			return nil, ErrNoBrokers
		}
		s.writer = &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			RequiredAcks: kafkago.RequireAll,
			Balancer:     &kafkago.Hash{},
		}
	}
	return s, nil
}

// Name implements worker.Sink.
func (s *Sink) Name() string { return sinkName }

// Deliver writes c as one JSON message.
func (s *Sink) Deliver(ctx context.Context, c model.Change) error { //nolint:gocritic // hugeParam: matches the Sink interface
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	msg := kafkago.Message{
		Topic:   s.topic,
		Key:     []byte(c.Key()),
		Value:   payload,
		Time:    c.At.UTC(),
		Headers: []kafkago.Header{{Key: headerKind, Value: []byte(c.Kind)}},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}
