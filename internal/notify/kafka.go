package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher queues code deliveries on a Kafka topic for cmd/worker.
// Messages are keyed by email so retries for one address stay ordered.
type KafkaDispatcher struct {
	writer messageWriter
}

// NewKafkaDispatcher returns a dispatcher writing to topic.
func NewKafkaDispatcher(brokers []string, topic string) (*KafkaDispatcher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, ErrNotConfigured
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaDispatcher{writer: writer}, nil
}

// SendOTP publishes a Dispatch carrying the pending expiry and waits for the broker ack.
func (d *KafkaDispatcher) SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	payload, err := json.Marshal(Dispatch{
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt.UTC(),
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return d.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(email),
		Value: payload,
	})
}

// Close closes the Kafka writer.
func (d *KafkaDispatcher) Close() error {
	if d == nil || d.writer == nil {
		return nil
	}
	return d.writer.Close()
}
