// Package events publishes payroll lifecycle events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, any) error {
	return nil
}

// typed payloads expose their event type as a message header.
type typed interface {
	EventType() string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	msg, err := message(topic, key, payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// message keys the record by key so every event of one run lands on one partition.
func message(topic, key string, payload any) (kafka.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
	}
	if evt, ok := payload.(typed); ok {
		msg.Headers = []kafka.Header{{Key: "event_type", Value: []byte(evt.EventType())}}
	}
	return msg, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
