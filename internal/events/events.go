package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	UserRegistered    = "user_registered"
	UserDeleted       = "user_deleted"
	PatientCreated    = "patient_created"
	PatientUpdated    = "patient_updated"
	PatientDeleted    = "patient_deleted"
	EvaluationCreated = "evaluation_created"
	EvaluationDeleted = "evaluation_deleted"
)

const (
	publishTimeout = 5 * time.Second
	// Publishes run inline with requests and each one carries a single
	// message, so the writer flushes almost immediately instead of waiting
	// for a batch to fill.
	publishBatchTimeout = 10 * time.Millisecond
	defaultEventsTopic  = "records_events"
)

type Event struct {
	Type     string         `json:"type"`
	EntityID uint           `json:"entity_id"`
	UserID   uint           `json:"user_id"`
	At       time.Time      `json:"at"`
	Data     map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	w   messageWriter
	now func() time.Time
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if topic == "" {
		topic = defaultEventsTopic
	}
	return &KafkaProducer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           publishTimeout,
			BatchTimeout:           publishBatchTimeout,
		},
		now: time.Now,
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = p.now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.EntityID), 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.w.Close()
}
