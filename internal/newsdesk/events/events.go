// Package events publishes research run events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Event describes the outcome of one research run.
type Event struct {
	RunID    string    `json:"run_id"`
	TaskID   int64     `json:"task_id"`
	Topic    string    `json:"topic"`
	Status   string    `json:"status"`
	Articles int       `json:"articles"`
	Provider string    `json:"provider,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Config configures the Kafka publisher. No brokers disables publishing.
type Config struct {
	Brokers  []string `yaml:"brokers" toml:"brokers" env:"KAFKA_BROKERS"`
	Topic    string   `yaml:"topic" toml:"topic" env:"KAFKA_TOPIC"`
	ClientID string   `yaml:"client_id" toml:"client_id"`
}

// Kafka publishes events with a synchronous sarama producer, keyed by topic
// so runs for the same topic stay ordered within a partition.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewKafka connects a producer to the configured brokers.
func NewKafka(cfg Config) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	if sc.ClientID == "" {
		sc.ClientID = "newsdesk"
	}
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafka(producer, cfg.Topic), nil
}

func newKafka(producer sarama.SyncProducer, topic string) *Kafka {
	if topic == "" {
		topic = "newsdesk.research"
	}
	return &Kafka{producer: producer, topic: topic, now: time.Now}
}

// Publish fills RunID and At when unset and sends the event.
func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.RunID == "" {
		ev.RunID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = k.now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.Topic),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("send event for task %d: %w", ev.TaskID, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.producer.Close() }

// Nop drops events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
