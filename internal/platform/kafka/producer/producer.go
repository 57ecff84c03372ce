// Package producer publishes records to Kafka-compatible brokers.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one record to publish. Headers are optional.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer wraps a franz-go client configured for acknowledged writes.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

type Option func(*config)

type config struct {
	clientID string
	linger   time.Duration
	logger   *slog.Logger
}

func WithClientID(id string) Option {
	return func(c *config) {
		c.clientID = id
	}
}

// WithLinger batches records for up to d before sending.
func WithLinger(d time.Duration) Option {
	return func(c *config) {
		c.linger = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func New(brokers []string, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	cfg := &config{clientID: "hope-dedup", logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	kopts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(cfg.clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	}
	if cfg.linger > 0 {
		kopts = append(kopts, kgo.ProducerLinger(cfg.linger))
	}
	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, logger: cfg.logger}, nil
}

// Publish writes the message and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return errors.New("message topic is required")
	}
	if err := p.client.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}

func toRecord(msg Message) *kgo.Record {
	record := &kgo.Record{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return record
}

// Ping checks that a broker is reachable.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.WarnContext(ctx, "failed to flush kafka producer", "error", err)
	}
	p.client.Close()
}
