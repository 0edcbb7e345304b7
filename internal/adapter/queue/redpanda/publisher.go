package redpanda

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// producer is the produce surface of *kgo.Client.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// HistoryPublisher implements domain.HistoryRecorder by producing every
// search to TopicHistory keyed by user id, so one user's searches stay in
// order on one partition.
type HistoryPublisher struct {
	client producer
	closer func()
	topic  string
}

func kotelHooks() kgo.Opt {
	k := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	return kgo.WithHooks(k.Hooks()...)
}

// NewHistoryPublisher connects an idempotent producer and makes sure the
// history topics exist.
func NewHistoryPublisher(ctx context.Context, brokers []string, partitions int32) (*HistoryPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewHistoryPublisher: %w: no seed brokers", domain.ErrInvalidArgument)
	}
	if partitions <= 0 {
		partitions = 3
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(TopicHistory),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.ProducerLinger(5*time.Millisecond),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewHistoryPublisher: %w", err)
	}
	for _, t := range []string{TopicHistory, TopicHistoryDLQ} {
		if err := createTopicIfNotExists(ctx, client, t, partitions, 1); err != nil {
			slog.Warn("ensure topic failed", slog.String("topic", t), slog.Any("error", err))
		}
	}
	slog.Info("history publisher ready", slog.Any("brokers", brokers))
	return &HistoryPublisher{client: client, closer: client.Close, topic: TopicHistory}, nil
}

// Record produces e and waits for the broker acknowledgement.
func (p *HistoryPublisher) Record(ctx domain.Context, e domain.HistoryEntry) error {
	if e.SearchedAt.IsZero() {
		e.SearchedAt = time.Now().UTC()
	}
	b, err := encodeEntry(e)
	if err != nil {
		return err
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.UserID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "user_id", Value: []byte(e.UserID)},
			{Key: "intent", Value: []byte(e.Intent)},
		},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		observability.HistoryWritesTotal.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("op=redpanda.Record: %w", err)
	}
	observability.HistoryWritesTotal.WithLabelValues("kafka", "ok").Inc()
	slog.Debug("search history published", slog.String("user_id", e.UserID), slog.Int("bytes", len(b)))
	return nil
}

// Close flushes and closes the underlying client.
func (p *HistoryPublisher) Close() {
	if p != nil && p.closer != nil {
		p.closer()
	}
}
