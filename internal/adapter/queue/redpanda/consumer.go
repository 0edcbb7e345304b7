package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// groupClient is the consume and produce surface of a *kgo.Client
// joined to a consumer group.
type groupClient interface {
	producer
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

// HistoryConsumer appends every record of TopicHistory to a HistoryStore.
// Offsets are committed only after a record is stored or parked on the DLQ.
type HistoryConsumer struct {
	client     groupClient
	store      domain.HistoryStore
	newBackOff func() backoff.BackOff
}

// NewHistoryConsumer joins groupID on TopicHistory.
func NewHistoryConsumer(ctx context.Context, brokers []string, groupID string, store domain.HistoryStore) (*HistoryConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewHistoryConsumer: %w: no seed brokers", domain.ErrInvalidArgument)
	}
	if groupID == "" {
		return nil, fmt.Errorf("op=redpanda.NewHistoryConsumer: %w: missing group id", domain.ErrInvalidArgument)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(TopicHistory),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.DisableAutoCommit(),
		kgo.RequireStableFetchOffsets(),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewHistoryConsumer: %w", err)
	}
	for _, t := range []string{TopicHistory, TopicHistoryDLQ} {
		if err := createTopicIfNotExists(ctx, client, t, 3, 1); err != nil {
			slog.Warn("ensure topic failed", slog.String("topic", t), slog.Any("error", err))
		}
	}
	return newHistoryConsumer(client, store), nil
}

func newHistoryConsumer(client groupClient, store domain.HistoryStore) *HistoryConsumer {
	return &HistoryConsumer{
		client: client,
		store:  store,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

// Run polls until ctx is done or the client is closed. It fails only when a
// record can neither be stored nor parked on the DLQ.
func (c *HistoryConsumer) Run(ctx context.Context) error {
	slog.Info("history consumer started", slog.String("topic", TopicHistory))
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			slog.Info("history consumer stopping")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			slog.Error("fetch error", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
		})

		var done []*kgo.Record
		var stopErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if stopErr != nil {
				return
			}
			if err := c.handle(ctx, r); err != nil {
				stopErr = err
				return
			}
			done = append(done, r)
		})
		if len(done) > 0 {
			if err := c.client.CommitRecords(context.WithoutCancel(ctx), done...); err != nil {
				slog.Error("commit failed", slog.Int("records", len(done)), slog.Any("error", err))
			}
		}
		if stopErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return stopErr
		}
	}
}

// Close leaves the group and closes the client.
func (c *HistoryConsumer) Close() { c.client.Close() }

// handle stores one record and parks it on the DLQ when it cannot be
// stored. A returned error leaves the record uncommitted.
func (c *HistoryConsumer) handle(ctx context.Context, r *kgo.Record) error {
	e, err := decodeEntry(r.Value)
	if err != nil {
		slog.Warn("undecodable history record", slog.Int64("offset", r.Offset), slog.Any("error", err))
		return c.park(ctx, r, err)
	}

	op := func() error {
		_, err := c.store.Append(ctx, e)
		if errors.Is(err, domain.ErrInvalidArgument) {
			return backoff.Permanent(err)
		}
		return err
	}
	err = backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
	if err == nil {
		observability.HistoryWritesTotal.WithLabelValues("postgres", "ok").Inc()
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	observability.HistoryWritesTotal.WithLabelValues("postgres", "error").Inc()
	slog.Error("history append failed", slog.String("user_id", e.UserID), slog.Any("error", err))
	return c.park(ctx, r, err)
}

func (c *HistoryConsumer) park(ctx context.Context, r *kgo.Record, cause error) error {
	dlq := &kgo.Record{
		Topic: TopicHistoryDLQ,
		Key:   r.Key,
		Value: r.Value,
		Headers: append(append([]kgo.RecordHeader(nil), r.Headers...),
			kgo.RecordHeader{Key: "error", Value: []byte(cause.Error())},
			kgo.RecordHeader{Key: "source_offset", Value: []byte(fmt.Sprintf("%d/%d", r.Partition, r.Offset))},
		),
	}
	if err := c.client.ProduceSync(ctx, dlq).FirstErr(); err != nil {
		slog.Error("dlq produce failed", slog.Any("error", err))
		return fmt.Errorf("op=redpanda.park: %w", err)
	}
	observability.HistoryWritesTotal.WithLabelValues("dlq", "ok").Inc()
	return nil
}
