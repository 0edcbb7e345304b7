package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// requester is the admin surface of *kgo.Client used for topic creation.
type requester interface {
	Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error)
}

// createTopicIfNotExists creates topic through the Kafka CreateTopics API
// and treats TOPIC_ALREADY_EXISTS as success.
func createTopicIfNotExists(ctx context.Context, client requester, topic string, partitions int32, replicationFactor int16) error {
	if topic == "" {
		return fmt.Errorf("op=redpanda.createTopic: %w", errEmptyTopic)
	}
	if partitions <= 0 || replicationFactor <= 0 {
		return fmt.Errorf("op=redpanda.createTopic: invalid layout partitions=%d replication=%d", partitions, replicationFactor)
	}

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000
	t := kmsg.NewCreateTopicsRequestTopic()
	t.Topic = topic
	t.NumPartitions = partitions
	t.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, t)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("op=redpanda.createTopic: %w", err)
	}
	created, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("op=redpanda.createTopic: unexpected response %T", resp)
	}
	for _, tr := range created.Topics {
		if tr.ErrorCode == 0 {
			slog.Info("topic created", slog.String("topic", tr.Topic), slog.Int("partitions", int(partitions)))
			continue
		}
		if tr.ErrorCode == kerr.TopicAlreadyExists.Code {
			slog.Debug("topic already exists", slog.String("topic", tr.Topic))
			continue
		}
		msg := ""
		if tr.ErrorMessage != nil {
			msg = *tr.ErrorMessage
		}
		return fmt.Errorf("op=redpanda.createTopic: %s: %w (%s)", tr.Topic, kerr.ErrorForCode(tr.ErrorCode), msg)
	}
	return nil
}
