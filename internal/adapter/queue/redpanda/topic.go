// Package redpanda provides the Redpanda/Kafka hand-off between the trigger
// surface and the mining worker.
package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// TopicMine carries mine tasks from the API to the worker.
const TopicMine = "mine-jobs"

// createTopicIfNotExists creates a topic via the admin API, treating
// TOPIC_ALREADY_EXISTS as success.
func createTopicIfNotExists(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	if topic == "" {
		return fmt.Errorf("topic name cannot be empty")
	}

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("create topics request: %w", err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}

	for _, t := range createResp.Topics {
		if t.ErrorCode != 0 {
			// Error code 36 = TOPIC_ALREADY_EXISTS.
			if t.ErrorCode == 36 {
				slog.Info("topic already exists", slog.String("topic", t.Topic))
				return nil
			}
			msg := ""
			if t.ErrorMessage != nil {
				msg = *t.ErrorMessage
			}
			return fmt.Errorf("create topic %s: %s (code %d)", t.Topic, msg, t.ErrorCode)
		}
		slog.Info("topic created", slog.String("topic", t.Topic),
			slog.Int("partitions", int(partitions)))
	}
	return nil
}
