package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
)

// Handler processes one mine task record. A non-nil error leaves the offset
// uncommitted so the record is redelivered.
type Handler interface {
	HandleMine(ctx context.Context, value []byte) error
}

// Consumer reads mine tasks from the topic and dispatches them to the
// handler one at a time. Mining jobs are long-lived and internally
// rate-limited, so one in-flight job per worker process is the intended
// concurrency model.
type Consumer struct {
	client  *kgo.Client
	handler Handler
}

// NewConsumer constructs a group consumer on the mine topic.
func NewConsumer(brokers []string, group string, handler Handler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}

	tracer := kotel.NewTracer()
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(TopicMine),
		kgo.DisableAutoCommit(),
		kgo.WithHooks(kotel.NewKotel(kotel.WithTracer(tracer)).Hooks()...),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("redpanda consumer client: %w", err)
	}

	if err := createTopicIfNotExists(context.Background(), client, TopicMine, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", TopicMine), slog.Any("error", err))
	}

	slog.Info("redpanda consumer created",
		slog.Any("brokers", brokers), slog.String("group", group))
	return &Consumer{client: client, handler: handler}, nil
}

// Run polls until the context is cancelled. Offsets commit only after the
// handler returns, so a crash mid-job redelivers the task; the orchestrator's
// terminal job writes make redelivery harmless.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				slog.Error("fetch error",
					slog.String("topic", fe.Topic), slog.Any("error", fe.Err))
			}
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			if err := c.handler.HandleMine(ctx, rec.Value); err != nil {
				slog.Error("mine task handling failed",
					slog.String("key", string(rec.Key)), slog.Any("error", err))
				return
			}
			if err := c.client.CommitRecords(ctx, rec); err != nil {
				slog.Error("offset commit failed",
					slog.String("key", string(rec.Key)), slog.Any("error", err))
			}
		})
	}
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
