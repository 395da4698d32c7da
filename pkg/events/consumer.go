package events

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/constants"
)

// Handler processes one consumed event. Returning an error leaves the message
// unacknowledged for redelivery.
type Handler func(ctx context.Context, event Event) error

// StreamConsumer reads domain events from the Redis stream with a consumer
// group. The host's dashboard layer uses it to surface exhausted leads.
type StreamConsumer struct {
	rdb          *redis.Client
	stream       string
	group        string
	consumerName string
	handler      Handler
	logger       *logrus.Logger
	stopCh       chan struct{}
}

func NewStreamConsumer(rdb *redis.Client, group, podID string, handler Handler, logger *logrus.Logger) *StreamConsumer {
	return &StreamConsumer{
		rdb:          rdb,
		stream:       constants.LeadEventsStream,
		group:        group,
		consumerName: fmt.Sprintf("consumer-%s", podID),
		handler:      handler,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

func (sc *StreamConsumer) Start(ctx context.Context) error {
	// Create consumer group (idempotent)
	err := sc.rdb.XGroupCreateMkStream(ctx, sc.stream, sc.group, "$").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go sc.consumeLoop(ctx)
	go sc.pendingRecoveryLoop(ctx)

	sc.logger.WithFields(logrus.Fields{
		"consumer_name": sc.consumerName,
		"group":         sc.group,
	}).Info("Event stream consumer started")
	return nil
}

func (sc *StreamConsumer) Stop() {
	close(sc.stopCh)
}

func (sc *StreamConsumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		default:
			sc.consumeBatch(ctx)
		}
	}
}

func (sc *StreamConsumer) consumeBatch(ctx context.Context) {
	streams, err := sc.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    sc.group,
		Consumer: sc.consumerName,
		Streams:  []string{sc.stream, ">"},
		Count:    10,
		Block:    1 * time.Second,
	}).Result()

	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			sc.logger.WithError(err).Error("Failed to read from event stream")
		}
		return
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			sc.processMessage(ctx, message)
		}
	}
}

func (sc *StreamConsumer) processMessage(ctx context.Context, message redis.XMessage) {
	event, err := parseEvent(message)
	if err != nil {
		sc.logger.WithError(err).WithField("message_id", message.ID).Error("Failed to parse event")
		// Acknowledge malformed messages so they do not loop forever
		sc.ack(ctx, message.ID)
		return
	}

	if err := sc.handler(ctx, event); err != nil {
		sc.logger.WithError(err).WithFields(logrus.Fields{
			"type":       event.Type,
			"case_id":    event.CaseID,
			"message_id": message.ID,
		}).Error("Event handler failed")
		// Leave unacknowledged for redelivery
		return
	}

	if err := sc.ack(ctx, message.ID); err != nil {
		sc.logger.WithError(err).WithField("message_id", message.ID).Error("Failed to acknowledge event")
	}
}

func (sc *StreamConsumer) ack(ctx context.Context, messageID string) error {
	return sc.rdb.XAck(ctx, sc.stream, sc.group, messageID).Err()
}

func (sc *StreamConsumer) pendingRecoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		case <-ticker.C:
			sc.claimPending(ctx)
		}
	}
}

func (sc *StreamConsumer) claimPending(ctx context.Context) {
	pending, err := sc.rdb.XPending(ctx, sc.stream, sc.group).Result()
	if err != nil {
		sc.logger.WithError(err).Error("Failed to get pending events")
		return
	}
	if pending.Count == 0 {
		return
	}

	messages, _, err := sc.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   sc.stream,
		Group:    sc.group,
		Consumer: sc.consumerName,
		MinIdle:  1 * time.Minute,
		Count:    10,
		Start:    "0-0",
	}).Result()
	if err != nil {
		sc.logger.WithError(err).Error("Failed to auto-claim pending events")
		return
	}

	for _, message := range messages {
		sc.processMessage(ctx, message)
	}
}
