package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/constants"
)

// StreamPublisher writes domain events to a Redis stream so out-of-process
// subscribers (dashboard alerting in particular) can consume them with
// consumer-group semantics.
type StreamPublisher struct {
	rdb    *redis.Client
	stream string
	logger *logrus.Logger
}

func NewStreamPublisher(rdb *redis.Client, logger *logrus.Logger) *StreamPublisher {
	return &StreamPublisher{
		rdb:    rdb,
		stream: constants.LeadEventsStream,
		logger: logger,
	}
}

func (sp *StreamPublisher) Publish(ctx context.Context, event Event) error {
	messageID, err := sp.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: sp.stream,
		Values: map[string]interface{}{
			"type":      string(event.Type),
			"case_id":   event.CaseID,
			"lead_id":   event.LeadID,
			"tier":      event.Tier,
			"member_id": event.MemberID,
			"at":        event.At.UnixMilli(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add event to stream: %w", err)
	}

	sp.logger.WithFields(logrus.Fields{
		"type":       event.Type,
		"case_id":    event.CaseID,
		"message_id": messageID,
	}).Debug("Published event to stream")

	return nil
}

// parseEvent rebuilds an Event from the stream message fields
func parseEvent(message redis.XMessage) (Event, error) {
	event := Event{}

	typeStr, ok := message.Values["type"].(string)
	if !ok {
		return event, fmt.Errorf("missing or invalid type")
	}
	event.Type = EventType(typeStr)

	if caseID, ok := message.Values["case_id"].(string); ok {
		event.CaseID = caseID
	} else {
		return event, fmt.Errorf("missing or invalid case_id")
	}

	if leadID, ok := message.Values["lead_id"].(string); ok {
		event.LeadID = leadID
	} else {
		return event, fmt.Errorf("missing or invalid lead_id")
	}

	if tierStr, ok := message.Values["tier"].(string); ok {
		tier, err := strconv.Atoi(tierStr)
		if err != nil {
			return event, fmt.Errorf("invalid tier format: %w", err)
		}
		event.Tier = tier
	}

	if memberID, ok := message.Values["member_id"].(string); ok {
		event.MemberID = memberID
	}

	if atStr, ok := message.Values["at"].(string); ok {
		at, err := strconv.ParseInt(atStr, 10, 64)
		if err != nil {
			return event, fmt.Errorf("invalid at format: %w", err)
		}
		event.At = time.UnixMilli(at)
	}

	return event, nil
}
