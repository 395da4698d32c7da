package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/models"
)

// LogSender is the ChannelSender used when no real transport is wired in. It
// logs the notification and reports success, which keeps the engine runnable
// in development and demo deployments.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, channel models.Channel, memberID string, lead models.Lead) error {
	s.logger.WithFields(logrus.Fields{
		"channel":     channel,
		"member_id":   memberID,
		"lead_id":     lead.ID,
		"lead_name":   lead.Name,
		"score":       lead.Score,
		"temperature": lead.Temperature,
	}).Info("Notification dispatched")
	return nil
}
