package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"lead-response-engine/pkg/constants"
	"lead-response-engine/pkg/metrics"
	"lead-response-engine/pkg/models"
)

// ChannelSender is the external transport capability. Implementations (email,
// SMS, push, voice providers) live in the host application.
type ChannelSender interface {
	Send(ctx context.Context, channel models.Channel, memberID string, lead models.Lead) error
}

// RetryPolicy bounds the per-channel retry loop and the overall fan-out
type RetryPolicy struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
	FanoutTimeout  time.Duration
}

// DefaultRetryPolicy returns the production retry bounds
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    constants.NotifyMaxAttempts,
		BackoffBase:    constants.NotifyBackoffBase,
		AttemptTimeout: constants.NotifyAttemptTimeout,
		FanoutTimeout:  constants.NotifyFanoutTimeout,
	}
}

// Fanout dispatches one notification across all configured channels
// concurrently, with bounded per-channel retry. It orchestrates concurrency
// and outcome aggregation only; the transports are injected.
type Fanout struct {
	sender   ChannelSender
	channels []models.Channel
	policy   RetryPolicy
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

func NewFanout(sender ChannelSender, channels []models.Channel, logger *logrus.Logger, m *metrics.Metrics) *Fanout {
	return NewFanoutWithPolicy(sender, channels, DefaultRetryPolicy(), logger, m)
}

func NewFanoutWithPolicy(sender ChannelSender, channels []models.Channel, policy RetryPolicy, logger *logrus.Logger, m *metrics.Metrics) *Fanout {
	return &Fanout{
		sender:   sender,
		channels: channels,
		policy:   policy,
		logger:   logger,
		metrics:  m,
	}
}

// Notify fires every configured channel for the member concurrently and waits
// for all of them. A permanently failed channel is recorded in its outcome
// and never fails the fan-out; the escalation clock runs independently of
// delivery success.
func (f *Fanout) Notify(ctx context.Context, memberID string, lead models.Lead) []models.ChannelOutcome {
	ctx, cancel := context.WithTimeout(ctx, f.policy.FanoutTimeout)
	defer cancel()

	outcomes := make([]models.ChannelOutcome, len(f.channels))

	g, gctx := errgroup.WithContext(ctx)
	for i, channel := range f.channels {
		i, channel := i, channel
		g.Go(func() error {
			outcomes[i] = f.sendWithRetry(gctx, channel, memberID, lead)
			return nil
		})
	}
	// Workers never return errors; Wait is the join point
	_ = g.Wait()

	f.logger.WithFields(logrus.Fields{
		"member_id": memberID,
		"lead_id":   lead.ID,
		"channels":  len(f.channels),
		"delivered": deliveredCount(outcomes),
	}).Debug("Notification fan-out complete")

	return outcomes
}

func (f *Fanout) sendWithRetry(ctx context.Context, channel models.Channel, memberID string, lead models.Lead) models.ChannelOutcome {
	outcome := models.ChannelOutcome{Channel: channel}
	backoff := f.policy.BackoffBase

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		outcome.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, f.policy.AttemptTimeout)
		err := f.sender.Send(attemptCtx, channel, memberID, lead)
		cancel()

		if err == nil {
			outcome.Delivered = true
			outcome.Error = ""
			f.metrics.NotificationAttempts.WithLabelValues(string(channel), "success").Inc()
			return outcome
		}

		outcome.Error = err.Error()
		f.metrics.NotificationAttempts.WithLabelValues(string(channel), "failure").Inc()
		f.logger.WithError(err).WithFields(logrus.Fields{
			"channel":   channel,
			"member_id": memberID,
			"lead_id":   lead.ID,
			"attempt":   attempt,
		}).Warn("Channel send failed")

		if attempt == f.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			outcome.Error = ctx.Err().Error()
			return outcome
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return outcome
}

// Delivered reports whether at least one channel attempt got through. The
// notification step counts as delivered for audit purposes when any channel
// succeeded.
func Delivered(outcomes []models.ChannelOutcome) bool {
	return deliveredCount(outcomes) > 0
}

func deliveredCount(outcomes []models.ChannelOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Delivered {
			n++
		}
	}
	return n
}
