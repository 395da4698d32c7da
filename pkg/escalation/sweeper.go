package escalation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/metrics"
)

// LeaderCheck gates the sweeper to one pod; single-node deployments pass a
// function that always returns true.
type LeaderCheck func() bool

// Sweeper periodically replays deadlines that expired without a live timer,
// covering cases orphaned by a crashed or restarted process.
type Sweeper struct {
	engine   *Engine
	isLeader LeaderCheck
	interval time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	stopCh   chan struct{}
}

func NewSweeper(engine *Engine, isLeader LeaderCheck, interval time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		engine:   engine,
		isLeader: isLeader,
		interval: interval,
		logger:   logger,
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.WithField("interval", s.interval).Info("Starting deadline sweeper")
	go s.loop(ctx)
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.isLeader() {
				continue
			}
			start := time.Now()
			s.engine.SweepDue(ctx)
			s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		}
	}
}
