package leader

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/constants"
	"lead-response-engine/pkg/metrics"
)

// Election is Redis-based leader election for work that must run on exactly
// one pod at a time, i.e. the missed-deadline sweeper.
type Election struct {
	rdb      *redis.Client
	podID    string
	ttl      time.Duration
	interval time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	isLeader bool
	stopCh   chan struct{}
}

func NewElection(rdb *redis.Client, podID string, ttl, interval time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Election {
	return &Election{
		rdb:      rdb,
		podID:    podID,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

func (e *Election) Start(ctx context.Context) {
	e.logger.WithField("pod_id", e.podID).Info("Starting leader election")
	go e.electionLoop(ctx)
}

func (e *Election) Stop() {
	close(e.stopCh)
	if e.isLeader {
		e.resign(context.Background())
	}
}

// IsLeader verifies leadership against Redis rather than trusting local state
func (e *Election) IsLeader() bool {
	ctx := context.Background()
	currentLeader, err := e.rdb.Get(ctx, constants.LeaderElectionKey).Result()
	if err != nil {
		e.isLeader = false
		return false
	}

	isActualLeader := currentLeader == e.podID
	if e.isLeader != isActualLeader {
		e.isLeader = isActualLeader
		if isActualLeader {
			e.logger.Info("Confirmed leadership from Redis")
		} else {
			e.logger.Info("Leadership lost")
		}
	}

	return e.isLeader
}

func (e *Election) electionLoop(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tryBecomeLeader(ctx)
		}
	}
}

func (e *Election) tryBecomeLeader(ctx context.Context) {
	result := e.rdb.SetArgs(ctx, constants.LeaderElectionKey, e.podID, redis.SetArgs{
		Mode: "NX",
		TTL:  e.ttl,
	})

	if result.Err() != nil {
		e.logger.WithError(result.Err()).Error("Failed to attempt leader election")
		return
	}

	if result.Val() == "OK" {
		if !e.isLeader {
			e.logger.Info("Became leader")
			e.metrics.LeaderChanges.Inc()
			e.isLeader = true
		}
		e.renew(ctx)
		return
	}

	if e.isLeader {
		currentLeader, err := e.rdb.Get(ctx, constants.LeaderElectionKey).Result()
		if err != nil || currentLeader != e.podID {
			e.logger.Info("Lost leadership")
			e.isLeader = false
		}
	}
}

func (e *Election) renew(ctx context.Context) {
	// Extend the lease only while we still hold it
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`

	result := e.rdb.Eval(ctx, script, []string{constants.LeaderElectionKey}, e.podID, e.ttl.Milliseconds())
	if result.Err() != nil {
		e.logger.WithError(result.Err()).Error("Failed to renew leadership")
		e.isLeader = false
		return
	}

	if result.Val().(int64) == 0 {
		e.logger.Warn("Leadership renewal failed - no longer leader")
		e.isLeader = false
	}
}

func (e *Election) resign(ctx context.Context) {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`

	if err := e.rdb.Eval(ctx, script, []string{constants.LeaderElectionKey}, e.podID).Err(); err != nil {
		e.logger.WithError(err).Error("Failed to resign leadership")
	} else {
		e.logger.Info("Resigned leadership")
	}
	e.isLeader = false
}
