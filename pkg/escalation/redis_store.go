package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/constants"
	"lead-response-engine/pkg/metrics"
	"lead-response-engine/pkg/models"
)

// RedisStore persists cases as JSON hashes plus a waiting sorted set scored
// by deadline, so a leader-elected sweeper can find deadlines that expired
// while no process held a live timer.
type RedisStore struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewRedisStore(rdb *redis.Client, logger *logrus.Logger, m *metrics.Metrics) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger, metrics: m}
}

func (r *RedisStore) Save(ctx context.Context, sc StoredCase) error {
	start := time.Now()
	defer func() {
		r.metrics.StoreOperationDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal case: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, constants.CaseKeyPrefix+sc.Case.ID, data, 0)

	if sc.Case.Status == models.CasePending {
		pipe.ZAdd(ctx, constants.WaitingCasesKey, &redis.Z{
			Score:  float64(sc.Case.Deadline.UnixMilli()),
			Member: sc.Case.ID,
		})
		pipe.HSet(ctx, constants.LeadCaseIndexKey, sc.Case.LeadID, sc.Case.ID)
	} else {
		pipe.ZRem(ctx, constants.WaitingCasesKey, sc.Case.ID)
		pipe.HDel(ctx, constants.LeadCaseIndexKey, sc.Case.LeadID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.WithError(err).WithField("case_id", sc.Case.ID).Error("Failed to save case")
		return fmt.Errorf("failed to save case: %w", err)
	}

	return nil
}

func (r *RedisStore) Load(ctx context.Context, caseID string) (StoredCase, bool, error) {
	start := time.Now()
	defer func() {
		r.metrics.StoreOperationDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	}()

	data, err := r.rdb.Get(ctx, constants.CaseKeyPrefix+caseID).Result()
	if err != nil {
		if err == redis.Nil {
			return StoredCase{}, false, nil
		}
		return StoredCase{}, false, fmt.Errorf("failed to load case: %w", err)
	}

	var sc StoredCase
	if err := json.Unmarshal([]byte(data), &sc); err != nil {
		return StoredCase{}, false, fmt.Errorf("failed to unmarshal case: %w", err)
	}

	return sc, true, nil
}

func (r *RedisStore) DueCaseIDs(ctx context.Context, now time.Time) ([]string, error) {
	start := time.Now()
	defer func() {
		r.metrics.StoreOperationDuration.WithLabelValues("due_cases").Observe(time.Since(start).Seconds())
	}()

	ids, err := r.rdb.ZRangeByScore(ctx, constants.WaitingCasesKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan waiting cases: %w", err)
	}

	return ids, nil
}
