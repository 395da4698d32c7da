package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/metrics"
	"lead-response-engine/pkg/models"
)

// Stats summarizes response behavior over a time window. Aggregations are
// computed on read; lead volume is human-scale, so no incremental rollups.
type Stats struct {
	Count          int           `json:"count"`
	Average        time.Duration `json:"average"`
	P50            time.Duration `json:"p50"`
	P90            time.Duration `json:"p90"`
	P95            time.Duration `json:"p95"`
	ComplianceRate float64       `json:"compliance_rate"` // acknowledged within the first-tier deadline
}

// Store is the append-only response record log. Records are produced exactly
// once per acknowledged case and never mutated.
type Store struct {
	mu      sync.RWMutex
	records []models.ResponseRecord
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewStore(logger *logrus.Logger, m *metrics.Metrics) *Store {
	return &Store{logger: logger, metrics: m}
}

// Record appends one observed response
func (s *Store) Record(rec models.ResponseRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.metrics.ResponseTime.Observe(rec.Elapsed.Seconds())

	s.logger.WithFields(logrus.Fields{
		"member_id": rec.MemberID,
		"lead_id":   rec.LeadID,
		"tier":      rec.Tier,
		"elapsed":   rec.Elapsed,
		"compliant": rec.FirstTierCompliant,
	}).Info("Recorded lead response")
}

// Count returns the total number of records
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MemberStats aggregates one member's responses within the window ending now
func (s *Store) MemberStats(memberID string, window time.Duration) Stats {
	return s.aggregate(window, func(rec models.ResponseRecord) bool {
		return rec.MemberID == memberID
	})
}

// TeamStats aggregates all responses within the window ending now
func (s *Store) TeamStats(window time.Duration) Stats {
	return s.aggregate(window, func(models.ResponseRecord) bool { return true })
}

func (s *Store) aggregate(window time.Duration, match func(models.ResponseRecord) bool) Stats {
	cutoff := time.Now().Add(-window)

	s.mu.RLock()
	selected := make([]models.ResponseRecord, 0)
	for _, rec := range s.records {
		if rec.AcknowledgedAt.Before(cutoff) || !match(rec) {
			continue
		}
		selected = append(selected, rec)
	}
	s.mu.RUnlock()

	stats := Stats{Count: len(selected)}
	if len(selected) == 0 {
		return stats
	}

	elapsed := make([]time.Duration, len(selected))
	var total time.Duration
	compliant := 0
	for i, rec := range selected {
		elapsed[i] = rec.Elapsed
		total += rec.Elapsed
		if rec.FirstTierCompliant {
			compliant++
		}
	}
	sort.Slice(elapsed, func(i, j int) bool { return elapsed[i] < elapsed[j] })

	stats.Average = total / time.Duration(len(elapsed))
	stats.P50 = percentile(elapsed, 50)
	stats.P90 = percentile(elapsed, 90)
	stats.P95 = percentile(elapsed, 95)
	stats.ComplianceRate = float64(compliant) / float64(len(selected))

	return stats
}

// percentile uses the nearest-rank method on a sorted slice
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
