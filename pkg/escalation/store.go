package escalation

import (
	"context"
	"sync"
	"time"

	"lead-response-engine/pkg/models"
)

// StoredCase is the persisted unit: the case plus the lead it tracks, so a
// restarted process can resume notification and routing without the host.
type StoredCase struct {
	Case models.EscalationCase `json:"case"`
	Lead models.Lead           `json:"lead"`
}

// CaseStore is the pluggable persistence adapter behind the engine. The
// engine owns all case mutation; the store only records state so deadlines
// survive restarts and the sweeper can find them.
type CaseStore interface {
	// Save persists the case. Pending cases enter the waiting index keyed by
	// deadline; terminal cases leave it.
	Save(ctx context.Context, sc StoredCase) error
	// Load fetches one case; ok is false when it does not exist
	Load(ctx context.Context, caseID string) (StoredCase, bool, error)
	// DueCaseIDs lists pending cases whose deadline is at or before now
	DueCaseIDs(ctx context.Context, now time.Time) ([]string, error)
}

// MemoryStore is the in-process CaseStore used by single-node deployments
// and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[string]StoredCase
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[string]StoredCase)}
}

func (m *MemoryStore) Save(ctx context.Context, sc StoredCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[sc.Case.ID] = sc
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, caseID string) (StoredCase, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.cases[caseID]
	return sc, ok, nil
}

func (m *MemoryStore) DueCaseIDs(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	due := make([]string, 0)
	for id, sc := range m.cases {
		if sc.Case.Status == models.CasePending && !sc.Case.Deadline.After(now) {
			due = append(due, id)
		}
	}
	return due, nil
}
