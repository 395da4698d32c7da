package escalation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/constants"
	"lead-response-engine/pkg/events"
	"lead-response-engine/pkg/metrics"
	"lead-response-engine/pkg/models"
	"lead-response-engine/pkg/notify"
	"lead-response-engine/pkg/routing"
)

var (
	// ErrStaleAcknowledgement - acknowledgement from someone other than the
	// current assignee, e.g. two channels both got a reply. Informational.
	ErrStaleAcknowledgement = errors.New("stale acknowledgement")

	// ErrCaseAlreadyTerminal - any operation against a finished case
	ErrCaseAlreadyTerminal = errors.New("case already terminal")

	// ErrUnknownCase - the case ID does not exist anywhere
	ErrUnknownCase = errors.New("unknown case")

	// ErrDuplicatePending - the lead already has a live case
	ErrDuplicatePending = errors.New("lead already has a pending case")
)

// RecordSink receives the single ResponseRecord produced at acknowledgement
type RecordSink interface {
	Record(rec models.ResponseRecord)
}

// Engine owns every live EscalationCase. Each case is serialized on its own
// mutex so Acknowledge, deadline expiry, and Abort race cleanly: exactly one
// wins, the others become no-ops. No lock spans more than one case.
type Engine struct {
	chain    []models.Role
	deadline time.Duration
	router   *routing.Router
	notifier *notify.Fanout
	store    CaseStore
	records  RecordSink
	events   events.Publisher
	clock    Clock
	logger   *logrus.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	cases  map[string]*caseRunner
	byLead map[string]string
}

// caseRunner pairs a case with its single-writer mutex and live timer
type caseRunner struct {
	mu    sync.Mutex
	c     models.EscalationCase
	lead  models.Lead
	timer Timer
}

func NewEngine(chain []models.Role, router *routing.Router, notifier *notify.Fanout, store CaseStore, records RecordSink, publisher events.Publisher, clock Clock, logger *logrus.Logger, m *metrics.Metrics) *Engine {
	if len(chain) == 0 {
		chain = models.DefaultChain()
	}
	return &Engine{
		chain:    chain,
		deadline: constants.ResponseDeadline,
		router:   router,
		notifier: notifier,
		store:    store,
		records:  records,
		events:   publisher,
		clock:    clock,
		logger:   logger,
		metrics:  m,
		cases:    make(map[string]*caseRunner),
		byLead:   make(map[string]string),
	}
}

// Start creates the escalation case for a new lead: route tier 0, notify,
// arm the deadline. Tiers with nobody available are skipped immediately
// without consuming deadline time; a chain with nobody anywhere produces an
// exhausted case with zero acknowledgements.
func (e *Engine) Start(ctx context.Context, lead models.Lead) (models.EscalationCase, error) {
	runner := &caseRunner{
		c: models.EscalationCase{
			ID:        uuid.New().String(),
			LeadID:    lead.ID,
			CreatedAt: e.clock.Now(),
			Status:    models.CasePending,
		},
		lead: lead,
	}

	e.mu.Lock()
	if existingID, ok := e.byLead[lead.ID]; ok {
		if existing := e.cases[existingID]; existing != nil && !existing.status().Terminal() {
			e.mu.Unlock()
			return models.EscalationCase{}, fmt.Errorf("%w: lead %s case %s", ErrDuplicatePending, lead.ID, existingID)
		}
	}
	e.cases[runner.c.ID] = runner
	e.byLead[lead.ID] = runner.c.ID
	e.mu.Unlock()

	runner.mu.Lock()
	defer runner.mu.Unlock()

	e.beginTier(ctx, runner, 0)

	if runner.c.Status == models.CasePending {
		e.metrics.PendingCases.Inc()
		e.logger.WithFields(logrus.Fields{
			"case_id":  runner.c.ID,
			"lead_id":  lead.ID,
			"assignee": runner.c.Assignee,
			"score":    lead.Score,
			"deadline": runner.c.Deadline,
		}).Info("Escalation case started")
	}

	return snapshot(runner), nil
}

// Acknowledge records that the current assignee accepted the lead. Elapsed
// time spans the entire chain from the first notification, so a later-tier
// acknowledgement still shows true total response time.
func (e *Engine) Acknowledge(ctx context.Context, caseID, memberID string, at time.Time) error {
	runner, err := e.runnerFor(ctx, caseID)
	if err != nil {
		return err
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()

	if runner.c.Status.Terminal() {
		e.logger.WithFields(logrus.Fields{
			"case_id":   caseID,
			"member_id": memberID,
			"status":    runner.c.Status,
		}).Info("Dropped acknowledgement against terminal case")
		return fmt.Errorf("%w: case %s is %s", ErrCaseAlreadyTerminal, caseID, runner.c.Status)
	}

	if memberID != runner.c.Assignee {
		e.logger.WithFields(logrus.Fields{
			"case_id":   caseID,
			"member_id": memberID,
			"assignee":  runner.c.Assignee,
		}).Info("Dropped stale acknowledgement")
		return fmt.Errorf("%w: %s is not the current assignee of case %s", ErrStaleAcknowledgement, memberID, caseID)
	}

	if runner.timer != nil {
		runner.timer.Stop()
		runner.timer = nil
	}

	runner.c.Status = models.CaseAcknowledged
	ackAt := at
	if n := len(runner.c.Audit); n > 0 {
		runner.c.Audit[n-1].AcknowledgedAt = &ackAt
	}

	elapsed := at.Sub(runner.c.FirstNotifiedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	e.records.Record(models.ResponseRecord{
		MemberID:           memberID,
		LeadID:             runner.c.LeadID,
		CaseID:             runner.c.ID,
		Tier:               runner.c.Tier,
		Elapsed:            elapsed,
		AcknowledgedAt:     at,
		FirstTierCompliant: elapsed <= e.deadline,
	})

	e.persist(ctx, runner)
	e.metrics.AcknowledgementsTotal.WithLabelValues(strconv.Itoa(runner.c.Tier)).Inc()
	e.metrics.PendingCases.Dec()
	e.publish(ctx, events.Event{
		Type:     events.LeadAcknowledged,
		CaseID:   runner.c.ID,
		LeadID:   runner.c.LeadID,
		Tier:     runner.c.Tier,
		MemberID: memberID,
		At:       at,
	})

	e.logger.WithFields(logrus.Fields{
		"case_id":   caseID,
		"member_id": memberID,
		"tier":      runner.c.Tier,
		"elapsed":   elapsed,
	}).Info("Lead acknowledged")

	return nil
}

// Abort terminates a case for a withdrawn lead. No ResponseRecord is made.
func (e *Engine) Abort(ctx context.Context, caseID string) error {
	runner, err := e.runnerFor(ctx, caseID)
	if err != nil {
		return err
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()

	if runner.c.Status.Terminal() {
		return fmt.Errorf("%w: case %s is %s", ErrCaseAlreadyTerminal, caseID, runner.c.Status)
	}

	if runner.timer != nil {
		runner.timer.Stop()
		runner.timer = nil
	}

	runner.c.Status = models.CaseAborted
	e.persist(ctx, runner)
	e.metrics.AbortedTotal.Inc()
	e.metrics.PendingCases.Dec()
	e.publish(ctx, events.Event{
		Type:   events.LeadAborted,
		CaseID: runner.c.ID,
		LeadID: runner.c.LeadID,
		Tier:   runner.c.Tier,
		At:     e.clock.Now(),
	})

	e.logger.WithField("case_id", caseID).Info("Escalation case aborted")
	return nil
}

// GetCase returns a snapshot of the case
func (e *Engine) GetCase(ctx context.Context, caseID string) (models.EscalationCase, bool) {
	e.mu.RLock()
	runner, ok := e.cases[caseID]
	e.mu.RUnlock()

	if ok {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return snapshot(runner), true
	}

	sc, found, err := e.store.Load(ctx, caseID)
	if err != nil || !found {
		return models.EscalationCase{}, false
	}
	return sc.Case, true
}

// Resume adopts a persisted pending case after a restart, re-arming its
// deadline from what remains. Overdue deadlines fire immediately.
func (e *Engine) Resume(ctx context.Context, sc StoredCase) {
	e.mu.Lock()
	if _, ok := e.cases[sc.Case.ID]; ok {
		e.mu.Unlock()
		return
	}
	runner := &caseRunner{c: sc.Case, lead: sc.Lead}
	e.cases[sc.Case.ID] = runner
	e.byLead[sc.Lead.ID] = sc.Case.ID
	e.mu.Unlock()

	if sc.Case.Status != models.CasePending {
		return
	}

	remaining := sc.Case.Deadline.Sub(e.clock.Now())
	if remaining < 0 {
		remaining = 0
	}

	tier := sc.Case.Tier
	runner.mu.Lock()
	runner.timer = e.clock.AfterFunc(remaining, func() {
		e.deadlineElapsed(runner, tier)
	})
	runner.mu.Unlock()

	e.metrics.PendingCases.Inc()
	e.logger.WithFields(logrus.Fields{
		"case_id":   sc.Case.ID,
		"tier":      tier,
		"remaining": remaining,
	}).Info("Resumed escalation case")
}

// SweepDue replays deadlines that expired with no live timer, e.g. cases
// persisted by a process that died. Cases with a local runner are left to
// their own timers.
func (e *Engine) SweepDue(ctx context.Context) {
	ids, err := e.store.DueCaseIDs(ctx, e.clock.Now())
	if err != nil {
		e.logger.WithError(err).Error("Failed to scan due cases")
		return
	}

	for _, id := range ids {
		e.mu.RLock()
		_, tracked := e.cases[id]
		e.mu.RUnlock()
		if tracked {
			continue
		}

		sc, found, err := e.store.Load(ctx, id)
		if err != nil {
			e.logger.WithError(err).WithField("case_id", id).Error("Failed to load due case")
			continue
		}
		if !found || sc.Case.Status != models.CasePending {
			continue
		}

		e.logger.WithField("case_id", id).Warn("Recovering case with missed deadline")
		e.Resume(ctx, sc)
	}
}

// beginTier routes and notifies starting at startTier, skipping tiers with
// nobody available. Caller holds runner.mu.
func (e *Engine) beginTier(ctx context.Context, runner *caseRunner, startTier int) {
	for tier := startTier; tier < len(e.chain); tier++ {
		assignee, err := e.router.SelectAssignee(runner.lead, e.chain[tier])
		if err != nil {
			if errors.Is(err, routing.ErrNoAssigneeAvailable) {
				runner.c.Audit = append(runner.c.Audit, models.AuditEntry{
					Tier:       tier,
					Skipped:    true,
					NotifiedAt: e.clock.Now(),
				})
				e.logger.WithFields(logrus.Fields{
					"case_id": runner.c.ID,
					"tier":    tier,
					"role":    e.chain[tier],
				}).Info("No assignee at tier, skipping")
				continue
			}
			e.logger.WithError(err).WithField("case_id", runner.c.ID).Error("Router failed, skipping tier")
			continue
		}

		now := e.clock.Now()
		runner.c.Tier = tier
		runner.c.Assignee = assignee
		runner.c.Deadline = now.Add(e.deadline)
		if runner.c.FirstNotifiedAt.IsZero() {
			runner.c.FirstNotifiedAt = now
		}
		runner.c.Audit = append(runner.c.Audit, models.AuditEntry{
			Tier:       tier,
			Assignee:   assignee,
			NotifiedAt: now,
		})
		auditIdx := len(runner.c.Audit) - 1

		// The deadline clock runs from scheduling, independent of delivery
		// success; the fan-out happens off the case lock.
		armedTier := tier
		runner.timer = e.clock.AfterFunc(e.deadline, func() {
			e.deadlineElapsed(runner, armedTier)
		})
		e.persist(ctx, runner)
		go e.dispatchNotification(runner, auditIdx, assignee)
		return
	}

	e.exhaust(ctx, runner)
}

// deadlineElapsed fires when a tier's 120s ran out. The armed tier guards
// against a residual timer racing a newer state: only a still-pending case at
// the same tier escalates, anything else is a suppressed fire.
func (e *Engine) deadlineElapsed(runner *caseRunner, armedTier int) {
	ctx := context.Background()

	runner.mu.Lock()
	defer runner.mu.Unlock()

	if runner.c.Status != models.CasePending || runner.c.Tier != armedTier {
		e.logger.WithFields(logrus.Fields{
			"case_id":    runner.c.ID,
			"armed_tier": armedTier,
			"status":     runner.c.Status,
			"tier":       runner.c.Tier,
		}).Debug("Suppressed stale deadline fire")
		return
	}

	e.metrics.EscalationsTotal.WithLabelValues(strconv.Itoa(armedTier)).Inc()
	e.logger.WithFields(logrus.Fields{
		"case_id": runner.c.ID,
		"tier":    armedTier,
	}).Warn("Response deadline elapsed, escalating")

	e.beginTier(ctx, runner, armedTier+1)

	if runner.c.Status == models.CasePending {
		e.publish(ctx, events.Event{
			Type:     events.LeadEscalated,
			CaseID:   runner.c.ID,
			LeadID:   runner.c.LeadID,
			Tier:     runner.c.Tier,
			MemberID: runner.c.Assignee,
			At:       e.clock.Now(),
		})
	}
}

// exhaust finishes a case that ran out the whole chain. If anyone was ever
// notified, every chain role gets a simultaneous best-effort broadcast; the
// case then requires manual follow-up, never automatic retries. Caller holds
// runner.mu.
func (e *Engine) exhaust(ctx context.Context, runner *caseRunner) {
	wasNotified := !runner.c.FirstNotifiedAt.IsZero()

	runner.c.Status = models.CaseExhausted
	runner.c.Assignee = ""
	e.persist(ctx, runner)

	if wasNotified {
		e.metrics.PendingCases.Dec()
		e.broadcast(runner)
	}
	e.metrics.ExhaustedTotal.Inc()
	e.publish(ctx, events.Event{
		Type:   events.LeadExhausted,
		CaseID: runner.c.ID,
		LeadID: runner.c.LeadID,
		Tier:   runner.c.Tier,
		At:     e.clock.Now(),
	})

	e.logger.WithFields(logrus.Fields{
		"case_id": runner.c.ID,
		"lead_id": runner.c.LeadID,
	}).Error("Escalation chain exhausted, manual follow-up required")
}

// broadcast alerts every remaining recipient across the whole chain at once.
// Best-effort: no deadline, no retries beyond the fan-out's own, no audit.
func (e *Engine) broadcast(runner *caseRunner) {
	seen := make(map[string]bool)
	lead := runner.lead
	for _, role := range e.chain {
		for _, memberID := range e.router.Candidates(lead, role) {
			if seen[memberID] {
				continue
			}
			seen[memberID] = true
			memberID := memberID
			go func() {
				e.notifier.Notify(context.Background(), memberID, lead)
			}()
		}
	}
}

// dispatchNotification runs the fan-out and folds the outcomes back into the
// audit entry it belongs to
func (e *Engine) dispatchNotification(runner *caseRunner, auditIdx int, memberID string) {
	outcomes := e.notifier.Notify(context.Background(), memberID, runner.lead)

	runner.mu.Lock()
	defer runner.mu.Unlock()

	if auditIdx < len(runner.c.Audit) {
		runner.c.Audit[auditIdx].Channels = outcomes
	}
	e.persist(context.Background(), runner)

	if !notify.Delivered(outcomes) {
		e.logger.WithFields(logrus.Fields{
			"case_id":   runner.c.ID,
			"member_id": memberID,
		}).Warn("All channels failed for notification")
	}
}

func (e *Engine) runnerFor(ctx context.Context, caseID string) (*caseRunner, error) {
	e.mu.RLock()
	runner, ok := e.cases[caseID]
	e.mu.RUnlock()
	if ok {
		return runner, nil
	}

	sc, found, err := e.store.Load(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCase, caseID)
	}
	if sc.Case.Status.Terminal() {
		return nil, fmt.Errorf("%w: case %s is %s", ErrCaseAlreadyTerminal, caseID, sc.Case.Status)
	}

	e.Resume(ctx, sc)

	e.mu.RLock()
	runner = e.cases[caseID]
	e.mu.RUnlock()
	return runner, nil
}

// persist saves case state; store failures are logged and never stop the
// escalation clock
func (e *Engine) persist(ctx context.Context, runner *caseRunner) {
	if err := e.store.Save(ctx, StoredCase{Case: runner.c, Lead: runner.lead}); err != nil {
		e.logger.WithError(err).WithField("case_id", runner.c.ID).Error("Failed to persist case")
	}
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.WithError(err).WithField("type", event.Type).Error("Failed to publish event")
	}
}

func (r *caseRunner) status() models.CaseStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.c.Status
}

// snapshot copies the case so callers never share the audit slice. Caller
// holds runner.mu.
func snapshot(runner *caseRunner) models.EscalationCase {
	c := runner.c
	c.Audit = make([]models.AuditEntry, len(runner.c.Audit))
	copy(c.Audit, runner.c.Audit)
	return c
}
