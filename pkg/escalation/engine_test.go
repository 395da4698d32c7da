package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-response-engine/pkg/directory"
	"lead-response-engine/pkg/events"
	"lead-response-engine/pkg/metrics"
	"lead-response-engine/pkg/models"
	"lead-response-engine/pkg/notify"
	"lead-response-engine/pkg/routing"
)

var testMetrics = metrics.NewMetricsWithRegistry(prometheus.NewRegistry())

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// okSender delivers everything instantly
type okSender struct{}

func (okSender) Send(ctx context.Context, channel models.Channel, memberID string, lead models.Lead) error {
	return nil
}

// recordSink collects response records
type recordSink struct {
	mu      sync.Mutex
	records []models.ResponseRecord
}

func (r *recordSink) Record(rec models.ResponseRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordSink) all() []models.ResponseRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ResponseRecord, len(r.records))
	copy(out, r.records)
	return out
}

// eventSink collects published domain events
type eventSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *eventSink) Publish(ctx context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *eventSink) byType(t events.EventType) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, 0)
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	clock   *fakeClock
	dir     *directory.Directory
	engine  *Engine
	records *recordSink
	sink    *eventSink
	store   *MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()
	clock := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	dir := directory.New(logger)
	router := routing.New(dir, logger)
	fanout := notify.NewFanoutWithPolicy(okSender{}, []models.Channel{models.ChannelEmail, models.ChannelSMS}, notify.RetryPolicy{
		MaxAttempts:    1,
		BackoffBase:    time.Millisecond,
		AttemptTimeout: time.Second,
		FanoutTimeout:  time.Second,
	}, logger, testMetrics)
	records := &recordSink{}
	sink := &eventSink{}
	store := NewMemoryStore()
	engine := NewEngine(models.DefaultChain(), router, fanout, store, records, sink, clock, logger, testMetrics)

	return &testEnv{clock: clock, dir: dir, engine: engine, records: records, sink: sink, store: store}
}

func (env *testEnv) addMember(id string, role models.Role, workload int) {
	env.dir.Upsert(models.TeamMember{ID: id, Role: role, Available: true, Workload: workload})
}

func (env *testEnv) fullChain() {
	env.addMember("rep_1", models.RoleSalesRep, 0)
	env.addMember("mgr_1", models.RoleManager, 0)
	env.addMember("ops_1", models.RoleOperations, 0)
	env.addMember("own_1", models.RoleOwner, 0)
}

func hotLead(id string) models.Lead {
	return models.Lead{
		ID:          id,
		Name:        "Test Lead",
		Score:       85,
		Temperature: models.TemperatureHot,
		Attributes: models.LeadAttributes{
			PropertyValue: 650_000,
			Territory:     "north",
		},
	}
}

func TestEngine_StartAndImmediateAcknowledge(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)
	assert.Equal(t, models.CasePending, c.Status)
	assert.Equal(t, 0, c.Tier)
	assert.Equal(t, "rep_1", c.Assignee)

	err = env.engine.Acknowledge(context.Background(), c.ID, "rep_1", env.clock.Now())
	require.NoError(t, err)

	got, ok := env.engine.GetCase(context.Background(), c.ID)
	require.True(t, ok)
	assert.Equal(t, models.CaseAcknowledged, got.Status)

	records := env.records.all()
	require.Len(t, records, 1)
	assert.Equal(t, time.Duration(0), records[0].Elapsed)
	assert.True(t, records[0].FirstTierCompliant)
	assert.Len(t, env.sink.byType(events.LeadAcknowledged), 1)
}

func TestEngine_DeadlineAdvancesTierExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	// Just before the deadline nothing moves
	env.clock.Advance(119 * time.Second)
	got, _ := env.engine.GetCase(context.Background(), c.ID)
	assert.Equal(t, 0, got.Tier)
	assert.Equal(t, models.CasePending, got.Status)

	// Crossing it escalates to the manager with a fresh deadline
	env.clock.Advance(1 * time.Second)
	got, _ = env.engine.GetCase(context.Background(), c.ID)
	assert.Equal(t, 1, got.Tier)
	assert.Equal(t, "mgr_1", got.Assignee)
	assert.Equal(t, models.CasePending, got.Status)
	assert.Equal(t, env.clock.Now().Add(120*time.Second), got.Deadline)

	// No double fire from the same deadline
	env.clock.Advance(1 * time.Second)
	got, _ = env.engine.GetCase(context.Background(), c.ID)
	assert.Equal(t, 1, got.Tier)

	assert.Len(t, env.sink.byType(events.LeadEscalated), 1)
}

func TestEngine_FullChainExhaustion(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		env.clock.Advance(120 * time.Second)
	}

	got, _ := env.engine.GetCase(context.Background(), c.ID)
	assert.Equal(t, models.CaseExhausted, got.Status)
	assert.Len(t, got.Audit, 4)
	for i, entry := range got.Audit {
		assert.Equal(t, i, entry.Tier)
		assert.False(t, entry.Skipped)
		assert.Nil(t, entry.AcknowledgedAt)
	}

	assert.Empty(t, env.records.all())
	assert.Len(t, env.sink.byType(events.LeadExhausted), 1)

	// Terminal forever: a late acknowledgement is dropped
	err = env.engine.Acknowledge(context.Background(), c.ID, "own_1", env.clock.Now())
	assert.True(t, errors.Is(err, ErrCaseAlreadyTerminal))
	got, _ = env.engine.GetCase(context.Background(), c.ID)
	assert.Equal(t, models.CaseExhausted, got.Status)
}

func TestEngine_LaterTierAckSpansWholeChain(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	env.clock.Advance(120 * time.Second)
	err = env.engine.Acknowledge(context.Background(), c.ID, "mgr_1", env.clock.Now().Add(30*time.Second))
	require.NoError(t, err)

	records := env.records.all()
	require.Len(t, records, 1)
	assert.Equal(t, 150*time.Second, records[0].Elapsed)
	assert.Equal(t, 1, records[0].Tier)
	assert.False(t, records[0].FirstTierCompliant)
}

func TestEngine_AckAtFortyFiveSeconds(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("rep_busy", models.RoleSalesRep, 4)
	env.addMember("rep_idle", models.RoleSalesRep, 1)

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)
	assert.Equal(t, "rep_idle", c.Assignee, "least-loaded available rep wins")

	env.clock.Advance(45 * time.Second)
	err = env.engine.Acknowledge(context.Background(), c.ID, "rep_idle", env.clock.Now())
	require.NoError(t, err)

	records := env.records.all()
	require.Len(t, records, 1)
	assert.Equal(t, 45*time.Second, records[0].Elapsed)
	assert.True(t, records[0].FirstTierCompliant)
}

func TestEngine_NoRepSkipsToManagerImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.addMember("mgr_1", models.RoleManager, 0)

	started := env.clock.Now()
	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	assert.Equal(t, models.CasePending, c.Status)
	assert.Equal(t, 1, c.Tier)
	assert.Equal(t, "mgr_1", c.Assignee)
	// Skipping tier 0 consumed no deadline time
	assert.Equal(t, started.Add(120*time.Second), c.Deadline)

	require.Len(t, c.Audit, 2)
	assert.True(t, c.Audit[0].Skipped)
	assert.Equal(t, "mgr_1", c.Audit[1].Assignee)
}

func TestEngine_EmptyChainExhaustsAtStart(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	assert.Equal(t, models.CaseExhausted, c.Status)
	require.Len(t, c.Audit, 4)
	for _, entry := range c.Audit {
		assert.True(t, entry.Skipped)
	}
	assert.Empty(t, env.records.all())
	assert.Len(t, env.sink.byType(events.LeadExhausted), 1)
}

func TestEngine_StaleAcknowledgementIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	// Wrong member while pending
	err = env.engine.Acknowledge(context.Background(), c.ID, "mgr_1", env.clock.Now())
	assert.True(t, errors.Is(err, ErrStaleAcknowledgement))
	got, _ := env.engine.GetCase(context.Background(), c.ID)
	assert.Equal(t, models.CasePending, got.Status)

	// Correct member wins
	require.NoError(t, env.engine.Acknowledge(context.Background(), c.ID, "rep_1", env.clock.Now()))

	// Second reply from another channel after terminal
	err = env.engine.Acknowledge(context.Background(), c.ID, "rep_1", env.clock.Now())
	assert.True(t, errors.Is(err, ErrCaseAlreadyTerminal))

	assert.Len(t, env.records.all(), 1, "no second ResponseRecord")
}

func TestEngine_DuplicatePendingCaseRefused(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	_, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	_, err = env.engine.Start(context.Background(), hotLead("lead_1"))
	assert.True(t, errors.Is(err, ErrDuplicatePending))
}

func TestEngine_AbortCancelsDeadline(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	require.NoError(t, env.engine.Abort(context.Background(), c.ID))

	env.clock.Advance(300 * time.Second)
	got, _ := env.engine.GetCase(context.Background(), c.ID)
	assert.Equal(t, models.CaseAborted, got.Status)
	assert.Equal(t, 0, got.Tier, "no escalation after abort")
	assert.Empty(t, env.records.all())
	assert.Len(t, env.sink.byType(events.LeadAborted), 1)

	err = env.engine.Abort(context.Background(), c.ID)
	assert.True(t, errors.Is(err, ErrCaseAlreadyTerminal))
}

func TestEngine_UnknownCase(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.Acknowledge(context.Background(), "no_such_case", "rep_1", env.clock.Now())
	assert.True(t, errors.Is(err, ErrUnknownCase))
}

func TestEngine_AckDeadlineRaceHasOneWinner(t *testing.T) {
	for i := 0; i < 25; i++ {
		env := newTestEnv(t)
		env.fullChain()

		c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
		require.NoError(t, err)

		ackAt := env.clock.Now().Add(119 * time.Second)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			env.clock.Advance(121 * time.Second)
		}()
		go func() {
			defer wg.Done()
			_ = env.engine.Acknowledge(context.Background(), c.ID, "rep_1", ackAt)
		}()
		wg.Wait()

		got, _ := env.engine.GetCase(context.Background(), c.ID)
		records := env.records.all()

		switch got.Status {
		case models.CaseAcknowledged:
			assert.Equal(t, 0, got.Tier, "acknowledged before any escalation")
			assert.Len(t, records, 1)
		case models.CasePending:
			assert.Equal(t, 1, got.Tier, "deadline won, case escalated")
			assert.Empty(t, records)
		default:
			t.Fatalf("unexpected terminal status %s", got.Status)
		}
	}
}

func TestEngine_AuditCarriesChannelOutcomes(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)

	// The fan-out completes off the case lock
	assert.Eventually(t, func() bool {
		got, _ := env.engine.GetCase(context.Background(), c.ID)
		return len(got.Audit) == 1 && len(got.Audit[0].Channels) == 2
	}, time.Second, 10*time.Millisecond)

	got, _ := env.engine.GetCase(context.Background(), c.ID)
	for _, outcome := range got.Audit[0].Channels {
		assert.True(t, outcome.Delivered)
	}
}

func TestEngine_SweepRecoversMissedDeadline(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	// A case persisted by a process that died: pending, deadline passed,
	// no live timer anywhere.
	dead := StoredCase{
		Case: models.EscalationCase{
			ID:              "case_orphan",
			LeadID:          "lead_orphan",
			CreatedAt:       env.clock.Now().Add(-10 * time.Minute),
			Tier:            0,
			Assignee:        "rep_1",
			Deadline:        env.clock.Now().Add(-8 * time.Minute),
			Status:          models.CasePending,
			FirstNotifiedAt: env.clock.Now().Add(-10 * time.Minute),
			Audit: []models.AuditEntry{
				{Tier: 0, Assignee: "rep_1", NotifiedAt: env.clock.Now().Add(-10 * time.Minute)},
			},
		},
		Lead: hotLead("lead_orphan"),
	}
	require.NoError(t, env.store.Save(context.Background(), dead))

	env.engine.SweepDue(context.Background())
	// Resume armed a zero-delay timer; fire it
	env.clock.Advance(0)

	got, ok := env.engine.GetCase(context.Background(), "case_orphan")
	require.True(t, ok)
	assert.Equal(t, 1, got.Tier)
	assert.Equal(t, "mgr_1", got.Assignee)
	assert.Equal(t, models.CasePending, got.Status)
}

func TestEngine_PersistsTerminalState(t *testing.T) {
	env := newTestEnv(t)
	env.fullChain()

	c, err := env.engine.Start(context.Background(), hotLead("lead_1"))
	require.NoError(t, err)
	require.NoError(t, env.engine.Acknowledge(context.Background(), c.ID, "rep_1", env.clock.Now()))

	sc, found, err := env.store.Load(context.Background(), c.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.CaseAcknowledged, sc.Case.Status)

	due, err := env.store.DueCaseIDs(context.Background(), env.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NotContains(t, due, c.ID)
}
