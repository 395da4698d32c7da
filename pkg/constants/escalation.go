package constants

import "time"

// Escalation timing
const (
	// ResponseDeadline - how long an assignee has to acknowledge before the
	// lead escalates to the next tier. Applies identically at every tier.
	ResponseDeadline = 120 * time.Second

	// DefaultSweepIntervalSeconds - how often the leader scans the waiting
	// set for deadlines that expired without a local timer firing
	DefaultSweepIntervalSeconds = 5

	// DefaultLeaderElectionTTLSeconds - leader lease TTL
	DefaultLeaderElectionTTLSeconds = 10

	// DefaultLeaderElectionIntervalSeconds - leader election check interval
	DefaultLeaderElectionIntervalSeconds = 5
)

// Notifier fan-out retry policy
const (
	// NotifyMaxAttempts - attempts per channel before recording permanent failure
	NotifyMaxAttempts = 3

	// NotifyBackoffBase - first retry delay, doubled on each subsequent attempt
	NotifyBackoffBase = 250 * time.Millisecond

	// NotifyAttemptTimeout - per-attempt timeout on a single channel send
	NotifyAttemptTimeout = 5 * time.Second

	// NotifyFanoutTimeout - overall bound on one fan-out so a hung channel
	// cannot delay tier escalation
	NotifyFanoutTimeout = 30 * time.Second
)

// Lead temperature thresholds on the 0-100 score
const (
	HotThreshold  = 80
	WarmThreshold = 60
	CoolThreshold = 40
)

// Redis key names
const (
	WaitingCasesKey   = "escalation:waiting"
	CaseKeyPrefix     = "escalation:case:"
	LeadCaseIndexKey  = "escalation:lead_case"
	ResponseLogKey    = "escalation:responses"
	LeaderElectionKey = "escalation:leader"
	LeadEventsStream  = "lead_events"
)

// Configuration environment variable names
const (
	EnvRedisURL      = "REDIS_URL"
	EnvPort          = "PORT"
	EnvLogLevel      = "LOG_LEVEL"
	EnvStoreBackend  = "STORE_BACKEND"
	EnvSweepInterval = "SWEEP_INTERVAL_SECONDS"
	EnvLeaderTTL     = "LEADER_ELECTION_TTL_SECONDS"
	EnvConsumerGroup = "CONSUMER_GROUP_NAME"
	EnvPodID         = "POD_ID"
)
