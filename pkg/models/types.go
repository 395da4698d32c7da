package models

import (
	"time"

	"lead-response-engine/pkg/constants"
)

// Temperature is the coarse bucket derived from the numeric lead score
type Temperature string

const (
	TemperatureCold Temperature = "cold"
	TemperatureCool Temperature = "cool"
	TemperatureWarm Temperature = "warm"
	TemperatureHot  Temperature = "hot"
)

// TemperatureForScore maps a 0-100 score to its temperature band
func TemperatureForScore(score int) Temperature {
	switch {
	case score >= constants.HotThreshold:
		return TemperatureHot
	case score >= constants.WarmThreshold:
		return TemperatureWarm
	case score >= constants.CoolThreshold:
		return TemperatureCool
	default:
		return TemperatureCold
	}
}

// BudgetStatus is the BANT budget qualification signal
type BudgetStatus string

const (
	BudgetConfirmed BudgetStatus = "confirmed"
	BudgetEstimated BudgetStatus = "estimated"
	BudgetUnknown   BudgetStatus = "unknown"
)

// AuthorityStatus is the BANT decision-authority signal
type AuthorityStatus string

const (
	AuthorityConfirmed AuthorityStatus = "confirmed"
	AuthorityInferred  AuthorityStatus = "inferred"
	AuthorityUnknown   AuthorityStatus = "unknown"
)

// NeedUrgency is the stated urgency of the roofing need
type NeedUrgency string

const (
	NeedUrgent      NeedUrgency = "urgent"
	NeedSoon        NeedUrgency = "soon"
	NeedExploratory NeedUrgency = "exploratory"
)

// Timeline is the stated purchase timeline
type Timeline string

const (
	TimelineImmediate   Timeline = "immediate"
	TimelineThisQuarter Timeline = "this_quarter"
	TimelineThisYear    Timeline = "this_year"
	TimelineUnknown     Timeline = "unknown"
)

// LeadAttributes carries the raw signals a lead is scored on
type LeadAttributes struct {
	PropertyValue       float64         `json:"property_value"`
	AnnualIncome        float64         `json:"annual_income"`
	LocationTier        int             `json:"location_tier"` // 1 = prime service area, 3 = fringe
	Territory           string          `json:"territory"`
	ServiceNeeded       string          `json:"service_needed"`
	EngagementCount     int             `json:"engagement_count"`
	InteractionCount    int             `json:"interaction_count"`
	LastResponseLatency time.Duration   `json:"last_response_latency"` // zero = never responded
	BudgetStatus        BudgetStatus    `json:"budget_status"`
	AuthorityStatus     AuthorityStatus `json:"authority_status"`
	NeedUrgency         NeedUrgency     `json:"need_urgency"`
	Timeline            Timeline        `json:"timeline"`
}

// Lead is an inbound lead with its computed score
type Lead struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Attributes  LeadAttributes `json:"attributes"`
	Score       int            `json:"score"`
	Temperature Temperature    `json:"temperature"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Role is one tier in the ordered escalation chain
type Role string

const (
	RoleSalesRep   Role = "sales_rep"
	RoleManager    Role = "manager"
	RoleOperations Role = "operations"
	RoleOwner      Role = "owner"
)

// DefaultChain returns the standard escalation order
func DefaultChain() []Role {
	return []Role{RoleSalesRep, RoleManager, RoleOperations, RoleOwner}
}

// TeamMember is a person who can be assigned leads. Availability and workload
// are mutated by the host CRM, not by the engine.
type TeamMember struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        Role     `json:"role"`
	Available   bool     `json:"available"`
	Workload    int      `json:"workload"`
	Territories []string `json:"territories"`
	Skills      []string `json:"skills"`
}

// Channel identifies a notification transport
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelVoice Channel = "voice"
)

// ChannelOutcome records the result of one channel within a fan-out
type ChannelOutcome struct {
	Channel   Channel `json:"channel"`
	Delivered bool    `json:"delivered"`
	Attempts  int     `json:"attempts"`
	Error     string  `json:"error,omitempty"`
}

// CaseStatus is the escalation case lifecycle state
type CaseStatus string

const (
	CasePending      CaseStatus = "pending"
	CaseAcknowledged CaseStatus = "acknowledged"
	CaseExhausted    CaseStatus = "exhausted"
	CaseAborted      CaseStatus = "aborted"
)

// Terminal reports whether the status admits no further transitions
func (s CaseStatus) Terminal() bool {
	return s == CaseAcknowledged || s == CaseExhausted || s == CaseAborted
}

// AuditEntry is one step of the escalation chain as it actually ran
type AuditEntry struct {
	Tier           int              `json:"tier"`
	Assignee       string           `json:"assignee"` // empty when the tier was skipped
	Skipped        bool             `json:"skipped,omitempty"`
	NotifiedAt     time.Time        `json:"notified_at"`
	Channels       []ChannelOutcome `json:"channels,omitempty"`
	AcknowledgedAt *time.Time       `json:"acknowledged_at,omitempty"`
}

// EscalationCase tracks one lead through the response deadline chain
type EscalationCase struct {
	ID              string       `json:"id"`
	LeadID          string       `json:"lead_id"`
	CreatedAt       time.Time    `json:"created_at"`
	Tier            int          `json:"tier"`
	Assignee        string       `json:"assignee"`
	Deadline        time.Time    `json:"deadline"`
	Status          CaseStatus   `json:"status"`
	FirstNotifiedAt time.Time    `json:"first_notified_at"`
	Audit           []AuditEntry `json:"audit"`
}

// ResponseRecord is the append-only analytics fact produced once per
// acknowledged case
type ResponseRecord struct {
	MemberID           string        `json:"member_id"`
	LeadID             string        `json:"lead_id"`
	CaseID             string        `json:"case_id"`
	Tier               int           `json:"tier"`
	Elapsed            time.Duration `json:"elapsed"`
	AcknowledgedAt     time.Time     `json:"acknowledged_at"`
	FirstTierCompliant bool          `json:"first_tier_compliant"`
}
