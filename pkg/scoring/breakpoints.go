package scoring

import "time"

// Demographics bucket, 55 points maximum.
const (
	// Property value tiers (25 points maximum)
	PropertyValueTier1 = 600_000.0
	PropertyValueTier2 = 400_000.0
	PropertyValueTier3 = 250_000.0
	PropertyValueTier4 = 120_000.0

	PropertyValueTier1Points = 25
	PropertyValueTier2Points = 20
	PropertyValueTier3Points = 14
	PropertyValueTier4Points = 8
	PropertyValueBasePoints  = 3

	// Annual income tiers (15 points maximum)
	IncomeTier1 = 150_000.0
	IncomeTier2 = 100_000.0
	IncomeTier3 = 60_000.0

	IncomeTier1Points = 15
	IncomeTier2Points = 12
	IncomeTier3Points = 8
	IncomeBasePoints  = 4

	// Location tiers (15 points maximum); tier 1 is the prime service area
	LocationTier1Points = 15
	LocationTier2Points = 10
	LocationTier3Points = 5
)

// Behavioral bucket, 35 points maximum.
const (
	// Engagement count tiers (15 points maximum)
	EngagementTier1 = 10
	EngagementTier2 = 5
	EngagementTier3 = 2
	EngagementTier4 = 1

	EngagementTier1Points = 15
	EngagementTier2Points = 11
	EngagementTier3Points = 7
	EngagementTier4Points = 4

	// Inbound response latency tiers (10 points maximum); zero latency means
	// the lead has never responded and earns nothing
	LatencyTier1 = 5 * time.Minute
	LatencyTier2 = time.Hour
	LatencyTier3 = 24 * time.Hour

	LatencyTier1Points = 10
	LatencyTier2Points = 7
	LatencyTier3Points = 4
	LatencyBasePoints  = 1

	// Interaction count tiers (10 points maximum)
	InteractionTier1 = 8
	InteractionTier2 = 4
	InteractionTier3 = 1

	InteractionTier1Points = 10
	InteractionTier2Points = 7
	InteractionTier3Points = 4
)

// Qualification (BANT) bucket, 10 points maximum.
const (
	BudgetConfirmedPoints = 4
	BudgetEstimatedPoints = 2

	AuthorityConfirmedPoints = 3
	AuthorityInferredPoints  = 1

	NeedUrgentPoints = 2
	NeedSoonPoints   = 1

	TimelineImmediatePoints = 1
)

// MaxScore caps the clamped sum
const MaxScore = 100
