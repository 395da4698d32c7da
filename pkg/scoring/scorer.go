package scoring

import (
	"errors"
	"fmt"

	"lead-response-engine/pkg/models"
)

// ErrValidation marks malformed lead attributes. Leads are rejected before
// scoring, never silently defaulted.
var ErrValidation = errors.New("invalid lead attributes")

// Score computes the 0-100 lead score and its temperature band. Deterministic
// and side-effect free; identical attributes always produce identical output.
func Score(attrs models.LeadAttributes) (int, models.Temperature, error) {
	if err := Validate(attrs); err != nil {
		return 0, "", err
	}

	total := demographicsScore(attrs) + behavioralScore(attrs) + qualificationScore(attrs)
	if total > MaxScore {
		total = MaxScore
	}
	if total < 0 {
		total = 0
	}

	return total, models.TemperatureForScore(total), nil
}

// Validate checks lead attributes without scoring them
func Validate(attrs models.LeadAttributes) error {
	if attrs.PropertyValue < 0 {
		return fmt.Errorf("%w: negative property value %.2f", ErrValidation, attrs.PropertyValue)
	}
	if attrs.AnnualIncome < 0 {
		return fmt.Errorf("%w: negative annual income %.2f", ErrValidation, attrs.AnnualIncome)
	}
	if attrs.EngagementCount < 0 || attrs.InteractionCount < 0 {
		return fmt.Errorf("%w: negative engagement counts", ErrValidation)
	}
	if attrs.LastResponseLatency < 0 {
		return fmt.Errorf("%w: negative response latency", ErrValidation)
	}
	if attrs.LocationTier < 1 || attrs.LocationTier > 3 {
		return fmt.Errorf("%w: location tier %d out of range", ErrValidation, attrs.LocationTier)
	}

	switch attrs.BudgetStatus {
	case models.BudgetConfirmed, models.BudgetEstimated, models.BudgetUnknown:
	default:
		return fmt.Errorf("%w: unknown budget status %q", ErrValidation, attrs.BudgetStatus)
	}
	switch attrs.AuthorityStatus {
	case models.AuthorityConfirmed, models.AuthorityInferred, models.AuthorityUnknown:
	default:
		return fmt.Errorf("%w: unknown authority status %q", ErrValidation, attrs.AuthorityStatus)
	}
	switch attrs.NeedUrgency {
	case models.NeedUrgent, models.NeedSoon, models.NeedExploratory:
	default:
		return fmt.Errorf("%w: unknown need urgency %q", ErrValidation, attrs.NeedUrgency)
	}
	switch attrs.Timeline {
	case models.TimelineImmediate, models.TimelineThisQuarter, models.TimelineThisYear, models.TimelineUnknown:
	default:
		return fmt.Errorf("%w: unknown timeline %q", ErrValidation, attrs.Timeline)
	}

	return nil
}

func demographicsScore(attrs models.LeadAttributes) int {
	score := 0

	switch {
	case attrs.PropertyValue >= PropertyValueTier1:
		score += PropertyValueTier1Points
	case attrs.PropertyValue >= PropertyValueTier2:
		score += PropertyValueTier2Points
	case attrs.PropertyValue >= PropertyValueTier3:
		score += PropertyValueTier3Points
	case attrs.PropertyValue >= PropertyValueTier4:
		score += PropertyValueTier4Points
	default:
		score += PropertyValueBasePoints
	}

	switch {
	case attrs.AnnualIncome >= IncomeTier1:
		score += IncomeTier1Points
	case attrs.AnnualIncome >= IncomeTier2:
		score += IncomeTier2Points
	case attrs.AnnualIncome >= IncomeTier3:
		score += IncomeTier3Points
	default:
		score += IncomeBasePoints
	}

	switch attrs.LocationTier {
	case 1:
		score += LocationTier1Points
	case 2:
		score += LocationTier2Points
	case 3:
		score += LocationTier3Points
	}

	return score
}

func behavioralScore(attrs models.LeadAttributes) int {
	score := 0

	switch {
	case attrs.EngagementCount >= EngagementTier1:
		score += EngagementTier1Points
	case attrs.EngagementCount >= EngagementTier2:
		score += EngagementTier2Points
	case attrs.EngagementCount >= EngagementTier3:
		score += EngagementTier3Points
	case attrs.EngagementCount >= EngagementTier4:
		score += EngagementTier4Points
	}

	if attrs.LastResponseLatency > 0 {
		switch {
		case attrs.LastResponseLatency <= LatencyTier1:
			score += LatencyTier1Points
		case attrs.LastResponseLatency <= LatencyTier2:
			score += LatencyTier2Points
		case attrs.LastResponseLatency <= LatencyTier3:
			score += LatencyTier3Points
		default:
			score += LatencyBasePoints
		}
	}

	switch {
	case attrs.InteractionCount >= InteractionTier1:
		score += InteractionTier1Points
	case attrs.InteractionCount >= InteractionTier2:
		score += InteractionTier2Points
	case attrs.InteractionCount >= InteractionTier3:
		score += InteractionTier3Points
	}

	return score
}

func qualificationScore(attrs models.LeadAttributes) int {
	score := 0

	switch attrs.BudgetStatus {
	case models.BudgetConfirmed:
		score += BudgetConfirmedPoints
	case models.BudgetEstimated:
		score += BudgetEstimatedPoints
	}

	switch attrs.AuthorityStatus {
	case models.AuthorityConfirmed:
		score += AuthorityConfirmedPoints
	case models.AuthorityInferred:
		score += AuthorityInferredPoints
	}

	switch attrs.NeedUrgency {
	case models.NeedUrgent:
		score += NeedUrgentPoints
	case models.NeedSoon:
		score += NeedSoonPoints
	}

	if attrs.Timeline == models.TimelineImmediate {
		score += TimelineImmediatePoints
	}

	return score
}
