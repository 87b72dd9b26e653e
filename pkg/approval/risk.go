package approval

import "github.com/vaultflow/vaultflow/pkg/models"

var actionTypeScore = map[models.ActionType]int{
	models.ActionEmailResponse:    1,
	models.ActionFollowUp:         1,
	models.ActionMeetingRequest:   2,
	models.ActionDocumentCreation: 3,
	models.ActionDataAnalysis:     4,
	models.ActionReportGeneration: 4,
}

// Score computes the integer risk score described in spec §4.4 "Risk
// score": action-type weight + duration bucket + priority bonus + external
// source bonus.
func Score(actionType models.ActionType, priority models.Priority, durationMin int, source string) int {
	score := actionTypeScore[actionType]

	switch {
	case durationMin > 180:
		score += 3
	case durationMin > 120:
		score += 2
	case durationMin > 60:
		score += 1
	}

	switch priority {
	case models.PriorityHigh:
		score += 2
	case models.PriorityCritical:
		score += 3
	}

	if source == "external" {
		score++
	}
	return score
}

// Bucket maps a risk score to its RiskLevel bucket (spec §4.4 "Buckets:
// 0–3 low, 4–5 medium, 6–7 high, ≥8 critical").
func Bucket(score int) models.RiskLevel {
	switch {
	case score >= 8:
		return models.RiskCritical
	case score >= 6:
		return models.RiskHigh
	case score >= 4:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
