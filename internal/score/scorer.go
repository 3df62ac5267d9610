// Package score computes per-pillar and overall posture scores from a merged
// assessment snapshot.
package score

import (
	"math"

	"github.com/parapet-sh/parapet/internal/models"
)

// Severity penalties deducted per active finding.
const (
	penaltyCritical = 15
	penaltyHigh     = 8
	penaltyMedium   = 3
	penaltyLow      = 1
)

// DefaultWeights returns the per-pillar weight table used for the overall
// score. Identity & Access and Detective Controls carry the largest weights,
// reflecting the framework's emphasis. Weights sum to 1.0.
func DefaultWeights() map[models.Pillar]float64 {
	return map[models.Pillar]float64{
		models.PillarIdentityAccess:           0.30,
		models.PillarDetectiveControls:        0.25,
		models.PillarInfrastructureProtection: 0.20,
		models.PillarDataProtection:           0.15,
		models.PillarIncidentResponse:         0.10,
	}
}

// pillarSources declares which sources contribute signal to each pillar.
// When one of them reported anything other than OK the pillar's score is a
// lower bound: findings that source would have reported may be missing. A
// DEGRADED source counts here too, since a source that exhausted its retries
// contributed no findings at all.
var pillarSources = map[models.Pillar][]models.Source{
	models.PillarIdentityAccess:           {models.SourceAccessAnalyzer, models.SourceSecurityHub},
	models.PillarDetectiveControls:        {models.SourceGuardDuty, models.SourceSecurityHub},
	models.PillarInfrastructureProtection: {models.SourceGuardDuty, models.SourceInspector, models.SourceSecurityHub},
	models.PillarDataProtection:           {models.SourceSecurityHub},
	models.PillarIncidentResponse:         {models.SourceSecurityHub},
}

// Scorer computes deduction-based scores with a fixed weight table.
type Scorer struct {
	weights map[models.Pillar]float64
}

// NewScorer creates a scorer. A nil weight map selects the defaults.
func NewScorer(weights map[models.Pillar]float64) *Scorer {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	return &Scorer{weights: weights}
}

// Result is the scored view of one assessment snapshot.
type Result struct {
	PillarScores []models.PillarScore
	OverallScore int
	Confidence   models.Confidence
}

// Score computes pillar scores and the weighted overall score. Only ACTIVE
// findings deduct; resolved and suppressed ones are reported elsewhere but do
// not penalize. Scores stay floating point until the single final rounding.
func (s *Scorer) Score(findings []models.Finding, health []models.SourceHealth) Result {
	impaired := make(map[models.Source]bool, len(health))
	for _, h := range health {
		impaired[h.Source] = h.State != models.SourceOK
	}

	counts := make(map[models.Pillar]models.SeverityCounts)
	for _, f := range findings {
		if f.Status != models.StatusActive {
			continue
		}
		c := counts[f.Pillar]
		c.Add(f.Severity)
		counts[f.Pillar] = c
	}

	result := Result{Confidence: models.ConfidenceFull}
	weightedSum := 0.0
	weightTotal := 0.0

	for _, pillar := range models.ScoredPillars() {
		c := counts[pillar]
		deduction := float64(c.Critical*penaltyCritical +
			c.High*penaltyHigh +
			c.Medium*penaltyMedium +
			c.Low*penaltyLow)
		raw := math.Max(0, 100-deduction)

		ps := models.PillarScore{
			Pillar:     pillar,
			Score:      roundHalfUp(raw),
			Confidence: models.ConfidenceFull,
			Counts:     c,
		}

		for _, source := range pillarSources[pillar] {
			if impaired[source] {
				ps.Confidence = models.ConfidenceReduced
				ps.LowerBound = true
				result.Confidence = models.ConfidenceReduced
				break
			}
		}

		result.PillarScores = append(result.PillarScores, ps)

		weight := s.weights[pillar]
		weightedSum += weight * raw
		weightTotal += weight
	}

	if weightTotal > 0 {
		result.OverallScore = roundHalfUp(weightedSum / weightTotal)
	}

	if len(health) == 0 {
		result.Confidence = models.ConfidenceReduced
	}

	return result
}

// roundHalfUp rounds once, half away from zero, per the documented numeric
// semantics.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
