package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet-sh/parapet/internal/models"
)

func activeFinding(id string, source models.Source, pillar models.Pillar, severity models.Severity) models.Finding {
	return models.Finding{
		ID:       id,
		Source:   source,
		Pillar:   pillar,
		Severity: severity,
		Title:    "finding " + id,
		Status:   models.StatusActive,
	}
}

func healthyAll() []models.SourceHealth {
	var health []models.SourceHealth
	for _, s := range models.AllSources() {
		health = append(health, models.SourceHealth{Source: s, State: models.SourceOK})
	}
	return health
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range DefaultWeights() {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, DefaultWeights(), len(models.ScoredPillars()))
}

func TestScorePerfectPosture(t *testing.T) {
	result := NewScorer(nil).Score(nil, healthyAll())

	assert.Equal(t, 100, result.OverallScore)
	assert.Equal(t, models.ConfidenceFull, result.Confidence)
	require.Len(t, result.PillarScores, 5)
	for _, ps := range result.PillarScores {
		assert.Equal(t, 100, ps.Score)
		assert.Equal(t, models.ConfidenceFull, ps.Confidence)
		assert.False(t, ps.LowerBound)
	}
}

func TestScoreDeductions(t *testing.T) {
	findings := []models.Finding{
		activeFinding("f1", models.SourceSecurityHub, models.PillarIdentityAccess, models.SeverityCritical),
		activeFinding("f2", models.SourceSecurityHub, models.PillarIdentityAccess, models.SeverityHigh),
		activeFinding("f3", models.SourceSecurityHub, models.PillarIdentityAccess, models.SeverityMedium),
		activeFinding("f4", models.SourceSecurityHub, models.PillarIdentityAccess, models.SeverityLow),
	}

	result := NewScorer(nil).Score(findings, healthyAll())

	identity := pillarScore(t, result, models.PillarIdentityAccess)
	assert.Equal(t, 100-15-8-3-1, identity.Score)
	assert.Equal(t, 1, identity.Counts.Critical)
	assert.Equal(t, 4, identity.Counts.Total())
}

func TestScoreFloorsAtZero(t *testing.T) {
	var findings []models.Finding
	for i := 0; i < 10; i++ {
		findings = append(findings, activeFinding(string(rune('a'+i)), models.SourceSecurityHub, models.PillarDataProtection, models.SeverityCritical))
	}

	result := NewScorer(nil).Score(findings, healthyAll())

	assert.Equal(t, 0, pillarScore(t, result, models.PillarDataProtection).Score)
	assert.GreaterOrEqual(t, result.OverallScore, 0)
	assert.LessOrEqual(t, result.OverallScore, 100)
}

// The documented scenario: two CRITICAL identity findings, one HIGH
// infrastructure finding, and the detective-controls source unavailable.
func TestScoreDocumentedScenario(t *testing.T) {
	findings := []models.Finding{
		activeFinding("c1", models.SourceAccessAnalyzer, models.PillarIdentityAccess, models.SeverityCritical),
		activeFinding("c2", models.SourceAccessAnalyzer, models.PillarIdentityAccess, models.SeverityCritical),
		activeFinding("h1", models.SourceInspector, models.PillarInfrastructureProtection, models.SeverityHigh),
	}
	health := []models.SourceHealth{
		{Source: models.SourceAccessAnalyzer, State: models.SourceOK},
		{Source: models.SourceInspector, State: models.SourceOK},
		{Source: models.SourceGuardDuty, State: models.SourceUnavailable, LastError: "TIMEOUT: deadline exceeded"},
	}

	result := NewScorer(nil).Score(findings, health)

	identity := pillarScore(t, result, models.PillarIdentityAccess)
	assert.Equal(t, 70, identity.Score)
	assert.Equal(t, models.ConfidenceFull, identity.Confidence)

	infra := pillarScore(t, result, models.PillarInfrastructureProtection)
	assert.Equal(t, 92, infra.Score)
	assert.True(t, infra.LowerBound, "guardduty feeds infrastructure protection")

	detective := pillarScore(t, result, models.PillarDetectiveControls)
	assert.Equal(t, 100, detective.Score, "absence of signal is not penalized")
	assert.Equal(t, models.ConfidenceReduced, detective.Confidence)
	assert.True(t, detective.LowerBound)

	// 0.30*70 + 0.25*100 + 0.20*92 + 0.15*100 + 0.10*100 = 89.4
	assert.Equal(t, 89, result.OverallScore)
	assert.Equal(t, models.ConfidenceReduced, result.Confidence)
}

func TestScoreDegradedSourceReducesConfidence(t *testing.T) {
	// A degraded source exhausted its retries and contributed nothing, so a
	// clean 100 for its pillar is only a lower bound.
	health := []models.SourceHealth{
		{Source: models.SourceAccessAnalyzer, State: models.SourceOK},
		{Source: models.SourceInspector, State: models.SourceOK},
		{Source: models.SourceSecurityHub, State: models.SourceOK},
		{Source: models.SourceGuardDuty, State: models.SourceDegraded, LastError: "TIMEOUT: deadline exceeded"},
	}

	result := NewScorer(nil).Score(nil, health)

	detective := pillarScore(t, result, models.PillarDetectiveControls)
	assert.Equal(t, 100, detective.Score)
	assert.Equal(t, models.ConfidenceReduced, detective.Confidence)
	assert.True(t, detective.LowerBound)

	identity := pillarScore(t, result, models.PillarIdentityAccess)
	assert.Equal(t, models.ConfidenceFull, identity.Confidence, "pillars guardduty does not feed stay at full confidence")

	assert.Equal(t, models.ConfidenceReduced, result.Confidence)
}

func TestScoreIgnoresResolvedAndSuppressed(t *testing.T) {
	resolved := activeFinding("r1", models.SourceSecurityHub, models.PillarDataProtection, models.SeverityCritical)
	resolved.Status = models.StatusResolved
	suppressed := activeFinding("s1", models.SourceSecurityHub, models.PillarDataProtection, models.SeverityCritical)
	suppressed.Status = models.StatusSuppressed

	result := NewScorer(nil).Score([]models.Finding{resolved, suppressed}, healthyAll())

	assert.Equal(t, 100, pillarScore(t, result, models.PillarDataProtection).Score)
}

func TestScoreOtherPillarNotWeighted(t *testing.T) {
	findings := []models.Finding{
		activeFinding("o1", models.SourceSecurityHub, models.PillarOther, models.SeverityCritical),
	}

	result := NewScorer(nil).Score(findings, healthyAll())

	assert.Equal(t, 100, result.OverallScore)
	require.Len(t, result.PillarScores, 5)
}

func TestScoreCustomWeights(t *testing.T) {
	weights := map[models.Pillar]float64{
		models.PillarIdentityAccess:           1.0,
		models.PillarDetectiveControls:        0,
		models.PillarInfrastructureProtection: 0,
		models.PillarDataProtection:           0,
		models.PillarIncidentResponse:         0,
	}
	findings := []models.Finding{
		activeFinding("f1", models.SourceSecurityHub, models.PillarIdentityAccess, models.SeverityHigh),
	}

	result := NewScorer(weights).Score(findings, healthyAll())

	assert.Equal(t, 92, result.OverallScore)
}

func TestScoreNoHealthIsLowConfidence(t *testing.T) {
	result := NewScorer(nil).Score(nil, nil)
	assert.Equal(t, models.ConfidenceReduced, result.Confidence)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 89, roundHalfUp(89.4))
	assert.Equal(t, 90, roundHalfUp(89.5))
	assert.Equal(t, 90, roundHalfUp(89.6))
	assert.Equal(t, 0, roundHalfUp(0))
}

func pillarScore(t *testing.T, result Result, pillar models.Pillar) models.PillarScore {
	t.Helper()
	for _, ps := range result.PillarScores {
		if ps.Pillar == pillar {
			return ps
		}
	}
	t.Fatalf("no score for pillar %s", pillar)
	return models.PillarScore{}
}
