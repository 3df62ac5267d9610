package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/pkg/logger"
)

func finding(id string, source models.Source, pillar models.Pillar, severity models.Severity, title string) models.Finding {
	return models.Finding{
		ID:       id,
		Source:   source,
		Pillar:   pillar,
		Severity: severity,
		Title:    title,
		Status:   models.StatusActive,
	}
}

func TestRecommendEmptySnapshot(t *testing.T) {
	recs := NewRecommender(logger.NewMockLogger()).Recommend(nil, 0)
	assert.Empty(t, recs, "no recommendation without concrete findings")
}

func TestRecommendGroupsAndRanks(t *testing.T) {
	findings := []models.Finding{
		finding("f1", models.SourceSecurityHub, models.PillarDataProtection, models.SeverityMedium, "S3 bucket not encrypted"),
		finding("f2", models.SourceSecurityHub, models.PillarDataProtection, models.SeverityMedium, "RDS instance not encrypted"),
		finding("f3", models.SourceAccessAnalyzer, models.PillarIdentityAccess, models.SeverityCritical, "Bucket accessible by anyone"),
		finding("f4", models.SourceInspector, models.PillarInfrastructureProtection, models.SeverityHigh, "CVE-2026-1234 in openssl"),
	}

	recs := NewRecommender(logger.NewMockLogger()).Recommend(findings, 10)

	require.Len(t, recs, 3)

	// Ranked by worst severity, then count.
	assert.Equal(t, "Restrict External Access", recs[0].Title)
	assert.Equal(t, 1, recs[0].Priority)
	assert.Equal(t, []string{"f3"}, recs[0].AffectedFindingIDs)

	assert.Equal(t, "Patch Vulnerabilities", recs[1].Title)
	assert.Equal(t, 2, recs[1].Priority)

	assert.Equal(t, "Enable Encryption", recs[2].Title)
	assert.Equal(t, []string{"f1", "f2"}, recs[2].AffectedFindingIDs)
	assert.Contains(t, recs[2].Rationale, "Data Protection")
}

func TestRecommendTiebreakOnCount(t *testing.T) {
	findings := []models.Finding{
		finding("a1", models.SourceSecurityHub, models.PillarIdentityAccess, models.SeverityHigh, "Root account without MFA"),
		finding("b1", models.SourceSecurityHub, models.PillarDataProtection, models.SeverityHigh, "EBS volume not encrypted"),
		finding("b2", models.SourceSecurityHub, models.PillarDataProtection, models.SeverityHigh, "S3 bucket not encrypted"),
	}

	recs := NewRecommender(logger.NewMockLogger()).Recommend(findings, 10)

	require.Len(t, recs, 2)
	assert.Equal(t, "Enable Encryption", recs[0].Title, "larger group wins the tie")
	assert.Equal(t, "Enforce MFA", recs[1].Title)
}

func TestRecommendHonorsLimit(t *testing.T) {
	findings := []models.Finding{
		finding("f1", models.SourceSecurityHub, models.PillarIdentityAccess, models.SeverityLow, "Password policy weak"),
		finding("f2", models.SourceSecurityHub, models.PillarDataProtection, models.SeverityLow, "Bucket not encrypted"),
		finding("f3", models.SourceSecurityHub, models.PillarDetectiveControls, models.SeverityLow, "CloudTrail logging disabled"),
	}

	recs := NewRecommender(logger.NewMockLogger()).Recommend(findings, 2)
	assert.Len(t, recs, 2)
}

func TestRecommendSkipsInactiveFindings(t *testing.T) {
	resolved := finding("f1", models.SourceInspector, models.PillarInfrastructureProtection, models.SeverityCritical, "CVE fixed")
	resolved.Status = models.StatusResolved

	recs := NewRecommender(logger.NewMockLogger()).Recommend([]models.Finding{resolved}, 5)
	assert.Empty(t, recs)
}

func TestRemediationClass(t *testing.T) {
	tests := []struct {
		name string
		f    models.Finding
		want string
	}{
		{"access analyzer", finding("x", models.SourceAccessAnalyzer, models.PillarIdentityAccess, models.SeverityHigh, "anything"), "restrict-external-access"},
		{"inspector", finding("x", models.SourceInspector, models.PillarInfrastructureProtection, models.SeverityHigh, "CVE"), "patch-vulnerabilities"},
		{"guardduty credentials", finding("x", models.SourceGuardDuty, models.PillarIdentityAccess, models.SeverityHigh, "IAM credential exfiltration"), "rotate-credentials"},
		{"guardduty generic", finding("x", models.SourceGuardDuty, models.PillarInfrastructureProtection, models.SeverityHigh, "Port probe"), "investigate-threat"},
		{"hub public", finding("x", models.SourceSecurityHub, models.PillarDataProtection, models.SeverityHigh, "S3 bucket allows public read"), "restrict-public-access"},
		{"hub fallback", finding("x", models.SourceSecurityHub, models.PillarOther, models.SeverityLow, "Something else"), "harden-configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remediationClass(tt.f))
		})
	}
}
