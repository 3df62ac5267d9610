package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
	assert.Zero(t, Severity("BOGUS").Rank())
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input   string
		want    Severity
		wantErr bool
	}{
		{input: "high", want: SeverityHigh},
		{input: "CRITICAL", want: SeverityCritical},
		{input: " Medium ", want: SeverityMedium},
		{input: "low", want: SeverityLow},
		{input: "informational", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, NormalizeSeverity("CRITICAL"))
	assert.Equal(t, SeverityMedium, NormalizeSeverity("Moderate"))
	assert.Equal(t, SeverityLow, NormalizeSeverity("INFORMATIONAL"))
	assert.Equal(t, SeverityLow, NormalizeSeverity("something-new"))
}

func TestSeverityFromScore(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityFromScore(9.0))
	assert.Equal(t, SeverityHigh, SeverityFromScore(7.5))
	assert.Equal(t, SeverityMedium, SeverityFromScore(4.0))
	assert.Equal(t, SeverityLow, SeverityFromScore(3.9))
	assert.Equal(t, SeverityLow, SeverityFromScore(0))
}

func TestGenerateFindingIDStable(t *testing.T) {
	a := GenerateFindingID(SourceGuardDuty, "Recon:EC2/PortProbe", "i-0abc")
	b := GenerateFindingID(SourceGuardDuty, "Recon:EC2/PortProbe", "i-0abc")
	c := GenerateFindingID(SourceGuardDuty, "Recon:EC2/PortProbe", "i-0def")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestFindingValidate(t *testing.T) {
	valid := Finding{
		ID:       "f-1",
		Source:   SourceSecurityHub,
		Severity: SeverityHigh,
		Title:    "S3 bucket public",
		Status:   StatusActive,
	}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.Title = ""
	assert.Error(t, missing.Validate())

	badSeverity := valid
	badSeverity.Severity = "EXTREME"
	assert.Error(t, badSeverity.Validate())
}

func TestSortFindingsDeterministic(t *testing.T) {
	findings := []Finding{
		{ID: "b", Source: SourceSecurityHub},
		{ID: "a", Source: SourceGuardDuty},
		{ID: "a", Source: SourceSecurityHub},
	}
	SortFindings(findings)

	assert.Equal(t, SourceGuardDuty, findings[0].Source)
	assert.Equal(t, "a", findings[1].ID)
	assert.Equal(t, "b", findings[2].ID)
}

func TestSortFindingsForDisplay(t *testing.T) {
	now := time.Now()
	findings := []Finding{
		{ID: "old-critical", Severity: SeverityCritical, DiscoveredAt: now.Add(-time.Hour)},
		{ID: "new-high", Severity: SeverityHigh, DiscoveredAt: now},
		{ID: "new-critical", Severity: SeverityCritical, DiscoveredAt: now},
	}
	SortFindingsForDisplay(findings)

	assert.Equal(t, "new-critical", findings[0].ID)
	assert.Equal(t, "old-critical", findings[1].ID)
	assert.Equal(t, "new-high", findings[2].ID)
}

func TestSeverityCounts(t *testing.T) {
	var c SeverityCounts
	c.Add(SeverityCritical)
	c.Add(SeverityCritical)
	c.Add(SeverityLow)

	assert.Equal(t, 2, c.Critical)
	assert.Equal(t, 1, c.Low)
	assert.Equal(t, 3, c.Total())
}

func TestFindingFilterMatches(t *testing.T) {
	f := FindingFilter{MinSeverity: SeverityHigh}

	assert.True(t, f.Matches(Finding{Severity: SeverityCritical}))
	assert.True(t, f.Matches(Finding{Severity: SeverityHigh}))
	assert.False(t, f.Matches(Finding{Severity: SeverityMedium}))

	unfiltered := FindingFilter{}
	assert.True(t, unfiltered.Matches(Finding{Severity: SeverityLow}))
}

func TestSessionContextExpired(t *testing.T) {
	now := time.Now()
	ctx := SessionContext{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, ctx.Expired(now))
	assert.True(t, ctx.Expired(now.Add(2*time.Minute)))
}
