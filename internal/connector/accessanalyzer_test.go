package connector

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/accessanalyzer"
	aatypes "github.com/aws/aws-sdk-go-v2/service/accessanalyzer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet-sh/parapet/internal/models"
)

type stubAccessAnalyzer struct {
	analyzers []aatypes.AnalyzerSummary
	findings  []aatypes.FindingSummary

	analyzersErr error
	findingsErr  error
}

func (s *stubAccessAnalyzer) ListAnalyzers(context.Context, *accessanalyzer.ListAnalyzersInput, ...func(*accessanalyzer.Options)) (*accessanalyzer.ListAnalyzersOutput, error) {
	if s.analyzersErr != nil {
		return nil, s.analyzersErr
	}
	return &accessanalyzer.ListAnalyzersOutput{Analyzers: s.analyzers}, nil
}

func (s *stubAccessAnalyzer) ListFindings(context.Context, *accessanalyzer.ListFindingsInput, ...func(*accessanalyzer.Options)) (*accessanalyzer.ListFindingsOutput, error) {
	if s.findingsErr != nil {
		return nil, s.findingsErr
	}
	return &accessanalyzer.ListFindingsOutput{Findings: s.findings}, nil
}

func activeAnalyzer() []aatypes.AnalyzerSummary {
	return []aatypes.AnalyzerSummary{{
		Arn:    aws.String("arn:aws:access-analyzer:us-east-1:123456789012:analyzer/account"),
		Status: aatypes.AnalyzerStatusActive,
	}}
}

func analyzerFinding(id string, isPublic bool, status aatypes.FindingStatus) aatypes.FindingSummary {
	created := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return aatypes.FindingSummary{
		Id:           aws.String(id),
		Resource:     aws.String("arn:aws:s3:::exposed-bucket"),
		ResourceType: aatypes.ResourceTypeAwsS3Bucket,
		IsPublic:     aws.Bool(isPublic),
		Status:       status,
		CreatedAt:    &created,
	}
}

func TestAccessAnalyzerFetchNormalizes(t *testing.T) {
	stub := &stubAccessAnalyzer{
		analyzers: activeAnalyzer(),
		findings: []aatypes.FindingSummary{
			analyzerFinding("f-public", true, aatypes.FindingStatusActive),
			analyzerFinding("f-external", false, aatypes.FindingStatusActive),
			analyzerFinding("f-archived", false, aatypes.FindingStatusArchived),
		},
	}
	conn := NewAccessAnalyzerConnector(stub, testOptions())

	result := conn.Fetch(context.Background(), models.AccountScope{}, models.FindingFilter{})

	require.Equal(t, models.SourceOK, result.Health.State)
	require.Len(t, result.Findings, 3)

	public := result.Findings[0]
	assert.Equal(t, models.SeverityHigh, public.Severity, "public exposure maps to HIGH")
	assert.Equal(t, models.PillarIdentityAccess, public.Pillar)
	assert.Contains(t, public.Title, "accessible by anyone")
	assert.Equal(t, models.StatusActive, public.Status)

	assert.Equal(t, models.SeverityMedium, result.Findings[1].Severity, "non-public external access maps to MEDIUM")
	assert.Equal(t, models.StatusSuppressed, result.Findings[2].Status, "archived maps to suppressed")
}

func TestAccessAnalyzerSeverityFloor(t *testing.T) {
	stub := &stubAccessAnalyzer{
		analyzers: activeAnalyzer(),
		findings: []aatypes.FindingSummary{
			analyzerFinding("f-public", true, aatypes.FindingStatusActive),
			analyzerFinding("f-external", false, aatypes.FindingStatusActive),
		},
	}
	conn := NewAccessAnalyzerConnector(stub, testOptions())

	result := conn.Fetch(context.Background(), models.AccountScope{}, models.FindingFilter{MinSeverity: models.SeverityHigh})

	require.Len(t, result.Findings, 1)
	assert.Equal(t, "f-public", result.Findings[0].ID)
}

func TestAccessAnalyzerSkipsMalformedRecords(t *testing.T) {
	stub := &stubAccessAnalyzer{
		analyzers: activeAnalyzer(),
		findings: []aatypes.FindingSummary{
			{Id: aws.String("no-resource")},
			analyzerFinding("f-good", false, aatypes.FindingStatusActive),
		},
	}
	conn := NewAccessAnalyzerConnector(stub, testOptions())

	result := conn.Fetch(context.Background(), models.AccountScope{}, models.FindingFilter{})

	require.Len(t, result.Findings, 1)
	assert.Equal(t, "f-good", result.Findings[0].ID)
}

func TestAccessAnalyzerNotEnabled(t *testing.T) {
	stub := &stubAccessAnalyzer{} // no analyzers at all
	conn := NewAccessAnalyzerConnector(stub, testOptions())

	health := conn.CheckStatus(context.Background(), models.AccountScope{})
	assert.Equal(t, models.SourceNotEnabled, health.State)

	result := conn.Fetch(context.Background(), models.AccountScope{}, models.FindingFilter{})
	assert.Equal(t, models.SourceNotEnabled, result.Health.State)
	assert.Empty(t, result.Findings)
}
