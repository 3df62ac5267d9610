package connector

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet-sh/parapet/internal/models"
)

type stubGuardDuty struct {
	detectors   []string
	status      gdtypes.DetectorStatus
	findingIDs  []string
	findings    []gdtypes.Finding
	listErr     error
	gotCriteria *gdtypes.FindingCriteria
}

func (s *stubGuardDuty) ListDetectors(_ context.Context, _ *guardduty.ListDetectorsInput, _ ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error) {
	return &guardduty.ListDetectorsOutput{DetectorIds: s.detectors}, nil
}

func (s *stubGuardDuty) GetDetector(_ context.Context, _ *guardduty.GetDetectorInput, _ ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error) {
	return &guardduty.GetDetectorOutput{Status: s.status}, nil
}

func (s *stubGuardDuty) ListFindings(_ context.Context, params *guardduty.ListFindingsInput, _ ...func(*guardduty.Options)) (*guardduty.ListFindingsOutput, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.gotCriteria = params.FindingCriteria
	return &guardduty.ListFindingsOutput{FindingIds: s.findingIDs}, nil
}

func (s *stubGuardDuty) GetFindings(_ context.Context, _ *guardduty.GetFindingsInput, _ ...func(*guardduty.Options)) (*guardduty.GetFindingsOutput, error) {
	return &guardduty.GetFindingsOutput{Findings: s.findings}, nil
}

func gdFinding(id, findingType string, severity float64) gdtypes.Finding {
	return gdtypes.Finding{
		Id:          aws.String(id),
		Type:        aws.String(findingType),
		Title:       aws.String("threat " + id),
		Description: aws.String("desc"),
		Severity:    aws.Float64(severity),
		CreatedAt:   aws.String("2026-07-15T08:30:00Z"),
		Resource: &gdtypes.Resource{
			ResourceType:    aws.String("Instance"),
			InstanceDetails: &gdtypes.InstanceDetails{InstanceId: aws.String("i-0abc")},
		},
	}
}

func TestGuardDutyFetchNormalizes(t *testing.T) {
	stub := &stubGuardDuty{
		detectors:  []string{"det-1"},
		findingIDs: []string{"gd-1", "gd-2"},
		findings: []gdtypes.Finding{
			gdFinding("gd-1", "UnauthorizedAccess:IAMUser/MaliciousIPCaller", 9.2),
			gdFinding("gd-2", "Recon:EC2/PortProbeUnprotectedPort", 5.0),
		},
	}
	conn := NewGuardDutyConnector(stub, testOptions())

	result := conn.Fetch(context.Background(), models.AccountScope{}, models.FindingFilter{})

	require.Equal(t, models.SourceOK, result.Health.State)
	require.Len(t, result.Findings, 2)

	assert.Equal(t, models.SeverityCritical, result.Findings[0].Severity)
	assert.Equal(t, models.PillarIdentityAccess, result.Findings[0].Pillar)
	assert.Equal(t, "i-0abc", result.Findings[0].Resource.ID)

	assert.Equal(t, models.SeverityMedium, result.Findings[1].Severity)
	assert.Equal(t, models.PillarInfrastructureProtection, result.Findings[1].Pillar)
}

func TestGuardDutyNoDetectorIsNotEnabled(t *testing.T) {
	conn := NewGuardDutyConnector(&stubGuardDuty{}, testOptions())

	result := conn.Fetch(context.Background(), models.AccountScope{}, models.FindingFilter{})

	assert.Equal(t, models.SourceNotEnabled, result.Health.State)
	assert.Empty(t, result.Findings)
}

func TestGuardDutySeverityFloorBecomesCriterion(t *testing.T) {
	stub := &stubGuardDuty{detectors: []string{"det-1"}}
	conn := NewGuardDutyConnector(stub, testOptions())

	conn.Fetch(context.Background(), models.AccountScope{}, models.FindingFilter{MinSeverity: models.SeverityHigh})

	require.NotNil(t, stub.gotCriteria)
	cond, ok := stub.gotCriteria.Criterion["severity"]
	require.True(t, ok)
	assert.Equal(t, int64(7), aws.ToInt64(cond.GreaterThanOrEqual))
}

func TestGuardDutyCheckStatus(t *testing.T) {
	enabled := NewGuardDutyConnector(&stubGuardDuty{detectors: []string{"det-1"}, status: gdtypes.DetectorStatusEnabled}, testOptions())
	assert.Equal(t, models.SourceOK, enabled.CheckStatus(context.Background(), models.AccountScope{}).State)

	disabled := NewGuardDutyConnector(&stubGuardDuty{detectors: []string{"det-1"}, status: gdtypes.DetectorStatusDisabled}, testOptions())
	assert.Equal(t, models.SourceNotEnabled, disabled.CheckStatus(context.Background(), models.AccountScope{}).State)

	missing := NewGuardDutyConnector(&stubGuardDuty{}, testOptions())
	assert.Equal(t, models.SourceNotEnabled, missing.CheckStatus(context.Background(), models.AccountScope{}).State)
}

func TestMinSeverityScore(t *testing.T) {
	assert.Equal(t, int64(1), minSeverityScore(models.SeverityLow))
	assert.Equal(t, int64(4), minSeverityScore(models.SeverityMedium))
	assert.Equal(t, int64(7), minSeverityScore(models.SeverityHigh))
	assert.Equal(t, int64(9), minSeverityScore(models.SeverityCritical))
}
