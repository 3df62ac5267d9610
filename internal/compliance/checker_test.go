package compliance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/configservice/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet-sh/parapet/pkg/logger"
)

type stubConfigService struct {
	rules       []string
	evaluations map[string][]types.EvaluationResult
	rulesErr    error
	detailsErr  error
}

func (s *stubConfigService) DescribeConfigRules(context.Context, *configservice.DescribeConfigRulesInput, ...func(*configservice.Options)) (*configservice.DescribeConfigRulesOutput, error) {
	if s.rulesErr != nil {
		return nil, s.rulesErr
	}
	out := &configservice.DescribeConfigRulesOutput{}
	for _, name := range s.rules {
		out.ConfigRules = append(out.ConfigRules, types.ConfigRule{ConfigRuleName: aws.String(name)})
	}
	return out, nil
}

func (s *stubConfigService) GetComplianceDetailsByConfigRule(_ context.Context, params *configservice.GetComplianceDetailsByConfigRuleInput, _ ...func(*configservice.Options)) (*configservice.GetComplianceDetailsByConfigRuleOutput, error) {
	if s.detailsErr != nil {
		return nil, s.detailsErr
	}
	return &configservice.GetComplianceDetailsByConfigRuleOutput{
		EvaluationResults: s.evaluations[aws.ToString(params.ConfigRuleName)],
	}, nil
}

func evaluation(resourceType, resourceID string, compliance types.ComplianceType) types.EvaluationResult {
	return types.EvaluationResult{
		ComplianceType: compliance,
		EvaluationResultIdentifier: &types.EvaluationResultIdentifier{
			EvaluationResultQualifier: &types.EvaluationResultQualifier{
				ResourceType: aws.String(resourceType),
				ResourceId:   aws.String(resourceID),
			},
		},
	}
}

func TestCheckSplitsByCompliance(t *testing.T) {
	stub := &stubConfigService{
		rules: []string{"s3-bucket-encryption", "restricted-ssh"},
		evaluations: map[string][]types.EvaluationResult{
			"s3-bucket-encryption": {
				evaluation("AWS::S3::Bucket", "logs", types.ComplianceTypeCompliant),
				evaluation("AWS::S3::Bucket", "public-assets", types.ComplianceTypeNonCompliant),
			},
			"restricted-ssh": {
				evaluation("AWS::EC2::SecurityGroup", "sg-1", types.ComplianceTypeNonCompliant),
			},
		},
	}

	report, err := NewCheckerWithClient(stub, logger.NewMockLogger()).Check(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, report.CompliantResources)
	assert.Equal(t, 2, report.NonCompliantResources)
	require.Len(t, report.NonCompliant, 2)
	assert.Equal(t, "public-assets", report.NonCompliant[0].ResourceID)
	assert.Equal(t, "s3-bucket-encryption", report.NonCompliant[0].Rule)
	assert.Equal(t, "NON_COMPLIANT", report.NonCompliant[0].ComplianceType)
}

func TestCheckResourceTypeFilter(t *testing.T) {
	stub := &stubConfigService{
		rules: []string{"mixed"},
		evaluations: map[string][]types.EvaluationResult{
			"mixed": {
				evaluation("AWS::S3::Bucket", "logs", types.ComplianceTypeCompliant),
				evaluation("AWS::EC2::Instance", "i-1", types.ComplianceTypeCompliant),
			},
		},
	}

	report, err := NewCheckerWithClient(stub, logger.NewMockLogger()).Check(context.Background(), "AWS::S3::Bucket")
	require.NoError(t, err)

	assert.Equal(t, 1, report.CompliantResources)
	require.Len(t, report.Compliant, 1)
	assert.Equal(t, "logs", report.Compliant[0].ResourceID)
}

func TestCheckCapsDetailsNotCounts(t *testing.T) {
	results := make([]types.EvaluationResult, 0, 30)
	for i := 0; i < 30; i++ {
		results = append(results, evaluation("AWS::S3::Bucket", fmt.Sprintf("bucket-%02d", i), types.ComplianceTypeNonCompliant))
	}
	stub := &stubConfigService{
		rules:       []string{"busy-rule"},
		evaluations: map[string][]types.EvaluationResult{"busy-rule": results},
	}

	report, err := NewCheckerWithClient(stub, logger.NewMockLogger()).Check(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 30, report.NonCompliantResources, "count stays exact")
	assert.Len(t, report.NonCompliant, maxDetailEntries, "detail list is capped")
}

func TestCheckEmptyAccount(t *testing.T) {
	report, err := NewCheckerWithClient(&stubConfigService{}, logger.NewMockLogger()).Check(context.Background(), "")
	require.NoError(t, err)

	assert.Zero(t, report.CompliantResources)
	assert.NotNil(t, report.Compliant, "detail lists marshal as [] not null")
	assert.NotNil(t, report.NonCompliant)
}

func TestCheckPropagatesErrors(t *testing.T) {
	_, err := NewCheckerWithClient(&stubConfigService{rulesErr: errors.New("AccessDeniedException")}, logger.NewMockLogger()).Check(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list config rules")

	stub := &stubConfigService{rules: []string{"r"}, detailsErr: errors.New("ThrottlingException")}
	_, err = NewCheckerWithClient(stub, logger.NewMockLogger()).Check(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to evaluate rule r")
}
