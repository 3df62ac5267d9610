package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/accessanalyzer"
	aatypes "github.com/aws/aws-sdk-go-v2/service/accessanalyzer/types"

	"github.com/parapet-sh/parapet/internal/models"
)

// accessAnalyzerPageSize bounds one ListFindings page.
const accessAnalyzerPageSize = 100

// AccessAnalyzerAPI is the subset of the IAM Access Analyzer client the
// connector uses.
type AccessAnalyzerAPI interface {
	ListAnalyzers(ctx context.Context, params *accessanalyzer.ListAnalyzersInput, optFns ...func(*accessanalyzer.Options)) (*accessanalyzer.ListAnalyzersOutput, error)
	ListFindings(ctx context.Context, params *accessanalyzer.ListFindingsInput, optFns ...func(*accessanalyzer.Options)) (*accessanalyzer.ListFindingsOutput, error)
}

// AccessAnalyzerConnector fetches external-access findings from IAM Access
// Analyzer. Analyzer findings carry no native severity; public exposure
// normalizes to HIGH and any other external access to MEDIUM.
type AccessAnalyzerConnector struct {
	client AccessAnalyzerAPI
	base
}

// NewAccessAnalyzerConnector creates an Access Analyzer connector.
func NewAccessAnalyzerConnector(client AccessAnalyzerAPI, opts Options) *AccessAnalyzerConnector {
	return &AccessAnalyzerConnector{
		client: client,
		base:   newBase(models.SourceAccessAnalyzer, opts),
	}
}

// Source returns the source identifier.
func (c *AccessAnalyzerConnector) Source() models.Source { return c.source }

// Capabilities reports status checks and findings fetches.
func (c *AccessAnalyzerConnector) Capabilities() Capability {
	return CapabilityStatus | CapabilityFindings
}

// CheckStatus probes for an active analyzer in the account.
func (c *AccessAnalyzerConnector) CheckStatus(ctx context.Context, _ models.AccountScope) models.SourceHealth {
	return c.checkStatus(ctx, func(ctx context.Context) error {
		_, err := c.analyzerArn(ctx)
		return err
	})
}

// Fetch lists the analyzer's active findings.
func (c *AccessAnalyzerConnector) Fetch(ctx context.Context, _ models.AccountScope, filter models.FindingFilter) FetchResult {
	return c.run(ctx, "accessanalyzer.fetch", func(ctx context.Context) ([]models.Finding, error) {
		return c.fetchFindings(ctx, filter)
	})
}

func (c *AccessAnalyzerConnector) fetchFindings(ctx context.Context, filter models.FindingFilter) ([]models.Finding, error) {
	arn, err := c.analyzerArn(ctx)
	if err != nil {
		return nil, err
	}

	input := &accessanalyzer.ListFindingsInput{
		AnalyzerArn: aws.String(arn),
		MaxResults:  aws.Int32(accessAnalyzerPageSize),
	}

	max := fetchBudget(filter.Limit)
	var findings []models.Finding

	for len(findings) < max {
		out, err := c.client.ListFindings(ctx, input)
		if err != nil {
			return nil, err
		}

		for _, raw := range out.Findings {
			finding, ok := c.normalize(raw)
			if !ok {
				continue
			}
			if !filter.Matches(finding) {
				continue
			}
			findings = append(findings, finding)
		}

		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		input.NextToken = out.NextToken
	}

	if len(findings) > max {
		findings = findings[:max]
	}
	return findings, nil
}

func (c *AccessAnalyzerConnector) analyzerArn(ctx context.Context) (string, error) {
	out, err := c.client.ListAnalyzers(ctx, &accessanalyzer.ListAnalyzersInput{})
	if err != nil {
		return "", err
	}
	for _, analyzer := range out.Analyzers {
		if analyzer.Status == aatypes.AnalyzerStatusActive && analyzer.Arn != nil {
			return *analyzer.Arn, nil
		}
	}
	return "", NotEnabledError(c.source, "no active analyzer in this account")
}

func (c *AccessAnalyzerConnector) normalize(raw aatypes.FindingSummary) (models.Finding, bool) {
	if raw.Id == nil || raw.Resource == nil {
		c.logger.Warn("skipping malformed record", "reason", "missing id or resource")
		return models.Finding{}, false
	}

	severity := models.SeverityMedium
	exposure := "external principal"
	if aws.ToBool(raw.IsPublic) {
		severity = models.SeverityHigh
		exposure = "anyone"
	}

	status := models.StatusActive
	switch raw.Status {
	case aatypes.FindingStatusResolved:
		status = models.StatusResolved
	case aatypes.FindingStatusArchived:
		status = models.StatusSuppressed
	case aatypes.FindingStatusActive:
	}

	discovered := time.Time{}
	if raw.CreatedAt != nil {
		discovered = *raw.CreatedAt
	}

	resourceType := string(raw.ResourceType)

	return models.Finding{
		ID:           aws.ToString(raw.Id),
		Source:       models.SourceAccessAnalyzer,
		Severity:     severity,
		Pillar:       models.PillarIdentityAccess,
		Title:        fmt.Sprintf("%s is accessible by %s", resourceType, exposure),
		Description:  fmt.Sprintf("Access Analyzer found that %s grants access outside the account's zone of trust.", aws.ToString(raw.Resource)),
		Remediation:  "Review the resource policy and remove unintended external access",
		DiscoveredAt: discovered,
		Status:       status,
		Resource:     models.ResourceRef{Service: resourceType, ID: aws.ToString(raw.Resource)},
	}, true
}
