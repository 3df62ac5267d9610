package connector

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"

	"github.com/parapet-sh/parapet/internal/models"
)

// securityHubPageSize is the Security Hub API maximum per GetFindings call.
const securityHubPageSize = 100

// SecurityHubAPI is the subset of the Security Hub client the connector uses.
type SecurityHubAPI interface {
	GetFindings(ctx context.Context, params *securityhub.GetFindingsInput, optFns ...func(*securityhub.Options)) (*securityhub.GetFindingsOutput, error)
	GetEnabledStandards(ctx context.Context, params *securityhub.GetEnabledStandardsInput, optFns ...func(*securityhub.Options)) (*securityhub.GetEnabledStandardsOutput, error)
}

// SecurityHubConnector fetches aggregated findings from AWS Security Hub.
type SecurityHubConnector struct {
	client SecurityHubAPI
	base
}

// NewSecurityHubConnector creates a Security Hub connector.
func NewSecurityHubConnector(client SecurityHubAPI, opts Options) *SecurityHubConnector {
	return &SecurityHubConnector{
		client: client,
		base:   newBase(models.SourceSecurityHub, opts),
	}
}

// Source returns the source identifier.
func (c *SecurityHubConnector) Source() models.Source { return c.source }

// Capabilities reports status checks and findings fetches.
func (c *SecurityHubConnector) Capabilities() Capability {
	return CapabilityStatus | CapabilityFindings
}

// CheckStatus probes whether Security Hub is enabled by listing its enabled
// standards subscriptions.
func (c *SecurityHubConnector) CheckStatus(ctx context.Context, _ models.AccountScope) models.SourceHealth {
	return c.checkStatus(ctx, func(ctx context.Context) error {
		_, err := c.client.GetEnabledStandards(ctx, &securityhub.GetEnabledStandardsInput{})
		return err
	})
}

// Fetch retrieves active findings, paginating up to the filter limit.
func (c *SecurityHubConnector) Fetch(ctx context.Context, _ models.AccountScope, filter models.FindingFilter) FetchResult {
	return c.run(ctx, "securityhub.fetch", func(ctx context.Context) ([]models.Finding, error) {
		return c.fetchFindings(ctx, filter)
	})
}

func (c *SecurityHubConnector) fetchFindings(ctx context.Context, filter models.FindingFilter) ([]models.Finding, error) {
	max := fetchBudget(filter.Limit)

	filters := &shtypes.AwsSecurityFindingFilters{
		RecordState: []shtypes.StringFilter{{
			Comparison: shtypes.StringFilterComparisonEquals,
			Value:      aws.String(string(shtypes.RecordStateActive)),
		}},
	}
	for _, label := range severityLabelsAtOrAbove(filter.MinSeverity) {
		filters.SeverityLabel = append(filters.SeverityLabel, shtypes.StringFilter{
			Comparison: shtypes.StringFilterComparisonEquals,
			Value:      aws.String(label),
		})
	}

	var findings []models.Finding
	var nextToken *string

	for len(findings) < max {
		pageSize := min(securityHubPageSize, max-len(findings))
		out, err := c.client.GetFindings(ctx, &securityhub.GetFindingsInput{
			Filters:    filters,
			MaxResults: aws.Int32(int32(pageSize)),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, err
		}

		for _, raw := range out.Findings {
			finding, ok := c.normalize(raw)
			if !ok {
				continue
			}
			findings = append(findings, finding)
		}

		nextToken = out.NextToken
		if nextToken == nil {
			break
		}
	}

	return findings, nil
}

// normalize maps one ASFF record into a canonical finding. Malformed records
// are skipped with a logged reason, never silently.
func (c *SecurityHubConnector) normalize(raw shtypes.AwsSecurityFinding) (models.Finding, bool) {
	if raw.Id == nil || raw.Title == nil {
		c.logger.Warn("skipping malformed record", "reason", "missing id or title")
		return models.Finding{}, false
	}

	severity := models.SeverityLow
	if raw.Severity != nil {
		severity = models.NormalizeSeverity(string(raw.Severity.Label))
	}

	var resource models.ResourceRef
	if len(raw.Resources) > 0 {
		resource = models.ResourceRef{
			Service: aws.ToString(raw.Resources[0].Type),
			ID:      aws.ToString(raw.Resources[0].Id),
		}
	}

	var remediation string
	if raw.Remediation != nil && raw.Remediation.Recommendation != nil {
		remediation = aws.ToString(raw.Remediation.Recommendation.Text)
	}

	discovered := time.Time{}
	if raw.CreatedAt != nil {
		if t, err := time.Parse(time.RFC3339, *raw.CreatedAt); err == nil {
			discovered = t
		}
	}

	mapText := append([]string{aws.ToString(raw.GeneratorId), aws.ToString(raw.Title)}, raw.Types...)

	return models.Finding{
		ID:           aws.ToString(raw.Id),
		Source:       models.SourceSecurityHub,
		Severity:     severity,
		Pillar:       pillarFromText(securityHubPillarRules, mapText...),
		Title:        aws.ToString(raw.Title),
		Description:  aws.ToString(raw.Description),
		Remediation:  remediation,
		DiscoveredAt: discovered,
		Status:       models.StatusActive,
		Resource:     resource,
	}, true
}

// severityLabelsAtOrAbove expands a severity floor into the ASFF labels it
// admits. An empty floor means no severity filter.
func severityLabelsAtOrAbove(floor models.Severity) []string {
	if floor == "" {
		return nil
	}
	all := []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}
	var labels []string
	for _, s := range all {
		if s.Rank() >= floor.Rank() {
			labels = append(labels, string(s))
		}
	}
	return labels
}

// fetchBudget bounds how many findings one source fetches in a single
// assessment when the caller gives no explicit limit.
func fetchBudget(limit int) int {
	if limit > 0 {
		return limit
	}
	return 1000
}
