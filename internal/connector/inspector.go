package connector

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/inspector2"
	insptypes "github.com/aws/aws-sdk-go-v2/service/inspector2/types"

	"github.com/parapet-sh/parapet/internal/models"
)

// inspectorPageSize is the Inspector API maximum per ListFindings call.
const inspectorPageSize = 100

// InspectorAPI is the subset of the Inspector client the connector uses.
type InspectorAPI interface {
	BatchGetAccountStatus(ctx context.Context, params *inspector2.BatchGetAccountStatusInput, optFns ...func(*inspector2.Options)) (*inspector2.BatchGetAccountStatusOutput, error)
	ListFindings(ctx context.Context, params *inspector2.ListFindingsInput, optFns ...func(*inspector2.Options)) (*inspector2.ListFindingsOutput, error)
}

// InspectorConnector fetches vulnerability findings from Amazon Inspector.
type InspectorConnector struct {
	client InspectorAPI
	base
}

// NewInspectorConnector creates an Inspector connector.
func NewInspectorConnector(client InspectorAPI, opts Options) *InspectorConnector {
	return &InspectorConnector{
		client: client,
		base:   newBase(models.SourceInspector, opts),
	}
}

// Source returns the source identifier.
func (c *InspectorConnector) Source() models.Source { return c.source }

// Capabilities reports status checks and findings fetches.
func (c *InspectorConnector) Capabilities() Capability {
	return CapabilityStatus | CapabilityFindings
}

// CheckStatus probes the account's Inspector enablement state.
func (c *InspectorConnector) CheckStatus(ctx context.Context, _ models.AccountScope) models.SourceHealth {
	return c.checkStatus(ctx, func(ctx context.Context) error {
		out, err := c.client.BatchGetAccountStatus(ctx, &inspector2.BatchGetAccountStatusInput{})
		if err != nil {
			return err
		}
		for _, account := range out.Accounts {
			if account.State != nil && account.State.Status == insptypes.StatusEnabled {
				return nil
			}
		}
		return NotEnabledError(c.source, "inspector is not enabled for this account")
	})
}

// Fetch retrieves findings, paginating up to the filter limit.
func (c *InspectorConnector) Fetch(ctx context.Context, _ models.AccountScope, filter models.FindingFilter) FetchResult {
	return c.run(ctx, "inspector.fetch", func(ctx context.Context) ([]models.Finding, error) {
		return c.fetchFindings(ctx, filter)
	})
}

func (c *InspectorConnector) fetchFindings(ctx context.Context, filter models.FindingFilter) ([]models.Finding, error) {
	input := &inspector2.ListFindingsInput{}
	if labels := severityLabelsAtOrAbove(filter.MinSeverity); len(labels) > 0 {
		criteria := &insptypes.FilterCriteria{}
		for _, label := range labels {
			criteria.Severity = append(criteria.Severity, insptypes.StringFilter{
				Comparison: insptypes.StringComparisonEquals,
				Value:      aws.String(label),
			})
		}
		input.FilterCriteria = criteria
	}

	max := fetchBudget(filter.Limit)
	var findings []models.Finding

	for len(findings) < max {
		input.MaxResults = aws.Int32(int32(min(inspectorPageSize, max-len(findings))))
		out, err := c.client.ListFindings(ctx, input)
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

		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		input.NextToken = out.NextToken
	}

	return findings, nil
}

func (c *InspectorConnector) normalize(raw insptypes.Finding) (models.Finding, bool) {
	if raw.FindingArn == nil || raw.Title == nil {
		c.logger.Warn("skipping malformed record", "reason", "missing arn or title")
		return models.Finding{}, false
	}

	var resource models.ResourceRef
	if len(raw.Resources) > 0 {
		resource = models.ResourceRef{
			Service: string(raw.Resources[0].Type),
			ID:      aws.ToString(raw.Resources[0].Id),
		}
	}

	var remediation string
	if raw.Remediation != nil && raw.Remediation.Recommendation != nil {
		remediation = aws.ToString(raw.Remediation.Recommendation.Text)
	}

	discovered := time.Time{}
	if raw.FirstObservedAt != nil {
		discovered = *raw.FirstObservedAt
	}

	return models.Finding{
		ID:           aws.ToString(raw.FindingArn),
		Source:       models.SourceInspector,
		Severity:     models.NormalizeSeverity(string(raw.Severity)),
		Pillar:       pillarFromText(inspectorPillarRules, string(raw.Type)),
		Title:        aws.ToString(raw.Title),
		Description:  aws.ToString(raw.Description),
		Remediation:  remediation,
		DiscoveredAt: discovered,
		Status:       models.StatusActive,
		Resource:     resource,
	}, true
}
