package connector

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/parapet-sh/parapet/internal/models"
)

// guardDutyPageSize is the GuardDuty API maximum per ListFindings call.
const guardDutyPageSize = 50

// GuardDutyAPI is the subset of the GuardDuty client the connector uses.
type GuardDutyAPI interface {
	ListDetectors(ctx context.Context, params *guardduty.ListDetectorsInput, optFns ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error)
	GetDetector(ctx context.Context, params *guardduty.GetDetectorInput, optFns ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error)
	ListFindings(ctx context.Context, params *guardduty.ListFindingsInput, optFns ...func(*guardduty.Options)) (*guardduty.ListFindingsOutput, error)
	GetFindings(ctx context.Context, params *guardduty.GetFindingsInput, optFns ...func(*guardduty.Options)) (*guardduty.GetFindingsOutput, error)
}

// GuardDutyConnector fetches threat findings from Amazon GuardDuty.
type GuardDutyConnector struct {
	client GuardDutyAPI
	base
}

// NewGuardDutyConnector creates a GuardDuty connector.
func NewGuardDutyConnector(client GuardDutyAPI, opts Options) *GuardDutyConnector {
	return &GuardDutyConnector{
		client: client,
		base:   newBase(models.SourceGuardDuty, opts),
	}
}

// Source returns the source identifier.
func (c *GuardDutyConnector) Source() models.Source { return c.source }

// Capabilities reports status checks and findings fetches.
func (c *GuardDutyConnector) Capabilities() Capability {
	return CapabilityStatus | CapabilityFindings
}

// CheckStatus probes for an enabled detector in the account.
func (c *GuardDutyConnector) CheckStatus(ctx context.Context, _ models.AccountScope) models.SourceHealth {
	return c.checkStatus(ctx, func(ctx context.Context) error {
		detectorID, err := c.detectorID(ctx)
		if err != nil {
			return err
		}
		out, err := c.client.GetDetector(ctx, &guardduty.GetDetectorInput{DetectorId: aws.String(detectorID)})
		if err != nil {
			return err
		}
		if out.Status != gdtypes.DetectorStatusEnabled {
			return NotEnabledError(c.source, "detector is not enabled")
		}
		return nil
	})
}

// Fetch lists finding IDs for the account detector and hydrates them.
func (c *GuardDutyConnector) Fetch(ctx context.Context, _ models.AccountScope, filter models.FindingFilter) FetchResult {
	return c.run(ctx, "guardduty.fetch", func(ctx context.Context) ([]models.Finding, error) {
		return c.fetchFindings(ctx, filter)
	})
}

func (c *GuardDutyConnector) fetchFindings(ctx context.Context, filter models.FindingFilter) ([]models.Finding, error) {
	detectorID, err := c.detectorID(ctx)
	if err != nil {
		return nil, err
	}

	input := &guardduty.ListFindingsInput{
		DetectorId: aws.String(detectorID),
		MaxResults: aws.Int32(guardDutyPageSize),
	}
	if filter.MinSeverity != "" {
		// GuardDuty scores severity 0-10; the floor maps onto the band's
		// lower bound.
		input.FindingCriteria = &gdtypes.FindingCriteria{
			Criterion: map[string]gdtypes.Condition{
				"severity": {GreaterThanOrEqual: aws.Int64(minSeverityScore(filter.MinSeverity))},
			},
		}
	}

	max := fetchBudget(filter.Limit)
	var ids []string
	for len(ids) < max {
		out, err := c.client.ListFindings(ctx, input)
		if err != nil {
			return nil, err
		}
		ids = append(ids, out.FindingIds...)
		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		input.NextToken = out.NextToken
	}
	if len(ids) > max {
		ids = ids[:max]
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var findings []models.Finding
	for start := 0; start < len(ids); start += guardDutyPageSize {
		batch := ids[start:min(start+guardDutyPageSize, len(ids))]
		out, err := c.client.GetFindings(ctx, &guardduty.GetFindingsInput{
			DetectorId: aws.String(detectorID),
			FindingIds: batch,
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
	}

	return findings, nil
}

func (c *GuardDutyConnector) detectorID(ctx context.Context) (string, error) {
	out, err := c.client.ListDetectors(ctx, &guardduty.ListDetectorsInput{})
	if err != nil {
		return "", err
	}
	if len(out.DetectorIds) == 0 {
		return "", NotEnabledError(c.source, "no detector configured in this region")
	}
	return out.DetectorIds[0], nil
}

// normalize maps one GuardDuty finding onto the canonical shape, converting
// the numeric severity score into a level.
func (c *GuardDutyConnector) normalize(raw gdtypes.Finding) (models.Finding, bool) {
	if raw.Id == nil || raw.Title == nil {
		c.logger.Warn("skipping malformed record", "reason", "missing id or title")
		return models.Finding{}, false
	}

	severity := models.SeverityLow
	if raw.Severity != nil {
		severity = models.SeverityFromScore(*raw.Severity)
	}

	findingType := aws.ToString(raw.Type)

	var resource models.ResourceRef
	if raw.Resource != nil {
		resource.Service = aws.ToString(raw.Resource.ResourceType)
		switch {
		case raw.Resource.InstanceDetails != nil && raw.Resource.InstanceDetails.InstanceId != nil:
			resource.ID = *raw.Resource.InstanceDetails.InstanceId
		case raw.Resource.AccessKeyDetails != nil && raw.Resource.AccessKeyDetails.AccessKeyId != nil:
			resource.ID = *raw.Resource.AccessKeyDetails.AccessKeyId
		case len(raw.Resource.S3BucketDetails) > 0 && raw.Resource.S3BucketDetails[0].Name != nil:
			resource.ID = *raw.Resource.S3BucketDetails[0].Name
		}
	}

	discovered := time.Time{}
	if raw.CreatedAt != nil {
		if t, err := time.Parse(time.RFC3339, *raw.CreatedAt); err == nil {
			discovered = t
		}
	}

	return models.Finding{
		ID:           aws.ToString(raw.Id),
		Source:       models.SourceGuardDuty,
		Severity:     severity,
		Pillar:       pillarFromText(guardDutyPillarRules, findingType),
		Title:        aws.ToString(raw.Title),
		Description:  aws.ToString(raw.Description),
		DiscoveredAt: discovered,
		Status:       models.StatusActive,
		Resource:     resource,
	}, true
}

// minSeverityScore maps a severity floor onto the lower bound of its
// GuardDuty score band.
func minSeverityScore(floor models.Severity) int64 {
	switch floor {
	case models.SeverityCritical:
		return 9
	case models.SeverityHigh:
		return 7
	case models.SeverityMedium:
		return 4
	default:
		return 1
	}
}
