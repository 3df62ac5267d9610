// Package compliance reports resource compliance against the account's
// configured rules.
package compliance

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/configservice/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/parapet-sh/parapet/pkg/logger"
)

// maxDetailEntries caps each detail list; the counts remain exact.
const maxDetailEntries = 20

// ConfigServiceAPI is the subset of the Config service the checker uses.
type ConfigServiceAPI interface {
	DescribeConfigRules(ctx context.Context, params *configservice.DescribeConfigRulesInput, optFns ...func(*configservice.Options)) (*configservice.DescribeConfigRulesOutput, error)
	GetComplianceDetailsByConfigRule(ctx context.Context, params *configservice.GetComplianceDetailsByConfigRuleInput, optFns ...func(*configservice.Options)) (*configservice.GetComplianceDetailsByConfigRuleOutput, error)
}

// ResourceCompliance is one evaluated resource.
type ResourceCompliance struct {
	ResourceType   string `json:"resource_type"`
	ResourceID     string `json:"resource_id"`
	Rule           string `json:"rule"`
	ComplianceType string `json:"compliance_type"`
}

// Report summarizes rule evaluations across the account. Counts cover every
// evaluation; Compliant and NonCompliant carry at most maxDetailEntries each.
type Report struct {
	CompliantResources    int                  `json:"compliant_resources"`
	NonCompliantResources int                  `json:"non_compliant_resources"`
	Compliant             []ResourceCompliance `json:"compliant"`
	NonCompliant          []ResourceCompliance `json:"non_compliant"`
}

// Checker evaluates compliance through the Config service.
type Checker struct {
	client ConfigServiceAPI
	logger logger.Logger
	tracer trace.Tracer
}

// NewChecker builds a checker on a real Config client.
func NewChecker(cfg aws.Config, log logger.Logger) *Checker {
	return NewCheckerWithClient(configservice.NewFromConfig(cfg), log)
}

// NewCheckerWithClient wires a checker over an explicit client.
func NewCheckerWithClient(client ConfigServiceAPI, log logger.Logger) *Checker {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Checker{client: client, logger: log, tracer: otel.Tracer("parapet/compliance")}
}

// Check walks every config rule and splits evaluated resources into
// compliant and non-compliant. A non-empty resourceType keeps only
// evaluations of that type.
func (c *Checker) Check(ctx context.Context, resourceType string) (Report, error) {
	ctx, span := c.tracer.Start(ctx, "compliance.check",
		trace.WithAttributes(attribute.String("resource_type", resourceType)))
	defer span.End()

	rules, err := c.ruleNames(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list config rules: %w", err)
	}

	var report Report
	for _, rule := range rules {
		if err := c.evaluateRule(ctx, rule, resourceType, &report); err != nil {
			return Report{}, fmt.Errorf("failed to evaluate rule %s: %w", rule, err)
		}
	}

	if report.Compliant == nil {
		report.Compliant = []ResourceCompliance{}
	}
	if report.NonCompliant == nil {
		report.NonCompliant = []ResourceCompliance{}
	}
	c.logger.Debug("Compliance check complete",
		"rules", len(rules),
		"compliant", report.CompliantResources,
		"non_compliant", report.NonCompliantResources)
	return report, nil
}

func (c *Checker) ruleNames(ctx context.Context) ([]string, error) {
	var names []string
	var nextToken *string
	for {
		out, err := c.client.DescribeConfigRules(ctx, &configservice.DescribeConfigRulesInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, rule := range out.ConfigRules {
			if rule.ConfigRuleName != nil {
				names = append(names, *rule.ConfigRuleName)
			}
		}
		if out.NextToken == nil {
			return names, nil
		}
		nextToken = out.NextToken
	}
}

func (c *Checker) evaluateRule(ctx context.Context, rule, resourceType string, report *Report) error {
	var nextToken *string
	for {
		out, err := c.client.GetComplianceDetailsByConfigRule(ctx, &configservice.GetComplianceDetailsByConfigRuleInput{
			ConfigRuleName: aws.String(rule),
			ComplianceTypes: []types.ComplianceType{
				types.ComplianceTypeCompliant,
				types.ComplianceTypeNonCompliant,
			},
			NextToken: nextToken,
		})
		if err != nil {
			return err
		}

		for _, result := range out.EvaluationResults {
			rc := resourceFromEvaluation(rule, result)
			if resourceType != "" && rc.ResourceType != resourceType {
				continue
			}
			if result.ComplianceType == types.ComplianceTypeCompliant {
				report.CompliantResources++
				if len(report.Compliant) < maxDetailEntries {
					report.Compliant = append(report.Compliant, rc)
				}
			} else {
				report.NonCompliantResources++
				if len(report.NonCompliant) < maxDetailEntries {
					report.NonCompliant = append(report.NonCompliant, rc)
				}
			}
		}

		if out.NextToken == nil {
			return nil
		}
		nextToken = out.NextToken
	}
}

func resourceFromEvaluation(rule string, result types.EvaluationResult) ResourceCompliance {
	rc := ResourceCompliance{Rule: rule, ComplianceType: string(result.ComplianceType)}
	if result.EvaluationResultIdentifier != nil && result.EvaluationResultIdentifier.EvaluationResultQualifier != nil {
		qualifier := result.EvaluationResultIdentifier.EvaluationResultQualifier
		rc.ResourceType = aws.ToString(qualifier.ResourceType)
		rc.ResourceID = aws.ToString(qualifier.ResourceId)
	}
	return rc
}
