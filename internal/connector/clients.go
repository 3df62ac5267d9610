package connector

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/accessanalyzer"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/inspector2"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/parapet-sh/parapet/internal/models"
)

// LoadAWSConfig resolves AWS credentials and region the standard way. The
// caller's environment is expected to have credentials already provisioned.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// ResolveScope fills in the account ID for a scope via STS when the
// configuration left it blank.
func ResolveScope(ctx context.Context, cfg aws.Config, scope models.AccountScope) (models.AccountScope, error) {
	if scope.AccountID != "" {
		return scope, nil
	}

	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return scope, fmt.Errorf("resolving account identity: %w", err)
	}
	scope.AccountID = aws.ToString(out.Account)
	return scope, nil
}

// New builds the connector for one source against live AWS clients.
func New(source models.Source, cfg aws.Config, opts Options) (Connector, error) {
	switch source {
	case models.SourceSecurityHub:
		return NewSecurityHubConnector(securityhub.NewFromConfig(cfg), opts), nil
	case models.SourceGuardDuty:
		return NewGuardDutyConnector(guardduty.NewFromConfig(cfg), opts), nil
	case models.SourceInspector:
		return NewInspectorConnector(inspector2.NewFromConfig(cfg), opts), nil
	case models.SourceAccessAnalyzer:
		return NewAccessAnalyzerConnector(accessanalyzer.NewFromConfig(cfg), opts), nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

// NewAll builds connectors for every requested source.
func NewAll(sources []models.Source, cfg aws.Config, opts Options) ([]Connector, error) {
	connectors := make([]Connector, 0, len(sources))
	for _, source := range sources {
		c, err := New(source, cfg, opts)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	return connectors, nil
}
