// Package connector implements the source connectors that fetch raw security
// signals from external services and normalize them into canonical findings.
package connector

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/pkg/logger"
)

// Capability describes what a connector can do.
type Capability int

// Capabilities.
const (
	CapabilityStatus Capability = 1 << iota
	CapabilityFindings
)

// Connector fetches raw signals from one external security service. A
// connector never returns an error across its boundary: every failure is
// folded into the SourceHealth of its result, so one failing source cannot
// abort an assessment.
type Connector interface {
	// Source returns the identifier of the backing service.
	Source() models.Source

	// Capabilities reports which operations the source supports.
	Capabilities() Capability

	// CheckStatus probes whether the source is enabled and reachable.
	CheckStatus(ctx context.Context, scope models.AccountScope) models.SourceHealth

	// Fetch retrieves and normalizes findings within the scope and filter.
	Fetch(ctx context.Context, scope models.AccountScope, filter models.FindingFilter) FetchResult
}

// FetchResult is the structured outcome of one connector invocation. Health
// is always populated; Findings is empty unless Health.Usable().
type FetchResult struct {
	Source   models.Source
	Findings []models.Finding
	Health   models.SourceHealth
}

// Options configures connector behavior shared across sources.
type Options struct {
	Logger        logger.Logger
	Timeout       time.Duration
	RetryAttempts int
}

// DefaultOptions returns the options used when a zero Options is given.
func DefaultOptions() Options {
	return Options{
		Logger:        logger.GetGlobalLogger(),
		Timeout:       10 * time.Second,
		RetryAttempts: 2,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.RetryAttempts < 0 {
		o.RetryAttempts = d.RetryAttempts
	}
	return o
}

// base carries the behavior every source connector shares: per-call
// deadlines, bounded retry with exponential backoff, latency measurement and
// failure-to-health folding.
type base struct {
	logger  logger.Logger
	tracer  trace.Tracer
	source  models.Source
	opts    Options
	backoff time.Duration // initial retry interval; shortened in tests
}

func newBase(source models.Source, opts Options) base {
	opts = opts.withDefaults()
	return base{
		source:  source,
		opts:    opts,
		logger:  opts.Logger.With("source", string(source)),
		tracer:  otel.Tracer("parapet/connector"),
		backoff: 500 * time.Millisecond,
	}
}

// run executes op under the per-call deadline and retry policy, then folds
// the outcome into a FetchResult.
func (b *base) run(ctx context.Context, spanName string, op func(context.Context) ([]models.Finding, error)) FetchResult {
	ctx, span := b.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("source", string(b.source))))
	defer span.End()

	start := time.Now()
	findings, err := b.retry(ctx, op)
	latency := time.Since(start)

	if err != nil {
		cerr := Classify(b.source, err)
		health := healthFromFailure(cerr, latency)
		b.logger.Warn("source call failed",
			"state", string(health.State),
			"class", string(cerr.Class),
			"latency", latency,
			"error", cerr.Err)
		return FetchResult{Source: b.source, Health: health}
	}

	b.logger.Debug("source call complete", "findings", len(findings), "latency", latency)
	return FetchResult{
		Source:   b.source,
		Findings: findings,
		Health:   models.SourceHealth{Source: b.source, State: models.SourceOK, Latency: latency},
	}
}

// retry runs op with a fresh per-attempt deadline, retrying only failures
// classified as retryable, up to the configured attempt budget.
func (b *base) retry(ctx context.Context, op func(context.Context) ([]models.Finding, error)) ([]models.Finding, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.backoff
	policy.RandomizationFactor = 0.2

	var findings []models.Finding
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()

		result, err := op(callCtx)
		if err != nil {
			// A per-call deadline on an otherwise live parent context is a
			// source timeout, not an assessment cancellation.
			if ctx.Err() != nil {
				return backoff.Permanent(Classify(b.source, ctx.Err()))
			}
			cerr := Classify(b.source, err)
			if !cerr.Class.Retryable() {
				return backoff.Permanent(cerr)
			}
			b.logger.Debug("retrying source call", "class", string(cerr.Class))
			return cerr
		}
		findings = result
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(b.opts.RetryAttempts)), ctx))
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// checkStatus wraps a status probe with the same deadline and health folding
// as run, without the retry budget: a status check is advisory.
func (b *base) checkStatus(ctx context.Context, probe func(context.Context) error) models.SourceHealth {
	ctx, span := b.tracer.Start(ctx, "connector.status",
		trace.WithAttributes(attribute.String("source", string(b.source))))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := probe(callCtx)
	latency := time.Since(start)

	if err != nil {
		return healthFromFailure(Classify(b.source, err), latency)
	}
	return models.SourceHealth{Source: b.source, State: models.SourceOK, Latency: latency}
}
