// Package dispatch maps named tool invocations onto the assessment engine.
// Every invocation produces a structured response; the dispatcher itself
// never returns an error.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parapet-sh/parapet/internal/aggregate"
	"github.com/parapet-sh/parapet/internal/compliance"
	"github.com/parapet-sh/parapet/internal/config"
	"github.com/parapet-sh/parapet/internal/explore"
	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/pkg/logger"
)

// Operation names.
const (
	OpCheckServices    = "check-services"
	OpGetFindings      = "get-findings"
	OpAnalyzePosture   = "analyze-posture"
	OpExploreResources = "explore-resources"
	OpCheckCompliance  = "check-compliance"
)

// Operations lists the supported operation names in stable order.
func Operations() []string {
	return []string{OpAnalyzePosture, OpCheckCompliance, OpCheckServices, OpExploreResources, OpGetFindings}
}

// ErrorKind classifies a failed invocation for the caller.
type ErrorKind string

// Error kinds.
const (
	ErrInvalidOperation  ErrorKind = "INVALID_OPERATION"
	ErrInvalidArgument   ErrorKind = "INVALID_ARGUMENT"
	ErrSourceUnavailable ErrorKind = "SOURCE_UNAVAILABLE"
	ErrDeadlineExceeded  ErrorKind = "DEADLINE_EXCEEDED"
	ErrInternal          ErrorKind = "INTERNAL"
)

// State tracks an invocation through its lifecycle. Transitions are strictly
// forward: RECEIVED, VALIDATED, EXECUTING, then COMPLETED or FAILED.
type State string

// Invocation states.
const (
	StateReceived  State = "RECEIVED"
	StateValidated State = "VALIDATED"
	StateExecuting State = "EXECUTING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Arguments carries the operation parameters. Unused fields are ignored by
// operations that do not take them. Severity is a floor, not an exact match.
// Service names an AWS service for explore-resources and a security source
// for get-findings.
type Arguments struct {
	Region       string `json:"region,omitempty"`
	Severity     string `json:"severity,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Service      string `json:"service,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	Refresh      bool   `json:"refresh,omitempty"`
}

// Request is one tool invocation.
type Request struct {
	Operation string    `json:"operation"`
	Arguments Arguments `json:"arguments"`
}

// Response is the structured outcome of an invocation. Status is "ok" with
// Data set, or "error" with Kind and Message set.
type Response struct {
	Status  string    `json:"status"`
	Data    any       `json:"data,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`
}

func ok(data any) Response {
	return Response{Status: "ok", Data: data}
}

func fail(kind ErrorKind, format string, args ...any) Response {
	return Response{Status: "error", Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Assessor is the aggregation surface the dispatcher drives.
type Assessor interface {
	Status(ctx context.Context, scope models.AccountScope) []models.SourceHealth
	Collect(ctx context.Context, scope models.AccountScope, filter models.FindingFilter) ([]models.Finding, []models.SourceHealth)
	Assess(ctx context.Context, sessionID string, scope models.AccountScope, force bool) (*models.PostureAssessment, error)
}

// ResourceExplorer inventories account resources.
type ResourceExplorer interface {
	Explore(ctx context.Context, serviceFilter string) (explore.Inventory, error)
}

// ComplianceChecker evaluates resources against configured rules.
type ComplianceChecker interface {
	Check(ctx context.Context, resourceType string) (compliance.Report, error)
}

// Dispatcher validates invocations and routes them to the engine.
type Dispatcher struct {
	assessor Assessor
	explorer ResourceExplorer
	checker  ComplianceChecker
	scope    models.AccountScope
	logger   logger.Logger
}

// NewDispatcher wires a dispatcher. scope is the default account scope;
// a request's region argument overrides its region.
func NewDispatcher(assessor Assessor, explorer ResourceExplorer, checker ComplianceChecker, scope models.AccountScope, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Dispatcher{
		assessor: assessor,
		explorer: explorer,
		checker:  checker,
		scope:    scope,
		logger:   log,
	}
}

// Dispatch runs one invocation through the lifecycle and always returns a
// response, never a panic or an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	log := d.logger.With("operation", req.Operation, "session_id", req.Arguments.SessionID)
	log.Debug("Invocation received", "state", string(StateReceived))

	if !validOperation(req.Operation) {
		log.Warn("Rejected invocation", "state", string(StateFailed), "kind", string(ErrInvalidOperation))
		return fail(ErrInvalidOperation, "unknown operation %q (want one of %v)", req.Operation, Operations())
	}
	if err := req.Arguments.validate(req.Operation); err != nil {
		log.Warn("Rejected invocation", "state", string(StateFailed), "kind", string(ErrInvalidArgument), "error", err)
		return fail(ErrInvalidArgument, "%s", err.Error())
	}
	log.Debug("Invocation validated", "state", string(StateValidated))

	log.Debug("Invocation executing", "state", string(StateExecuting))
	resp := d.execute(ctx, req)

	if resp.Status == "ok" {
		log.Info("Invocation complete", "state", string(StateCompleted))
	} else {
		log.Warn("Invocation failed", "state", string(StateFailed), "kind", string(resp.Kind), "error", resp.Message)
	}
	return resp
}

func (d *Dispatcher) execute(ctx context.Context, req Request) Response {
	switch req.Operation {
	case OpCheckServices:
		return d.checkServices(ctx, req)
	case OpGetFindings:
		return d.getFindings(ctx, req)
	case OpAnalyzePosture:
		return d.analyzePosture(ctx, req)
	case OpExploreResources:
		return d.exploreResources(ctx, req)
	case OpCheckCompliance:
		return d.checkCompliance(ctx, req)
	default:
		return fail(ErrInternal, "operation %q validated but not routable", req.Operation)
	}
}

func (d *Dispatcher) checkServices(ctx context.Context, req Request) Response {
	health := d.assessor.Status(ctx, d.scopeFor(req))
	return ok(map[string]any{"sourceHealth": health})
}

func (d *Dispatcher) getFindings(ctx context.Context, req Request) Response {
	var filter models.FindingFilter
	if req.Arguments.Severity != "" {
		// Already validated; parsing again normalizes case.
		filter.MinSeverity, _ = models.ParseSeverity(req.Arguments.Severity)
	}
	if req.Arguments.Service != "" {
		filter.Source, _ = parseSource(req.Arguments.Service)
	}

	// The limit bounds the output, not what each source sends: truncation
	// happens only after the merged set is filtered and sorted worst first.
	findings, health := d.assessor.Collect(ctx, d.scopeFor(req), filter)
	if req.Arguments.ResourceType != "" {
		findings = filterByResourceType(findings, req.Arguments.ResourceType)
	}
	models.SortFindingsForDisplay(findings)
	if req.Arguments.Limit > 0 && len(findings) > req.Arguments.Limit {
		findings = findings[:req.Arguments.Limit]
	}
	return ok(map[string]any{
		"findings":     findings,
		"sourceHealth": health,
	})
}

// parseSource resolves a service argument to a security source name,
// case-insensitively.
func parseSource(name string) (models.Source, bool) {
	for _, s := range models.AllSources() {
		if strings.EqualFold(string(s), name) {
			return s, true
		}
	}
	return "", false
}

// filterByResourceType keeps findings whose resource type falls under the
// requested AWS service. Sources report resource types in different shapes
// ("AWS::S3::Bucket", "AwsS3Bucket"), so both sides reduce to lower-case
// alphanumerics before the prefix comparison.
func filterByResourceType(findings []models.Finding, resourceType string) []models.Finding {
	want := normalizeResourceToken(resourceType)
	if !strings.HasPrefix(want, "aws") {
		want = "aws" + want
	}
	kept := findings[:0]
	for _, f := range findings {
		if strings.HasPrefix(normalizeResourceToken(f.Resource.Service), want) {
			kept = append(kept, f)
		}
	}
	return kept
}

func normalizeResourceToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (d *Dispatcher) analyzePosture(ctx context.Context, req Request) Response {
	assessment, err := d.assessor.Assess(ctx, req.Arguments.SessionID, d.scopeFor(req), req.Arguments.Refresh)
	if err != nil {
		if errors.Is(err, aggregate.ErrDeadlineExceeded) {
			return fail(ErrDeadlineExceeded, "%s", err.Error())
		}
		return fail(ErrInternal, "assessment failed: %s", err.Error())
	}
	return ok(assessment)
}

func (d *Dispatcher) exploreResources(ctx context.Context, req Request) Response {
	inventory, err := d.explorer.Explore(ctx, req.Arguments.Service)
	if err != nil {
		return fail(ErrInvalidArgument, "%s", err.Error())
	}
	return ok(inventory)
}

func (d *Dispatcher) checkCompliance(ctx context.Context, req Request) Response {
	report, err := d.checker.Check(ctx, req.Arguments.ResourceType)
	if err != nil {
		// Compliance has a single backing service; any failure means it
		// could not be reached usefully.
		return fail(ErrSourceUnavailable, "%s", err.Error())
	}
	return ok(report)
}

func (d *Dispatcher) scopeFor(req Request) models.AccountScope {
	scope := d.scope
	if req.Arguments.Region != "" {
		scope.Region = req.Arguments.Region
	}
	return scope
}

func validOperation(name string) bool {
	for _, op := range Operations() {
		if op == name {
			return true
		}
	}
	return false
}

func (a Arguments) validate(operation string) error {
	if a.Region != "" && !config.ValidRegion(a.Region) {
		return fmt.Errorf("invalid region %q", a.Region)
	}
	if a.Severity != "" {
		if _, err := models.ParseSeverity(a.Severity); err != nil {
			return fmt.Errorf("invalid severity %q", a.Severity)
		}
	}
	if a.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", a.Limit)
	}
	if operation == OpExploreResources && a.Service != "" && !explore.ValidService(a.Service) {
		return fmt.Errorf("invalid service %q (want one of %v)", a.Service, explore.Services())
	}
	if operation == OpGetFindings && a.Service != "" {
		if _, ok := parseSource(a.Service); !ok {
			return fmt.Errorf("invalid service %q (want one of %v)", a.Service, models.AllSources())
		}
	}
	return nil
}
