// Package aggregate fans assessment work out across source connectors and
// folds the results into a single scored posture assessment.
package aggregate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/parapet-sh/parapet/internal/connector"
	"github.com/parapet-sh/parapet/internal/contextstore"
	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/internal/recommend"
	"github.com/parapet-sh/parapet/internal/score"
	"github.com/parapet-sh/parapet/pkg/logger"
)

// ErrDeadlineExceeded is returned by Assess only when the collection
// deadline passed before any source produced a usable result.
var ErrDeadlineExceeded = errors.New("assessment deadline exceeded with no usable sources")

// deadlineMessage is recorded as LastError on sources that never reported.
const deadlineMessage = "TIMEOUT: assessment deadline exceeded"

// Options configures an Aggregator.
type Options struct {
	Logger         logger.Logger
	MaxWorkers     int
	Deadline       time.Duration
	CacheTTL       time.Duration
	RecommendLimit int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.GetGlobalLogger()
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 4
	}
	if o.Deadline <= 0 {
		o.Deadline = 45 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 15 * time.Minute
	}
	if o.RecommendLimit <= 0 {
		o.RecommendLimit = recommend.DefaultLimit
	}
	return o
}

// Aggregator owns the connector fan-out and the assemble-score-recommend
// pipeline on top of it.
type Aggregator struct {
	connectors  []connector.Connector
	store       contextstore.Store
	scorer      *score.Scorer
	recommender *recommend.Recommender
	logger      logger.Logger
	tracer      trace.Tracer
	opts        Options

	now   func() time.Time
	newID func() string
}

// NewAggregator wires an aggregator over the given connectors. The store may
// be nil, in which case every assessment is computed fresh.
func NewAggregator(connectors []connector.Connector, store contextstore.Store, scorer *score.Scorer, opts Options) *Aggregator {
	opts = opts.withDefaults()
	return &Aggregator{
		connectors:  connectors,
		store:       store,
		scorer:      scorer,
		recommender: recommend.NewRecommender(opts.Logger),
		logger:      opts.Logger,
		tracer:      otel.Tracer("parapet/aggregate"),
		opts:        opts,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Status probes every configured connector concurrently and returns one
// health entry per source, sorted by source name.
func (a *Aggregator) Status(ctx context.Context, scope models.AccountScope) []models.SourceHealth {
	ctx, span := a.tracer.Start(ctx, "aggregate.status")
	defer span.End()

	health := make([]models.SourceHealth, len(a.connectors))
	var wg sync.WaitGroup
	for i, conn := range a.connectors {
		wg.Add(1)
		go func(i int, conn connector.Connector) {
			defer wg.Done()
			health[i] = conn.CheckStatus(ctx, scope)
		}(i, conn)
	}
	wg.Wait()

	models.SortSourceHealth(health)
	return health
}

// Collect fans Fetch out across the connectors under the assessment
// deadline. The returned slices are deterministic: findings are deduplicated
// on (source, id) and sorted, and health carries exactly one entry per
// configured connector. Connectors that have not reported by the deadline
// are recorded as UNAVAILABLE.
func (a *Aggregator) Collect(ctx context.Context, scope models.AccountScope, filter models.FindingFilter) ([]models.Finding, []models.SourceHealth) {
	findings, health, _ := a.collect(ctx, scope, filter)
	return findings, health
}

func (a *Aggregator) collect(ctx context.Context, scope models.AccountScope, filter models.FindingFilter) ([]models.Finding, []models.SourceHealth, bool) {
	conns := a.connectorsFor(filter)

	ctx, span := a.tracer.Start(ctx, "aggregate.collect",
		trace.WithAttributes(attribute.Int("connectors", len(conns))))
	defer span.End()

	collectCtx, cancel := context.WithTimeout(ctx, a.opts.Deadline)
	defer cancel()

	jobs := make(chan connector.Connector, len(conns))
	results := make(chan connector.FetchResult, len(conns))

	var wg sync.WaitGroup
	for i := 0; i < a.opts.MaxWorkers && i < len(conns); i++ {
		wg.Add(1)
		go a.worker(collectCtx, &wg, scope, filter, jobs, results)
	}

	for _, conn := range conns {
		jobs <- conn
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	received := make(map[models.Source]connector.FetchResult, len(conns))
	deadlineHit := false

collect:
	for len(received) < len(conns) {
		select {
		case res, ok := <-results:
			if !ok {
				break collect
			}
			received[res.Source] = res
		case <-collectCtx.Done():
			deadlineHit = true
			a.logger.Warn("Assessment deadline reached before all sources reported",
				"reported", len(received), "configured", len(conns))
			break collect
		}
	}

	findings, health := a.assemble(conns, received)
	return findings, health, deadlineHit
}

// connectorsFor narrows the working set to the filter's source, when one is
// named. An unknown source yields an empty set rather than an error; the
// caller sees no findings and no health for it.
func (a *Aggregator) connectorsFor(filter models.FindingFilter) []connector.Connector {
	if filter.Source == "" {
		return a.connectors
	}
	var conns []connector.Connector
	for _, conn := range a.connectors {
		if conn.Source() == filter.Source {
			conns = append(conns, conn)
		}
	}
	return conns
}

// worker drains the job channel, fetching findings from connectors that
// support it and falling back to a status probe for the rest.
func (a *Aggregator) worker(ctx context.Context, wg *sync.WaitGroup, scope models.AccountScope, filter models.FindingFilter, jobs <-chan connector.Connector, results chan<- connector.FetchResult) {
	defer wg.Done()

	for conn := range jobs {
		a.logger.Debug("Querying source", "source", string(conn.Source()))

		var res connector.FetchResult
		if conn.Capabilities()&connector.CapabilityFindings != 0 {
			res = conn.Fetch(ctx, scope, filter)
		} else {
			res = connector.FetchResult{
				Source: conn.Source(),
				Health: conn.CheckStatus(ctx, scope),
			}
		}

		select {
		case results <- res:
		case <-ctx.Done():
			return
		}
	}
}

// assemble merges per-source results into deterministic output and
// synthesizes health for sources that never reported.
func (a *Aggregator) assemble(conns []connector.Connector, received map[models.Source]connector.FetchResult) ([]models.Finding, []models.SourceHealth) {
	findings := make([]models.Finding, 0)
	health := make([]models.SourceHealth, 0, len(conns))
	seen := make(map[models.FindingKey]struct{})

	for _, conn := range conns {
		res, ok := received[conn.Source()]
		if !ok {
			health = append(health, models.SourceHealth{
				Source:    conn.Source(),
				State:     models.SourceUnavailable,
				LastError: deadlineMessage,
			})
			continue
		}
		health = append(health, res.Health)
		for _, f := range res.Findings {
			if _, dup := seen[f.Key()]; dup {
				continue
			}
			seen[f.Key()] = struct{}{}
			findings = append(findings, f)
		}
	}

	models.SortFindings(findings)
	models.SortSourceHealth(health)
	return findings, health
}

// Assess produces a full posture assessment for the session, reusing a
// cached one when it is still within its retention window. A zero sessionID
// or force=true bypasses the cache.
func (a *Aggregator) Assess(ctx context.Context, sessionID string, scope models.AccountScope, force bool) (*models.PostureAssessment, error) {
	ctx, span := a.tracer.Start(ctx, "aggregate.assess")
	defer span.End()

	if cached := a.cachedAssessment(ctx, sessionID, scope, force); cached != nil {
		a.logger.Info("Reusing cached assessment", "session_id", sessionID, "assessment_id", cached.ID)
		return cached, nil
	}

	findings, health, deadlineHit := a.collect(ctx, scope, models.FindingFilter{})

	// Degraded sources still yield an assessment at reduced confidence; only
	// a deadline that left nothing usable is fatal.
	if deadlineHit && !anyUsable(health) {
		return nil, ErrDeadlineExceeded
	}

	result := a.scorer.Score(findings, health)

	// Collect's (source, id) order is the merge order; the assessment itself
	// presents findings worst first.
	models.SortFindingsForDisplay(findings)

	assessment := &models.PostureAssessment{
		ID:              a.newID(),
		GeneratedAt:     a.now().UTC(),
		OverallScore:    result.OverallScore,
		Confidence:      result.Confidence,
		PillarScores:    result.PillarScores,
		Findings:        findings,
		SourceHealth:    health,
		Recommendations: a.recommender.Recommend(findings, a.opts.RecommendLimit),
	}

	a.logger.Info("Assessment complete",
		"assessment_id", assessment.ID,
		"overall_score", assessment.OverallScore,
		"confidence", string(assessment.Confidence),
		"findings", len(findings))

	if a.store != nil && sessionID != "" {
		if err := a.store.Put(ctx, sessionID, scope, assessment, a.opts.CacheTTL); err != nil {
			// Caching is best effort; the assessment itself is sound.
			a.logger.Warn("Failed to cache assessment", "session_id", sessionID, "error", err)
		}
	}

	return assessment, nil
}

func (a *Aggregator) cachedAssessment(ctx context.Context, sessionID string, scope models.AccountScope, force bool) *models.PostureAssessment {
	if force || a.store == nil || sessionID == "" {
		return nil
	}
	sc, found, err := a.store.Get(ctx, sessionID)
	if err != nil {
		a.logger.Warn("Context store read failed", "session_id", sessionID, "error", err)
		return nil
	}
	if !found || sc.LastAssessment == nil || sc.Scope != scope {
		return nil
	}
	return sc.LastAssessment
}

func anyUsable(health []models.SourceHealth) bool {
	for _, h := range health {
		if h.Usable() {
			return true
		}
	}
	return false
}
