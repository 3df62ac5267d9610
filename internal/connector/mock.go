package connector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/parapet-sh/parapet/internal/models"
)

// MockConnector is a scripted connector for tests. It records how often it
// was invoked so tests can assert connectors were (or were not) touched.
type MockConnector struct {
	// Delay is slept (context-aware) before answering, to simulate a slow
	// source. A mock with Block set never answers until the context ends.
	Delay time.Duration
	Block bool

	SourceName models.Source
	Findings   []models.Finding
	Health     models.SourceHealth
	Caps       Capability

	FetchCalls  atomic.Int32
	StatusCalls atomic.Int32
}

// NewMockConnector creates a healthy mock for the given source.
func NewMockConnector(source models.Source, findings ...models.Finding) *MockConnector {
	return &MockConnector{
		SourceName: source,
		Findings:   findings,
		Health:     models.SourceHealth{Source: source, State: models.SourceOK},
		Caps:       CapabilityStatus | CapabilityFindings,
	}
}

// Source returns the mock's source identifier.
func (m *MockConnector) Source() models.Source { return m.SourceName }

// Capabilities returns the scripted capability set.
func (m *MockConnector) Capabilities() Capability { return m.Caps }

// CheckStatus returns the scripted health.
func (m *MockConnector) CheckStatus(ctx context.Context, _ models.AccountScope) models.SourceHealth {
	m.StatusCalls.Add(1)
	if !m.wait(ctx) {
		return models.SourceHealth{
			Source:    m.SourceName,
			State:     models.SourceUnavailable,
			LastError: string(FailureTimeout) + ": " + ctx.Err().Error(),
		}
	}
	return m.Health
}

// Fetch returns the scripted findings and health, honoring the severity
// floor so mocks behave like real connectors under filtering.
func (m *MockConnector) Fetch(ctx context.Context, _ models.AccountScope, filter models.FindingFilter) FetchResult {
	m.FetchCalls.Add(1)
	if !m.wait(ctx) {
		return FetchResult{
			Source: m.SourceName,
			Health: models.SourceHealth{
				Source:    m.SourceName,
				State:     models.SourceDegraded,
				LastError: string(FailureTimeout) + ": " + ctx.Err().Error(),
			},
		}
	}

	if !m.Health.Usable() {
		return FetchResult{Source: m.SourceName, Health: m.Health}
	}

	var findings []models.Finding
	for _, f := range m.Findings {
		if filter.Matches(f) {
			findings = append(findings, f)
		}
	}
	if filter.Limit > 0 && len(findings) > filter.Limit {
		findings = findings[:filter.Limit]
	}
	return FetchResult{Source: m.SourceName, Findings: findings, Health: m.Health}
}

func (m *MockConnector) wait(ctx context.Context) bool {
	if m.Block {
		<-ctx.Done()
		return false
	}
	if m.Delay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(m.Delay):
		return true
	case <-ctx.Done():
		return false
	}
}
