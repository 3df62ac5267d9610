package models

import "time"

// Confidence qualifies a score: REDUCED means one or more contributing
// sources were unreachable when the score was computed.
type Confidence string

// Confidence levels.
const (
	ConfidenceFull    Confidence = "FULL"
	ConfidenceReduced Confidence = "REDUCED"
)

// SeverityCounts tallies findings per severity level.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add increments the counter for the given severity.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
}

// Total returns the number of counted findings.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// PillarScore is the deduction-based score for one pillar. LowerBound marks
// the score as optimistic: some relevant sources were unreachable, so the
// real score may be worse.
type PillarScore struct {
	Pillar     Pillar         `json:"pillar"`
	Score      int            `json:"score"`
	Confidence Confidence     `json:"confidence"`
	LowerBound bool           `json:"lower_bound"`
	Counts     SeverityCounts `json:"finding_counts"`
}

// Recommendation is one ranked remediation action. Priority is derived from
// the referenced findings, never set independently.
type Recommendation struct {
	Title              string   `json:"title"`
	Priority           int      `json:"priority"`
	AffectedFindingIDs []string `json:"affected_finding_ids"`
	Rationale          string   `json:"rationale"`
}

// PostureAssessment is the aggregate, scored, recommendation-bearing output
// of one engine invocation. It is immutable once constructed; a newer
// assessment supersedes, never patches, an older one.
type PostureAssessment struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	ID              string           `json:"id"`
	OverallScore    int              `json:"overall_score"`
	Confidence      Confidence       `json:"confidence"`
	PillarScores    []PillarScore    `json:"pillar_scores"`
	Findings        []Finding        `json:"findings"`
	SourceHealth    []SourceHealth   `json:"source_health"`
	Recommendations []Recommendation `json:"recommendations"`
}

// AccountScope constrains an assessment to one account and region.
type AccountScope struct {
	AccountID string `json:"account_id,omitempty"`
	Region    string `json:"region"`
}

// FindingFilter constrains which findings a fetch returns. MinSeverity is a
// floor: findings at or above it pass. A zero Limit means unlimited. A
// non-empty Source restricts collection to that single source.
type FindingFilter struct {
	MinSeverity Severity `json:"min_severity,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Source      Source   `json:"source,omitempty"`
}

// Matches reports whether a finding passes the filter's severity floor.
func (f FindingFilter) Matches(finding Finding) bool {
	if f.MinSeverity == "" {
		return true
	}
	return finding.Severity.Rank() >= f.MinSeverity.Rank()
}

// SessionContext is the cached conversational state for one session. The
// context store owns it; callers only ever receive copies.
type SessionContext struct {
	ExpiresAt      time.Time          `json:"expires_at"`
	SessionID      string             `json:"session_id"`
	Scope          AccountScope       `json:"scope"`
	LastAssessment *PostureAssessment `json:"last_assessment,omitempty"`
}

// Expired reports whether the context is past its retention window.
func (s SessionContext) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
