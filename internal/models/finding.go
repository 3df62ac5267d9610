// Package models contains the canonical data model for posture assessments.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Source identifies one external security data provider.
type Source string

// Configured sources.
const (
	SourceSecurityHub    Source = "securityhub"
	SourceGuardDuty      Source = "guardduty"
	SourceInspector      Source = "inspector"
	SourceAccessAnalyzer Source = "access-analyzer"
)

// AllSources returns every known source in canonical order.
func AllSources() []Source {
	return []Source{SourceAccessAnalyzer, SourceGuardDuty, SourceInspector, SourceSecurityHub}
}

// FindingStatus is the lifecycle state of a finding within its source.
type FindingStatus string

// Finding statuses.
const (
	StatusActive     FindingStatus = "ACTIVE"
	StatusResolved   FindingStatus = "RESOLVED"
	StatusSuppressed FindingStatus = "SUPPRESSED"
)

// ResourceRef points at the affected resource.
type ResourceRef struct {
	Service string `json:"service"`
	ID      string `json:"id"`
}

// Finding is a single normalized security issue reported by one source.
// (Source, ID) is unique within one assessment snapshot.
type Finding struct {
	DiscoveredAt time.Time     `json:"discovered_at"`
	ID           string        `json:"id"`
	Source       Source        `json:"source"`
	Severity     Severity      `json:"severity"`
	Pillar       Pillar        `json:"pillar"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Remediation  string        `json:"remediation,omitempty"`
	Status       FindingStatus `json:"status"`
	Resource     ResourceRef   `json:"resource"`
}

// FindingKey is the dedupe key for merged findings.
type FindingKey struct {
	Source Source
	ID     string
}

// Key returns the finding's dedupe key.
func (f Finding) Key() FindingKey {
	return FindingKey{Source: f.Source, ID: f.ID}
}

// Validate checks that a finding carries every required field.
func (f Finding) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("finding missing required field: id")
	}
	if f.Source == "" {
		return fmt.Errorf("finding missing required field: source")
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("finding %s has invalid severity %q", f.ID, f.Severity)
	}
	if f.Title == "" {
		return fmt.Errorf("finding %s missing required field: title", f.ID)
	}
	return nil
}

// GenerateFindingID builds a stable ID for sources whose records carry no
// usable identifier of their own, so repeated assessments dedupe the same
// underlying issue consistently.
func GenerateFindingID(source Source, findingType, resource string) string {
	core := fmt.Sprintf("%s:%s:%s", source, findingType, resource)
	hash := sha256.Sum256([]byte(core))
	return hex.EncodeToString(hash[:8])
}

// SortFindings orders findings by source then id. This is the merge order:
// deterministic regardless of connector completion order.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Source != findings[j].Source {
			return findings[i].Source < findings[j].Source
		}
		return findings[i].ID < findings[j].ID
	})
}

// SortFindingsForDisplay orders findings severity-descending, then
// recency-descending, then by source and id as a stable tiebreak.
func SortFindingsForDisplay(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() > findings[j].Severity.Rank()
		}
		if !findings[i].DiscoveredAt.Equal(findings[j].DiscoveredAt) {
			return findings[i].DiscoveredAt.After(findings[j].DiscoveredAt)
		}
		if findings[i].Source != findings[j].Source {
			return findings[i].Source < findings[j].Source
		}
		return findings[i].ID < findings[j].ID
	})
}
