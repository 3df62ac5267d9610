package models

import (
	"sort"
	"time"
)

// SourceState describes how a source behaved during one connector invocation.
type SourceState string

// Source states.
const (
	SourceOK          SourceState = "OK"
	SourceDegraded    SourceState = "DEGRADED"
	SourceUnavailable SourceState = "UNAVAILABLE"
	SourceNotEnabled  SourceState = "NOT_ENABLED"
)

// SourceHealth is produced exactly once per connector invocation, success or
// failure. It is how downstream stages detect degraded coverage.
type SourceHealth struct {
	Source    Source        `json:"source"`
	State     SourceState   `json:"state"`
	LastError string        `json:"last_error,omitempty"`
	Latency   time.Duration `json:"latency"`
}

// Usable reports whether the source contributed findings this invocation.
func (h SourceHealth) Usable() bool {
	return h.State == SourceOK || h.State == SourceDegraded
}

// SortSourceHealth orders health entries by source identifier.
func SortSourceHealth(health []SourceHealth) {
	sort.Slice(health, func(i, j int) bool {
		return health[i].Source < health[j].Source
	})
}
