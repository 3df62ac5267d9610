// Package recommend derives ranked remediation actions from scored findings.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/pkg/logger"
)

// DefaultLimit caps the recommendation list when the caller supplies none.
const DefaultLimit = 5

// Recommender groups findings by remediation class and ranks the groups.
type Recommender struct {
	logger logger.Logger
}

// NewRecommender creates a recommender.
func NewRecommender(log logger.Logger) *Recommender {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Recommender{logger: log}
}

type group struct {
	key      groupKey
	findings []models.Finding
	worst    models.Severity
}

type groupKey struct {
	pillar models.Pillar
	class  string
}

// Recommend derives at most limit recommendations. Every recommendation
// references concrete finding IDs; none is generated from aggregate scores
// alone, so an empty snapshot yields an empty list.
func (r *Recommender) Recommend(findings []models.Finding, limit int) []models.Recommendation {
	if limit <= 0 {
		limit = DefaultLimit
	}

	groups := make(map[groupKey]*group)
	for _, f := range findings {
		if f.Status != models.StatusActive {
			continue
		}
		key := groupKey{pillar: f.Pillar, class: remediationClass(f)}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, worst: f.Severity}
			groups[key] = g
		}
		g.findings = append(g.findings, f)
		if f.Severity.Rank() > g.worst.Rank() {
			g.worst = f.Severity
		}
	}

	ranked := make([]*group, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].worst.Rank() != ranked[j].worst.Rank() {
			return ranked[i].worst.Rank() > ranked[j].worst.Rank()
		}
		if len(ranked[i].findings) != len(ranked[j].findings) {
			return len(ranked[i].findings) > len(ranked[j].findings)
		}
		if ranked[i].key.pillar != ranked[j].key.pillar {
			return ranked[i].key.pillar < ranked[j].key.pillar
		}
		return ranked[i].key.class < ranked[j].key.class
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	recommendations := make([]models.Recommendation, 0, len(ranked))
	for i, g := range ranked {
		ids := make([]string, 0, len(g.findings))
		for _, f := range g.findings {
			ids = append(ids, f.ID)
		}
		sort.Strings(ids)

		recommendations = append(recommendations, models.Recommendation{
			Title:              classTitle(g.key.class),
			Priority:           i + 1,
			AffectedFindingIDs: ids,
			Rationale: fmt.Sprintf("%d %s finding(s) in %s, worst severity %s",
				len(g.findings), g.key.class, g.key.pillar.DisplayName(), g.worst),
		})
	}

	r.logger.Debug("derived recommendations", "groups", len(groups), "returned", len(recommendations))
	return recommendations
}

// remediationClass buckets a finding by the action that fixes it, keyed off
// source plus finding text.
func remediationClass(f models.Finding) string {
	text := strings.ToLower(f.Title + " " + f.Description)

	switch f.Source {
	case models.SourceAccessAnalyzer:
		return "restrict-external-access"
	case models.SourceInspector:
		return "patch-vulnerabilities"
	case models.SourceGuardDuty:
		if strings.Contains(text, "credential") || strings.Contains(text, "iam") {
			return "rotate-credentials"
		}
		return "investigate-threat"
	}

	// Security Hub and any future aggregated source.
	switch {
	case strings.Contains(text, "public"):
		return "restrict-public-access"
	case strings.Contains(text, "encrypt"):
		return "enable-encryption"
	case strings.Contains(text, "mfa"):
		return "enforce-mfa"
	case strings.Contains(text, "logging"), strings.Contains(text, "cloudtrail"):
		return "enable-logging"
	case strings.Contains(text, "backup"), strings.Contains(text, "snapshot"):
		return "enable-backups"
	default:
		return "harden-configuration"
	}
}

func classTitle(class string) string {
	words := strings.Split(class, "-")
	for i, w := range words {
		if w == "mfa" {
			words[i] = "MFA"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
