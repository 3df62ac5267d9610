package models

// Pillar is one category of the assessment framework. The set is fixed at
// configuration time; findings whose category has no mapping land in
// PillarOther rather than being dropped.
type Pillar string

// Assessment pillars.
const (
	PillarIdentityAccess           Pillar = "identity-access"
	PillarDetectiveControls        Pillar = "detective-controls"
	PillarInfrastructureProtection Pillar = "infrastructure-protection"
	PillarDataProtection           Pillar = "data-protection"
	PillarIncidentResponse         Pillar = "incident-response"
	PillarOther                    Pillar = "other"
)

// ScoredPillars returns the pillars that contribute to the overall score,
// in their canonical order. PillarOther is reported but never scored.
func ScoredPillars() []Pillar {
	return []Pillar{
		PillarIdentityAccess,
		PillarDetectiveControls,
		PillarInfrastructureProtection,
		PillarDataProtection,
		PillarIncidentResponse,
	}
}

// DisplayName returns the human-readable pillar name.
func (p Pillar) DisplayName() string {
	switch p {
	case PillarIdentityAccess:
		return "Identity & Access Management"
	case PillarDetectiveControls:
		return "Detective Controls"
	case PillarInfrastructureProtection:
		return "Infrastructure Protection"
	case PillarDataProtection:
		return "Data Protection"
	case PillarIncidentResponse:
		return "Incident Response"
	default:
		return "Other"
	}
}
