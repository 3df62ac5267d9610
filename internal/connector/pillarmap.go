package connector

import (
	"strings"

	"github.com/parapet-sh/parapet/internal/models"
)

// pillarRule maps a category keyword to a pillar. Each source carries its own
// fixed, ordered rule table; the first matching rule wins and categories with
// no match land in PillarOther rather than being dropped.
type pillarRule struct {
	keyword string
	pillar  models.Pillar
}

func pillarFromText(rules []pillarRule, texts ...string) models.Pillar {
	haystack := strings.ToLower(strings.Join(texts, " "))
	for _, rule := range rules {
		if strings.Contains(haystack, rule.keyword) {
			return rule.pillar
		}
	}
	return models.PillarOther
}

// securityHubPillarRules maps ASFF finding types and generator IDs.
var securityHubPillarRules = []pillarRule{
	{"iam", models.PillarIdentityAccess},
	{"credential", models.PillarIdentityAccess},
	{"mfa", models.PillarIdentityAccess},
	{"root account", models.PillarIdentityAccess},
	{"password", models.PillarIdentityAccess},
	{"access key", models.PillarIdentityAccess},
	{"cloudtrail", models.PillarDetectiveControls},
	{"logging", models.PillarDetectiveControls},
	{"monitor", models.PillarDetectiveControls},
	{"guardduty", models.PillarDetectiveControls},
	{"config", models.PillarDetectiveControls},
	{"encrypt", models.PillarDataProtection},
	{"kms", models.PillarDataProtection},
	{"secret", models.PillarDataProtection},
	{"s3", models.PillarDataProtection},
	{"rds", models.PillarDataProtection},
	{"security group", models.PillarInfrastructureProtection},
	{"ingress", models.PillarInfrastructureProtection},
	{"network", models.PillarInfrastructureProtection},
	{"port", models.PillarInfrastructureProtection},
	{"ssh", models.PillarInfrastructureProtection},
	{"ec2", models.PillarInfrastructureProtection},
	{"vpc", models.PillarInfrastructureProtection},
	{"backup", models.PillarIncidentResponse},
	{"snapshot", models.PillarIncidentResponse},
	{"incident", models.PillarIncidentResponse},
}

// guardDutyPillarRules maps GuardDuty threat-purpose prefixes.
var guardDutyPillarRules = []pillarRule{
	{"unauthorizedaccess:iamuser", models.PillarIdentityAccess},
	{"credentialaccess", models.PillarIdentityAccess},
	{"privilegeescalation", models.PillarIdentityAccess},
	{"policy:iamuser", models.PillarIdentityAccess},
	{"initialaccess", models.PillarIdentityAccess},
	{"stealth", models.PillarDetectiveControls},
	{"defenseevasion", models.PillarDetectiveControls},
	{"discovery", models.PillarDetectiveControls},
	{"exfiltration", models.PillarDataProtection},
	{"recon", models.PillarInfrastructureProtection},
	{"backdoor", models.PillarInfrastructureProtection},
	{"trojan", models.PillarInfrastructureProtection},
	{"cryptocurrency", models.PillarInfrastructureProtection},
	{"unauthorizedaccess", models.PillarInfrastructureProtection},
	{"impact", models.PillarInfrastructureProtection},
	{"execution", models.PillarInfrastructureProtection},
	{"persistence", models.PillarInfrastructureProtection},
}

// inspectorPillarRules maps Inspector finding types.
var inspectorPillarRules = []pillarRule{
	{"network_reachability", models.PillarInfrastructureProtection},
	{"package_vulnerability", models.PillarInfrastructureProtection},
	{"code_vulnerability", models.PillarInfrastructureProtection},
}
