package orchestrator

import (
	"fmt"
	"strings"

	"github.com/InnerAnimal/meaux-infra/internal/domain"
)

// DeriveRecommendations maps collected audit results to advice. It reads only
// its arguments and touches nothing external, so the same inputs always yield
// the same recommendations.
func DeriveRecommendations(
	envVars []domain.EnvVarResult,
	audits []domain.ProjectAuditResult,
	dns []domain.DNSResult,
	health []domain.HealthResult,
) []domain.Recommendation {
	recs := []domain.Recommendation{}

	var missingKeys []string
	for _, v := range envVars {
		if !v.Configured {
			missingKeys = append(missingKeys, v.Key)
		}
	}
	if len(missingKeys) > 0 {
		recs = append(recs, domain.Recommendation{
			Category: domain.CategoryEnvironment,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("Configure missing environment variables: %s", strings.Join(missingKeys, ", ")),
			Targets:  missingKeys,
		})
	}

	for _, audit := range audits {
		if audit.Status != domain.ProjectNeedsAttention {
			continue
		}
		recs = append(recs, domain.Recommendation{
			Category: domain.CategoryProjectConfig,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("%s: %s", audit.Name, strings.Join(audit.Issues, "; ")),
			Targets:  []string{audit.Name},
		})
	}

	var unhealthy []string
	for _, h := range health {
		if h.Status != domain.Healthy {
			unhealthy = append(unhealthy, h.Name)
		}
	}
	if len(unhealthy) > 0 {
		recs = append(recs, domain.Recommendation{
			Category: domain.CategoryHealth,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("Investigate failing health checks: %s", strings.Join(unhealthy, ", ")),
			Targets:  unhealthy,
		})
	}

	var badDomains []string
	for _, d := range dns {
		if d.Status != domain.DNSConfigured {
			badDomains = append(badDomains, d.Domain)
		}
	}
	if len(badDomains) > 0 {
		recs = append(recs, domain.Recommendation{
			Category: domain.CategoryDNS,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("Fix DNS or TLS for: %s", strings.Join(badDomains, ", ")),
			Targets:  badDomains,
		})
	}

	return recs
}
