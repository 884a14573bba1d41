package domain

import "time"

// Statuses are scoped per audit step; a result only ever carries a value from
// its own step's set.
type (
	// ProjectAuditStatus classifies project configuration completeness.
	ProjectAuditStatus string
	// DNSStatus classifies a domain reachability probe.
	DNSStatus string
	// HealthStatus classifies a timed health-check request.
	HealthStatus string
	// DeploymentStatus classifies the latest deployment of a project.
	DeploymentStatus string
	// RunStatus is the overall outcome of one orchestration run.
	RunStatus string
)

const (
	ProjectReady          ProjectAuditStatus = "ready"
	ProjectNeedsAttention ProjectAuditStatus = "needs_attention"

	DNSConfigured DNSStatus = "configured"
	DNSError      DNSStatus = "error"

	Healthy        HealthStatus = "healthy"
	Unhealthy      HealthStatus = "unhealthy"
	HealthCheckErr HealthStatus = "error"

	Deployed      DeploymentStatus = "deployed"
	DeploymentErr DeploymentStatus = "error"

	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// EnvVarResult reports whether one required configuration key is present.
type EnvVarResult struct {
	Key        string `json:"key"`
	Configured bool   `json:"configured"`
}

// ProjectAuditResult flags configuration gaps for one project.
type ProjectAuditResult struct {
	Name            string             `json:"name"`
	Domain          string             `json:"domain,omitempty"`
	VercelProjectID string             `json:"vercelProjectId,omitempty"`
	Status          ProjectAuditStatus `json:"status"`
	Issues          []string           `json:"issues"`
}

// DNSResult records the outcome of probing one project domain.
type DNSResult struct {
	Domain     string    `json:"domain"`
	Status     DNSStatus `json:"status"`
	StatusCode int       `json:"statusCode,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// HealthResult records one timed health-check request.
type HealthResult struct {
	Name           string       `json:"name"`
	URL            string       `json:"url"`
	Status         HealthStatus `json:"status"`
	StatusCode     int          `json:"statusCode,omitempty"`
	ResponseTimeMS int64        `json:"responseTime,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// DeploymentResult records whether a project's latest deployment is live.
type DeploymentResult struct {
	Project      string           `json:"project"`
	Domain       string           `json:"domain,omitempty"`
	Status       DeploymentStatus `json:"status"`
	DeploymentID string           `json:"deploymentId,omitempty"`
	State        string           `json:"state,omitempty"`
	StatusCode   int              `json:"statusCode,omitempty"`
	Issues       []string         `json:"issues,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// Recommendation categories.
const (
	CategoryEnvironment   = "environment"
	CategoryProjectConfig = "project_config"
	CategoryHealth        = "health"
	CategoryDNS           = "dns"
)

// Recommendation severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Recommendation is advisory output derived purely from audit results. It
// never triggers an action by itself.
type Recommendation struct {
	Category string   `json:"category"`
	Severity string   `json:"severity"`
	Message  string   `json:"message"`
	Targets  []string `json:"targets"`
}

// Summary aggregates one orchestration run. Built once per run and immutable
// after construction; it is a value with no identity beyond its timestamps.
type Summary struct {
	StartTime              time.Time            `json:"startTime"`
	EndTime                time.Time            `json:"endTime"`
	PlanOnly               bool                 `json:"planOnly"`
	EnvironmentVars        []EnvVarResult       `json:"environmentVars"`
	ProjectAudit           []ProjectAuditResult `json:"projectAudit"`
	DNSVerification        []DNSResult          `json:"dnsVerification"`
	HealthChecks           []HealthResult       `json:"healthChecks"`
	DeploymentVerification []DeploymentResult   `json:"deploymentVerification"`
	Recommendations        []Recommendation     `json:"recommendations"`
	Status                 RunStatus            `json:"status"`
	Error                  string               `json:"error,omitempty"`
}

// HasHardErrors reports whether the run found failures that should fail a
// CI health check. Warnings and recommendations alone do not count.
func (s *Summary) HasHardErrors() bool {
	if s == nil {
		return true
	}
	if s.Status == RunFailed {
		return true
	}
	for _, h := range s.HealthChecks {
		if h.Status == HealthCheckErr {
			return true
		}
	}
	for _, d := range s.DeploymentVerification {
		if d.Status == DeploymentErr {
			return true
		}
	}
	return false
}
