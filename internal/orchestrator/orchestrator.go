// Package orchestrator runs the fixed five-step infrastructure audit:
// environment variables, project configuration, DNS reachability, health
// checks, and deployment verification, then derives recommendations from the
// collected results.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/InnerAnimal/meaux-infra/internal/domain"
	"github.com/InnerAnimal/meaux-infra/internal/provider/vercel"
	"github.com/InnerAnimal/meaux-infra/pkg/config"
)

// Failure is an unexpected defect inside a step's own logic. Unlike a
// per-target network error it aborts the whole run.
type Failure struct {
	Step string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("orchestration failed in %s: %v", f.Step, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// DeploymentSource queries the hosting platform for deployment state.
type DeploymentSource interface {
	ListDeployments(ctx context.Context, in vercel.ListDeploymentsInput) ([]vercel.Deployment, error)
}

// Options selects the execution mode for one run.
type Options struct {
	// PlanOnly runs guarantee that only read operations are performed. The
	// audit steps are read-only by construction, so the flag is recorded in
	// the summary and binds any future remediation behavior.
	PlanOnly bool
}

// Orchestrator coordinates one audit run. It holds no state between runs;
// every Run starts a fresh summary.
type Orchestrator struct {
	cfg         config.Config
	httpClient  *http.Client
	deployments DeploymentSource
	logger      *slog.Logger
	lookupEnv   func(string) (string, bool)
	now         func() time.Time
}

// Option customises orchestrator construction.
type Option func(*Orchestrator)

// WithHTTPClient overrides the probe client.
func WithHTTPClient(h *http.Client) Option {
	return func(o *Orchestrator) {
		if h != nil {
			o.httpClient = h
		}
	}
}

// WithDeploymentSource supplies the hosting platform client used by the
// deployment verification step. Without one the step falls back to a domain
// probe.
func WithDeploymentSource(src DeploymentSource) Option {
	return func(o *Orchestrator) { o.deployments = src }
}

// WithEnvLookup overrides environment access, for tests.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.lookupEnv = fn
		}
	}
}

// WithClock overrides time access, for tests.
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.now = fn
		}
	}
}

// New constructs an orchestrator over the given configuration.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	o := &Orchestrator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: probeTimeout},
		logger:     logger,
		lookupEnv:  os.LookupEnv,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the five audit steps in order and derives recommendations.
// Per-target network failures are captured as error-status entries and never
// abort sibling targets or later steps; only an internal defect fails the
// run.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (summary *domain.Summary, err error) {
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	summary = &domain.Summary{
		StartTime: o.now().UTC(),
		PlanOnly:  opts.PlanOnly,
	}
	mode := "execute"
	if opts.PlanOnly {
		mode = "plan-only"
	}
	o.logf("orchestration started", "mode", mode)

	defer func() {
		if rec := recover(); rec != nil {
			err = &Failure{Step: "run", Err: fmt.Errorf("panic: %v", rec)}
		}
		summary.EndTime = o.now().UTC()
		if err != nil {
			summary.Status = domain.RunFailed
			summary.Error = err.Error()
			o.logErr("orchestration failed", "error", err)
			return
		}
		summary.Status = domain.RunCompleted
		summary.Recommendations = DeriveRecommendations(
			summary.EnvironmentVars,
			summary.ProjectAudit,
			summary.DNSVerification,
			summary.HealthChecks,
		)
		o.logf("orchestration completed", "recommendations", len(summary.Recommendations))
	}()

	summary.EnvironmentVars = o.CheckEnvironmentVars()
	summary.ProjectAudit = o.AuditProjects()
	summary.DNSVerification = o.VerifyDNS(ctx)
	summary.HealthChecks = o.RunHealthChecks(ctx)
	summary.DeploymentVerification = o.VerifyDeployments(ctx)
	return summary, nil
}

// CheckEnvironmentVars reports presence of every required configuration key.
// Pure local check, no network.
func (o *Orchestrator) CheckEnvironmentVars() []domain.EnvVarResult {
	results := make([]domain.EnvVarResult, 0, len(o.cfg.RequiredEnv))
	for _, key := range o.cfg.RequiredEnv {
		value, ok := o.lookupEnv(key)
		configured := ok && strings.TrimSpace(value) != ""
		results = append(results, domain.EnvVarResult{Key: key, Configured: configured})
		if !configured {
			o.logWarn("required env var missing", "key", key)
		}
	}
	return results
}

// AuditProjects flags configuration gaps per project.
func (o *Orchestrator) AuditProjects() []domain.ProjectAuditResult {
	results := make([]domain.ProjectAuditResult, 0, len(o.cfg.Projects))
	for _, project := range o.cfg.Projects {
		audit := domain.ProjectAuditResult{
			Name:            project.Name,
			Domain:          project.Domain,
			VercelProjectID: project.VercelProjectID,
			Issues:          []string{},
		}
		if project.VercelProjectID == "" {
			audit.Issues = append(audit.Issues, "No Vercel project ID configured")
		}
		if project.Domain == "" {
			audit.Issues = append(audit.Issues, "No domain configured")
		}
		audit.Status = domain.ProjectReady
		if len(audit.Issues) > 0 {
			audit.Status = domain.ProjectNeedsAttention
		}
		results = append(results, audit)
	}
	return results
}

// VerifyDNS probes each project domain with a HEAD request. Targets are
// checked independently; one failure never blocks the others.
func (o *Orchestrator) VerifyDNS(ctx context.Context) []domain.DNSResult {
	var targets []config.Project
	for _, project := range o.cfg.Projects {
		if project.Domain != "" {
			targets = append(targets, project)
		}
	}
	results := make([]domain.DNSResult, len(targets))
	var wg sync.WaitGroup
	for i, project := range targets {
		wg.Add(1)
		go func(i int, project config.Project) {
			defer wg.Done()
			status, err := o.probe(ctx, "https://"+project.Domain)
			result := domain.DNSResult{Domain: project.Domain}
			switch {
			case err != nil:
				result.Status = domain.DNSError
				result.Error = err.Error()
				o.logWarn("dns probe failed", "domain", project.Domain, "error", err)
			case status >= 200 && status < 300:
				result.Status = domain.DNSConfigured
				result.StatusCode = status
			default:
				result.Status = domain.DNSError
				result.StatusCode = status
			}
			results[i] = result
		}(i, project)
	}
	wg.Wait()
	return results
}

// RunHealthChecks issues a timed GET to every configured target.
func (o *Orchestrator) RunHealthChecks(ctx context.Context) []domain.HealthResult {
	results := make([]domain.HealthResult, len(o.cfg.HealthChecks))
	var wg sync.WaitGroup
	for i, check := range o.cfg.HealthChecks {
		wg.Add(1)
		go func(i int, check config.HealthCheck) {
			defer wg.Done()
			result := domain.HealthResult{Name: check.Name, URL: check.URL}
			start := o.now()
			status, err := o.timedGet(ctx, check.URL)
			elapsed := o.now().Sub(start).Milliseconds()
			switch {
			case err != nil:
				result.Status = domain.HealthCheckErr
				result.Error = err.Error()
				o.logWarn("health check failed", "name", check.Name, "error", err)
			case status >= 200 && status < 300:
				result.Status = domain.Healthy
				result.StatusCode = status
				result.ResponseTimeMS = elapsed
			default:
				result.Status = domain.Unhealthy
				result.StatusCode = status
				result.ResponseTimeMS = elapsed
			}
			results[i] = result
		}(i, check)
	}
	wg.Wait()
	return results
}

// VerifyDeployments confirms the latest deployment of each project with a
// hosting-project ID is live, asking the hosting platform's deployment API
// when a source is configured and falling back to a domain probe otherwise.
func (o *Orchestrator) VerifyDeployments(ctx context.Context) []domain.DeploymentResult {
	var targets []config.Project
	for _, project := range o.cfg.Projects {
		if project.VercelProjectID != "" {
			targets = append(targets, project)
		}
	}
	results := make([]domain.DeploymentResult, len(targets))
	var wg sync.WaitGroup
	for i, project := range targets {
		wg.Add(1)
		go func(i int, project config.Project) {
			defer wg.Done()
			results[i] = o.verifyDeployment(ctx, project)
		}(i, project)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) verifyDeployment(ctx context.Context, project config.Project) domain.DeploymentResult {
	result := domain.DeploymentResult{Project: project.Name, Domain: project.Domain}
	if o.deployments == nil {
		return o.verifyDeploymentByProbe(ctx, result, project)
	}
	deployments, err := o.deployments.ListDeployments(ctx, vercel.ListDeploymentsInput{
		ProjectID: project.VercelProjectID,
		Limit:     1,
	})
	if err != nil {
		result.Status = domain.DeploymentErr
		result.Error = err.Error()
		o.logWarn("deployment lookup failed", "project", project.Name, "error", err)
		return result
	}
	if len(deployments) == 0 {
		result.Status = domain.DeploymentErr
		result.Error = "no deployments found"
		return result
	}
	latest := deployments[0]
	result.DeploymentID = latest.UID
	result.State = latest.State
	if latest.State == "READY" {
		result.Status = domain.Deployed
	} else {
		result.Status = domain.DeploymentErr
		result.Error = fmt.Sprintf("latest deployment state is %s", latest.State)
	}
	return result
}

func (o *Orchestrator) verifyDeploymentByProbe(ctx context.Context, result domain.DeploymentResult, project config.Project) domain.DeploymentResult {
	result.Issues = []string{"hosting platform token not configured; verified via domain probe"}
	if project.Domain == "" {
		result.Status = domain.DeploymentErr
		result.Error = "no domain to probe and no hosting platform access"
		return result
	}
	status, err := o.probe(ctx, "https://"+project.Domain)
	switch {
	case err != nil:
		result.Status = domain.DeploymentErr
		result.Error = err.Error()
	case status >= 200 && status < 300:
		result.Status = domain.Deployed
		result.StatusCode = status
	default:
		result.Status = domain.DeploymentErr
		result.StatusCode = status
	}
	return result
}

func (o *Orchestrator) probe(ctx context.Context, target string) (int, error) {
	return o.request(ctx, http.MethodHead, target)
}

func (o *Orchestrator) timedGet(ctx context.Context, target string) (int, error) {
	return o.request(ctx, http.MethodGet, target)
}

func (o *Orchestrator) request(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (o *Orchestrator) logf(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) logWarn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}

func (o *Orchestrator) logErr(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Error(msg, args...)
	}
}
