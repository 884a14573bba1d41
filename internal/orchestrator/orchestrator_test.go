package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/InnerAnimal/meaux-infra/internal/domain"
	"github.com/InnerAnimal/meaux-infra/internal/provider/vercel"
	"github.com/InnerAnimal/meaux-infra/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubDeployments struct {
	deployments []vercel.Deployment
	err         error
	calls       atomic.Int64
}

func (s *stubDeployments) ListDeployments(ctx context.Context, in vercel.ListDeploymentsInput) ([]vercel.Deployment, error) {
	s.calls.Add(1)
	return s.deployments, s.err
}

func hostOf(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return srv.Listener.Addr().String()
}

func TestCheckEnvironmentVars(t *testing.T) {
	cfg := config.Default()
	cfg.RequiredEnv = []string{"SET_KEY", "EMPTY_KEY", "MISSING_KEY"}
	env := map[string]string{"SET_KEY": "value", "EMPTY_KEY": "  "}
	o := New(cfg, testLogger(), WithEnvLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}))

	results := o.CheckEnvironmentVars()
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := map[string]bool{"SET_KEY": true, "EMPTY_KEY": false, "MISSING_KEY": false}
	for _, r := range results {
		if r.Configured != want[r.Key] {
			t.Errorf("%s: configured = %v, want %v", r.Key, r.Configured, want[r.Key])
		}
	}
}

func TestAuditProjectsFlagsGaps(t *testing.T) {
	cfg := config.Default()
	cfg.Projects = []config.Project{
		{Name: "complete", Domain: "example.com", VercelProjectID: "prj_1"},
		{Name: "no-id", Domain: "other.com"},
		{Name: "bare"},
	}
	o := New(cfg, testLogger())

	results := o.AuditProjects()
	if results[0].Status != domain.ProjectReady {
		t.Errorf("complete project status = %s", results[0].Status)
	}
	if results[1].Status != domain.ProjectNeedsAttention || len(results[1].Issues) != 1 {
		t.Errorf("no-id project: status %s issues %v", results[1].Status, results[1].Issues)
	}
	if len(results[2].Issues) != 2 {
		t.Errorf("bare project issues = %v, want 2 entries", results[2].Issues)
	}
}

func TestRunHealthChecksMixedTargets(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	cfg := config.Default()
	cfg.HealthChecks = []config.HealthCheck{
		{Name: "healthy", URL: healthy.URL},
		{Name: "failing", URL: failing.URL},
		{Name: "unreachable", URL: "http://127.0.0.1:1/health"},
	}
	o := New(cfg, testLogger(), WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))

	results := o.RunHealthChecks(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	byName := map[string]domain.HealthResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if byName["healthy"].Status != domain.Healthy || byName["healthy"].StatusCode != 200 {
		t.Errorf("healthy target: %+v", byName["healthy"])
	}
	if byName["failing"].Status != domain.Unhealthy || byName["failing"].StatusCode != 503 {
		t.Errorf("failing target: %+v", byName["failing"])
	}
	if byName["unreachable"].Status != domain.HealthCheckErr || byName["unreachable"].Error == "" {
		t.Errorf("unreachable target: %+v", byName["unreachable"])
	}
}

func TestVerifyDeploymentsViaPlatform(t *testing.T) {
	cfg := config.Default()
	cfg.Projects = []config.Project{
		{Name: "app", Domain: "example.com", VercelProjectID: "prj_1"},
		{Name: "skipped", Domain: "other.com"},
	}
	src := &stubDeployments{deployments: []vercel.Deployment{{UID: "dpl_1", State: "READY"}}}
	o := New(cfg, testLogger(), WithDeploymentSource(src))

	results := o.VerifyDeployments(context.Background())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != domain.Deployed || results[0].DeploymentID != "dpl_1" {
		t.Errorf("result = %+v", results[0])
	}
	if src.calls.Load() != 1 {
		t.Errorf("platform queried %d times, want 1", src.calls.Load())
	}
}

func TestVerifyDeploymentsNonReadyState(t *testing.T) {
	cfg := config.Default()
	cfg.Projects = []config.Project{{Name: "app", VercelProjectID: "prj_1"}}
	src := &stubDeployments{deployments: []vercel.Deployment{{UID: "dpl_2", State: "ERROR"}}}
	o := New(cfg, testLogger(), WithDeploymentSource(src))

	results := o.VerifyDeployments(context.Background())
	if results[0].Status != domain.DeploymentErr {
		t.Errorf("status = %s, want error", results[0].Status)
	}
	if results[0].State != "ERROR" {
		t.Errorf("state = %q", results[0].State)
	}
}

func TestVerifyDeploymentsFallsBackToProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Projects = []config.Project{{Name: "app", Domain: hostOf(t, srv), VercelProjectID: "prj_1"}}
	client := srv.Client()
	o := New(cfg, testLogger(), WithHTTPClient(client))

	// Probing https against the plain-http test server fails, which is
	// fine: the test asserts the fallback path is taken and annotated.
	results := o.VerifyDeployments(context.Background())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].Issues) == 0 {
		t.Error("expected a fallback annotation in issues")
	}
}

func TestRunIsolatesTargetFailures(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	cfg := config.Default()
	cfg.HealthChecks = []config.HealthCheck{
		{Name: "dead", URL: "http://127.0.0.1:1/health"},
		{Name: "alive", URL: healthy.URL},
	}
	o := New(cfg, testLogger(), WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))

	summary, err := o.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Status != domain.RunCompleted {
		t.Fatalf("status = %s, want completed", summary.Status)
	}
	var sawError, sawHealthy bool
	for _, h := range summary.HealthChecks {
		switch h.Status {
		case domain.HealthCheckErr:
			sawError = true
		case domain.Healthy:
			sawHealthy = true
		}
	}
	if !sawError || !sawHealthy {
		t.Errorf("expected one error and one healthy result, got %+v", summary.HealthChecks)
	}
}

func TestRunPlanOnlyPerformsNoMutations(t *testing.T) {
	var mutating atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			mutating.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.HealthChecks = []config.HealthCheck{{Name: "svc", URL: srv.URL}}
	o := New(cfg, testLogger(), WithHTTPClient(srv.Client()))

	summary, err := o.Run(context.Background(), Options{PlanOnly: true})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !summary.PlanOnly {
		t.Error("summary should record plan-only mode")
	}
	if mutating.Load() != 0 {
		t.Errorf("observed %d non-read requests during plan-only run", mutating.Load())
	}
}

func TestRunRecordsTimestamps(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	o := New(config.Default(), testLogger(), WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))

	summary, err := o.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !summary.EndTime.After(summary.StartTime) {
		t.Errorf("end %v not after start %v", summary.EndTime, summary.StartTime)
	}
}

func TestDeriveRecommendationsIsPure(t *testing.T) {
	envVars := []domain.EnvVarResult{
		{Key: "VERCEL_TOKEN", Configured: false},
		{Key: "GITHUB_TOKEN", Configured: true},
	}
	audits := []domain.ProjectAuditResult{
		{Name: "app", Status: domain.ProjectNeedsAttention, Issues: []string{"No domain configured"}},
		{Name: "ok", Status: domain.ProjectReady},
	}
	dns := []domain.DNSResult{
		{Domain: "broken.com", Status: domain.DNSError},
		{Domain: "fine.com", Status: domain.DNSConfigured},
	}
	health := []domain.HealthResult{
		{Name: "api", Status: domain.Unhealthy},
		{Name: "web", Status: domain.Healthy},
	}

	first := DeriveRecommendations(envVars, audits, dns, health)
	second := DeriveRecommendations(envVars, audits, dns, health)
	if len(first) != 4 {
		t.Fatalf("expected 4 recommendations, got %d: %+v", len(first), first)
	}
	if len(second) != len(first) {
		t.Fatalf("repeated derivation differs: %d vs %d", len(second), len(first))
	}

	byCategory := map[string]domain.Recommendation{}
	for _, r := range first {
		byCategory[r.Category] = r
	}
	if env := byCategory[domain.CategoryEnvironment]; env.Severity != domain.SeverityCritical || len(env.Targets) != 1 {
		t.Errorf("environment rec = %+v", env)
	}
	if proj := byCategory[domain.CategoryProjectConfig]; proj.Targets[0] != "app" {
		t.Errorf("project rec = %+v", proj)
	}
	if h := byCategory[domain.CategoryHealth]; h.Targets[0] != "api" {
		t.Errorf("health rec = %+v", h)
	}
	if d := byCategory[domain.CategoryDNS]; d.Targets[0] != "broken.com" {
		t.Errorf("dns rec = %+v", d)
	}
}

func TestDeriveRecommendationsEmptyWhenClean(t *testing.T) {
	recs := DeriveRecommendations(
		[]domain.EnvVarResult{{Key: "VERCEL_TOKEN", Configured: true}},
		[]domain.ProjectAuditResult{{Name: "app", Status: domain.ProjectReady}},
		[]domain.DNSResult{{Domain: "fine.com", Status: domain.DNSConfigured}},
		[]domain.HealthResult{{Name: "api", Status: domain.Healthy}},
	)
	if len(recs) != 0 {
		t.Errorf("expected no recommendations, got %+v", recs)
	}
}

func TestRunRespectsDeadline(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	cfg := config.Default()
	cfg.RunTimeout = 100 * time.Millisecond
	cfg.HealthChecks = []config.HealthCheck{{Name: "slow", URL: slow.URL}}
	o := New(cfg, testLogger(), WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))

	start := time.Now()
	summary, err := o.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("run took %v despite deadline", elapsed)
	}
	if summary.HealthChecks[0].Status != domain.HealthCheckErr {
		t.Errorf("slow check status = %s, want error", summary.HealthChecks[0].Status)
	}
}
