package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Project describes one deployable unit. Loaded once at startup and never
// mutated afterwards.
type Project struct {
	Name            string `json:"name"`
	Domain          string `json:"domain"`
	VercelProjectID string `json:"vercel_project_id"`
	RepoPath        string `json:"repo_path"`
	Port            int    `json:"port"`
}

// Worker describes a Cloudflare Worker deployment target.
type Worker struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	AccountID     string `json:"account_id"`
	KVNamespaceID string `json:"kv_namespace_id"`
}

// RenderService describes a service hosted on Render.
type RenderService struct {
	ServiceID string `json:"service_id"`
	URL       string `json:"url"`
	Branch    string `json:"branch"`
}

// HealthCheck is a statically configured probe target.
type HealthCheck struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Auth configures the admin gate.
type Auth struct {
	AdminSecret string `json:"-"`
	// AllowUnauthenticated lets callers that supply no credential through.
	// The stdio transport is assumed trusted, so this defaults to true.
	AllowUnauthenticated bool `json:"allow_unauthenticated"`
}

// Config holds runtime configuration for the orchestration tooling.
type Config struct {
	Environment        string          `json:"environment"`
	DashboardAddr      string          `json:"dashboard_addr"`
	BroadcastInterval  time.Duration   `json:"-"`
	ProbeTimeout       time.Duration   `json:"-"`
	RunTimeout         time.Duration   `json:"-"`
	RequiredEnv        []string        `json:"required_env"`
	Projects           []Project       `json:"projects"`
	Workers            []Worker        `json:"workers"`
	RenderServices     []RenderService `json:"render_services"`
	HealthChecks       []HealthCheck   `json:"health_checks"`
	GitHubRepo         string          `json:"github_repo"`
	GitHubBranch       string          `json:"github_branch"`
	SupabaseProjectRef string          `json:"supabase_project_ref"`
	Auth               Auth            `json:"auth"`
	RateLimitRedisAddr string          `json:"-"`
	RateLimitRedisPass string          `json:"-"`
	RateLimitRedisDB   int             `json:"-"`
}

// DefaultRequiredEnv lists the credentials every production deployment needs.
var DefaultRequiredEnv = []string{
	"CLOUDFLARE_API_TOKEN",
	"VERCEL_TOKEN",
	"GITHUB_TOKEN",
	"SUPABASE_URL",
	"SUPABASE_SERVICE_ROLE_KEY",
	"RENDER_API_KEY",
}

// Default returns the baseline configuration before file or env overrides.
func Default() Config {
	return Config{
		Environment:       "development",
		DashboardAddr:     ":4000",
		BroadcastInterval: 30 * time.Second,
		ProbeTimeout:      5 * time.Second,
		RunTimeout:        2 * time.Minute,
		RequiredEnv:       append([]string(nil), DefaultRequiredEnv...),
		GitHubBranch:      "main",
		Auth: Auth{
			AllowUnauthenticated: true,
		},
	}
}

// Load builds a Config from defaults, an optional JSON file, and environment
// overrides, in that precedence order. An empty path skips file loading.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	overrideFromEnv(&cfg)
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	cfg.Environment = GetString("APP_ENV", cfg.Environment)
	cfg.DashboardAddr = GetString("DASHBOARD_ADDR", cfg.DashboardAddr)
	cfg.BroadcastInterval = time.Duration(GetInt("BROADCAST_INTERVAL_SECONDS", int(cfg.BroadcastInterval/time.Second))) * time.Second
	cfg.ProbeTimeout = time.Duration(GetInt("PROBE_TIMEOUT_SECONDS", int(cfg.ProbeTimeout/time.Second))) * time.Second
	cfg.RunTimeout = time.Duration(GetInt("RUN_TIMEOUT_SECONDS", int(cfg.RunTimeout/time.Second))) * time.Second
	cfg.GitHubRepo = GetString("GITHUB_REPO", cfg.GitHubRepo)
	cfg.GitHubBranch = GetString("GITHUB_BRANCH", cfg.GitHubBranch)
	cfg.SupabaseProjectRef = GetString("SUPABASE_PROJECT_REF", cfg.SupabaseProjectRef)
	cfg.Auth.AdminSecret = GetString("ADMIN_SECRET", cfg.Auth.AdminSecret)
	cfg.Auth.AllowUnauthenticated = GetBool("AUTH_ALLOW_UNAUTHENTICATED", cfg.Auth.AllowUnauthenticated)
	cfg.RateLimitRedisAddr = GetString("RATE_LIMIT_REDIS_ADDR", cfg.RateLimitRedisAddr)
	cfg.RateLimitRedisPass = GetString("RATE_LIMIT_REDIS_PASSWORD", cfg.RateLimitRedisPass)
	cfg.RateLimitRedisDB = GetInt("RATE_LIMIT_REDIS_DB", cfg.RateLimitRedisDB)
	if extra := strings.TrimSpace(GetString("REQUIRED_ENV_KEYS", "")); extra != "" {
		keys := strings.Split(extra, ",")
		cfg.RequiredEnv = cfg.RequiredEnv[:0]
		for _, key := range keys {
			if trimmed := strings.TrimSpace(key); trimmed != "" {
				cfg.RequiredEnv = append(cfg.RequiredEnv, trimmed)
			}
		}
	}
}
