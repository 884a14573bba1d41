package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.DashboardAddr != ":4000" {
		t.Errorf("dashboard addr = %s", cfg.DashboardAddr)
	}
	if cfg.BroadcastInterval != 30*time.Second {
		t.Errorf("broadcast interval = %v", cfg.BroadcastInterval)
	}
	if cfg.RunTimeout != 2*time.Minute {
		t.Errorf("run timeout = %v", cfg.RunTimeout)
	}
	if !cfg.Auth.AllowUnauthenticated {
		t.Error("local transport should be trusted by default")
	}
	if len(cfg.RequiredEnv) != len(DefaultRequiredEnv) {
		t.Errorf("required env = %v", cfg.RequiredEnv)
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"environment": "staging",
		"dashboard_addr": ":5000",
		"projects": [{"name": "site", "domain": "example.com", "vercel_project_id": "prj_1"}],
		"health_checks": [{"name": "api", "url": "https://api.example.com/health"}]
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DASHBOARD_ADDR", ":6000")
	t.Setenv("ADMIN_SECRET", "hunter2")
	t.Setenv("AUTH_ALLOW_UNAUTHENTICATED", "false")
	t.Setenv("BROADCAST_INTERVAL_SECONDS", "10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Errorf("environment = %s", cfg.Environment)
	}
	// Env wins over the file.
	if cfg.DashboardAddr != ":6000" {
		t.Errorf("dashboard addr = %s", cfg.DashboardAddr)
	}
	if cfg.Auth.AdminSecret != "hunter2" || cfg.Auth.AllowUnauthenticated {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.BroadcastInterval != 10*time.Second {
		t.Errorf("broadcast interval = %v", cfg.BroadcastInterval)
	}
	if len(cfg.Projects) != 1 || cfg.Projects[0].VercelProjectID != "prj_1" {
		t.Errorf("projects = %+v", cfg.Projects)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestRequiredEnvKeysOverride(t *testing.T) {
	t.Setenv("REQUIRED_ENV_KEYS", "ONE, TWO ,THREE")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := []string{"ONE", "TWO", "THREE"}
	if len(cfg.RequiredEnv) != len(want) {
		t.Fatalf("required env = %v", cfg.RequiredEnv)
	}
	for i := range want {
		if cfg.RequiredEnv[i] != want[i] {
			t.Errorf("required env[%d] = %s, want %s", i, cfg.RequiredEnv[i], want[i])
		}
	}
}

func TestAdminSecretNeverSerializes(t *testing.T) {
	cfg := Default()
	cfg.Auth.AdminSecret = "topsecret"
	// Auth marshals for the dashboard config endpoint; the secret must not
	// ride along.
	data, err := json.Marshal(cfg.Auth)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "topsecret") {
		t.Errorf("secret leaked into JSON: %s", data)
	}
}
