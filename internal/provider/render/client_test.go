package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/InnerAnimal/meaux-infra/internal/provider"
)

func testClient(srv *httptest.Server) *Client {
	return New(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithToken(provider.StaticToken("test-key")),
	)
}

func TestListServicesUnwrapsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"service": Service{ID: "srv_1", Name: "api", Type: "web_service"}},
			{"service": Service{ID: "srv_2", Name: "worker", Type: "background_worker"}},
		})
	}))
	defer srv.Close()

	services, err := testClient(srv).ListServices(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(services) != 2 || services[0].ID != "srv_1" || services[1].Name != "worker" {
		t.Errorf("services = %+v", services)
	}
}

func TestTriggerDeployPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/services/srv_1/deploys" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Deploy{ID: "dep_1", Status: "build_in_progress"})
	}))
	defer srv.Close()

	deploy, err := testClient(srv).TriggerDeploy(context.Background(), TriggerDeployInput{ServiceID: "srv_1"})
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if deploy.ID != "dep_1" {
		t.Errorf("deploy = %+v", deploy)
	}
}

func TestSetEnvSendsReplacementList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		var payload []EnvVar
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if len(payload) != 1 || payload[0].Key != "PORT" {
			t.Errorf("payload = %+v", payload)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"envVar": EnvVar{Key: "PORT", Value: "8080"}},
		})
	}))
	defer srv.Close()

	vars, err := testClient(srv).SetEnv(context.Background(), SetEnvInput{
		ServiceID: "srv_1", Key: "PORT", Value: "8080",
	})
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if len(vars) != 1 || vars[0].Value != "8080" {
		t.Errorf("vars = %+v", vars)
	}
}

func TestAPIFailureBecomesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"unauthorized"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).ListServices(context.Background())
	var provErr *provider.Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want provider error", err)
	}
	if provErr.Provider != "render" || provErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("provErr = %+v", provErr)
	}
}

func TestMissingKeyIsConfigError(t *testing.T) {
	c := New(WithToken(provider.StaticToken("")))
	_, err := c.ListServices(context.Background())
	var cfgErr *provider.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want config error", err)
	}
	if cfgErr.Key != "RENDER_API_KEY" {
		t.Errorf("key = %s", cfgErr.Key)
	}
}
