package auth

import (
	"errors"
	"testing"

	"github.com/InnerAnimal/meaux-infra/pkg/config"
)

func TestRequireAdminWithoutSecretConfigured(t *testing.T) {
	gate := NewGate(config.Auth{AllowUnauthenticated: true})

	err := gate.RequireAdmin("anything")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	var authErr *Error
	if errors.As(err, &authErr) {
		t.Fatalf("missing secret must not surface as an auth rejection: %v", err)
	}
}

func TestRequireAdminRejectsWrongSecret(t *testing.T) {
	gate := NewGate(config.Auth{AdminSecret: "s3cret", AllowUnauthenticated: true})

	err := gate.RequireAdmin("wrong")
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("expected auth rejection, got %v", err)
	}
}

func TestRequireAdminAcceptsMatchingSecret(t *testing.T) {
	gate := NewGate(config.Auth{AdminSecret: "s3cret"})
	if err := gate.RequireAdmin("s3cret"); err != nil {
		t.Fatalf("expected matching credential to pass, got %v", err)
	}
}

func TestRequireAdminTrustsMissingCredentialWhenAllowed(t *testing.T) {
	gate := NewGate(config.Auth{AdminSecret: "s3cret", AllowUnauthenticated: true})
	if err := gate.RequireAdmin(""); err != nil {
		t.Fatalf("expected trusted transport pass, got %v", err)
	}
}

func TestRequireAdminRejectsMissingCredentialWhenDisallowed(t *testing.T) {
	gate := NewGate(config.Auth{AdminSecret: "s3cret", AllowUnauthenticated: false})

	err := gate.RequireAdmin("")
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("expected auth rejection for missing credential, got %v", err)
	}
}

func TestIsAdminSwallowsErrors(t *testing.T) {
	gate := NewGate(config.Auth{AdminSecret: "s3cret"})
	if gate.IsAdmin("wrong") {
		t.Fatal("wrong credential must not report admin")
	}
	if !gate.IsAdmin("s3cret") {
		t.Fatal("matching credential must report admin")
	}

	unconfigured := NewGate(config.Auth{})
	if unconfigured.IsAdmin("anything") {
		t.Fatal("unconfigured gate must not report admin")
	}
}
