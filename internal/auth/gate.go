package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/InnerAnimal/meaux-infra/pkg/config"
)

// ErrNotConfigured signals a server misconfiguration: no admin secret is
// present in the process environment. Distinct from a caller failure.
var ErrNotConfigured = errors.New("ADMIN_SECRET not configured")

// Error is an admin gate rejection. Always distinguishable from validation
// and provider failures by the caller.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// Gate decides whether a caller may invoke a mutating operation.
type Gate struct {
	secret               string
	allowUnauthenticated bool
}

// NewGate builds a gate from auth configuration.
func NewGate(cfg config.Auth) Gate {
	return Gate{
		secret:               strings.TrimSpace(cfg.AdminSecret),
		allowUnauthenticated: cfg.AllowUnauthenticated,
	}
}

// RequireAdmin rejects the call when no admin secret is configured, or when a
// supplied credential does not match. A missing credential passes only when
// the gate is configured to trust the local transport.
func (g Gate) RequireAdmin(credential string) error {
	if g.secret == "" {
		return ErrNotConfigured
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		if g.allowUnauthenticated {
			return nil
		}
		return &Error{Reason: "admin credential required"}
	}
	if len(credential) != len(g.secret) || subtle.ConstantTimeCompare([]byte(credential), []byte(g.secret)) != 1 {
		return &Error{Reason: "invalid admin credentials"}
	}
	return nil
}

// IsAdmin wraps RequireAdmin and swallows the error. Display and branching
// logic only; never use it to gate a mutating action.
func (g Gate) IsAdmin(credential string) bool {
	return g.RequireAdmin(credential) == nil
}
