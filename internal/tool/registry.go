// Package tool implements the registry through which every provider
// operation is exposed: named descriptors with typed input validation,
// admin gating for mutating operations, and error normalization so no raw
// failure ever escapes to a transport.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/InnerAnimal/meaux-infra/internal/auth"
	"github.com/InnerAnimal/meaux-infra/internal/provider"
	"github.com/InnerAnimal/meaux-infra/internal/validate"
)

// Input is a decoded tool argument payload that can report every violated
// field at once.
type Input interface {
	Validate() validate.Violations
}

// Handler runs one operation with an already-validated input.
type Handler func(ctx context.Context, in Input) (any, error)

// Descriptor declares one named operation.
type Descriptor struct {
	Name        string
	Description string
	// Mutating operations pass the admin gate before the handler runs, and
	// therefore before any network effect.
	Mutating bool
	NewInput func() Input
	Handle   Handler
}

// ValidationError reports caller input that failed its declared constraints.
// It enumerates all violations and never reaches the network layer.
type ValidationError struct {
	Violations validate.Violations
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		parts = append(parts, violation.String())
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// ErrorKind classifies a normalized invocation failure.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindValidation    ErrorKind = "validation"
	KindAuth          ErrorKind = "auth"
	KindConfiguration ErrorKind = "configuration"
	KindProvider      ErrorKind = "provider"
	KindInternal      ErrorKind = "internal"
)

// InvokeError is the structured failure form of a tool invocation.
type InvokeError struct {
	Kind       ErrorKind            `json:"kind"`
	Message    string               `json:"message"`
	StatusCode int                  `json:"statusCode,omitempty"`
	Fields     []validate.Violation `json:"fields,omitempty"`
}

// Result is the uniform outcome of Invoke. Exactly one of Data or Err is
// meaningful depending on OK.
type Result struct {
	OK   bool         `json:"ok"`
	Data any          `json:"data,omitempty"`
	Err  *InvokeError `json:"error,omitempty"`
}

// Registry maps operation names to descriptors. It is populated once at
// startup and read-only afterwards, so no locking discipline is needed.
type Registry struct {
	gate   auth.Gate
	logger *slog.Logger
	order  []string
	tools  map[string]Descriptor
}

// NewRegistry builds an empty registry around an admin gate.
func NewRegistry(gate auth.Gate, logger *slog.Logger) *Registry {
	return &Registry{
		gate:   gate,
		logger: logger,
		tools:  make(map[string]Descriptor),
	}
}

// Register adds a descriptor. A duplicate name overwrites the previous
// registration silently.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.tools[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.tools[d.Name] = d
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Invoke validates the raw arguments, gates mutating operations, runs the
// handler, and normalizes every failure into a structured Result.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage, credential string) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Error("tool handler panicked", "tool", name, "panic", rec)
			}
			result = failure(KindInternal, fmt.Sprintf("internal error in %s", name), 0, nil)
		}
	}()

	desc, ok := r.tools[name]
	if !ok {
		return failure(KindNotFound, fmt.Sprintf("unknown tool: %s", name), 0, nil)
	}

	input := desc.NewInput()
	if len(args) > 0 {
		if err := json.Unmarshal(args, input); err != nil {
			return failure(KindValidation, decodeMessage(err), 0, nil)
		}
	}
	if violations := input.Validate(); len(violations) > 0 {
		verr := &ValidationError{Violations: violations}
		return failure(KindValidation, verr.Error(), 0, violations)
	}

	if desc.Mutating {
		if err := r.gate.RequireAdmin(credential); err != nil {
			return r.normalize(name, err)
		}
	}

	data, err := desc.Handle(ctx, input)
	if err != nil {
		return r.normalize(name, err)
	}
	return Result{OK: true, Data: data}
}

func (r *Registry) normalize(name string, err error) Result {
	if r.logger != nil {
		r.logger.Warn("tool invocation failed", "tool", name, "error", err)
	}
	var (
		authErr     *auth.Error
		provErr     *provider.Error
		cfgErr      *provider.ConfigError
		valErr      *ValidationError
		fieldErrors validate.Violations
	)
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		return failure(KindConfiguration, err.Error(), 0, nil)
	case errors.As(err, &authErr):
		return failure(KindAuth, authErr.Error(), 0, nil)
	case errors.As(err, &cfgErr):
		return failure(KindConfiguration, cfgErr.Error(), 0, nil)
	case errors.As(err, &provErr):
		return failure(KindProvider, provErr.Error(), provErr.StatusCode, nil)
	case errors.As(err, &valErr):
		fieldErrors = valErr.Violations
		return failure(KindValidation, valErr.Error(), 0, fieldErrors)
	default:
		return failure(KindInternal, err.Error(), 0, nil)
	}
}

func failure(kind ErrorKind, message string, status int, fields validate.Violations) Result {
	return Result{OK: false, Err: &InvokeError{
		Kind:       kind,
		Message:    message,
		StatusCode: status,
		Fields:     fields,
	}}
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("invalid input: %s must be a %s", typeErr.Field, typeErr.Type)
	}
	return "invalid input: malformed JSON arguments"
}
