package tool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/InnerAnimal/meaux-infra/internal/auth"
	"github.com/InnerAnimal/meaux-infra/internal/provider"
	"github.com/InnerAnimal/meaux-infra/internal/validate"
	"github.com/InnerAnimal/meaux-infra/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGate(secret string, allowAnon bool) auth.Gate {
	return auth.NewGate(config.Auth{AdminSecret: secret, AllowUnauthenticated: allowAnon})
}

type echoInput struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (in *echoInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("message", in.Message)
	v.Min("count", in.Count, 0)
	return v
}

func echoDescriptor(name string, mutating bool, calls *int) Descriptor {
	return Descriptor{
		Name:     name,
		Mutating: mutating,
		NewInput: func() Input { return &echoInput{} },
		Handle: func(ctx context.Context, in Input) (any, error) {
			if calls != nil {
				*calls++
			}
			return in.(*echoInput).Message, nil
		},
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	result := reg.Invoke(context.Background(), "nope", nil, "")
	if result.OK {
		t.Fatal("expected failure")
	}
	if result.Err.Kind != KindNotFound {
		t.Errorf("kind = %s, want %s", result.Err.Kind, KindNotFound)
	}
}

func TestInvokeCollectsAllViolations(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	reg.Register(echoDescriptor("echo", false, nil))

	result := reg.Invoke(context.Background(), "echo", json.RawMessage(`{"count":-3}`), "")
	if result.OK {
		t.Fatal("expected validation failure")
	}
	if result.Err.Kind != KindValidation {
		t.Fatalf("kind = %s, want %s", result.Err.Kind, KindValidation)
	}
	if len(result.Err.Fields) != 2 {
		t.Errorf("fields = %+v, want both message and count reported", result.Err.Fields)
	}
}

func TestInvokeMalformedArguments(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	reg.Register(echoDescriptor("echo", false, nil))

	result := reg.Invoke(context.Background(), "echo", json.RawMessage(`{not json`), "")
	if result.OK || result.Err.Kind != KindValidation {
		t.Fatalf("result = %+v, want validation failure", result)
	}
}

func TestInvokeGatesBeforeHandler(t *testing.T) {
	calls := 0
	reg := NewRegistry(testGate("secret", false), testLogger())
	reg.Register(echoDescriptor("mutate", true, &calls))

	result := reg.Invoke(context.Background(), "mutate", json.RawMessage(`{"message":"hi"}`), "wrong")
	if result.OK {
		t.Fatal("expected auth failure")
	}
	if result.Err.Kind != KindAuth {
		t.Errorf("kind = %s, want %s", result.Err.Kind, KindAuth)
	}
	if calls != 0 {
		t.Errorf("handler ran %d times despite gate rejection", calls)
	}
}

func TestInvokeMissingSecretIsConfiguration(t *testing.T) {
	calls := 0
	reg := NewRegistry(testGate("", true), testLogger())
	reg.Register(echoDescriptor("mutate", true, &calls))

	result := reg.Invoke(context.Background(), "mutate", json.RawMessage(`{"message":"hi"}`), "")
	if result.OK {
		t.Fatal("expected configuration failure")
	}
	if result.Err.Kind != KindConfiguration {
		t.Errorf("kind = %s, want %s", result.Err.Kind, KindConfiguration)
	}
	if calls != 0 {
		t.Errorf("handler ran %d times without a configured gate", calls)
	}
}

func TestInvokeTrustsMissingCredential(t *testing.T) {
	calls := 0
	reg := NewRegistry(testGate("secret", true), testLogger())
	reg.Register(echoDescriptor("mutate", true, &calls))

	result := reg.Invoke(context.Background(), "mutate", json.RawMessage(`{"message":"hi"}`), "")
	if !result.OK {
		t.Fatalf("result = %+v, want success", result)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestInvokeReadSkipsGate(t *testing.T) {
	calls := 0
	reg := NewRegistry(testGate("secret", false), testLogger())
	reg.Register(echoDescriptor("read", false, &calls))

	result := reg.Invoke(context.Background(), "read", json.RawMessage(`{"message":"hi"}`), "")
	if !result.OK {
		t.Fatalf("result = %+v, want success", result)
	}
}

func TestInvokeNormalizesProviderError(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	reg.Register(Descriptor{
		Name:     "broken",
		NewInput: func() Input { return &echoInput{Message: "x"} },
		Handle: func(ctx context.Context, in Input) (any, error) {
			return nil, &provider.Error{Provider: "cloudflare", StatusCode: 502, Body: "bad gateway"}
		},
	})

	result := reg.Invoke(context.Background(), "broken", json.RawMessage(`{"message":"x"}`), "")
	if result.OK || result.Err.Kind != KindProvider {
		t.Fatalf("result = %+v, want provider failure", result)
	}
	if result.Err.StatusCode != 502 {
		t.Errorf("statusCode = %d, want 502", result.Err.StatusCode)
	}
}

func TestInvokeNormalizesConfigError(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	reg.Register(Descriptor{
		Name:     "unconfigured",
		NewInput: func() Input { return &echoInput{Message: "x"} },
		Handle: func(ctx context.Context, in Input) (any, error) {
			return nil, &provider.ConfigError{Provider: "vercel", Key: "VERCEL_TOKEN"}
		},
	})

	result := reg.Invoke(context.Background(), "unconfigured", json.RawMessage(`{"message":"x"}`), "")
	if result.OK || result.Err.Kind != KindConfiguration {
		t.Fatalf("result = %+v, want configuration failure", result)
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	reg.Register(Descriptor{
		Name:     "panicky",
		NewInput: func() Input { return &echoInput{Message: "x"} },
		Handle: func(ctx context.Context, in Input) (any, error) {
			panic("boom")
		},
	})

	result := reg.Invoke(context.Background(), "panicky", json.RawMessage(`{"message":"x"}`), "")
	if result.OK || result.Err.Kind != KindInternal {
		t.Fatalf("result = %+v, want internal failure", result)
	}
}

func TestInvokeWrappedErrorsStillNormalize(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	reg.Register(Descriptor{
		Name:     "wrapped",
		NewInput: func() Input { return &echoInput{Message: "x"} },
		Handle: func(ctx context.Context, in Input) (any, error) {
			return nil, errors.Join(errors.New("context"), &auth.Error{Reason: "nested"})
		},
	})

	result := reg.Invoke(context.Background(), "wrapped", json.RawMessage(`{"message":"x"}`), "")
	if result.OK || result.Err.Kind != KindAuth {
		t.Fatalf("result = %+v, want auth failure", result)
	}
}

func TestRegisterOverwritesDuplicate(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	reg.Register(Descriptor{
		Name:     "dup",
		NewInput: func() Input { return &echoInput{Message: "x"} },
		Handle: func(ctx context.Context, in Input) (any, error) {
			return "first", nil
		},
	})
	reg.Register(Descriptor{
		Name:     "dup",
		NewInput: func() Input { return &echoInput{Message: "x"} },
		Handle: func(ctx context.Context, in Input) (any, error) {
			return "second", nil
		},
	})

	if got := len(reg.List()); got != 1 {
		t.Fatalf("list has %d entries, want 1", got)
	}
	result := reg.Invoke(context.Background(), "dup", json.RawMessage(`{"message":"x"}`), "")
	if !result.OK || result.Data != "second" {
		t.Errorf("result = %+v, want the later registration", result)
	}
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry(testGate("secret", true), testLogger())
	for _, name := range []string{"c", "a", "b"} {
		reg.Register(echoDescriptor(name, false, nil))
	}
	list := reg.List()
	got := []string{list[0].Name, list[1].Name, list[2].Name}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
