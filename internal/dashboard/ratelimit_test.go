package dashboard

import (
	"testing"
	"time"
)

func TestMemoryRateLimiterFixedWindow(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 1; i <= 3; i++ {
		decision := rl.Allow("ip:10.0.0.1", 3, 50*time.Millisecond)
		if !decision.allowed {
			t.Fatalf("request %d denied inside the window", i)
		}
		if decision.count != i {
			t.Errorf("count = %d, want %d", decision.count, i)
		}
	}
	if decision := rl.Allow("ip:10.0.0.1", 3, 50*time.Millisecond); decision.allowed {
		t.Error("fourth request allowed over the limit")
	}
	if decision := rl.Allow("ip:10.0.0.2", 3, 50*time.Millisecond); !decision.allowed {
		t.Error("other keys must not share the window")
	}

	time.Sleep(60 * time.Millisecond)
	if decision := rl.Allow("ip:10.0.0.1", 3, 50*time.Millisecond); !decision.allowed || decision.count != 1 {
		t.Errorf("expired window not reset, decision = %+v", decision)
	}
}

func TestMemoryRateLimiterCloseStopsSweeper(t *testing.T) {
	rl := NewMemoryRateLimiter()
	rl.Allow("ip:10.0.0.1", 1, time.Minute)

	// The startup path closes the memory limiter when a Redis limiter takes
	// its place, before any further traffic. Close must be idempotent and
	// must not wedge later Allow calls on the same value.
	rl.Close()
	rl.Close()
	if decision := rl.Allow("ip:10.0.0.1", 1, time.Minute); decision.allowed {
		t.Error("state lost across Close")
	}
}
