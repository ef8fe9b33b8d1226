package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowBurstThenThrottle(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("md") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	if l.Allow("md") {
		t.Fatalf("request past burst capacity should be throttled")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New(1, 1)

	if !l.Allow("bars") {
		t.Fatalf("first request for bars should be allowed")
	}
	if l.Allow("bars") {
		t.Fatalf("second request for bars should be throttled")
	}
	if !l.Allow("quotes") {
		t.Fatalf("quotes must not share the bars bucket")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(0.001, 1)
	if !l.Allow("md") {
		t.Fatalf("burst token should be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "md"); err == nil {
		t.Fatalf("expected Wait to give up when ctx expires")
	}
}
