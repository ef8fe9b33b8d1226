package session

import (
	"math"
	"testing"
	"time"
)

func clockAt(hour, min int) (*Clock, time.Time) {
	c := NewClock(DefaultRamp(), nil)
	return c, time.Date(2025, 6, 2, hour, min, 0, 0, c.loc)
}

func TestStatusPreMarket(t *testing.T) {
	c, now := clockAt(5, 0)
	phase, progress := c.statusAt(now)
	if phase != PhasePreMarket {
		t.Fatalf("expected pre-market, got %v", phase)
	}
	// 60 minutes into the 330-minute window mapped onto 0.15 of a session.
	want := 60.0 / 330.0 * 0.15
	if math.Abs(progress-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, progress)
	}
}

func TestStatusPreMarketFloor(t *testing.T) {
	c, now := clockAt(4, 1)
	_, progress := c.statusAt(now)
	if progress != 0.01 {
		t.Fatalf("expected floor 0.01, got %v", progress)
	}
}

func TestStatusRegular(t *testing.T) {
	c, now := clockAt(10, 9) // 39 minutes in
	phase, progress := c.statusAt(now)
	if phase != PhaseRegular {
		t.Fatalf("expected regular, got %v", phase)
	}
	if math.Abs(progress-0.1) > 1e-9 {
		t.Fatalf("expected 0.1, got %v", progress)
	}
}

func TestStatusRegularFloor(t *testing.T) {
	c, now := clockAt(9, 31)
	_, progress := c.statusAt(now)
	if progress != 0.05 {
		t.Fatalf("expected floor 0.05, got %v", progress)
	}
}

func TestStatusClosed(t *testing.T) {
	c, now := clockAt(16, 0)
	phase, progress := c.statusAt(now)
	if phase != PhaseClosed {
		t.Fatalf("expected closed, got %v", phase)
	}
	if progress != 1.0 {
		t.Fatalf("expected 1.0, got %v", progress)
	}
}

func TestPhaseString(t *testing.T) {
	if PhasePreMarket.String() != "pre_market" || PhaseRegular.String() != "regular" || PhaseClosed.String() != "closed" {
		t.Fatalf("unexpected phase labels")
	}
}
