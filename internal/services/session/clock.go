package session

import (
	"time"
)

// Phase is the US equity session phase.
type Phase int

const (
	PhasePreMarket Phase = iota
	PhaseRegular
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhasePreMarket:
		return "pre_market"
	case PhaseRegular:
		return "regular"
	default:
		return "closed"
	}
}

// Ramp is the hand-tuned progress curve used to normalize session-to-date
// volume. The breakpoints are policy, not law; these defaults reproduce the
// production curve exactly.
type Ramp struct {
	PreOpenStart   int     // minutes after midnight ET, default 04:00
	RegularOpen    int     // default 09:30
	RegularClose   int     // default 16:00
	PreMarketSpan  float64 // minutes in the pre-market window, default 330
	PreMarketScale float64 // fraction of a full session pre-market maps to, default 0.15
	PreMarketFloor float64 // default 0.01
	RegularSpan    float64 // minutes in the regular session, default 390
	RegularFloor   float64 // default 0.05
}

// DefaultRamp returns the production progress curve.
func DefaultRamp() Ramp {
	return Ramp{
		PreOpenStart:   4 * 60,
		RegularOpen:    9*60 + 30,
		RegularClose:   16 * 60,
		PreMarketSpan:  330,
		PreMarketScale: 0.15,
		PreMarketFloor: 0.01,
		RegularSpan:    390,
		RegularFloor:   0.05,
	}
}

// Clock resolves session phase and progress in US/Eastern time.
type Clock struct {
	ramp Ramp
	loc  *time.Location
	now  func() time.Time
}

// NewClock builds a session clock. A nil now func defaults to time.Now.
func NewClock(ramp Ramp, now func() time.Time) *Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*3600)
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{ramp: ramp, loc: loc, now: now}
}

// Status returns the current phase and the elapsed-session fraction used to
// project session-to-date volume to a full-session figure.
func (c *Clock) Status() (Phase, float64) {
	return c.statusAt(c.now().In(c.loc))
}

func (c *Clock) statusAt(now time.Time) (Phase, float64) {
	minutes := now.Hour()*60 + now.Minute() + now.Second()/60

	switch {
	case minutes < c.ramp.RegularOpen:
		elapsed := float64(minutes - c.ramp.PreOpenStart)
		if elapsed < 1 {
			elapsed = 1
		}
		progress := (elapsed / c.ramp.PreMarketSpan) * c.ramp.PreMarketScale
		if progress < c.ramp.PreMarketFloor {
			progress = c.ramp.PreMarketFloor
		}
		return PhasePreMarket, progress
	case minutes >= c.ramp.RegularClose:
		return PhaseClosed, 1.0
	default:
		elapsed := float64(minutes - c.ramp.RegularOpen)
		progress := elapsed / c.ramp.RegularSpan
		if progress < c.ramp.RegularFloor {
			progress = c.ramp.RegularFloor
		}
		return PhaseRegular, progress
	}
}
