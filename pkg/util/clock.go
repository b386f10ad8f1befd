package util

import "time"

// Clock abstracts wall time so tests can inject a fixed source. Wall time is
// informational only; event ordering relies on the causal clock.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
