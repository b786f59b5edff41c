// Package sense turns raw digital input samples into debounced levels with
// latched edges.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package sense

import "time"

// Input is a debounced digital input. Each detected transition latches an
// edge flag that stays set until it is read with CheckLowAndClear or
// CheckHighAndClear, so a single edge is reported exactly once.
// Not safe for concurrent use; the control loop owns it.
type Input struct {
	debounceDuration time.Duration

	// Current stable (debounced) level
	stable bool
	// Whether a level different from stable is being observed
	hasPending bool
	// Time when the pending level (or the baseline candidate) was first observed
	pendingSince time.Time
	// Whether any sample has been seen
	seen bool
	// Whether the initial level has held for the debounce period
	baselined bool

	fell bool
	rose bool
}

// New creates an input with the given debounce duration.
func New(debounceDuration time.Duration) *Input {
	return &Input{debounceDuration: debounceDuration}
}

// Update feeds a raw sample taken at now. It returns true if the debounced
// level changed.
// No edges are latched until the initial level has been stable for the
// debounce period; until then State reports the most recent candidate.
func (in *Input) Update(raw bool, now time.Time) bool {
	if !in.baselined {
		if !in.seen || raw != in.stable {
			// Start observing, or restart on change
			in.seen = true
			in.stable = raw
			in.pendingSince = now
		}
		if now.Sub(in.pendingSince) >= in.debounceDuration {
			in.baselined = true
		}
		return false
	}

	if raw == in.stable {
		// Bounce ended, clear any pending
		in.hasPending = false
		return false
	}

	if !in.hasPending {
		in.hasPending = true
		in.pendingSince = now
	}

	if now.Sub(in.pendingSince) < in.debounceDuration {
		return false
	}

	in.stable = raw
	in.hasPending = false
	if raw {
		in.rose = true
	} else {
		in.fell = true
	}
	return true
}

// State returns the debounced level (true = high).
func (in *Input) State() bool {
	return in.stable
}

// Baselined reports whether the initial level has been established.
func (in *Input) Baselined() bool {
	return in.baselined
}

// CheckLowAndClear reports whether a falling edge has been seen since the
// last call, and clears it.
func (in *Input) CheckLowAndClear() bool {
	fell := in.fell
	in.fell = false
	return fell
}

// CheckHighAndClear reports whether a rising edge has been seen since the
// last call, and clears it.
func (in *Input) CheckHighAndClear() bool {
	rose := in.rose
	in.rose = false
	return rose
}
