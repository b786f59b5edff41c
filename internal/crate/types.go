// Package crate contains the crate movement state machine and the reactor
// that turns lock and override inputs into movement requests.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is injected through a clock function and Tick parameters.
package crate

import (
	"fmt"
	"time"
)

// DefaultMoveTimeout bounds how long a move is tracked before it is assumed
// complete.
const DefaultMoveTimeout = 15 * time.Second

// State is the crate's logical movement state.
type State string

const (
	// Stop variant
	StateIdle    State = "IDLE"
	StateOpening State = "OPENING"
	StateClosing State = "CLOSING"

	// Toggle variant
	StateClosed State = "CLOSED"
	StateOpen   State = "OPEN"
)

// Variant selects the controller's behaviour.
type Variant string

const (
	// VariantStop tracks explicit opening/closing moves, supports an explicit
	// stop, and times out every move.
	VariantStop Variant = "stop"

	// VariantToggle tracks only closed/open, treats the override button as a
	// pure toggle, and holds off all reactions during the post-open window.
	VariantToggle Variant = "toggle"
)

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantStop, VariantToggle:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown variant %q (want %q or %q)", s, VariantStop, VariantToggle)
}

// InitialState returns the state a controller of this variant starts in.
func (v Variant) InitialState() State {
	if v == VariantToggle {
		return StateClosed
	}
	return StateIdle
}

// Source identifies what triggered a request.
type Source string

const (
	SourceCommand  Source = "command"  // HTTP or MQTT command
	SourceButton   Source = "button"   // falling edge at the lock
	SourceOverride Source = "override" // override button
	SourceLimit    Source = "limit"    // lock sensor reached during a move
	SourceTimeout  Source = "timeout"  // movement deadline elapsed
)

// EventType describes what the controller did.
type EventType string

const (
	EventOpen           EventType = "OPEN"
	EventClose          EventType = "CLOSE"
	EventStop           EventType = "STOP"
	EventDenied         EventType = "DENIED"
	EventTimeout        EventType = "TIMEOUT"
	EventRelaysOff      EventType = "RELAYS_OFF"
	EventDrawerLocked   EventType = "DRAWER_LOCKED"
	EventDrawerUnlocked EventType = "DRAWER_UNLOCKED"
	EventSpareSet       EventType = "SPARE_SET"
	EventSpareCleared   EventType = "SPARE_CLEARED"
	EventFault          EventType = "FAULT"
)

// Event records a single controller action (or refusal).
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State // state after the action
	Source    Source
	Reason    string // set for DENIED, TIMEOUT and FAULT
}

// Counts tracks the number of movement events since startup.
type Counts struct {
	Opens    int
	Closes   int
	Stops    int
	Denials  int
	Timeouts int
}

// Relays is a point-in-time view of the relay outputs.
type Relays struct {
	Forward    bool
	Reverse    bool
	DrawerLock bool
	Spare      bool
}

// Input is a debounced digital input with latched edges.
type Input interface {
	// State returns the debounced level (true = high).
	State() bool
	// CheckLowAndClear reports and clears a pending falling edge.
	CheckLowAndClear() bool
	// CheckHighAndClear reports and clears a pending rising edge.
	CheckHighAndClear() bool
}

// Output is a relay output that remembers its level. A failed Set leaves
// the remembered level unchanged.
type Output interface {
	Set(on bool) error
	State() bool
}

// Ports are the inputs and outputs the controller operates on.
type Ports struct {
	Lock     Input // high = latched
	Override Input // low = pressed
	Reset    Input // low = pressed

	Forward    Output // closing drive
	Reverse    Output // opening drive
	DrawerLock Output // energised = locked
	Spare      Output
}
