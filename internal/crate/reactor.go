package crate

import "time"

// Reactor polls the lock and override inputs once per control cycle and
// issues movement requests on the controller it shares with the command
// surface.
type Reactor struct {
	ctrl *Controller
}

// NewReactor creates a reactor for ctrl.
func NewReactor(ctrl *Controller) *Reactor {
	return &Reactor{ctrl: ctrl}
}

// Step runs one control cycle: the controller's Tick, then (unless the tick
// suppressed it) the input reactions for the controller's variant.
func (r *Reactor) Step(now time.Time) {
	if !r.ctrl.Tick(now) {
		return
	}
	if r.ctrl.variant == VariantToggle {
		r.stepToggle()
		return
	}
	r.stepStop()
}

func (r *Reactor) stepStop() {
	c := r.ctrl
	lock := c.ports.Lock

	// Lock edges are only consumed while idle; an edge seen mid-move is
	// acted on once the crate is idle again.
	if c.state == StateIdle && lock.CheckLowAndClear() {
		c.Open(SourceButton)
	}

	// The override edge is always consumed, but only reverses direction
	// while unlocked.
	if !c.ports.Override.CheckLowAndClear() || lock.State() {
		return
	}
	switch c.state {
	case StateIdle, StateOpening:
		c.Close(SourceOverride)
	case StateClosing:
		c.Open(SourceOverride)
	}
}

func (r *Reactor) stepToggle() {
	c := r.ctrl
	lock := c.ports.Lock

	if c.state == StateClosed && c.deadline.IsZero() && lock.CheckLowAndClear() {
		c.Open(SourceButton)
	}

	if !c.ports.Override.CheckLowAndClear() {
		return
	}

	// Drop lock edges raised while the override was handled so they cannot
	// re-trigger an open on the next cycle.
	lock.CheckLowAndClear()
	lock.CheckHighAndClear()

	if c.state == StateClosed {
		c.Open(SourceOverride)
	} else {
		c.Close(SourceOverride)
	}
}
