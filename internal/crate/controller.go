package crate

import "time"

// Controller owns the crate's movement state and drives the two crate relays.
// Every mutation of the state, the deadline or the drive relays goes through
// its methods. Not safe for concurrent use; the control loop owns it.
type Controller struct {
	variant     Variant
	ports       Ports
	now         func() time.Time
	moveTimeout time.Duration

	state    State
	deadline time.Time // zero = disarmed
	counts   Counts
	events   []Event
	faulted  bool // a per-cycle relay write failed and has been reported
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source used to arm deadlines and stamp events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithMoveTimeout overrides DefaultMoveTimeout.
func WithMoveTimeout(d time.Duration) Option {
	return func(c *Controller) { c.moveTimeout = d }
}

// NewController creates a controller in the variant's initial state.
// The drive relays are not touched until the first request.
func NewController(variant Variant, ports Ports, opts ...Option) *Controller {
	c := &Controller{
		variant:     variant,
		ports:       ports,
		now:         time.Now,
		moveTimeout: DefaultMoveTimeout,
		state:       variant.InitialState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type direction int

const (
	directionOpen direction = iota
	directionClose
)

// Open starts the crate opening. It is refused, with a DENIED event, while the
// lock sensor reads latched. Returns whether the relays were driven.
func (c *Controller) Open(src Source) bool {
	return c.move(directionOpen, src)
}

// Close starts the crate closing, subject to the same lock check as Open.
func (c *Controller) Close(src Source) bool {
	return c.move(directionClose, src)
}

func (c *Controller) move(dir direction, src Source) bool {
	if c.ports.Lock.State() && !c.bypassesInterlock(src) {
		reason := "locked, cannot open"
		if dir == directionClose {
			reason = "locked, cannot close"
		}
		c.counts.Denials++
		c.emit(EventDenied, src, reason)
		return false
	}

	forward, reverse := true, false
	if dir == directionOpen {
		forward, reverse = false, true
	}
	if err := c.drive(forward, reverse); err != nil {
		c.fault(src, err)
		return false
	}

	now := c.now()
	if dir == directionOpen {
		c.state = StateOpening
		if c.variant == VariantToggle {
			c.state = StateOpen
		}
		c.deadline = now.Add(c.moveTimeout)
		c.counts.Opens++
		c.emit(EventOpen, src, "")
		return true
	}

	c.state = StateClosing
	if c.variant == VariantToggle {
		c.state = StateClosed
	} else {
		c.deadline = now.Add(c.moveTimeout)
	}
	c.counts.Closes++
	c.emit(EventClose, src, "")
	return true
}

// bypassesInterlock reports whether a request skips the lock check. Only the
// toggle variant's override button does.
func (c *Controller) bypassesInterlock(src Source) bool {
	return c.variant == VariantToggle && src == SourceOverride
}

// drive sets the crate relays, always releasing before energising so forward
// and reverse are never on together. If the release fails nothing is
// energised and the other relay is released as well.
func (c *Controller) drive(forward, reverse bool) error {
	release, engage, on := c.ports.Forward, c.ports.Reverse, reverse
	if forward {
		release, engage, on = c.ports.Reverse, c.ports.Forward, true
	}
	if err := release.Set(false); err != nil {
		if engage.State() {
			engage.Set(false)
		}
		return err
	}
	if err := engage.Set(on); err != nil {
		return err
	}
	c.faulted = false
	return nil
}

// release drives both crate relays off, attempting both even if one fails.
func (c *Controller) release() error {
	errF := c.ports.Forward.Set(false)
	errR := c.ports.Reverse.Set(false)
	if errF != nil {
		return errF
	}
	if errR != nil {
		return errR
	}
	c.faulted = false
	return nil
}

// fault records a relay write failure as a FAULT event. Requests always
// report it; the per-cycle limit checks report it once until a write
// succeeds again.
func (c *Controller) fault(src Source, err error) {
	if src == SourceLimit && c.faulted {
		return
	}
	c.faulted = true
	c.emit(EventFault, src, err.Error())
}

// Stop releases both crate relays, returns to IDLE and disarms the deadline.
// Only the stop variant supports it; the toggle variant returns false and does
// nothing. If a relay cannot be released the state is kept and a FAULT event
// is emitted instead.
func (c *Controller) Stop(src Source) bool {
	if c.variant != VariantStop {
		return false
	}
	if err := c.release(); err != nil {
		c.fault(src, err)
		return false
	}
	c.state = StateIdle
	c.deadline = time.Time{}
	c.counts.Stops++
	c.emit(EventStop, src, "")
	return true
}

// Tick runs the per-cycle checks and reports whether the reactor may run
// this cycle. It never blocks.
//
// Stop variant: while moving, a latched lock stops the crate immediately;
// independently, once the deadline is reached the move is assumed finished
// and the state returns to IDLE without touching the relays.
//
// Toggle variant: while the post-open deadline is pending nothing happens and
// false is returned. After it, a latched lock forces both drive relays off on
// every cycle.
func (c *Controller) Tick(now time.Time) bool {
	if c.variant == VariantToggle {
		return c.tickToggle(now)
	}

	if c.state != StateOpening && c.state != StateClosing {
		return true
	}

	if c.ports.Lock.State() {
		c.Stop(SourceLimit)
	}

	if c.deadlineReached(now) {
		reason := "assumed open motion stop"
		if c.state == StateClosing {
			reason = "assumed close motion stop"
		}
		c.state = StateIdle
		c.deadline = time.Time{}
		c.counts.Timeouts++
		c.emit(EventTimeout, SourceTimeout, reason)
	}
	return true
}

func (c *Controller) tickToggle(now time.Time) bool {
	if !c.deadline.IsZero() {
		if !c.deadlineReached(now) {
			return false
		}
		c.deadline = time.Time{}
	}

	if c.ports.Lock.State() {
		wasDriving := c.ports.Forward.State() || c.ports.Reverse.State()
		if err := c.release(); err != nil {
			c.fault(SourceLimit, err)
		} else if wasDriving {
			c.emit(EventRelaysOff, SourceLimit, "")
		}
	}
	return true
}

func (c *Controller) deadlineReached(now time.Time) bool {
	return !c.deadline.IsZero() && !now.Before(c.deadline)
}

// State returns the current movement state.
func (c *Controller) State() State {
	return c.state
}

// Variant returns the controller's variant.
func (c *Controller) Variant() Variant {
	return c.variant
}

// Deadline returns the armed movement deadline, if any.
func (c *Controller) Deadline() (time.Time, bool) {
	return c.deadline, !c.deadline.IsZero()
}

// Counts returns the movement counters.
func (c *Controller) Counts() Counts {
	return c.counts
}

// Relays returns the current relay levels.
func (c *Controller) Relays() Relays {
	return Relays{
		Forward:    c.ports.Forward.State(),
		Reverse:    c.ports.Reverse.State(),
		DrawerLock: c.ports.DrawerLock.State(),
		Spare:      c.ports.Spare.State(),
	}
}

// Locked reports whether the lock sensor reads latched.
func (c *Controller) Locked() bool {
	return c.ports.Lock.State()
}

// ResetPressed reports whether the reset button is held.
func (c *Controller) ResetPressed() bool {
	return !c.ports.Reset.State()
}

// Events returns and clears the events recorded since the last call.
func (c *Controller) Events() []Event {
	events := c.events
	c.events = nil
	return events
}

func (c *Controller) emit(t EventType, src Source, reason string) {
	c.events = append(c.events, Event{
		Timestamp: c.now(),
		Type:      t,
		State:     c.state,
		Source:    src,
		Reason:    reason,
	})
}
