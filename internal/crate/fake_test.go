package crate

import (
	"testing"
	"time"
)

// fakeInput is a scripted debounced input. Level changes made through press
// and release latch edges the way sense.Input does.
type fakeInput struct {
	level bool
	fell  bool
	rose  bool
}

func (f *fakeInput) State() bool { return f.level }

func (f *fakeInput) CheckLowAndClear() bool {
	fell := f.fell
	f.fell = false
	return fell
}

func (f *fakeInput) CheckHighAndClear() bool {
	rose := f.rose
	f.rose = false
	return rose
}

// press drives the input low, latching a falling edge.
func (f *fakeInput) press() {
	f.level = false
	f.fell = true
}

// release drives the input high, latching a rising edge.
func (f *fakeInput) release() {
	f.level = true
	f.rose = true
}

// fakeOutput records its level and reports every write to the rig so the
// forward/reverse overlap invariant is checked after each individual Set.
// While err is set, writes fail and the level is kept.
type fakeOutput struct {
	on     bool
	writes int
	err    error
	rig    *rig
}

func (o *fakeOutput) Set(on bool) error {
	if o.err != nil {
		return o.err
	}
	o.on = on
	o.writes++
	o.rig.checkOverlap()
	return nil
}

func (o *fakeOutput) State() bool { return o.on }

type rig struct {
	t        *testing.T
	now      time.Time
	lock     *fakeInput
	override *fakeInput
	reset    *fakeInput
	forward  *fakeOutput
	reverse  *fakeOutput
	drawer   *fakeOutput
	spare    *fakeOutput
	ctrl     *Controller
	reactor  *Reactor
	overlap  bool
}

var rigStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// newRig builds a controller with the crate unlocked and both buttons released.
func newRig(t *testing.T, variant Variant) *rig {
	t.Helper()
	r := &rig{
		t:        t,
		now:      rigStart,
		lock:     &fakeInput{level: false},
		override: &fakeInput{level: true},
		reset:    &fakeInput{level: true},
	}
	r.forward = &fakeOutput{rig: r}
	r.reverse = &fakeOutput{rig: r}
	r.drawer = &fakeOutput{rig: r}
	r.spare = &fakeOutput{rig: r}

	r.ctrl = NewController(variant, Ports{
		Lock:       r.lock,
		Override:   r.override,
		Reset:      r.reset,
		Forward:    r.forward,
		Reverse:    r.reverse,
		DrawerLock: r.drawer,
		Spare:      r.spare,
	}, WithClock(func() time.Time { return r.now }))
	r.reactor = NewReactor(r.ctrl)
	return r
}

func (r *rig) checkOverlap() {
	if r.forward.on && r.reverse.on {
		r.overlap = true
	}
}

func (r *rig) advance(d time.Duration) {
	r.now = r.now.Add(d)
}

func (r *rig) step() {
	r.reactor.Step(r.now)
}

func (r *rig) drive() (forward, reverse bool) {
	return r.forward.on, r.reverse.on
}

func (r *rig) driveWrites() int {
	return r.forward.writes + r.reverse.writes
}
