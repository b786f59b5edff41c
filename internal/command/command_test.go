package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/crate-controller/internal/crate"
	"github.com/sweeney/crate-controller/internal/gpio"
	"github.com/sweeney/crate-controller/internal/sense"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type device struct {
	board    *gpio.FakeBoard
	lock     *sense.Input
	override *sense.Input
	reset    *sense.Input
	ctrl     *crate.Controller
}

// newDevice wires a controller to real relay and debounced-input ports over a
// fake board. Inputs have no debounce so set takes effect immediately.
func newDevice(t *testing.T, variant crate.Variant) *device {
	t.Helper()
	d := &device{
		board:    gpio.NewFakeBoard(nil),
		lock:     sense.New(0),
		override: sense.New(0),
		reset:    sense.New(0),
	}
	d.lock.Update(false, t0)
	d.override.Update(true, t0)
	d.reset.Update(true, t0)

	d.ctrl = crate.NewController(variant, crate.Ports{
		Lock:       d.lock,
		Override:   d.override,
		Reset:      d.reset,
		Forward:    gpio.NewRelay(d.board, gpio.ChannelForward),
		Reverse:    gpio.NewRelay(d.board, gpio.ChannelReverse),
		DrawerLock: gpio.NewRelay(d.board, gpio.ChannelDrawerLock),
		Spare:      gpio.NewRelay(d.board, gpio.ChannelSpare),
	}, crate.WithClock(func() time.Time { return t0 }))
	return d
}

func (d *device) handle(t *testing.T, table Table, path string) Response {
	t.Helper()
	h, ok := table.Lookup(path)
	require.True(t, ok, "no route for %s", path)
	return h.Handle(d.ctrl)
}

func TestNewTablePaths(t *testing.T) {
	assert.Equal(t, []string{
		PathOpenCrate, PathCloseCrate, PathStopCrate,
		PathUnlockDrawer, PathLockDrawer,
		PathSetSpare, PathClearSpare,
		PathResetState, PathLockState,
	}, NewTable(crate.VariantStop).Paths())

	toggle := NewTable(crate.VariantToggle)
	assert.NotContains(t, toggle.Paths(), PathStopCrate)
	assert.Len(t, toggle, 8)
}

func TestLookupExactMatchOnly(t *testing.T) {
	table := NewTable(crate.VariantStop)

	for _, path := range []string{"/crate/open/", "/CRATE/OPEN", "crate/open", "/crate", ""} {
		_, ok := table.Lookup(path)
		assert.False(t, ok, "path %q should not match", path)
	}
}

func TestLookupFirstMatchWins(t *testing.T) {
	first := HandlerFunc(func(*crate.Controller) Response { return Response{Body: "first"} })
	second := HandlerFunc(func(*crate.Controller) Response { return Response{Body: "second"} })
	table := Table{{"/x", first}, {"/x", second}}

	h, ok := table.Lookup("/x")
	require.True(t, ok)
	assert.Equal(t, "first", h.Handle(nil).Body)
}

func TestOpenCrateScenario(t *testing.T) {
	d := newDevice(t, crate.VariantStop)

	resp := d.handle(t, NewTable(crate.VariantStop), PathOpenCrate)

	assert.Empty(t, resp.Body)
	assert.Equal(t, crate.StateOpening, d.ctrl.State())
	assert.False(t, d.board.Outputs[gpio.ChannelForward])
	assert.True(t, d.board.Outputs[gpio.ChannelReverse])
}

func TestDeniedMovesStillSucceed(t *testing.T) {
	for _, path := range []string{PathOpenCrate, PathCloseCrate} {
		d := newDevice(t, crate.VariantStop)
		d.lock.Update(true, t0)

		resp := d.handle(t, NewTable(crate.VariantStop), path)

		assert.Empty(t, resp.Body)
		assert.Equal(t, crate.StateIdle, d.ctrl.State())
		assert.Empty(t, d.board.Writes, "%s: relays must not change", path)

		events := d.ctrl.Events()
		require.Len(t, events, 1)
		assert.Equal(t, crate.EventDenied, events[0].Type)
	}
}

func TestStopCrate(t *testing.T) {
	d := newDevice(t, crate.VariantStop)
	table := NewTable(crate.VariantStop)
	d.handle(t, table, PathCloseCrate)

	d.handle(t, table, PathStopCrate)

	assert.Equal(t, crate.StateIdle, d.ctrl.State())
	assert.False(t, d.board.Outputs[gpio.ChannelForward])
	assert.False(t, d.board.Outputs[gpio.ChannelReverse])
}

func TestAccessoryCommands(t *testing.T) {
	d := newDevice(t, crate.VariantToggle)
	table := NewTable(crate.VariantToggle)

	d.handle(t, table, PathLockDrawer)
	assert.True(t, d.board.Outputs[gpio.ChannelDrawerLock])
	d.handle(t, table, PathUnlockDrawer)
	assert.False(t, d.board.Outputs[gpio.ChannelDrawerLock])

	d.handle(t, table, PathSetSpare)
	assert.True(t, d.board.Outputs[gpio.ChannelSpare])
	d.handle(t, table, PathClearSpare)
	assert.False(t, d.board.Outputs[gpio.ChannelSpare])
}

func TestQueryBodies(t *testing.T) {
	d := newDevice(t, crate.VariantStop)
	table := NewTable(crate.VariantStop)

	assert.Equal(t, "NOT PRESSED\r\n\r\n", d.handle(t, table, PathResetState).Body)
	assert.Equal(t, "UNLOCKED\r\n\r\n", d.handle(t, table, PathLockState).Body)

	d.reset.Update(false, t0.Add(time.Second))
	d.lock.Update(true, t0.Add(time.Second))

	assert.Equal(t, "PRESSED\r\n\r\n", d.handle(t, table, PathResetState).Body)
	assert.Equal(t, "LOCKED\r\n\r\n", d.handle(t, table, PathLockState).Body)
	assert.Empty(t, d.board.Writes, "queries do not drive outputs")
}

func TestQueueSubmitServed(t *testing.T) {
	d := newDevice(t, crate.VariantStop)
	q := NewQueue(NewTable(crate.VariantStop))

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := <-q.Requests()
		assert.Equal(t, PathLockState, req.Path)
		q.Serve(req, d.ctrl)
	}()

	resp, err := q.Submit(context.Background(), PathLockState)
	require.NoError(t, err)
	assert.Equal(t, BodyUnlocked, resp.Body)
	<-done
}

func TestQueueUnknownPath(t *testing.T) {
	q := NewQueue(NewTable(crate.VariantToggle))

	_, err := q.Submit(context.Background(), PathStopCrate)
	assert.ErrorIs(t, err, ErrUnknownPath)
}

func TestQueueSubmitCancelled(t *testing.T) {
	q := NewQueue(NewTable(crate.VariantStop))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Nobody serves the queue
	_, err := q.Submit(ctx, PathOpenCrate)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueStopReleasesBlockedSubmit(t *testing.T) {
	q := NewQueue(NewTable(crate.VariantStop))

	errCh := make(chan error, 1)
	go func() {
		// No deadline: only Stop can release it.
		_, err := q.Submit(context.Background(), PathOpenCrate)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Stop()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("Submit still blocked after Stop")
	}
}

func TestQueueSubmitAfterStop(t *testing.T) {
	q := NewQueue(NewTable(crate.VariantStop))
	q.Stop()
	q.Stop()

	_, err := q.Submit(context.Background(), PathLockState)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestQueueStopKeepsServedReply(t *testing.T) {
	d := newDevice(t, crate.VariantStop)
	q := NewQueue(NewTable(crate.VariantStop))

	go func() {
		req := <-q.Requests()
		q.Serve(req, d.ctrl)
		q.Stop()
	}()

	resp, err := q.Submit(context.Background(), PathLockState)
	require.NoError(t, err)
	assert.Equal(t, BodyUnlocked, resp.Body)
}
