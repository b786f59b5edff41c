// Package command maps the prop's command paths to controller actions.
//
// Handlers run only on the control loop. Other goroutines (HTTP, MQTT) hand
// requests to the loop through a Queue and wait for the Response.
package command

import "github.com/sweeney/crate-controller/internal/crate"

// Command paths.
const (
	PathOpenCrate    = "/crate/open"
	PathCloseCrate   = "/crate/close"
	PathStopCrate    = "/crate/stop"
	PathUnlockDrawer = "/drawer/unlock"
	PathLockDrawer   = "/drawer/lock"
	PathSetSpare     = "/spare/set"
	PathClearSpare   = "/spare/clear"
	PathResetState   = "/reset/get"
	PathLockState    = "/lock/get"
)

// Query response bodies.
const (
	BodyPressed    = "PRESSED\r\n\r\n"
	BodyNotPressed = "NOT PRESSED\r\n\r\n"
	BodyLocked     = "LOCKED\r\n\r\n"
	BodyUnlocked   = "UNLOCKED\r\n\r\n"
)

// Response is what a handler returns. Every command reports success whether
// or not the physical action happened; Body is empty except for queries.
type Response struct {
	Body string
}

// Handler performs one command against the controller.
type Handler interface {
	Handle(ctrl *crate.Controller) Response
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctrl *crate.Controller) Response

// Handle calls f(ctrl).
func (f HandlerFunc) Handle(ctrl *crate.Controller) Response {
	return f(ctrl)
}

// Route binds a path to a handler.
type Route struct {
	Path    string
	Handler Handler
}

// Table is an ordered list of routes.
type Table []Route

// NewTable returns the routes for a controller variant. The stop route exists
// only for the stop variant.
func NewTable(variant crate.Variant) Table {
	t := Table{
		{PathOpenCrate, HandlerFunc(openCrate)},
		{PathCloseCrate, HandlerFunc(closeCrate)},
	}
	if variant == crate.VariantStop {
		t = append(t, Route{PathStopCrate, HandlerFunc(stopCrate)})
	}
	return append(t,
		Route{PathUnlockDrawer, HandlerFunc(unlockDrawer)},
		Route{PathLockDrawer, HandlerFunc(lockDrawer)},
		Route{PathSetSpare, HandlerFunc(setSpare)},
		Route{PathClearSpare, HandlerFunc(clearSpare)},
		Route{PathResetState, HandlerFunc(resetState)},
		Route{PathLockState, HandlerFunc(lockState)},
	)
}

// Lookup returns the handler of the first route whose path equals path
// exactly.
func (t Table) Lookup(path string) (Handler, bool) {
	for _, r := range t {
		if r.Path == path {
			return r.Handler, true
		}
	}
	return nil, false
}

// Paths returns the route paths in table order.
func (t Table) Paths() []string {
	paths := make([]string, len(t))
	for i, r := range t {
		paths[i] = r.Path
	}
	return paths
}

func openCrate(ctrl *crate.Controller) Response {
	ctrl.Open(crate.SourceCommand)
	return Response{}
}

func closeCrate(ctrl *crate.Controller) Response {
	ctrl.Close(crate.SourceCommand)
	return Response{}
}

func stopCrate(ctrl *crate.Controller) Response {
	ctrl.Stop(crate.SourceCommand)
	return Response{}
}

func unlockDrawer(ctrl *crate.Controller) Response {
	ctrl.UnlockDrawer(crate.SourceCommand)
	return Response{}
}

func lockDrawer(ctrl *crate.Controller) Response {
	ctrl.LockDrawer(crate.SourceCommand)
	return Response{}
}

func setSpare(ctrl *crate.Controller) Response {
	ctrl.SetSpare(crate.SourceCommand)
	return Response{}
}

func clearSpare(ctrl *crate.Controller) Response {
	ctrl.ClearSpare(crate.SourceCommand)
	return Response{}
}

func resetState(ctrl *crate.Controller) Response {
	if ctrl.ResetPressed() {
		return Response{Body: BodyPressed}
	}
	return Response{Body: BodyNotPressed}
}

func lockState(ctrl *crate.Controller) Response {
	if ctrl.Locked() {
		return Response{Body: BodyLocked}
	}
	return Response{Body: BodyUnlocked}
}
