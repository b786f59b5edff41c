package command

import (
	"context"
	"errors"
	"sync"

	"github.com/sweeney/crate-controller/internal/crate"
)

// ErrUnknownPath is returned by Submit for a path that has no route.
var ErrUnknownPath = errors.New("unknown command path")

// ErrStopped is returned by Submit once the control loop has stopped serving.
var ErrStopped = errors.New("command queue stopped")

// Request is a command waiting to be served by the control loop.
type Request struct {
	Path    string
	handler Handler
	reply   chan Response
}

// Queue hands commands from any goroutine to the control loop, one at a time.
type Queue struct {
	table    Table
	requests chan *Request
	done     chan struct{}
	stopOnce sync.Once
}

// NewQueue creates a queue dispatching through table.
func NewQueue(table Table) *Queue {
	return &Queue{
		table:    table,
		requests: make(chan *Request),
		done:     make(chan struct{}),
	}
}

// Table returns the routing table.
func (q *Queue) Table() Table {
	return q.table
}

// Submit resolves path and blocks until the control loop has served it, ctx
// is done, or the queue is stopped.
func (q *Queue) Submit(ctx context.Context, path string) (Response, error) {
	h, ok := q.table.Lookup(path)
	if !ok {
		return Response{}, ErrUnknownPath
	}

	select {
	case <-q.done:
		return Response{}, ErrStopped
	default:
	}

	// Buffered so Serve never blocks on a caller that gave up.
	req := &Request{Path: path, handler: h, reply: make(chan Response, 1)}

	select {
	case q.requests <- req:
	case <-q.done:
		return Response{}, ErrStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-q.done:
		// The loop may have replied just before stopping.
		select {
		case resp := <-req.reply:
			return resp, nil
		default:
		}
		return Response{}, ErrStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Stop releases every pending and future Submit with ErrStopped. The control
// loop calls it when it returns. Safe to call more than once.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.done) })
}

// Requests returns the channel the control loop receives from.
func (q *Queue) Requests() <-chan *Request {
	return q.requests
}

// Serve runs req against ctrl and replies to the submitter.
func (q *Queue) Serve(req *Request, ctrl *crate.Controller) Response {
	resp := req.Run(ctrl)
	req.Reply(resp)
	return resp
}

// Run performs the command without replying, so the caller can finish its
// own bookkeeping before the submitter is released.
func (r *Request) Run(ctrl *crate.Controller) Response {
	return r.handler.Handle(ctrl)
}

// Reply releases the submitter with resp. Call it once.
func (r *Request) Reply(resp Response) {
	r.reply <- resp
}
