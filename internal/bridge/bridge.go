// Package bridge lets front-end goroutines call into the control loop and
// block until it answers.
//
// At most one request is in flight at a time across all callers. The loop
// side never blocks: it polls with TryRecv once per iteration and answers
// each request with Complete before touching the next one.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	ErrUnknownPin       = errors.New("unknown pin")
	ErrAlreadyResetting = errors.New("pin is already resetting")
	ErrHeapFull         = errors.New("too many pending resets")
	ErrLineWrite        = errors.New("gpio line write failed")
	ErrUnsupportedOp    = errors.New("unsupported operation")
	ErrStopped          = errors.New("control loop is not running")
)

// Op is one operation kind the control loop knows how to run.
type Op interface {
	fmt.Stringer
	op()
}

// ResetOp drives a reset line active for Hold, then releases it.
type ResetOp struct {
	Pin  string
	Hold time.Duration
}

func (ResetOp) op() {}

func (o ResetOp) String() string {
	return fmt.Sprintf("reset(%s, %s)", o.Pin, o.Hold)
}

// StatusOp asks the loop for a Status snapshot.
type StatusOp struct{}

func (StatusOp) op() {}

func (StatusOp) String() string { return "status" }

// Status is the result of a StatusOp.
type Status struct {
	ResetPins  []string       `json:"reset_pins"`
	BlinkLines int            `json:"blink_lines"`
	Pending    []PendingReset `json:"pending"`
	Iterations uint64         `json:"iterations"`
}

type PendingReset struct {
	Pin       string        `json:"pin"`
	Remaining time.Duration `json:"remaining"`
}

type reply struct {
	value any
	err   error
}

// Request is lent to the control loop between TryRecv and Complete. The loop
// must not keep it after calling Complete.
type Request struct {
	Op Op

	done      chan reply
	completed bool
}

// NewRequest builds a request for op that is not queued anywhere yet.
func NewRequest(op Op) *Request {
	return &Request{Op: op, done: make(chan reply, 1)}
}

// Result blocks until the request is completed.
func (r *Request) Result() (any, error) {
	res := <-r.done
	r.done <- res
	return res.value, res.err
}

// Complete answers the request and wakes its caller. It must be called
// exactly once.
func (r *Request) Complete(value any, err error) {
	if r.completed {
		panic("bridge: request completed twice")
	}
	r.completed = true
	r.done <- reply{value: value, err: err}
}

type Bridge struct {
	sem      *semaphore.Weighted
	slot     chan *Request
	stopped  chan struct{}
	stopOnce sync.Once
}

func New() *Bridge {
	return &Bridge{
		sem:     semaphore.NewWeighted(1),
		slot:    make(chan *Request, 1),
		stopped: make(chan struct{}),
	}
}

// Call sends op to the control loop and waits for its answer. ctx only
// bounds the wait for the in-flight slot: once the request has been handed
// over it cannot be cancelled and Call returns only when the loop completes
// it or shuts down.
func (b *Bridge) Call(ctx context.Context, op Op) (any, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	select {
	case <-b.stopped:
		return nil, ErrStopped
	default:
	}

	req := NewRequest(op)
	b.slot <- req

	select {
	case r := <-req.done:
		return r.value, r.err
	case <-b.stopped:
		select {
		case r := <-req.done:
			return r.value, r.err
		default:
			return nil, ErrStopped
		}
	}
}

// TryRecv returns the pending request, if any, without blocking.
func (b *Bridge) TryRecv() (*Request, bool) {
	select {
	case req := <-b.slot:
		return req, true
	default:
		return nil, false
	}
}

// Shutdown fails the queued request, if any, and every later Call with
// ErrStopped. It is called by the control loop when it exits.
func (b *Bridge) Shutdown() {
	b.stopOnce.Do(func() { close(b.stopped) })
	for {
		req, ok := b.TryRecv()
		if !ok {
			return
		}
		req.Complete(nil, ErrStopped)
	}
}

// Reset asks the loop to hold pin in reset for hold.
func (b *Bridge) Reset(ctx context.Context, pin string, hold time.Duration) error {
	_, err := call[struct{}](ctx, b, ResetOp{Pin: pin, Hold: hold})
	return err
}

func (b *Bridge) Status(ctx context.Context) (Status, error) {
	return call[Status](ctx, b, StatusOp{})
}

func call[R any](ctx context.Context, b *Bridge, op Op) (R, error) {
	var zero R
	v, err := b.Call(ctx, op)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result %T: %w", op, v, ErrUnsupportedOp)
	}
	return r, nil
}
