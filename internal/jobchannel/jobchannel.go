// Package jobchannel implements the single-slot job mailbox described in
// spec.md §4.A: the latest published Job plus an edge-triggered "a new job
// arrived" event stream.
//
// Grounded on the mutex-guarded-slot pattern used for Device.stats/Device.mu
// in the source module's internal/driver/device/controller.go: a small
// critical section protecting a value, not a queue — "latest wins" is the
// whole point, stale jobs have no value to a miner.
package jobchannel

import (
	"context"

	"hashwork/pkg/mining"
)

// JobChannel is a single-slot mailbox holding the currently active job.
// Safe for concurrent publish and concurrent reads from multiple consumers
// (spec.md §5: "the Job Channel permits concurrent readers").
type JobChannel struct {
	mu      chan struct{} // binary mutex (buffered chan) guarding current
	current *mining.Job
	events  chan struct{} // capacity 1, edge-triggered
	closed  chan struct{}
}

// New creates an empty Job Channel.
func New() *JobChannel {
	jc := &JobChannel{
		mu:     make(chan struct{}, 1),
		events: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	jc.mu <- struct{}{}
	return jc
}

func (jc *JobChannel) lock()   { <-jc.mu }
func (jc *JobChannel) unlock() { jc.mu <- struct{}{} }

// Publish atomically replaces the slot with job. If the slot was
// previously empty, this is a level-to-edge conversion: exactly one event
// is emitted. If the slot was already holding a job, no event fires —
// consumers are expected to notice the change via identity comparison the
// next time they poll, per spec.md §4.A.
func (jc *JobChannel) Publish(job *mining.Job) {
	jc.lock()
	wasEmpty := jc.current == nil
	jc.current = job
	jc.unlock()

	if wasEmpty {
		select {
		case jc.events <- struct{}{}:
		default:
			// an event is already pending; coalescing is fine, the
			// consumer re-reads the slot on wake regardless.
		}
	}
}

// TakeCurrent performs a non-blocking read of the slot.
func (jc *JobChannel) TakeCurrent() *mining.Job {
	jc.lock()
	defer jc.unlock()
	return jc.current
}

// Clear empties the slot. Invoked by the generator on address-space
// exhaustion so the next call blocks until upstream republishes.
func (jc *JobChannel) Clear() {
	jc.lock()
	jc.current = nil
	jc.unlock()
}

// Close permanently closes the event stream. Any Await in progress, and
// all future Awaits, return ErrClosed immediately.
func (jc *JobChannel) Close() {
	select {
	case <-jc.closed:
		// already closed
	default:
		close(jc.closed)
	}
}

// ErrClosed is returned by Await once the channel has been closed.
var ErrClosed = errClosed{}

type errClosed struct{}

func (errClosed) Error() string { return "jobchannel: closed" }

// Await blocks until a new-job event is available, the channel is closed,
// or ctx is done, whichever happens first. It consumes at most one event.
func (jc *JobChannel) Await(ctx context.Context) error {
	select {
	case <-jc.closed:
		return ErrClosed
	default:
	}
	select {
	case <-jc.events:
		return nil
	case <-jc.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
