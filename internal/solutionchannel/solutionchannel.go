// Package solutionchannel implements the unbounded multi-producer solution
// stream from spec.md §4.D: backends send UniqueSolutions, the
// orchestrator drains them with no ordering guarantee across producers but
// FIFO per producer.
//
// Grounded on the MPSC fan-in pattern in internal/discovery/discovery.go
// from the source module (`results := make(chan DiscoveryResult, 100)` fed
// by a worker pool), generalized from a fixed-capacity channel to a
// genuinely unbounded one via an internal buffering goroutine — spec.md
// §4.D requires producers never block on a full channel.
package solutionchannel

import "hashwork/pkg/mining"

// Channel is an unbounded MPSC stream of UniqueSolutions.
type Channel struct {
	in     chan mining.UniqueSolution
	out    chan mining.UniqueSolution
	closed chan struct{}
}

// New creates an empty Solution Channel and starts its buffering goroutine.
func New() *Channel {
	c := &Channel{
		in:     make(chan mining.UniqueSolution),
		out:    make(chan mining.UniqueSolution),
		closed: make(chan struct{}),
	}
	go c.pump()
	return c
}

// pump buffers sends in an internal queue so Send never blocks on a slow
// or absent consumer, giving the channel unbounded capacity.
func (c *Channel) pump() {
	defer close(c.out)

	var queue []mining.UniqueSolution
	for {
		if len(queue) == 0 {
			sol, ok := <-c.in
			if !ok {
				return
			}
			queue = append(queue, sol)
			continue
		}

		select {
		case sol, ok := <-c.in:
			if !ok {
				// Drain remaining queue before exiting.
				for _, s := range queue {
					c.out <- s
				}
				return
			}
			queue = append(queue, sol)
		case c.out <- queue[0]:
			queue = queue[1:]
		}
	}
}

// Sender is a producer's handle onto a Channel. Each backend holds its own
// Sender; FIFO ordering is guaranteed per Sender, not across Senders.
type Sender struct {
	ch *Channel
}

// NewSender returns a Sender bound to ch.
func (c *Channel) NewSender() Sender {
	return Sender{ch: c}
}

// Send enqueues sol. Never blocks on downstream consumption.
func (s Sender) Send(sol mining.UniqueSolution) {
	s.ch.in <- sol
}

// Close terminates the channel, ending the orchestrator's Receive loop
// once the internal queue has drained. Called once all Senders have been
// dropped (in Go terms: once every backend has finished sending).
func (c *Channel) Close() {
	close(c.in)
}

// Receive returns the channel to range over for the orchestrator's
// collection loop. It closes once Close has been called and the internal
// queue is empty.
func (c *Channel) Receive() <-chan mining.UniqueSolution {
	return c.out
}
