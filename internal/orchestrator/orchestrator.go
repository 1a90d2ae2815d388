// Package orchestrator wires the Job Channel, Work Generator, Engine
// Channel, Backend Adapter(s), and Solution Channel into a running
// pipeline, and supervises backend restarts on failure.
//
// Grounded on internal/discovery/discovery.go's bounded-concurrency worker
// pool (sync.WaitGroup plus a semaphore channel) from the source module
// for supervising multiple concurrent backends, and on controller.go's
// OpenDevice retry/fallback narrative for the backend-restart policy —
// here narrowed to one real transport (the USB-to-UART bridge) instead of
// controller.go's CGMiner/kernel/USB three-way fallback, since only that
// one device family is in scope.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"hashwork/internal/backend"
	"hashwork/internal/config"
	"hashwork/internal/driver/usbdevice"
	"hashwork/internal/engine"
	"hashwork/internal/jobchannel"
	"hashwork/internal/solutionchannel"
	"hashwork/internal/stats"
	"hashwork/internal/workgen"
	"hashwork/pkg/mining"
)

// restartBackoff is the fixed delay between a backend's termination and
// the orchestrator's next attempt to reopen its device. A fixed delay
// rather than exponential: USB re-enumeration after a bridge reset takes a
// roughly constant amount of time regardless of how many attempts have
// already failed.
const restartBackoff = 2 * time.Second

// Orchestrator owns the shared Job Channel and Solution Channel, and
// supervises one backend goroutine per configured hashboard.
type Orchestrator struct {
	jobs      *jobchannel.JobChannel
	solutions *solutionchannel.Channel
	cfg       config.MiningConfig

	wg sync.WaitGroup
}

// New creates an Orchestrator with an empty Job Channel and a fresh
// Solution Channel.
func New(cfg config.MiningConfig) *Orchestrator {
	return &Orchestrator{
		jobs:      jobchannel.New(),
		solutions: solutionchannel.New(),
		cfg:       cfg,
	}
}

// PublishJob installs job as the currently active job, per spec.md §4.A.
func (o *Orchestrator) PublishJob(job *mining.Job) {
	o.jobs.Publish(job)
}

// Solutions returns the channel to range over for collected UniqueSolutions.
func (o *Orchestrator) Solutions() <-chan mining.UniqueSolution {
	return o.solutions.Receive()
}

// StartBackend launches a supervised backend goroutine for the given
// hashboard index. The index labels the backend in logs and its
// backend.Config; the device opened is the first one matching
// usbdevice.VendorID/ProductID, whatever the index. It returns
// immediately; the backend runs until ctx is cancelled or, while its
// generator is waiting for a job, Shutdown is called.
func (o *Orchestrator) StartBackend(ctx context.Context, hashboardIndex int) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.superviseBackend(ctx, hashboardIndex)
	}()
}

// superviseBackend runs one backend to completion, restarting it with a
// fixed backoff on failure, until ctx is done.
func (o *Orchestrator) superviseBackend(ctx context.Context, hashboardIndex int) {
	sender := o.solutions.NewSender()

	for {
		if ctx.Err() != nil {
			return
		}

		err := o.runBackendOnce(ctx, hashboardIndex, sender)
		if err == nil {
			// Clean shutdown (context cancellation observed inside the
			// adapter loop, or upstream closed the Job Channel).
			return
		}

		log.Printf("orchestrator: backend %d terminated: %v; restarting in %s",
			hashboardIndex, err, restartBackoff)

		select {
		case <-time.After(restartBackoff):
		case <-ctx.Done():
			return
		}
	}
}

// runBackendOnce opens one device, wires its private Generator/Engine
// chain, and runs the Backend Adapter's iterator to completion. It
// returns nil for a clean shutdown and the captured stop reason otherwise.
func (o *Orchestrator) runBackendOnce(ctx context.Context, hashboardIndex int, sender solutionchannel.Sender) error {
	dev, err := usbdevice.Open()
	if err != nil {
		if state, probeErr := usbdevice.CheckDeviceState(); probeErr != nil {
			log.Printf("orchestrator: backend %d device probe: %v (state=%v)", hashboardIndex, probeErr, state)
		}
		return err
	}
	defer dev.Close()

	gen := workgen.New(o.jobs, o.cfg.MidstateCount)
	streamEngine := engine.NewStreamEngine(gen)

	engineCh := engine.NewChannel()
	engineCh.Broadcast(streamEngine)
	receiver := engine.NewReceiver(engineCh)

	// The reschedule channel only produces notifications once the
	// StreamEngine reports exhausted — i.e. once Generate has returned
	// ok=false (upstream closed the Job Channel, or ctx was done while it
	// waited for a job). There is nothing new to broadcast in that case;
	// draining the channel here just keeps its buffer from filling, so
	// NotifyExhausted's non-blocking send is not dropped. The
	// drain goroutine exits with this backend attempt rather than
	// outliving it, since engineCh itself is scoped to one attempt.
	drainDone := make(chan struct{})
	defer close(drainDone)
	go func() {
		for {
			select {
			case <-engineCh.Reschedule():
			case <-drainDone:
				return
			}
		}
	}()

	producer := backend.NewEngineProducer(receiver)
	adapter := backend.New(dev, producer, backend.Config{
		AsicDifficulty: o.cfg.AsicDifficulty,
		HashboardIndex: hashboardIndex,
		FullNonceTime:  o.cfg.FullNonceTime,
	})

	for {
		sol, ok := adapter.Next(ctx)
		if !ok {
			return adapter.StopReason()
		}
		stats.AddShares(o.cfg.AsicDifficulty)
		sender.Send(*sol)
	}
}

// Shutdown closes the Job Channel's event stream and waits for every
// backend goroutine to exit, then closes the Solution Channel. The closed
// event stream ends a backend's generator only while that generator is
// waiting for a job; a backend whose generator holds a job exits once the
// ctx passed to StartBackend is cancelled.
func (o *Orchestrator) Shutdown() {
	o.jobs.Close()
	o.wg.Wait()
	o.solutions.Close()
}
