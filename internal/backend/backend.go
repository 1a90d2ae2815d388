// Package backend implements the Backend Adapter from spec.md §4.E: an
// iterator over UniqueSolutions binding a USB hashing device to a Work
// Generator (via the Engine Channel) as input and the Solution Channel as
// output.
//
// Grounded on controller.go's OpenDevice strategy-fallback and
// ComputeBatch/pollForNonce polling-with-timeout loop from the source
// module, and on ASICMethod's sync.RWMutex-guarded state plus Reconnect
// method for the failure-capture/stop-reason contract.
package backend

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"hashwork/internal/driver/usbdevice"
	"hashwork/internal/engine"
	"hashwork/internal/minererr"
	"hashwork/internal/stats"
	"hashwork/pkg/mining"
)

// State is the Adapter's lifecycle state per spec.md §4.E.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateWorking
	StateSwitching
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateWorking:
		return "working"
	case StateSwitching:
		return "switching"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// WaitTimeout is the minimum clamp on a single wait_for_nonce call.
const WaitTimeout = 100 * time.Millisecond

// reduceMargin is the safety margin subtracted from a device's full-nonce
// time to get MAX_READ_TIME, per spec.md §4.E.
const reduceMargin = 3 * WaitTimeout / 2

// primeFirstAssignment controls whether the adapter sends the very first
// assignment of its lifetime twice. Per spec.md §9's open question: some
// devices in the field silently drop the first work packet sent right
// after bring-up; the workaround observed is to prime the pipe with a
// duplicate send. Left as a named, documented, disable-able constant
// rather than baked-in behavior, since whether this is a genuine hardware
// quirk or a protocol-ordering bug upstream remains unresolved.
const primeFirstAssignment = true

// Config carries the tunable knobs from spec.md §6 the Adapter needs.
type Config struct {
	AsicDifficulty uint64
	HashboardIndex int
	// FullNonceTime is the device's time to exhaust a full nonce search at
	// its configured midstate count; MAX_READ_TIME derives from it. There
	// is no universal constant across Icarus-family boards, so this is a
	// config knob rather than a package constant.
	FullNonceTime time.Duration
}

// workSource is the narrow interface the Adapter needs from a Work
// Generator wrapped behind an Engine Channel receiver: "give me the next
// Assignment, or tell me upstream is closed."
type workSource interface {
	Next(ctx context.Context) (*mining.Assignment, bool)
}

// EngineProducer adapts an *engine.Receiver into a workSource, hiding the
// get-engine/next-work/notify-exhausted dance the Engine Channel's
// contract requires (spec.md §4.C) behind a single blocking call.
type EngineProducer struct {
	recv *engine.Receiver
}

// NewEngineProducer wraps recv.
func NewEngineProducer(recv *engine.Receiver) *EngineProducer {
	return &EngineProducer{recv: recv}
}

// Next implements workSource.
func (p *EngineProducer) Next(ctx context.Context) (*mining.Assignment, bool) {
	for {
		eng, err := p.recv.GetEngine(ctx)
		if err != nil {
			return nil, false
		}
		work, state := eng.NextWork(ctx)
		switch state {
		case engine.Continue:
			return work, true
		case engine.Break:
			p.recv.NotifyExhausted()
			return work, true
		case engine.Exhausted:
			p.recv.NotifyExhausted()
			// loop: ask for the (possibly still-same) engine again, which
			// blocks until the orchestrator broadcasts a fresh one.
		}
	}
}

// pendingWork pairs an Assignment with the solution_id counter scoped to
// it, the "prev" of spec.md §4.E's correlation rule.
type pendingWork struct {
	assignment *mining.Assignment
	solutionID uint32
}

// Adapter is the iterator-shaped Backend Adapter.
type Adapter struct {
	device *usbdevice.Device
	source workSource
	cfg    Config
	target *big.Int

	workStart    time.Time
	currWork     *pendingWork
	nextSolution *mining.UniqueSolution
	primed       bool

	mu         sync.Mutex
	state      State
	stopReason error
}

// New constructs an Adapter bound to device, drawing Assignments from
// source (normally an EngineProducer).
func New(device *usbdevice.Device, source workSource, cfg Config) *Adapter {
	if cfg.FullNonceTime <= 0 {
		minererr.Panic("backend: FullNonceTime must be positive")
	}
	return &Adapter{
		device: device,
		source: source,
		cfg:    cfg,
		target: mining.TargetForDifficulty(cfg.AsicDifficulty),
		state:  StateUninitialized,
	}
}

// State reports the Adapter's current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// StopReason returns the captured terminal error, if any. Only meaningful
// once State() reports StateTerminated.
func (a *Adapter) StopReason() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopReason
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Adapter) terminate(err error) {
	a.mu.Lock()
	a.state = StateTerminated
	if a.stopReason == nil {
		a.stopReason = err
	}
	a.mu.Unlock()
}

// maxReadTime derives MAX_READ_TIME from the configured full-nonce time.
func (a *Adapter) maxReadTime() time.Duration {
	d := a.cfg.FullNonceTime - reduceMargin
	if d < WaitTimeout {
		return WaitTimeout
	}
	return d
}

// Next implements spec.md §4.E's per-assignment loop, returning the next
// UniqueSolution or ok=false once the Adapter has terminated (check
// StopReason to distinguish a clean shutdown from a captured failure).
func (a *Adapter) Next(ctx context.Context) (*mining.UniqueSolution, bool) {
	if a.State() == StateTerminated {
		return nil, false
	}

	if a.nextSolution != nil {
		sol := a.nextSolution
		a.nextSolution = nil
		return sol, true
	}

	var prev *pendingWork

	for {
		if a.currWork != nil {
			a.setState(StateWorking)
			timeout := a.maxReadTime() - time.Since(a.workStart)
			if timeout < WaitTimeout {
				timeout = WaitTimeout
			}

			nonce, err := a.device.ReadNonce(ctx, timeout)
			if err == nil {
				now := time.Now()
				if now.Before(a.workStart) {
					a.terminate(minererr.New(minererr.KindTimer, "clock regression detected"))
					return nil, false
				}

				emitNow, stash, buildErr := a.buildSolution(prev, now, nonce)
				if buildErr != nil {
					a.terminate(buildErr)
					return nil, false
				}
				if stash != nil {
					a.nextSolution = stash
				}
				if emitNow != nil {
					return emitNow, true
				}
				continue
			}
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				// Genuine wait-for-nonce timeout: fall through to advance to
				// the next assignment, per spec.md §4.E step 3c.
			case errors.Is(err, context.Canceled):
				// The caller's ctx was cancelled: a clean shutdown, not a
				// captured failure.
				a.terminate(nil)
				return nil, false
			default:
				// Any other error is a genuine USB transport failure, fatal
				// per spec.md §4.E/§7: stored and iteration ends, rather
				// than silently treated as a timeout and advanced past.
				a.terminate(err)
				return nil, false
			}
		}

		a.setState(StateSwitching)
		if a.currWork != nil {
			prev = &pendingWork{assignment: a.currWork.assignment, solutionID: a.currWork.solutionID}
		}

		work, ok := a.source.Next(ctx)
		if !ok {
			a.terminate(nil)
			return nil, false
		}

		if err := a.sendWork(work); err != nil {
			a.terminate(err)
			return nil, false
		}

		a.workStart = time.Now()
		a.currWork = &pendingWork{assignment: work}
	}
}

// sendWork transmits every midstate of work to the device, priming the
// very first assignment with a duplicate send if primeFirstAssignment is
// enabled.
func (a *Adapter) sendWork(work *mining.Assignment) error {
	for idx := range work.Midstates {
		payload := mining.BuildWorkPayload(work, idx)
		if err := a.device.SendWork(payload); err != nil {
			return err
		}
	}
	if primeFirstAssignment && !a.primed {
		for idx := range work.Midstates {
			payload := mining.BuildWorkPayload(work, idx)
			if err := a.device.SendWork(payload); err != nil {
				return err
			}
		}
	}
	a.primed = true
	return nil
}

// buildSolution implements spec.md §4.E step 3.b's correlation rule.
// emitNow is returned to the caller immediately, stash is saved as the
// adapter's one-deep lookahead for the following Next call. Both are set
// only when the nonce matches prev and the current assignment as well;
// otherwise stash is nil.
func (a *Adapter) buildSolution(prev *pendingWork, now time.Time, nonce uint32) (emitNow, stash *mining.UniqueSolution, err error) {
	// A just-completed switch means the hardware had no time to consume
	// the new assignment: the nonce most plausibly still belongs to prev.
	// Check prev first so that case wins the correlation.
	if prev != nil {
		if prevSolution, _ := a.solutionFor(prev, now, nonce); prevSolution != nil {
			currSolution, _ := a.solutionFor(a.currWork, now, nonce)
			return prevSolution, currSolution, nil
		}
	}

	currSolution, matchErr := a.solutionFor(a.currWork, now, nonce)
	if matchErr != nil {
		return nil, nil, matchErr
	}
	if currSolution == nil {
		// The nonce doesn't hash below target against any midstate within
		// the one-deep lookahead window (prev or curr): correlation
		// ambiguity beyond that window is explicitly not chased further,
		// per spec.md §9 — it manifests here as a stale-solution counter
		// increment, since this repo has no separate upstream accounting
		// layer to attribute it to.
		stats.AddStaleSolution()
		return nil, nil, nil
	}
	return currSolution, nil, nil
}

// solutionFor attempts to correlate nonce against pw's assignment,
// returning nil (not an error) if no midstate matches.
func (a *Adapter) solutionFor(pw *pendingWork, now time.Time, nonce uint32) (*mining.UniqueSolution, error) {
	if pw == nil {
		return nil, nil
	}
	idx, _, ok := mining.MatchMidstate(pw.assignment, nonce, a.target)
	if !ok {
		return nil, nil
	}

	nextID := pw.solutionID
	if nextID == ^uint32(0) {
		minererr.Panic("backend: too many solutions for one assignment")
	}
	pw.solutionID = nextID + 1

	return &mining.UniqueSolution{
		Assignment: pw.assignment,
		Solution: mining.Solution{
			Nonce:       nonce,
			MidstateIdx: idx,
			SolutionID:  nextID,
		},
		ReceivedAt: now,
	}, nil
}

// Close releases the underlying USB handle. Safe to call after
// termination; idempotent.
func (a *Adapter) Close() error {
	return a.device.Close()
}
