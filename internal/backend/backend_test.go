package backend

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hashwork/internal/engine"
	"hashwork/pkg/mining"
)

// easyTarget is larger than any possible 256-bit digest, so MatchMidstate
// (and therefore solutionFor) always succeeds — lets these tests exercise
// the correlation/bookkeeping logic without a real proof-of-work search.
func easyTarget() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 256)
}

func newPendingWork(job *mining.Job) *pendingWork {
	assignment := &mining.Assignment{
		Job:       job,
		Midstates: []mining.Midstate{{Version: job.Version}},
		NTime:     job.NTime,
		Bits:      job.Bits,
	}
	return &pendingWork{assignment: assignment}
}

func newTestAdapter() *Adapter {
	return &Adapter{target: easyTarget()}
}

func TestSolutionForAssignsIncreasingSolutionIDs(t *testing.T) {
	a := newTestAdapter()
	pw := newPendingWork(&mining.Job{Version: 1, Bits: 1})

	sol1, err := a.solutionFor(pw, time.Now(), 1)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0), sol1.Solution.SolutionID)

	sol2, err := a.solutionFor(pw, time.Now(), 2)
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), sol2.Solution.SolutionID)
}

func TestSolutionForReturnsNilOnNoMidstateMatch(t *testing.T) {
	a := &Adapter{target: big.NewInt(0)} // impossible target
	pw := newPendingWork(&mining.Job{Version: 1, Bits: 1})

	sol, err := a.solutionFor(pw, time.Now(), 1)
	assert.NoError(t, err)
	assert.Nil(t, sol)
}

func TestSolutionForNilPendingWorkIsNil(t *testing.T) {
	a := newTestAdapter()
	sol, err := a.solutionFor(nil, time.Now(), 1)
	assert.NoError(t, err)
	assert.Nil(t, sol)
}

func TestSolutionForPanicsOnSolutionIDOverflow(t *testing.T) {
	a := newTestAdapter()
	pw := newPendingWork(&mining.Job{Version: 1, Bits: 1})
	pw.solutionID = ^uint32(0)

	assert.Panics(t, func() {
		a.solutionFor(pw, time.Now(), 1)
	})
}

func TestBuildSolutionPrefersPrevOverCurrentOnSwitch(t *testing.T) {
	a := newTestAdapter()
	prev := newPendingWork(&mining.Job{Version: 1, Bits: 1})
	a.currWork = newPendingWork(&mining.Job{Version: 2, Bits: 1})

	emitNow, stash, err := a.buildSolution(prev, time.Now(), 7)
	assert.NoError(t, err)
	assert.NotNil(t, emitNow, "a nonce arriving right after a switch must correlate to prev first")
	assert.Same(t, prev.assignment, emitNow.Assignment)
	assert.NotNil(t, stash, "the current assignment also matches, so it must be stashed for the next call")
	assert.Same(t, a.currWork.assignment, stash.Assignment)
}

func TestBuildSolutionFallsBackToCurrentWhenNoPrev(t *testing.T) {
	a := newTestAdapter()
	a.currWork = newPendingWork(&mining.Job{Version: 2, Bits: 1})

	emitNow, stash, err := a.buildSolution(nil, time.Now(), 7)
	assert.NoError(t, err)
	assert.NotNil(t, emitNow)
	assert.Same(t, a.currWork.assignment, emitNow.Assignment)
	assert.Nil(t, stash)
}

func TestBuildSolutionDropsUnmatchedNonce(t *testing.T) {
	a := &Adapter{target: big.NewInt(0)} // impossible target: nothing ever matches
	a.currWork = newPendingWork(&mining.Job{Version: 2, Bits: 1})

	emitNow, stash, err := a.buildSolution(nil, time.Now(), 7)
	assert.NoError(t, err)
	assert.Nil(t, emitNow)
	assert.Nil(t, stash)
}

func TestMaxReadTimeClampsToWaitTimeout(t *testing.T) {
	a := &Adapter{cfg: Config{FullNonceTime: 50 * time.Millisecond}}
	assert.Equal(t, WaitTimeout, a.maxReadTime(), "a FullNonceTime smaller than the reduce margin clamps to WaitTimeout")
}

func TestMaxReadTimeSubtractsReduceMargin(t *testing.T) {
	a := &Adapter{cfg: Config{FullNonceTime: time.Second}}
	assert.Equal(t, time.Second-reduceMargin, a.maxReadTime())
}

func TestNewPanicsOnNonPositiveFullNonceTime(t *testing.T) {
	assert.Panics(t, func() {
		New(nil, nil, Config{AsicDifficulty: 1, FullNonceTime: 0})
	})
}

func TestTerminateCapturesFirstStopReasonOnly(t *testing.T) {
	a := newTestAdapter()
	first := assertError("first")
	second := assertError("second")

	a.terminate(first)
	a.terminate(second)

	assert.Equal(t, StateTerminated, a.State())
	assert.Equal(t, first, a.StopReason())
}

type stringError string

func (e stringError) Error() string { return string(e) }

func assertError(msg string) error { return stringError(msg) }

func TestEngineProducerReturnsWorkOnBreakAndNotifiesExhausted(t *testing.T) {
	ch := engine.NewChannel()
	work := &mining.Assignment{Job: &mining.Job{Version: 1}}
	ch.Broadcast(engine.NewOneShotEngine(work))

	producer := NewEngineProducer(engine.NewReceiver(ch))
	got, ok := producer.Next(context.Background())

	assert.True(t, ok)
	assert.Same(t, work, got)

	select {
	case <-ch.Reschedule():
	case <-time.After(time.Second):
		t.Fatal("expected a reschedule notification once the one-shot engine was consumed")
	}
}

func TestEngineProducerReturnsFalseOnContextCancellation(t *testing.T) {
	ch := engine.NewChannel()
	producer := NewEngineProducer(engine.NewReceiver(ch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := producer.Next(ctx)
	assert.False(t, ok)
}
