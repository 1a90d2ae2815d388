// Package engine implements the Engine abstraction and Engine Channel from
// spec.md §3 and §4.C: a consumable, thread-safe source of Assignments with
// two variants (StreamEngine, OneShotEngine), plus a single-slot broadcast
// channel distributing the currently active engine with an out-of-band
// reschedule signal.
//
// Grounded on the tagged-capability-interface style of
// pkg/hashing/core/interface.go's HashMethod in the source module — per
// spec.md §9, "implement as a tagged variant behind an interface, not
// inheritance" is exactly how HashMethod's variants (ASICMethod, a CGMiner
// implementation, a software fallback) are already structured there.
package engine

import (
	"context"
	"sync"

	"hashwork/internal/workgen"
	"hashwork/pkg/mining"
)

// LoopState is the three-valued result of a call that may advance an
// Engine, per spec.md §3's EngineLoopState.
type LoopState int

const (
	// Continue indicates more work remains after the returned Assignment.
	Continue LoopState = iota
	// Break indicates the returned Assignment is the last; the engine is
	// now exhausted.
	Break
	// Exhausted indicates no work is available right now.
	Exhausted
)

// Engine is a stateful, thread-safe producer of Assignments. The two
// operations are the whole capability set spec.md §9 names: callers never
// need to know which variant they hold.
type Engine interface {
	// IsExhausted reports whether the engine has no more work to give.
	IsExhausted() bool
	// NextWork advances the engine, returning the next Assignment (if any)
	// and the resulting LoopState.
	NextWork(ctx context.Context) (*mining.Assignment, LoopState)
}

// StreamEngine wraps a Work Generator's lazy output. It becomes exhausted
// when Generate returns ok=false: the Job Channel was closed, or ctx was
// done, while the generator was waiting for a job.
type StreamEngine struct {
	gen *workgen.Generator

	mu        sync.Mutex
	exhausted bool
}

// NewStreamEngine wraps gen as an Engine.
func NewStreamEngine(gen *workgen.Generator) *StreamEngine {
	return &StreamEngine{gen: gen}
}

func (s *StreamEngine) IsExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

func (s *StreamEngine) NextWork(ctx context.Context) (*mining.Assignment, LoopState) {
	assignment, ok := s.gen.Generate(ctx)
	if !ok {
		s.mu.Lock()
		s.exhausted = true
		s.mu.Unlock()
		return nil, Exhausted
	}
	return assignment, Continue
}

// OneShotEngine yields exactly one pre-built Assignment, then reports
// exhausted forever after. Used in tests and for injecting targeted work.
type OneShotEngine struct {
	mu        sync.Mutex
	work      *mining.Assignment
	delivered bool
}

// NewOneShotEngine wraps a single Assignment.
func NewOneShotEngine(work *mining.Assignment) *OneShotEngine {
	return &OneShotEngine{work: work}
}

func (o *OneShotEngine) IsExhausted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.delivered
}

func (o *OneShotEngine) NextWork(_ context.Context) (*mining.Assignment, LoopState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.delivered {
		return nil, Exhausted
	}
	o.delivered = true
	return o.work, Break
}
