// Package workgen implements the Work Generator described in spec.md §4.B:
// a stateful producer that rolls a job's version mining-mask bits into
// batches of midstates, detecting job turnover and address-space
// exhaustion.
//
// Grounded on the header-rolling logic in bitcoin_header.go's
// PrepareAsicJobBatch from the source module (the "synthesize N header
// variants, hash each to a midstate" shape), combined with usb_device.go's
// computeMidstate for the 64-byte-block convention. The turnover/exhaustion
// state machine itself has no analogue in the source module; it follows the
// version-rolling contract spec.md §4.B specifies directly.
package workgen

import (
	"context"
	"encoding/binary"

	"hashwork/internal/jobchannel"
	"hashwork/internal/minererr"
	"hashwork/pkg/mining"
)

// Generator rolls a job's mining-mask counter into successive Assignments.
// Not safe for concurrent Generate calls from multiple goroutines against
// the same Generator; per spec.md §5 each backend owns its own Generator
// instance, all reading the shared Job Channel.
type Generator struct {
	jobs *jobchannel.JobChannel
	m    int

	current     *mining.Job
	nextVersion uint32 // next counter to emit, may exceed uint16 range as a sentinel
	baseVersion uint32
}

// New creates a Generator with midstate count m (M ≥ 1) reading from jobs.
func New(jobs *jobchannel.JobChannel, m int) *Generator {
	if m < 1 {
		minererr.Panic("workgen: midstate count must be >= 1, got %d", m)
	}
	return &Generator{jobs: jobs, m: m}
}

// counterLimit is one past the largest legal 16-bit counter value.
const counterLimit = 1 << 16

// Generate produces the next Assignment, or returns ok=false if the Job
// Channel's event stream has closed (upstream shutdown) or ctx is done.
// Both are observed only while the generator waits for a job: while it
// holds one, Generate keeps rolling that job after Close.
func (g *Generator) Generate(ctx context.Context) (*mining.Assignment, bool) {
	job, ok := g.getJob(ctx)
	if !ok {
		return nil, false
	}

	start := g.nextVersion
	if !mining.Same(job, g.current) {
		g.adoptJob(job)
		// The first block after adoption always starts at counter 0;
		// nextVersion already records M, the counter the *second* block
		// will start from (spec.md §4.B step 2).
		start = 0
	}

	end := start + uint32(g.m)
	if end > counterLimit {
		// Address space exhausted: clear the slot so the next job read
		// blocks for a fresh publish, then behave exactly like a cold
		// start by recursing — the identical job would otherwise just
		// re-adopt and immediately exhaust again.
		g.jobs.Clear()
		g.current = nil
		return g.Generate(ctx)
	}

	assignment := g.rollAssignment(job, start, end)
	g.nextVersion = end
	return assignment, true
}

// getJob implements spec.md §4.B step 1: if no job is held, await the
// new-job event before loading the slot; otherwise re-read and let the
// caller detect turnover by identity comparison.
func (g *Generator) getJob(ctx context.Context) (*mining.Job, bool) {
	if g.current == nil {
		if err := g.jobs.Await(ctx); err != nil {
			return nil, false
		}
	}
	job := g.jobs.TakeCurrent()
	if job == nil {
		// Raced with a concurrent clear() between the event and the read;
		// behave as if current were still nil and wait again.
		g.current = nil
		return g.getJob(ctx)
	}
	return job, true
}

// adoptJob resets roll state for a newly observed job.
func (g *Generator) adoptJob(job *mining.Job) {
	g.current = job
	g.baseVersion = job.BaseVersion()
	g.nextVersion = uint32(g.m)
}

// rollAssignment synthesizes the midstates for counters [start, end) of the
// currently adopted job.
func (g *Generator) rollAssignment(job *mining.Job, start, end uint32) *mining.Assignment {
	midstates := make([]mining.Midstate, 0, end-start)
	for c := start; c < end; c++ {
		version := g.baseVersion | (c << mining.MiningMaskShift)
		midstates = append(midstates, mining.Midstate{
			Version: version,
			State:   mining.ComputeMidstate(rolledBlock(version, job)),
		})
	}
	return &mining.Assignment{
		Job:       job,
		Midstates: midstates,
		NTime:     job.NTime,
		Bits:      job.Bits,
	}
}

// rolledBlock builds the first 64 bytes of a header variant: version
// (little-endian) || previous_hash || merkle_root[0:28].
func rolledBlock(version uint32, job *mining.Job) [64]byte {
	var block [64]byte
	binary.LittleEndian.PutUint32(block[0:4], version)
	copy(block[4:36], job.PreviousHash[:])
	copy(block[36:64], job.MerkleRoot[:28])
	return block
}
