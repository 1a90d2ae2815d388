// Package stats implements the process-global submitted-share counter and
// the periodic hashrate reporter described in spec.md §5 and §9.
//
// Grounded on DeviceStats/DeviceStatsSnapshot in the source module's
// internal/driver/device/controller.go (atomic counters behind a
// sync.RWMutex, a plain Snapshot type returned by value, no mutex leaking
// to callers) and BitcoinMiningStats in pkg/hashing/hardware/bitcoin_header.go
// for the hash-rate reporting shape. The CPU/mem sampling folded into each
// report is grounded on the same github.com/shirou/gopsutil/v3 import used
// by internal/cli/ui/ui.go.
package stats

import (
	"sync/atomic"
	"time"

	psutilcpu "github.com/shirou/gopsutil/v3/cpu"
	psutilmem "github.com/shirou/gopsutil/v3/mem"
)

// shares is the process-wide submitted-share counter (spec.md §9: "the
// submitted-share counter is process-wide... initialized to zero at
// process start, incremented by accepted solutions, sampled and zeroed
// (or differentiated) by the hashrate reporter"). Kept as a package-level
// atomic rather than a struct field: the single-mining-context assumption
// this module makes is documented here, not hidden behind an instance that
// looks scoped but isn't.
var shares uint64

// hardwareErrors, staleSolutions, duplicateSolutions, and
// mismatchedSolutionNonces are the upstream detection counters spec.md §7
// names as user-visible statistics. This package keeps only the stale and
// duplicate solution counters, incremented through AddStaleSolution and
// AddDuplicateSolution and read by the Reporter; it keeps no counter for
// hardware_errors or mismatched_solution_nonces.
var (
	staleSolutions     uint64
	duplicateSolutions uint64
)

// AddShares increments the global share counter by delta, where delta is
// the ASIC difficulty the accepted solution was valued at (spec.md §8
// scenario 6: "submitting k solutions each at target difficulty d
// increments the global share counter by k·d").
func AddShares(delta uint64) {
	atomic.AddUint64(&shares, delta)
}

// AddStaleSolution increments the stale-solution counter, used when a
// correlation falls outside the one-deep lookahead window (spec.md §9).
func AddStaleSolution() {
	atomic.AddUint64(&staleSolutions, 1)
}

// AddDuplicateSolution increments the duplicate-solution counter.
func AddDuplicateSolution() {
	atomic.AddUint64(&duplicateSolutions, 1)
}

// Snapshot is a point-in-time, mutex-free copy of the global counters plus
// the host resource sample taken alongside them.
type Snapshot struct {
	Shares             uint64
	StaleSolutions     uint64
	DuplicateSolutions uint64
	HashrateGHs        float64
	HostCPUPercent     float64
	HostMemPercent     float64
	SampledAt          time.Time
}

// Reporter samples the global counters at a fixed interval and derives a
// hashrate estimate from the share delta between samples.
type Reporter struct {
	interval   time.Duration
	lastShares uint64
	lastTime   time.Time
	sampled    bool
}

// NewReporter creates a Reporter sampling every interval (spec.md §8
// scenario 6 exercises a 1 Hz reporter).
func NewReporter(interval time.Duration) *Reporter {
	return &Reporter{interval: interval, lastTime: time.Now()}
}

// Sample takes one reading, computing the hashrate delta since the
// previous call. The first call after construction has no prior sample to
// diff against, so its HashrateGHs is always zero.
func (r *Reporter) Sample() Snapshot {
	now := time.Now()
	curr := atomic.LoadUint64(&shares)

	elapsed := now.Sub(r.lastTime).Seconds()
	var ghs float64
	if r.sampled && elapsed > 0 {
		deltaShares := curr - r.lastShares
		// (shares << 32) / elapsed_seconds expresses hashes/sec; the
		// 1e-9 factor converts to GH/s, per spec.md §8 scenario 6.
		ghs = float64(deltaShares<<32) / elapsed * 1e-9
	}

	cpuPercent, memPercent := sampleHost()

	r.lastShares = curr
	r.lastTime = now
	r.sampled = true

	return Snapshot{
		Shares:             curr,
		StaleSolutions:     atomic.LoadUint64(&staleSolutions),
		DuplicateSolutions: atomic.LoadUint64(&duplicateSolutions),
		HashrateGHs:        ghs,
		HostCPUPercent:     cpuPercent,
		HostMemPercent:     memPercent,
		SampledAt:          now,
	}
}

// Run blocks, sampling at the configured interval and invoking report with
// each Snapshot, until stop is closed.
func (r *Reporter) Run(stop <-chan struct{}, report func(Snapshot)) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			report(r.Sample())
		case <-stop:
			return
		}
	}
}

// sampleHost folds a host CPU/memory reading into each report, best-effort:
// an error from either gopsutil call just yields a zero for that field
// rather than failing the whole sample.
func sampleHost() (cpuPercent, memPercent float64) {
	if pcts, err := psutilcpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPercent = pcts[0]
	}
	if vmem, err := psutilmem.VirtualMemory(); err == nil {
		memPercent = vmem.UsedPercent
	}
	return cpuPercent, memPercent
}
