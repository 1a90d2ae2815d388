// Command miner is the mining daemon's entrypoint: it loads configuration,
// wires the Job Channel, Work Generator, Engine Channel, Solution Channel
// and Backend Adapter together via internal/orchestrator, starts one backend
// per configured hashboard, and drains collected solutions until a shutdown
// signal arrives.
//
// Grounded on cmd/cli/main.go and cmd/driver/hasher-host/main.go's flag
// parsing plus signal.Notify(SIGINT, SIGTERM)-driven graceful shutdown from
// the source module. The upstream pool/stratum client spec.md §1 places out
// of scope is not implemented here: job publication is left as the one
// integration point a real deployment wires a stratum client into, via
// Orchestrator.PublishJob. In its absence this command synthesizes a single
// placeholder job at startup so the pipeline has something to dispatch.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hashwork/internal/config"
	"hashwork/internal/orchestrator"
	"hashwork/internal/stats"
	"hashwork/pkg/mining"
)

var (
	hashboardIndex = flag.Int("hashboard", -1, "hashboard index to drive (-1 = use configured default)")
	reportInterval = flag.Duration("report-interval", time.Second, "hashrate/share reporter sampling interval")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadMiningConfig()
	if err != nil {
		log.Fatalf("miner: failed to load configuration: %v", err)
	}

	idx := cfg.HashboardIndex
	if *hashboardIndex >= 0 {
		idx = *hashboardIndex
	}

	log.Printf("miner: starting hashboard %d (midstate_count=%d asic_difficulty=%d job_timeout=%s full_nonce_time=%s)",
		idx, cfg.MidstateCount, cfg.AsicDifficulty, cfg.JobTimeout, cfg.FullNonceTime)

	orch := orchestrator.New(*cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch.StartBackend(ctx, idx)

	// With no stratum client wired in, publish one placeholder job so the
	// pipeline has a header template to roll work from. A real deployment
	// replaces this with job notifications driven by pool responses,
	// calling orch.PublishJob on every new job the same way.
	orch.PublishJob(placeholderJob())

	stopReport := make(chan struct{})
	reporter := stats.NewReporter(*reportInterval)
	go reporter.Run(stopReport, func(s stats.Snapshot) {
		log.Printf("miner: shares=%d stale=%d duplicate=%d hashrate=%.3f GH/s cpu=%.1f%% mem=%.1f%%",
			s.Shares, s.StaleSolutions, s.DuplicateSolutions, s.HashrateGHs, s.HostCPUPercent, s.HostMemPercent)
	})

	go func() {
		for sol := range orch.Solutions() {
			log.Printf("miner: solution nonce=0x%08x midstate=%d solution_id=%d received_at=%s",
				sol.Solution.Nonce, sol.Solution.MidstateIdx, sol.Solution.SolutionID, sol.ReceivedAt.Format(time.RFC3339Nano))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("miner: shutdown signal received, draining backends...")
	close(stopReport)
	cancel()
	orch.Shutdown()
	log.Println("miner: stopped")
}

// placeholderJob synthesizes a minimal valid Job so the pipeline has
// something to dispatch in the absence of a wired-in stratum client.
func placeholderJob() *mining.Job {
	return &mining.Job{
		Version: 0x20000000,
		Bits:    0x1d00ffff,
	}
}
