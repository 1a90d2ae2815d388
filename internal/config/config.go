// Package config loads the mining daemon's configuration knobs from
// hardcoded defaults, overlaid by an optional .env file in the project
// root, overlaid in turn by environment variables. Kept from the source module
// almost verbatim: the .env-then-environment-variable overlay
// (parseEnvFile, findProjectRoot) was already exactly this shape, just
// scoped to three device fields instead of the knobs spec.md §6 names.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MiningConfig carries the tunable knobs spec.md §6 enumerates.
type MiningConfig struct {
	// MidstateCount (M) governs Assignment width. Default 4.
	MidstateCount int
	// AsicDifficulty is the threshold below which a returned nonce counts
	// as a valid share. Default 256.
	AsicDifficulty uint64
	// JobTimeout is the compute-time bound for a single Assignment.
	// Default 5s. It is loaded and logged at startup; no component reads
	// it, and no Assignment is abandoned when it elapses.
	JobTimeout time.Duration
	// HashboardIndex names the hardware slot on multi-board rigs. Default
	// 0. It labels the backend in logs and backend.Config; the device
	// opened is the first one matching the USB vendor/product IDs,
	// whatever the index.
	HashboardIndex int
	// FullNonceTime is the device's time to exhaust its full nonce search
	// space, used to derive the backend's MAX_READ_TIME. Not named in
	// spec.md's enumerated knobs, but required by the Backend Adapter
	// (spec.md §4.E); defaults to a conservative value for Icarus-family
	// boards at difficulty 256.
	FullNonceTime time.Duration
}

const (
	defaultMidstateCount  = 4
	defaultAsicDifficulty = 256
	defaultJobTimeout     = 5 * time.Second
	defaultHashboardIndex = 0
	defaultFullNonceTime  = 2 * time.Second
)

var (
	miningConfig *MiningConfig
	configLoaded bool
)

// LoadMiningConfig loads the mining configuration once, caching the
// result for subsequent calls.
func LoadMiningConfig() (*MiningConfig, error) {
	if miningConfig != nil && configLoaded {
		return miningConfig, nil
	}

	cfg := &MiningConfig{
		MidstateCount:  defaultMidstateCount,
		AsicDifficulty: defaultAsicDifficulty,
		JobTimeout:     defaultJobTimeout,
		HashboardIndex: defaultHashboardIndex,
		FullNonceTime:  defaultFullNonceTime,
	}

	projectRoot := findProjectRoot()
	envPath := filepath.Join(projectRoot, ".env")
	if data, err := os.ReadFile(envPath); err == nil {
		parseEnvFile(string(data), cfg)
	}

	applyEnvOverrides(cfg)

	miningConfig = cfg
	configLoaded = true
	return cfg, nil
}

func parseEnvFile(content string, cfg *MiningConfig) {
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		setField(cfg, key, value)
	}
}

func applyEnvOverrides(cfg *MiningConfig) {
	for _, key := range []string{
		"MIDSTATE_COUNT", "ASIC_DIFFICULTY", "JOB_TIMEOUT",
		"HASHBOARD_INDEX", "FULL_NONCE_TIME",
	} {
		if value := os.Getenv(key); value != "" {
			setField(cfg, key, value)
		}
	}
}

func setField(cfg *MiningConfig, key, value string) {
	switch key {
	case "MIDSTATE_COUNT":
		if n, err := strconv.Atoi(value); err == nil && n >= 1 {
			cfg.MidstateCount = n
		}
	case "ASIC_DIFFICULTY":
		if n, err := strconv.ParseUint(value, 10, 64); err == nil && n >= 1 {
			cfg.AsicDifficulty = n
		}
	case "JOB_TIMEOUT":
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			cfg.JobTimeout = d
		}
	case "HASHBOARD_INDEX":
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			cfg.HashboardIndex = n
		}
	case "FULL_NONCE_TIME":
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			cfg.FullNonceTime = d
		}
	}
}

func findProjectRoot() string {
	cwd, _ := os.Getwd()
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}

// MustGetMiningConfig loads the mining configuration, panicking if the
// load itself fails (not if defaults apply — every field has a safe
// default, so this only panics on the filesystem/env layer misbehaving in
// a way LoadMiningConfig can't already recover from).
func MustGetMiningConfig() MiningConfig {
	cfg, err := LoadMiningConfig()
	if err != nil {
		panic("failed to load mining configuration: " + err.Error())
	}
	return *cfg
}
