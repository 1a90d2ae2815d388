package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetFieldAppliesValidValues(t *testing.T) {
	cfg := &MiningConfig{}
	setField(cfg, "MIDSTATE_COUNT", "8")
	setField(cfg, "ASIC_DIFFICULTY", "512")
	setField(cfg, "JOB_TIMEOUT", "3s")
	setField(cfg, "HASHBOARD_INDEX", "2")
	setField(cfg, "FULL_NONCE_TIME", "1500ms")

	assert.Equal(t, 8, cfg.MidstateCount)
	assert.Equal(t, uint64(512), cfg.AsicDifficulty)
	assert.Equal(t, 3*time.Second, cfg.JobTimeout)
	assert.Equal(t, 2, cfg.HashboardIndex)
	assert.Equal(t, 1500*time.Millisecond, cfg.FullNonceTime)
}

func TestSetFieldIgnoresInvalidValues(t *testing.T) {
	cfg := &MiningConfig{MidstateCount: 4, AsicDifficulty: 256}
	setField(cfg, "MIDSTATE_COUNT", "not-a-number")
	setField(cfg, "MIDSTATE_COUNT", "0")
	setField(cfg, "ASIC_DIFFICULTY", "-1")

	assert.Equal(t, 4, cfg.MidstateCount)
	assert.Equal(t, uint64(256), cfg.AsicDifficulty)
}

func TestParseEnvFileSkipsCommentsAndBlankLines(t *testing.T) {
	cfg := &MiningConfig{}
	content := "# a comment\n\nMIDSTATE_COUNT=6\nHASHBOARD_INDEX=1\n"
	parseEnvFile(content, cfg)

	assert.Equal(t, 6, cfg.MidstateCount)
	assert.Equal(t, 1, cfg.HashboardIndex)
}

func TestLoadMiningConfigAppliesDefaults(t *testing.T) {
	miningConfig = nil
	configLoaded = false

	cfg, err := LoadMiningConfig()
	assert.NoError(t, err)
	assert.Equal(t, defaultMidstateCount, cfg.MidstateCount)
	assert.Equal(t, uint64(defaultAsicDifficulty), cfg.AsicDifficulty)
	assert.Equal(t, defaultJobTimeout, cfg.JobTimeout)
	assert.Equal(t, defaultHashboardIndex, cfg.HashboardIndex)
	assert.Equal(t, defaultFullNonceTime, cfg.FullNonceTime)
}

func TestLoadMiningConfigCachesResult(t *testing.T) {
	miningConfig = nil
	configLoaded = false

	first, err := LoadMiningConfig()
	assert.NoError(t, err)
	second, err := LoadMiningConfig()
	assert.NoError(t, err)
	assert.Same(t, first, second)
}
