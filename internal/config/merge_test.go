package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMerge_OverlayOverridesBase(t *testing.T) {
	base := Config{OutputDirectory: "base/", MaxDepth: 5}
	overlay := Config{OutputDirectory: "overlay/", MaxDepth: 2}

	result := Merge(base, overlay)
	assert.Equal(t, "overlay/", result.OutputDirectory)
	assert.Equal(t, 2, result.MaxDepth)
}

func TestMerge_BaseFillsInZeroOverlay(t *testing.T) {
	base := Config{OutputDirectory: "base/", MaxDepth: 5}
	overlay := Config{}

	result := Merge(base, overlay)
	assert.Equal(t, "base/", result.OutputDirectory)
	assert.Equal(t, 5, result.MaxDepth)
}

func TestMerge_NoLLMOnlyOverlayTrueWins(t *testing.T) {
	result := Merge(Config{NoLLM: true}, Config{NoLLM: false})
	assert.True(t, result.NoLLM, "overlay false must not clear a base true")

	result = Merge(Config{NoLLM: false}, Config{NoLLM: true})
	assert.True(t, result.NoLLM)
}

func TestMerge_CacheEnabledPointerOverlayWins(t *testing.T) {
	baseTrue, overlayFalse := true, false
	result := Merge(Config{CacheEnabled: &baseTrue}, Config{CacheEnabled: &overlayFalse})
	require := assert.New(t)
	require.NotNil(result.CacheEnabled)
	require.False(*result.CacheEnabled)
}

func TestMerge_StageTimeoutsFieldByField(t *testing.T) {
	base := Config{StageTimeouts: StageTimeouts{Vulnerability: 30 * time.Second, Reputation: 20 * time.Second}}
	overlay := Config{StageTimeouts: StageTimeouts{Vulnerability: 60 * time.Second}}

	result := Merge(base, overlay)
	assert.Equal(t, 60*time.Second, result.StageTimeouts.Vulnerability)
	assert.Equal(t, 20*time.Second, result.StageTimeouts.Reputation)
}

func TestResolve_PrecedenceChain(t *testing.T) {
	fileCfg := Config{OutputDirectory: "from-file/", MaxDepth: 3}
	envCfg := Config{MaxDepth: 7}
	flagCfg := Config{OutputDirectory: "from-flag/"}

	result := Resolve(fileCfg, envCfg, flagCfg)
	assert.Equal(t, "from-flag/", result.OutputDirectory, "flag beats file")
	assert.Equal(t, 7, result.MaxDepth, "env beats file when flag leaves it zero")
	// Untouched fields still come from Defaults().
	assert.Equal(t, 10, result.OSVConcurrency)
}
