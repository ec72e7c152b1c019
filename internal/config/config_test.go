package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_YAMLRoundTrip(t *testing.T) {
	enabled := true
	original := &Config{
		OutputDirectory: "outputs/",
		CacheEnabled:    &enabled,
		CacheTTL:        48 * time.Hour,
		MaxDepth:        3,
		OSVConcurrency:  20,
		NoLLM:           true,
		StageTimeouts: StageTimeouts{
			Vulnerability: 45 * time.Second,
		},
	}

	data, err := yaml.Marshal(original)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))

	assert.Equal(t, original.OutputDirectory, decoded.OutputDirectory)
	require.NotNil(t, decoded.CacheEnabled)
	assert.True(t, *decoded.CacheEnabled)
	assert.Equal(t, original.CacheTTL, decoded.CacheTTL)
	assert.Equal(t, original.MaxDepth, decoded.MaxDepth)
	assert.Equal(t, original.OSVConcurrency, decoded.OSVConcurrency)
	assert.True(t, decoded.NoLLM)
	assert.Equal(t, 45*time.Second, decoded.StageTimeouts.Vulnerability)
}

func TestConfig_CacheEnabledNilDistinct(t *testing.T) {
	data := []byte("max_depth: 3\n")
	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Nil(t, cfg.CacheEnabled)
}

func TestConfig_EmptyYAML(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(""), &cfg))
	assert.Empty(t, cfg.OutputDirectory)
	assert.Equal(t, 0, cfg.MaxDepth)
	assert.False(t, cfg.NoLLM)
	assert.Nil(t, cfg.CacheEnabled)
}

func TestConfig_OmitEmptyFields(t *testing.T) {
	cfg := &Config{}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.NotNil(t, d.CacheEnabled)
	assert.True(t, *d.CacheEnabled)
	require.NotNil(t, d.EnableOSVQueries)
	assert.True(t, *d.EnableOSVQueries)
	assert.Equal(t, "outputs/", d.OutputDirectory)
	assert.Equal(t, 24*time.Hour, d.CacheTTL)
	assert.Equal(t, int64(256*1024*1024), d.CacheMaxBytes)
	assert.Equal(t, 5, d.MaxDepth)
	assert.Equal(t, 10, d.OSVConcurrency)
	assert.Equal(t, 10*time.Second, d.OSVRequestTimeout)
	assert.Equal(t, 100, d.ReputationScaleSkipThreshold)
	assert.Equal(t, 30*time.Second, d.StageTimeouts.Vulnerability)
	assert.Equal(t, 20*time.Second, d.StageTimeouts.Reputation)
	assert.Equal(t, 40*time.Second, d.StageTimeouts.Code)
	assert.Equal(t, 30*time.Second, d.StageTimeouts.SupplyChain)
	assert.Equal(t, 20*time.Second, d.StageTimeouts.Synthesis)
}
