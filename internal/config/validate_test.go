package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		MaxDepth:                     5,
		OSVConcurrency:               10,
		OSVRequestTimeout:            10 * time.Second,
		RegistryRequestsPerSecond:    5,
		CacheMaxBytes:                1024,
		ReputationScaleSkipThreshold: 100,
	}
	require.NoError(t, Validate(cfg))
}

func TestValidate_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, Validate(cfg))
}

func TestValidate_NegativeMaxDepth(t *testing.T) {
	cfg := &Config{MaxDepth: -1}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_depth")
}

func TestValidate_NegativeOSVConcurrency(t *testing.T) {
	cfg := &Config{OSVConcurrency: -1}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "osv_concurrency")
}

func TestValidate_NegativeRegistryRate(t *testing.T) {
	cfg := &Config{RegistryRequestsPerSecond: -5}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry_requests_per_second")
}

func TestValidate_NegativeCacheMaxBytes(t *testing.T) {
	cfg := &Config{CacheMaxBytes: -1}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache_max_bytes")
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		MaxDepth:       -1,
		OSVConcurrency: -5,
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_depth")
	assert.Contains(t, err.Error(), "osv_concurrency")
}
