// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

// Package config handles .depscan.yaml configuration files and the
// environment-variable/flag overlay on top of them.
package config

import "time"

// Config represents the contents of a .depscan.yaml file, the
// environment variables it overlays, and the CLI flags that take final
// precedence. Precedence order (highest wins): flag > env > file > default.
type Config struct {
	// OutputDirectory is where the fixed-name report file is written.
	OutputDirectory string `yaml:"output_directory,omitempty"`

	// CacheEnabled toggles the cache store entirely.
	CacheEnabled *bool `yaml:"cache_enabled,omitempty"`
	// CacheDir is the directory for the disk cache backend.
	CacheDir string `yaml:"cache_dir,omitempty"`
	// CacheTTL is the default TTL applied to new cache entries.
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
	// CacheMaxBytes bounds the total size of live cache entries.
	CacheMaxBytes int64 `yaml:"cache_max_bytes,omitempty"`

	// EnableOSVQueries toggles the Parallel OSV Client entirely.
	EnableOSVQueries *bool `yaml:"enable_osv_queries,omitempty"`

	// MaxDepth bounds the Dependency Resolver's BFS.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// OSVConcurrency is the bounded fan-out (C) for OSV batch queries.
	OSVConcurrency int `yaml:"osv_concurrency,omitempty"`
	// OSVRequestTimeout is the per-request timeout (T) for OSV queries.
	OSVRequestTimeout time.Duration `yaml:"osv_request_timeout,omitempty"`

	// RegistryRequestsPerSecond bounds the Registry Client's per-host rate.
	RegistryRequestsPerSecond float64 `yaml:"registry_requests_per_second,omitempty"`

	// StageTimeouts overrides the orchestrator's per-stage timeouts.
	StageTimeouts StageTimeouts `yaml:"stage_timeouts,omitempty"`

	// NoLLM disables all LLM-backed enrichment and synthesis, forcing the
	// deterministic fallback synthesizer for every run.
	NoLLM bool `yaml:"no_llm,omitempty"`

	// LLMModel overrides the default Anthropic model name.
	LLMModel string `yaml:"llm_model,omitempty"`

	// ReputationScaleSkipThreshold is the resolved-package-count above
	// which rule-layer reputation checks are skipped (spec.md §4.8).
	ReputationScaleSkipThreshold int `yaml:"reputation_scale_skip_threshold,omitempty"`
}

// StageTimeouts overrides the orchestrator's per-stage timeout defaults.
type StageTimeouts struct {
	Vulnerability time.Duration `yaml:"vulnerability,omitempty"`
	Reputation    time.Duration `yaml:"reputation,omitempty"`
	Code          time.Duration `yaml:"code,omitempty"`
	SupplyChain   time.Duration `yaml:"supply_chain,omitempty"`
	Synthesis     time.Duration `yaml:"synthesis,omitempty"`
}

// FileName is the expected config file name in a repository root.
const FileName = ".depscan.yaml"

// Defaults returns the hard-coded defaults used when flag, env, and file
// all leave a field unset.
func Defaults() Config {
	enabled := true
	return Config{
		OutputDirectory:           "outputs/",
		CacheEnabled:              &enabled,
		CacheDir:                  ".depscan-cache",
		CacheTTL:                  24 * time.Hour,
		CacheMaxBytes:             256 * 1024 * 1024,
		EnableOSVQueries:          &enabled,
		MaxDepth:                  5,
		OSVConcurrency:            10,
		OSVRequestTimeout:         10 * time.Second,
		RegistryRequestsPerSecond: 5,
		StageTimeouts: StageTimeouts{
			Vulnerability: 30 * time.Second,
			Reputation:    20 * time.Second,
			Code:          40 * time.Second,
			SupplyChain:   30 * time.Second,
			Synthesis:     20 * time.Second,
		},
		ReputationScaleSkipThreshold: 100,
	}
}
