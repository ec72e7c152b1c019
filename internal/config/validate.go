// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"
)

// Validate checks all fields in the config and returns all errors at once.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.MaxDepth < 0 {
		errs = append(errs, fmt.Sprintf("max_depth: must be non-negative, got %d", cfg.MaxDepth))
	}
	if cfg.OSVConcurrency < 0 {
		errs = append(errs, fmt.Sprintf("osv_concurrency: must be non-negative, got %d", cfg.OSVConcurrency))
	}
	if cfg.OSVRequestTimeout < 0 {
		errs = append(errs, fmt.Sprintf("osv_request_timeout: must be non-negative, got %s", cfg.OSVRequestTimeout))
	}
	if cfg.RegistryRequestsPerSecond < 0 {
		errs = append(errs, fmt.Sprintf("registry_requests_per_second: must be non-negative, got %g", cfg.RegistryRequestsPerSecond))
	}
	if cfg.CacheMaxBytes < 0 {
		errs = append(errs, fmt.Sprintf("cache_max_bytes: must be non-negative, got %d", cfg.CacheMaxBytes))
	}
	if cfg.ReputationScaleSkipThreshold < 0 {
		errs = append(errs, fmt.Sprintf("reputation_scale_skip_threshold: must be non-negative, got %d", cfg.ReputationScaleSkipThreshold))
	}

	for name, d := range map[string]struct {
		label string
		val   int64
	}{
		"stage_timeouts.vulnerability":  {"vulnerability", int64(cfg.StageTimeouts.Vulnerability)},
		"stage_timeouts.reputation":     {"reputation", int64(cfg.StageTimeouts.Reputation)},
		"stage_timeouts.code":           {"code", int64(cfg.StageTimeouts.Code)},
		"stage_timeouts.supply_chain":   {"supply_chain", int64(cfg.StageTimeouts.SupplyChain)},
		"stage_timeouts.synthesis":      {"synthesis", int64(cfg.StageTimeouts.Synthesis)},
	} {
		if d.val < 0 {
			errs = append(errs, fmt.Sprintf("%s: must be non-negative", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
