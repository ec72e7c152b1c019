package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv reads the environment variables named in SPEC_FULL.md §2/§6 into
// a Config overlay. Unset variables leave the corresponding field at its
// zero value so Merge falls through to the next layer.
func FromEnv() Config {
	var cfg Config

	if v := os.Getenv("OUTPUT_DIRECTORY"); v != "" {
		cfg.OutputDirectory = v
	}
	if v, ok := lookupBool("CACHE_ENABLED"); ok {
		cfg.CacheEnabled = &v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v, ok := lookupDuration("CACHE_TTL"); ok {
		cfg.CacheTTL = v
	}
	if v, ok := lookupBool("ENABLE_OSV_QUERIES"); ok {
		cfg.EnableOSVQueries = &v
	}
	if v, ok := lookupInt("MAX_DEPTH"); ok {
		cfg.MaxDepth = v
	}
	if v, ok := lookupInt("OSV_CONCURRENCY"); ok {
		cfg.OSVConcurrency = v
	}
	if v, ok := lookupDuration("OSV_REQUEST_TIMEOUT"); ok {
		cfg.OSVRequestTimeout = v
	}
	if v, ok := lookupDuration("STAGE_TIMEOUT_VULNERABILITY"); ok {
		cfg.StageTimeouts.Vulnerability = v
	}
	if v, ok := lookupDuration("STAGE_TIMEOUT_REPUTATION"); ok {
		cfg.StageTimeouts.Reputation = v
	}
	if v, ok := lookupDuration("STAGE_TIMEOUT_CODE"); ok {
		cfg.StageTimeouts.Code = v
	}
	if v, ok := lookupDuration("STAGE_TIMEOUT_SUPPLY_CHAIN"); ok {
		cfg.StageTimeouts.SupplyChain = v
	}
	if v, ok := lookupDuration("STAGE_TIMEOUT_SYNTHESIS"); ok {
		cfg.StageTimeouts.Synthesis = v
	}
	if v, ok := lookupBool("NO_LLM"); ok {
		cfg.NoLLM = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}

	return cfg
}

// HasAnthropicKey reports whether ANTHROPIC_API_KEY is set, the precondition
// spec.md §6 requires for LLM-enriched analysis.
func HasAnthropicKey() bool {
	return os.Getenv("ANTHROPIC_API_KEY") != ""
}

// GitHubToken returns GITHUB_TOKEN, used for authenticated clones.
func GitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

func lookupBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func lookupInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lookupDuration(name string) (time.Duration, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
