package config

// Merge combines a base config with an overlay. Overlay values take
// precedence; zero-value overlay fields fall through to the base. Callers
// chain this to build the full precedence order: flag > env > file >
// default, e.g. Merge(Merge(Merge(Defaults(), fileCfg), envCfg), flagCfg).
func Merge(base, overlay Config) Config {
	result := base

	if overlay.OutputDirectory != "" {
		result.OutputDirectory = overlay.OutputDirectory
	}
	if overlay.CacheEnabled != nil {
		result.CacheEnabled = overlay.CacheEnabled
	}
	if overlay.CacheDir != "" {
		result.CacheDir = overlay.CacheDir
	}
	if overlay.CacheTTL != 0 {
		result.CacheTTL = overlay.CacheTTL
	}
	if overlay.CacheMaxBytes != 0 {
		result.CacheMaxBytes = overlay.CacheMaxBytes
	}
	if overlay.EnableOSVQueries != nil {
		result.EnableOSVQueries = overlay.EnableOSVQueries
	}
	if overlay.MaxDepth != 0 {
		result.MaxDepth = overlay.MaxDepth
	}
	if overlay.OSVConcurrency != 0 {
		result.OSVConcurrency = overlay.OSVConcurrency
	}
	if overlay.OSVRequestTimeout != 0 {
		result.OSVRequestTimeout = overlay.OSVRequestTimeout
	}
	if overlay.RegistryRequestsPerSecond != 0 {
		result.RegistryRequestsPerSecond = overlay.RegistryRequestsPerSecond
	}
	if overlay.StageTimeouts.Vulnerability != 0 {
		result.StageTimeouts.Vulnerability = overlay.StageTimeouts.Vulnerability
	}
	if overlay.StageTimeouts.Reputation != 0 {
		result.StageTimeouts.Reputation = overlay.StageTimeouts.Reputation
	}
	if overlay.StageTimeouts.Code != 0 {
		result.StageTimeouts.Code = overlay.StageTimeouts.Code
	}
	if overlay.StageTimeouts.SupplyChain != 0 {
		result.StageTimeouts.SupplyChain = overlay.StageTimeouts.SupplyChain
	}
	if overlay.StageTimeouts.Synthesis != 0 {
		result.StageTimeouts.Synthesis = overlay.StageTimeouts.Synthesis
	}
	// NoLLM: overlay wins only if true, never un-sets a base true.
	if overlay.NoLLM {
		result.NoLLM = true
	}
	if overlay.LLMModel != "" {
		result.LLMModel = overlay.LLMModel
	}
	if overlay.ReputationScaleSkipThreshold != 0 {
		result.ReputationScaleSkipThreshold = overlay.ReputationScaleSkipThreshold
	}

	return result
}

// Resolve applies the full precedence chain: flag > env > file > default.
func Resolve(fileCfg, envCfg, flagCfg Config) Config {
	result := Merge(Defaults(), fileCfg)
	result = Merge(result, envCfg)
	result = Merge(result, flagCfg)
	return result
}
