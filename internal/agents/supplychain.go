package agents

import (
	"context"
	"strings"

	"github.com/sec-scan/depscan/internal/model"
)

// supplyChainGateFactors are the risk-factor types that trigger the
// Supply-Chain Agent's stage gate (spec.md §4.10).
var supplyChainGateFactors = map[string]bool{
	"abandoned":                    true,
	"maintainer_change_recent":     true,
	"publishing_pattern_anomaly":   true,
	"suspicious_patterns":          true,
}

// knownAttackPatterns is a small bundled catalog the Supply-Chain Agent
// compares each flagged package's signals against, scoring a crude
// similarity from how many of the pattern's own trigger factors are
// present. This is deliberately simple pattern matching, not an LLM call:
// spec.md §4.10 only requires an LLM for the Code Agent's script review.
var knownAttackPatterns = []struct {
	name    string
	factors []string
}{
	{name: "dormant_package_reactivation", factors: []string{"abandoned", "maintainer_change_recent"}},
	{name: "trust_transfer_attack", factors: []string{"maintainer_change_recent", "unknown_author"}},
	{name: "stealth_release", factors: []string{"publishing_pattern_anomaly", "suspicious_patterns"}},
}

// SupplyChainAgent looks for combinations of reputation risk factors that
// resemble known supply-chain attack patterns (spec.md §4.10).
type SupplyChainAgent struct{}

func (a *SupplyChainAgent) Name() string { return "supply_chain" }

// SupplyChainGate reports whether the Supply-Chain Agent's stage
// condition is met: the Reputation Agent surfaced at least one gating
// risk factor.
func SupplyChainGate(reputationResult model.AgentResult) bool {
	packages, _ := reputationResult.Data["packages"].(map[string]any)
	for _, v := range packages {
		rec, ok := v.(model.ReputationRecord)
		if !ok {
			continue
		}
		for _, f := range rec.RiskFactors {
			if supplyChainGateFactors[f.Type] {
				return true
			}
		}
	}
	return false
}

func (a *SupplyChainAgent) Analyze(ctx context.Context, shared model.SharedContext) model.AgentResult {
	reputationResult, ok := shared.AgentResults["reputation"]
	if !ok || reputationResult.Status != model.AgentSuccess {
		return model.AgentResult{Status: model.AgentSkipped, SkipReason: "gate"}
	}

	packages, _ := reputationResult.Data["packages"].(map[string]any)
	perPackage := make(map[string]any)
	detected := 0

	for key, v := range packages {
		rec, ok := v.(model.ReputationRecord)
		if !ok {
			continue
		}

		var present []string
		factorSet := make(map[string]bool, len(rec.RiskFactors))
		for _, f := range rec.RiskFactors {
			factorSet[f.Type] = true
			if supplyChainGateFactors[f.Type] {
				present = append(present, f.Type)
			}
		}
		if len(present) == 0 {
			continue
		}

		var matches []model.AttackPatternMatch
		for _, pattern := range knownAttackPatterns {
			hits := 0
			for _, f := range pattern.factors {
				if factorSet[f] {
					hits++
				}
			}
			if hits == 0 {
				continue
			}
			similarity := float64(hits) / float64(len(pattern.factors))
			matches = append(matches, model.AttackPatternMatch{PatternName: pattern.name, Similarity: similarity})
		}

		likelihood := "low"
		switch {
		case len(present) >= 3:
			likelihood = "high"
		case len(present) == 2:
			likelihood = "medium"
		}
		if likelihood != "low" {
			detected++
		}

		name, version := splitPackageKey(key)
		perPackage[key] = model.SupplyChainPackageInfo{
			Name:                  name,
			Version:               version,
			SupplyChainIndicators: present,
			AttackPatternMatches:  matches,
			AttackLikelihood:      likelihood,
			Confidence:            rec.Confidence,
		}
	}

	return model.AgentResult{
		Status:     model.AgentSuccess,
		Confidence: 0.85,
		Data: map[string]any{
			"packages":          perPackage,
			"attacks_detected":  detected,
		},
	}
}

// splitPackageKey recovers (name, version) from a PackageRef.Key() value
// of the form "ecosystem:name:version".
func splitPackageKey(key string) (string, string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return key, ""
	}
	return parts[1], parts[2]
}
