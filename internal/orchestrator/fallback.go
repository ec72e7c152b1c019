package orchestrator

import (
	"fmt"
	"sort"

	"github.com/sec-scan/depscan/internal/model"
)

// fallbackVulnerabilityData rebuilds a Vulnerability-Agent-shaped data map
// from the rule-based layer's own vulnerability findings, so a failed
// Vulnerability Agent still leaves the report with something to show
// (spec.md §4.11).
func fallbackVulnerabilityData(findings []model.Finding) map[string]any {
	type entry struct {
		count   int
		highest model.Severity
	}
	byKey := make(map[string]*entry)
	for _, f := range findings {
		if f.FindingType != model.FindingVulnerability {
			continue
		}
		key := string(f.Ecosystem) + ":" + f.PackageName + ":" + f.PackageVersion
		e, ok := byKey[key]
		if !ok {
			e = &entry{}
			byKey[key] = e
		}
		e.count++
		if e.highest == "" || f.Severity.Rank() < e.highest.Rank() {
			e.highest = f.Severity
		}
	}

	packages := make(map[string]any, len(byKey))
	for key, e := range byKey {
		packages[key] = map[string]any{
			"vulnerability_count": e.count,
			"highest_severity":    e.highest,
			"confidence":          0.6,
			"agent_fallback":      true,
		}
	}
	return map[string]any{"packages": packages, "agent_fallback": true}
}

// fallbackReputationData assigns every resolved package a neutral 0.5
// reputation score (spec.md §4.11), used when the Reputation Agent fails
// outright rather than merely skipping a few unsupported ecosystems.
func fallbackReputationData(packages []model.PackageRef) map[string]any {
	perPackage := make(map[string]any, len(packages))
	for _, ref := range packages {
		perPackage[ref.Key()] = model.ReputationRecord{
			Score:      0.5,
			RiskLevel:  model.RiskMedium,
			Confidence: 0.3,
			Reasoning:  "reputation agent unavailable; neutral fallback score applied",
		}
	}
	return map[string]any{"packages": perPackage, "agent_fallback": true}
}

// fallbackSynthesisData is the deterministic fallback synthesizer
// (spec.md §4.11): it groups findings by package, computes the same
// summary counts a successful synthesis would have used, and emits
// recommendations in the spec's fixed priority order. Its output is
// schema-identical to a successful Synthesis Agent call.
func fallbackSynthesisData(shared model.SharedContext) map[string]any {
	grouped := groupFindings(shared.InitialFindings)

	var critical, high []string
	for _, key := range grouped.order {
		g := grouped.byKey[key]
		switch worstSeverity(g.findings) {
		case model.SeverityCritical:
			critical = append(critical, g.name)
		case model.SeverityHigh:
			high = append(high, g.name)
		}
	}

	var immediate []string
	if len(critical) > 0 {
		immediate = append(immediate, fmt.Sprintf("upgrade or remove the following packages with critical findings: %s", joinNames(critical, 0)))
	}
	if len(high) > 0 {
		immediate = append(immediate, fmt.Sprintf("review the following high-severity packages: %s", joinNames(high, 3)))
	}

	repWarnings := reputationWarnings(shared.AgentResults["reputation"])
	if len(repWarnings) > 0 {
		immediate = append(immediate, fmt.Sprintf("investigate low-reputation packages: %s", joinNames(repWarnings, 3)))
	}

	var preventive []string
	if shared.Graph != nil && len(shared.Graph.Cycles) > 0 {
		preventive = append(preventive, "break circular dependencies flagged in the dependency graph")
	}
	if shared.Graph != nil && len(shared.Graph.VersionConflicts) > 0 {
		preventive = append(preventive, "pin a single resolved version for packages with conflicting version specs")
	}
	preventive = append(preventive, "pin dependency versions and enable lockfile integrity checks")

	monitoring := []string{
		"subscribe to security advisories for the ecosystem in use",
		"re-run this analysis on a schedule to catch newly disclosed vulnerabilities",
	}

	summary := fmt.Sprintf("%d package(s) analyzed, %d with findings (%d critical, %d high)",
		len(shared.Packages), len(grouped.order), len(critical), len(high))

	return map[string]any{
		"summary": summary,
		"recommendations": model.Recommendations{
			ImmediateActions:   immediate,
			PreventiveMeasures: preventive,
			Monitoring:         monitoring,
		},
		"risk_assessment": riskAssessmentLabel(critical, high),
		"agent_fallback":  true,
	}
}

func riskAssessmentLabel(critical, high []string) string {
	switch {
	case len(critical) > 0:
		return "high"
	case len(high) > 0:
		return "medium"
	default:
		return "low"
	}
}

// joinNames renders up to limit names comma-separated, appending "and N
// more" for the remainder. limit <= 0 means no cap.
func joinNames(names []string, limit int) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	if limit <= 0 || len(sorted) <= limit {
		return joinPlain(sorted)
	}
	shown := joinPlain(sorted[:limit])
	return fmt.Sprintf("%s, and %d more", shown, len(sorted)-limit)
}

func joinPlain(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// reputationWarnings names packages whose reputation score fell below a
// "warn" threshold, reading either a real or fallback Reputation stage
// result.
func reputationWarnings(reputationResult model.AgentResult) []string {
	packages, _ := reputationResult.Data["packages"].(map[string]any)
	var names []string
	for key, v := range packages {
		rec, ok := v.(model.ReputationRecord)
		if !ok {
			continue
		}
		if rec.RiskLevel == model.RiskHigh || rec.RiskLevel == model.RiskCritical {
			_, name := splitKey(key)
			names = append(names, name)
		}
	}
	return names
}
