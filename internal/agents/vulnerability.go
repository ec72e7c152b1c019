// Package agents implements the five specialized analysis agents (spec.md
// §4.10): Vulnerability, Reputation, Code, Supply-Chain, and Synthesis.
// Grounded on the teacher's internal/analysis/llmcluster.go + prompt.go
// idiom: build a prompt, call llm.Provider, parse fenced JSON out of the
// response, validate IDs/fields against the known input set, and fall
// back deterministically when the LLM is unavailable or its output
// doesn't validate.
package agents

import (
	"context"
	"fmt"

	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/osv"
)

// llmPackageBudget bounds how many packages get per-package LLM
// enrichment in a single run, even when an LLM provider is configured.
const llmPackageBudget = 25

// VulnerabilityAgent queries the Parallel OSV Client for every resolved
// package and optionally enriches affected packages with an LLM
// assessment (spec.md §4.10).
type VulnerabilityAgent struct {
	OSV      *osv.Client
	Enricher *LLMEnricher // nil disables LLM enrichment entirely
}

func (a *VulnerabilityAgent) Name() string { return "vulnerability" }

func (a *VulnerabilityAgent) Analyze(ctx context.Context, shared model.SharedContext) model.AgentResult {
	if a.OSV == nil {
		return model.AgentResult{
			Status:    model.AgentFailed,
			Error:     "no OSV client configured",
			ErrorType: model.ErrorUnknown,
		}
	}

	batch := a.OSV.QueryBatch(ctx, shared.Packages)

	perPackage := make(map[string]any, len(shared.Packages))
	highest := model.Severity("")
	affected := 0

	for _, ref := range shared.Packages {
		records := batch.Vulnerabilities[ref.Key()]
		if len(records) == 0 {
			continue
		}
		affected++

		pkgHighest := model.Severity("")
		for _, rec := range records {
			sev := severityFromLabel(rec.Severity)
			if pkgHighest == "" || sev.Rank() < pkgHighest.Rank() {
				pkgHighest = sev
			}
		}
		if highest == "" || pkgHighest.Rank() < highest.Rank() {
			highest = pkgHighest
		}

		entry := map[string]any{
			"vulnerabilities":    records,
			"vulnerability_count": len(records),
			"highest_severity":   pkgHighest,
			"confidence":         0.9,
		}

		if a.Enricher != nil && affected <= llmPackageBudget {
			if assessment, ok := a.Enricher.AssessVulnerabilities(ctx, ref, records); ok {
				entry["llm_assessment"] = assessment
			}
		}

		perPackage[ref.Key()] = entry
	}

	if len(batch.Errors) > 0 && affected == 0 && len(shared.Packages) > 0 {
		return model.AgentResult{
			Status:     model.AgentFailed,
			Error:      fmt.Sprintf("osv batch failed for %d package(s)", len(batch.Errors)),
			ErrorType:  model.ErrorConnection,
			Confidence: 0,
			Data:       map[string]any{"packages": perPackage},
		}
	}

	return model.AgentResult{
		Status:     model.AgentSuccess,
		Confidence: 0.9,
		Data: map[string]any{
			"packages":          perPackage,
			"affected_packages": affected,
			"highest_severity":  highest,
		},
	}
}

// severityFromLabel maps an OSV severity-score string to a coarse bucket;
// mirrors internal/rules' osvSeverityToModel but lives here too since
// agents and rules are independent callers of the same OSV records.
func severityFromLabel(s string) model.Severity {
	var score float64
	if _, err := fmt.Sscanf(s, "%f", &score); err != nil {
		return model.SeverityMedium
	}
	switch {
	case score >= 9.0:
		return model.SeverityCritical
	case score >= 7.0:
		return model.SeverityHigh
	case score >= 4.0:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
