package agents

import (
	"context"
	"fmt"

	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/scriptscan"
)

// CodeAgent re-examines scripts the pattern engine already flagged as
// model.FindingMaliciousScript, asking the LLM for a second opinion on
// obfuscation and behavioral indicators (spec.md §4.10). It falls back to
// a pattern-only verdict when no LLM provider is available or a call
// fails, so the stage itself never needs to fail outright on LLM error.
type CodeAgent struct {
	Enricher *LLMEnricher
}

func (a *CodeAgent) Name() string { return "code" }

// CodeGate reports whether the Code Agent's stage condition is met:
// initial_findings contains a malicious_script finding, or a package's
// script_complexity_score is at or above scriptscan.ComplexityThreshold
// (spec.md §4.10). The two checks are independent: a complex-but-unmatched
// script carries a score without necessarily being a malicious_script
// finding, so neither check alone covers the spec's full gate condition.
func CodeGate(initialFindings []model.Finding) bool {
	for _, f := range initialFindings {
		if f.FindingType == model.FindingMaliciousScript {
			return true
		}
		if score, ok := f.Extra["script_complexity_score"].(float64); ok && score >= scriptscan.ComplexityThreshold {
			return true
		}
	}
	return false
}

func (a *CodeAgent) Analyze(ctx context.Context, shared model.SharedContext) model.AgentResult {
	var suspicious []model.Finding
	for _, f := range shared.InitialFindings {
		if f.FindingType == model.FindingMaliciousScript {
			suspicious = append(suspicious, f)
		}
	}
	if len(suspicious) == 0 {
		return model.AgentResult{Status: model.AgentSkipped, SkipReason: "gate"}
	}

	perPackage := make(map[string]any, len(suspicious))
	for _, f := range suspicious {
		key := f.PackageName + "@" + f.PackageVersion
		hook, _ := f.Extra["hook"].(string)
		command, _ := f.Extra["command"].(string)
		category, _ := f.Extra["category"].(string)

		entry := model.CodeAnalysisEntry{
			Name:                  f.PackageName,
			Version:               f.PackageVersion,
			CodeQualityAssessment: fmt.Sprintf("pattern match: %s", category),
			Severity:              f.Severity,
			Confidence:            f.Confidence,
		}

		if a.Enricher != nil {
			if assessment, ok := a.Enricher.AssessScript(ctx, f.PackageName, hook, command, []string{category}); ok {
				entry.ObfuscationDetected = assessment.ObfuscationDetected
				entry.BehavioralIndicators = assessment.BehavioralIndicators
				entry.CodeQualityAssessment = assessment.CodeQualityAssessment
				if assessment.Severity != "" {
					entry.Severity = model.Severity(assessment.Severity)
				}
				if assessment.Confidence > 0 {
					entry.Confidence = assessment.Confidence
				}
			}
		}

		perPackage[key] = entry
	}

	return model.AgentResult{
		Status:     model.AgentSuccess,
		Confidence: 0.85,
		Data:       map[string]any{"packages": perPackage},
	}
}
