package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sec-scan/depscan/internal/model"
)

// SynthesisAgent composes the final report's narrative sections —
// summary, recommendations, and risk assessment — from the entire shared
// context (spec.md §4.10). When no LLM provider is configured, or the
// LLM call fails or returns invalid JSON, Analyze reports AgentFailed so
// the orchestrator falls back to its own deterministic synthesizer
// (spec.md §4.11) rather than this agent inventing one.
type SynthesisAgent struct {
	Enricher *LLMEnricher
}

func (a *SynthesisAgent) Name() string { return "synthesis" }

func (a *SynthesisAgent) Analyze(ctx context.Context, shared model.SharedContext) model.AgentResult {
	if a.Enricher == nil {
		return model.AgentResult{Status: model.AgentFailed, Error: "no LLM provider configured", ErrorType: model.ErrorUnknown}
	}

	prompt := buildSynthesisPrompt(shared)
	resp, ok := a.Enricher.Synthesize(ctx, prompt)
	if !ok {
		return model.AgentResult{Status: model.AgentFailed, Error: "llm synthesis failed or returned invalid JSON", ErrorType: model.ErrorInvalidResponse}
	}

	return model.AgentResult{
		Status:     model.AgentSuccess,
		Confidence: 0.85,
		Data: map[string]any{
			"summary":         resp.Summary,
			"recommendations": resp.Recommendations,
			"risk_assessment": resp.RiskAssessment,
		},
	}
}

// buildSynthesisPrompt renders the shared context's findings and prior
// agent results into a single prompt requesting the fixed output schema.
func buildSynthesisPrompt(shared model.SharedContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed %d package(s) in the %s ecosystem at %s.\n\n", len(shared.Packages), shared.Ecosystem, shared.ProjectPath)

	bySeverity := map[model.Severity]int{}
	for _, f := range shared.InitialFindings {
		bySeverity[f.Severity]++
	}
	fmt.Fprintf(&b, "Raw findings by severity: critical=%d high=%d medium=%d low=%d\n\n",
		bySeverity[model.SeverityCritical], bySeverity[model.SeverityHigh],
		bySeverity[model.SeverityMedium], bySeverity[model.SeverityLow])

	agentNames := make([]string, 0, len(shared.AgentResults))
	for name := range shared.AgentResults {
		agentNames = append(agentNames, name)
	}
	sort.Strings(agentNames)
	for _, name := range agentNames {
		res := shared.AgentResults[name]
		fmt.Fprintf(&b, "Agent %q: status=%s confidence=%.2f\n", name, res.Status, res.Confidence)
	}

	b.WriteString("\nRespond with a JSON object: {\"summary\": string, " +
		"\"recommendations\": {\"immediate_actions\": [string], " +
		"\"preventive_measures\": [string], \"monitoring\": [string]}, " +
		"\"risk_assessment\": string}.")

	return b.String()
}
