// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

package agents

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sec-scan/depscan/internal/llm"
	"github.com/sec-scan/depscan/internal/model"
)

// LLMEnricher wraps an llm.Provider with the per-agent prompt builders and
// fenced-JSON parsing this package's agents share. A nil *LLMEnricher (or
// one with a nil Provider) disables all LLM enrichment, and every caller
// must treat that as "skip enrichment", not an error.
type LLMEnricher struct {
	Provider llm.Provider
	Model    string
}

// vulnerabilityAssessment is the LLM per-package vulnerability enrichment
// payload (spec.md §4.10's llm_assessment shape).
type vulnerabilityAssessment struct {
	ExploitationLikelihood string   `json:"exploitation_likelihood"`
	BusinessImpact         string   `json:"business_impact"`
	RecommendedAction      string   `json:"recommended_action"`
	KeyConcerns            []string `json:"key_concerns"`
	RiskScore              int      `json:"risk_score"`
}

// AssessVulnerabilities asks the LLM to assess one package's vulnerability
// records. Returns ok=false on any failure (no provider, API error,
// invalid JSON) so the caller falls back to the pattern-only result.
func (e *LLMEnricher) AssessVulnerabilities(ctx context.Context, ref model.PackageRef, records []model.VulnerabilityRecord) (vulnerabilityAssessment, bool) {
	if e == nil || e.Provider == nil {
		return vulnerabilityAssessment{}, false
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID+": "+r.Summary)
	}

	prompt := "Assess the business risk of the following vulnerabilities affecting " +
		ref.Name + "@" + ref.Version() + ":\n" + strings.Join(ids, "\n") +
		"\n\nRespond with a JSON object: {\"exploitation_likelihood\": \"low\"|\"medium\"|\"high\", " +
		"\"business_impact\": string, \"recommended_action\": string, " +
		"\"key_concerns\": [string], \"risk_score\": integer 1-10}."

	resp, err := e.Provider.Complete(ctx, llm.Request{
		SystemPrompt: "You are a security analyst assessing open-source package vulnerabilities. Always respond with valid JSON only.",
		Prompt:       prompt,
		Model:        e.Model,
		MaxTokens:    1024,
	})
	if err != nil {
		return vulnerabilityAssessment{}, false
	}

	var out vulnerabilityAssessment
	if err := parseJSONResponse(resp.Content, &out); err != nil {
		return vulnerabilityAssessment{}, false
	}
	return out, true
}

// codeAssessment is the Code Agent's LLM-backed per-package output shape.
type codeAssessment struct {
	ObfuscationDetected   []string `json:"obfuscation_detected"`
	BehavioralIndicators  []string `json:"behavioral_indicators"`
	CodeQualityAssessment string   `json:"code_quality_assessment"`
	Severity              string   `json:"severity"`
	Confidence            float64  `json:"confidence"`
}

// AssessScript asks the LLM for a second opinion on one suspicious script,
// listing the attack taxonomy categories already matched by the pattern
// engine so the model can confirm, escalate, or dismiss them.
func (e *LLMEnricher) AssessScript(ctx context.Context, packageName, hook, command string, matchedCategories []string) (codeAssessment, bool) {
	if e == nil || e.Provider == nil {
		return codeAssessment{}, false
	}

	prompt := "Package " + packageName + " runs this command in its \"" + hook + "\" lifecycle hook:\n\n" +
		command + "\n\nPattern matching already flagged: " + strings.Join(matchedCategories, ", ") +
		".\n\nRe-examine the command for obfuscation (base64, hex escapes, string concatenation tricks) " +
		"and behavioral indicators of a supply-chain attack. Respond with a JSON object: " +
		"{\"obfuscation_detected\": [string], \"behavioral_indicators\": [string], " +
		"\"code_quality_assessment\": string, \"severity\": \"low\"|\"medium\"|\"high\"|\"critical\", " +
		"\"confidence\": number 0-1}."

	resp, err := e.Provider.Complete(ctx, llm.Request{
		SystemPrompt: "You are a security analyst examining package install scripts for supply-chain attacks. Always respond with valid JSON only.",
		Prompt:       prompt,
		Model:        e.Model,
		MaxTokens:    1024,
	})
	if err != nil {
		return codeAssessment{}, false
	}

	var out codeAssessment
	if err := parseJSONResponse(resp.Content, &out); err != nil {
		return codeAssessment{}, false
	}
	return out, true
}

// synthesisResponse is the schema the Synthesis Agent requests from the
// LLM (spec.md §6's security_findings/recommendations/risk_assessment).
type synthesisResponse struct {
	Summary         string                 `json:"summary"`
	Recommendations model.Recommendations  `json:"recommendations"`
	RiskAssessment  string                 `json:"risk_assessment"`
}

// Synthesize asks the LLM to produce the final report's narrative
// sections from the full shared context.
func (e *LLMEnricher) Synthesize(ctx context.Context, prompt string) (synthesisResponse, bool) {
	if e == nil || e.Provider == nil {
		return synthesisResponse{}, false
	}

	resp, err := e.Provider.Complete(ctx, llm.Request{
		SystemPrompt: "You are a security analyst producing the final summary of a dependency security scan. Always respond with valid JSON only, matching the requested schema exactly.",
		Prompt:       prompt,
		Model:        e.Model,
		MaxTokens:    4096,
	})
	if err != nil {
		return synthesisResponse{}, false
	}

	var out synthesisResponse
	if err := parseJSONResponse(resp.Content, &out); err != nil {
		return synthesisResponse{}, false
	}
	if out.Summary == "" {
		return synthesisResponse{}, false
	}
	return out, true
}

// parseJSONResponse strips an optional markdown code fence (teacher's
// parseClusterResponse idiom) before unmarshaling into out.
func parseJSONResponse(content string, out any) error {
	content = stripFence(content)
	return json.Unmarshal([]byte(content), out)
}

func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	lines := strings.Split(content, "\n")
	var jsonLines []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			jsonLines = append(jsonLines, line)
		}
	}
	return strings.TrimSpace(strings.Join(jsonLines, "\n"))
}
