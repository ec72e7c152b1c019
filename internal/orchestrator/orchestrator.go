// Package orchestrator sequences the five specialized agents (spec.md
// §4.11) against one SharedContext, enforces per-stage and total-run
// timeouts, retries retryable failures once, substitutes deterministic
// fallback data when a required stage cannot complete, and assembles the
// result into the final model.Report. Grounded on the teacher's
// internal/pipeline/pipeline.go: a typed runner holding one ordered list
// of steps, a New constructor, and a single Run method — generalized from
// errgroup-parallel collectors to a sequential agent pipeline, since later
// stages here read earlier stages' output instead of running independently.
package orchestrator

import (
	"context"
	"time"

	"github.com/sec-scan/depscan/internal/agent"
	"github.com/sec-scan/depscan/internal/agents"
	"github.com/sec-scan/depscan/internal/config"
	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/osv"
	"github.com/sec-scan/depscan/internal/registry"
	"github.com/sec-scan/depscan/internal/reputation"
)

// DefaultTotalTimeout is the orchestrator's top-level wall-clock cap
// (spec.md §4.11).
const DefaultTotalTimeout = 140 * time.Second

// maxRetries is the number of retries attempted on a retryable stage
// failure, in addition to the first attempt (spec.md §4.11: "retry
// retryable once").
const maxRetries = 1

// Stage is one named step in the fixed sequence. Gate is nil for
// always-run stages; for conditional stages it reports whether the
// stage's trigger condition is met against the context as it stands when
// the stage is reached.
type Stage struct {
	Name     string
	Agent    agent.Agent
	Required bool
	Timeout  time.Duration
	Gate     func(shared model.SharedContext) bool
}

// Orchestrator holds the five stages in their fixed order and the
// timeouts that apply to each.
type Orchestrator struct {
	stages       []Stage
	totalTimeout time.Duration
}

// New builds an Orchestrator wired to the given clients and LLM enricher.
// enricher may be nil, which disables LLM-backed enrichment and forces
// the Synthesis stage to fall through to the deterministic synthesizer.
// githubToken authenticates the Reputation stage's GitHub org-ownership
// lookup; empty uses go-github's unauthenticated client.
func New(osvClient *osv.Client, regClient registry.Client, enricher *agents.LLMEnricher, timeouts config.StageTimeouts, githubToken string) *Orchestrator {
	vuln := &agents.VulnerabilityAgent{OSV: osvClient, Enricher: enricher}
	rep := &agents.ReputationAgent{Registry: regClient, GitHubResolver: reputation.NewGitHubAuthorResolver(githubToken)}
	code := &agents.CodeAgent{Enricher: enricher}
	supply := &agents.SupplyChainAgent{}
	synth := &agents.SynthesisAgent{Enricher: enricher}

	return &Orchestrator{
		totalTimeout: DefaultTotalTimeout,
		stages: []Stage{
			{Name: "vulnerability", Agent: vuln, Required: true, Timeout: orDefault(timeouts.Vulnerability, 30*time.Second)},
			{Name: "reputation", Agent: rep, Required: true, Timeout: orDefault(timeouts.Reputation, 20*time.Second)},
			{
				Name: "code", Agent: code, Required: false, Timeout: orDefault(timeouts.Code, 40*time.Second),
				Gate: func(shared model.SharedContext) bool { return agents.CodeGate(shared.InitialFindings) },
			},
			{
				Name: "supply_chain", Agent: supply, Required: false, Timeout: orDefault(timeouts.SupplyChain, 30*time.Second),
				Gate: func(shared model.SharedContext) bool { return agents.SupplyChainGate(shared.AgentResults["reputation"]) },
			},
			{Name: "synthesis", Agent: synth, Required: true, Timeout: orDefault(timeouts.Synthesis, 20*time.Second)},
		},
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// stageRecord is the orchestrator's bookkeeping for one stage, kept
// alongside (not inside) model.AgentResult so report assembly can
// distinguish a gate-skip from a failure-skip without overloading
// AgentResult.SkipReason's serialization rules.
type stageRecord struct {
	stage    Stage
	result   model.AgentResult
	gatedOff bool
}

// RunResult is everything a Run produces: the updated shared context
// (every stage's AgentResult recorded) and the per-stage bookkeeping
// needed to assemble the final report.
type RunResult struct {
	Shared         model.SharedContext
	TotalDuration  time.Duration
	records        []stageRecord
}

// Run executes every stage in order against shared, honoring gates,
// per-stage timeouts, the single-retry policy, and fallback synthesis on
// terminal required-stage failure. It never returns an error: any
// unrecoverable condition is reflected in the returned stages' statuses,
// per spec.md §4.11's "a user always receives a report" contract.
func (o *Orchestrator) Run(ctx context.Context, shared model.SharedContext) RunResult {
	start := time.Now()

	total := o.totalTimeout
	if total <= 0 {
		total = DefaultTotalTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, total)
	defer cancel()

	if shared.AgentResults == nil {
		shared.AgentResults = make(map[string]model.AgentResult)
	}

	records := make([]stageRecord, 0, len(o.stages))
	for _, st := range o.stages {
		if st.Gate != nil && !st.Gate(shared) {
			result := model.AgentResult{AgentName: st.Name, Status: model.AgentSkipped, SkipReason: "gate"}
			shared.AgentResults[st.Name] = result
			records = append(records, stageRecord{stage: st, result: result, gatedOff: true})
			continue
		}

		result := o.runStage(runCtx, st, shared)
		result.AgentName = st.Name
		shared.AgentResults[st.Name] = result
		records = append(records, stageRecord{stage: st, result: result})
	}

	return RunResult{Shared: shared, TotalDuration: time.Since(start), records: records}
}

// runStage invokes one stage's agent with retry, and substitutes
// fallback data if it is still failing afterward.
func (o *Orchestrator) runStage(ctx context.Context, st Stage, shared model.SharedContext) model.AgentResult {
	if ctx.Err() != nil {
		return o.fallback(st, shared, model.AgentResult{
			Status: model.AgentTimeout, Error: "total analysis budget exceeded", ErrorType: model.ErrorTimeout,
		})
	}

	result := agent.RetryWithBackoff(ctx, maxRetries, func(stepCtx context.Context) model.AgentResult {
		return agent.Run(stepCtx, st.Agent, shared, st.Timeout)
	})
	if result.Status == model.AgentSuccess {
		return result
	}
	return o.fallback(st, shared, result)
}

// fallback applies spec.md §4.11 step 5/6: a required stage gets
// deterministic fallback data and is marked FAILED; an optional stage is
// marked SKIPPED with the failure reason.
func (o *Orchestrator) fallback(st Stage, shared model.SharedContext, result model.AgentResult) model.AgentResult {
	if !st.Required {
		result.Status = model.AgentSkipped
		result.SkipReason = "failure"
		return result
	}

	result.Status = model.AgentFailed
	switch st.Name {
	case "vulnerability":
		result.Data = fallbackVulnerabilityData(shared.InitialFindings)
	case "reputation":
		result.Data = fallbackReputationData(shared.Packages)
	case "synthesis":
		result.Data = fallbackSynthesisData(shared)
	}
	return result
}
