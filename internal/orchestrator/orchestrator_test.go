package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sec-scan/depscan/internal/model"
)

type fakeStageAgent struct {
	name   string
	result model.AgentResult
}

func (f *fakeStageAgent) Name() string { return f.name }
func (f *fakeStageAgent) Analyze(_ context.Context, _ model.SharedContext) model.AgentResult {
	return f.result
}

func allSuccessOrchestrator() *Orchestrator {
	return &Orchestrator{
		totalTimeout: 5 * time.Second,
		stages: []Stage{
			{Name: "vulnerability", Required: true, Timeout: time.Second,
				Agent: &fakeStageAgent{result: model.AgentResult{Status: model.AgentSuccess, Confidence: 0.9, Data: map[string]any{"packages": map[string]any{}}}}},
			{Name: "reputation", Required: true, Timeout: time.Second,
				Agent: &fakeStageAgent{result: model.AgentResult{Status: model.AgentSuccess, Confidence: 0.8, Data: map[string]any{"packages": map[string]any{}}}}},
			{Name: "code", Required: false, Timeout: time.Second,
				Gate:  func(model.SharedContext) bool { return false },
				Agent: &fakeStageAgent{}},
			{Name: "supply_chain", Required: false, Timeout: time.Second,
				Gate:  func(model.SharedContext) bool { return false },
				Agent: &fakeStageAgent{}},
			{Name: "synthesis", Required: true, Timeout: time.Second,
				Agent: &fakeStageAgent{result: model.AgentResult{Status: model.AgentSuccess, Confidence: 0.85, Data: map[string]any{
					"summary": "all clear", "recommendations": model.Recommendations{Monitoring: []string{"watch advisories"}},
				}}}},
		},
	}
}

func TestRun_AllStagesSucceedYieldsFullDegradation(t *testing.T) {
	o := allSuccessOrchestrator()
	run := o.Run(context.Background(), model.SharedContext{})

	require.Len(t, run.records, 5)
	assert.Equal(t, model.DegradationFull, computeDegradation(run.records))
	for _, rec := range run.records[:2] {
		assert.Equal(t, model.AgentSuccess, rec.result.Status)
	}
	assert.True(t, run.records[2].gatedOff)
	assert.Equal(t, model.AgentSkipped, run.records[2].result.Status)
}

func TestRun_RequiredStageFailureGetsFallbackAndStaysFailed(t *testing.T) {
	o := allSuccessOrchestrator()
	o.stages[0].Agent = &fakeStageAgent{result: model.AgentResult{
		Status: model.AgentFailed, Error: "no OSV client configured", ErrorType: model.ErrorUnknown,
	}}

	shared := model.SharedContext{
		InitialFindings: []model.Finding{{
			PackageName: "evil-pkg", PackageVersion: "1.0.0", Ecosystem: model.EcosystemNPM,
			FindingType: model.FindingVulnerability, Severity: model.SeverityCritical, Confidence: 0.95,
		}},
	}
	run := o.Run(context.Background(), shared)

	vulnResult := run.Shared.AgentResults["vulnerability"]
	assert.Equal(t, model.AgentFailed, vulnResult.Status)
	require.NotNil(t, vulnResult.Data)
	packages, ok := vulnResult.Data["packages"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, packages, "npm:evil-pkg:1.0.0")

	assert.Equal(t, model.DegradationBasic, computeDegradation(run.records))
}

func TestRun_AllRequiredStagesFailingYieldsMinimalDegradation(t *testing.T) {
	o := allSuccessOrchestrator()
	failure := model.AgentResult{Status: model.AgentFailed, Error: "boom", ErrorType: model.ErrorAuth}
	o.stages[0].Agent = &fakeStageAgent{result: failure}
	o.stages[1].Agent = &fakeStageAgent{result: failure}
	o.stages[4].Agent = &fakeStageAgent{result: failure}

	run := o.Run(context.Background(), model.SharedContext{})
	assert.Equal(t, model.DegradationMinimal, computeDegradation(run.records))
}

func TestRun_OptionalStageFailureYieldsPartialDegradation(t *testing.T) {
	o := allSuccessOrchestrator()
	o.stages[2].Gate = func(model.SharedContext) bool { return true }
	o.stages[2].Agent = &fakeStageAgent{result: model.AgentResult{Status: model.AgentFailed, Error: "timed out", ErrorType: model.ErrorAuth}}

	run := o.Run(context.Background(), model.SharedContext{})
	codeResult := run.Shared.AgentResults["code"]
	assert.Equal(t, model.AgentSkipped, codeResult.Status)
	assert.Equal(t, "failure", codeResult.SkipReason)
	assert.Equal(t, model.DegradationPartial, computeDegradation(run.records))
}

func TestRun_SynthesisFallbackNamesCriticalPackage(t *testing.T) {
	o := allSuccessOrchestrator()
	o.stages[4].Agent = &fakeStageAgent{result: model.AgentResult{Status: model.AgentFailed, Error: "invalid json", ErrorType: model.ErrorInvalidResponse}}

	shared := model.SharedContext{
		Packages: []model.PackageRef{{Ecosystem: model.EcosystemNPM, Name: "evil-pkg", VersionSpec: "1.0.0"}},
		InitialFindings: []model.Finding{{
			PackageName: "evil-pkg", PackageVersion: "1.0.0", Ecosystem: model.EcosystemNPM,
			FindingType: model.FindingMaliciousScript, Severity: model.SeverityCritical, Confidence: 0.95,
		}},
	}
	run := o.Run(context.Background(), shared)

	synth := run.Shared.AgentResults["synthesis"]
	assert.Equal(t, model.AgentFailed, synth.Status)
	recs, ok := synth.Data["recommendations"].(model.Recommendations)
	require.True(t, ok)
	require.NotEmpty(t, recs.ImmediateActions)
	assert.Contains(t, recs.ImmediateActions[0], "evil-pkg")
}

func TestAssembleReport_SummaryCountsMatchGroupedFindings(t *testing.T) {
	o := allSuccessOrchestrator()
	shared := model.SharedContext{
		Packages: []model.PackageRef{{Ecosystem: model.EcosystemNPM, Name: "evil-pkg", VersionSpec: "1.0.0"}},
		InitialFindings: []model.Finding{
			{PackageName: "evil-pkg", PackageVersion: "1.0.0", Ecosystem: model.EcosystemNPM,
				FindingType: model.FindingMaliciousScript, Severity: model.SeverityCritical, Confidence: 0.95},
			{PackageName: "evil-pkg", PackageVersion: "1.0.0", Ecosystem: model.EcosystemNPM,
				FindingType: model.FindingVulnerability, Severity: model.SeverityHigh, Confidence: 0.8},
		},
	}
	run := o.Run(context.Background(), shared)
	report := AssembleReport(run, ReportMeta{AnalysisID: "a1", Target: "./evil-pkg", Timestamp: "2026-07-31T00:00:00Z", InputMode: "local", AgentAnalysisEnabled: true})

	assert.Equal(t, 2, report.Summary.TotalFindings)
	assert.Equal(t, 1, report.Summary.CriticalFindings)
	assert.Equal(t, 1, report.Summary.HighFindings)
	require.Len(t, report.SecurityFindings.Packages, 1)
	assert.Equal(t, "evil-pkg", report.SecurityFindings.Packages[0].Name)
	assert.Equal(t, model.DegradationFull, report.Metadata.AnalysisStatus)
}

func TestComputeDegradation_AllFourLevels(t *testing.T) {
	success := stageRecord{stage: Stage{Name: "vulnerability", Required: true}, result: model.AgentResult{Status: model.AgentSuccess}}
	fallback := stageRecord{stage: Stage{Name: "reputation", Required: true}, result: model.AgentResult{Status: model.AgentFailed}}
	optFailed := stageRecord{stage: Stage{Name: "code", Required: false}, result: model.AgentResult{Status: model.AgentSkipped, SkipReason: "failure"}}
	gated := stageRecord{stage: Stage{Name: "supply_chain", Required: false}, result: model.AgentResult{Status: model.AgentSkipped, SkipReason: "gate"}, gatedOff: true}

	assert.Equal(t, model.DegradationFull, computeDegradation([]stageRecord{success, success, gated, gated, success}))
	assert.Equal(t, model.DegradationPartial, computeDegradation([]stageRecord{success, success, optFailed, gated, success}))
	assert.Equal(t, model.DegradationBasic, computeDegradation([]stageRecord{success, fallback, gated, gated, success}))

	allRequiredFailed := stageRecord{stage: Stage{Name: "synthesis", Required: true}, result: model.AgentResult{Status: model.AgentFailed}}
	assert.Equal(t, model.DegradationMinimal, computeDegradation([]stageRecord{fallback, fallback, gated, gated, allRequiredFailed}))
}
