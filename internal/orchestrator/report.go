package orchestrator

import (
	"sort"
	"strings"

	"github.com/sec-scan/depscan/internal/model"
)

// ReportMeta carries the run-level facts the orchestrator itself has no
// way to derive (how the target was supplied, when the run started).
type ReportMeta struct {
	AnalysisID           string
	Target               string
	Timestamp            string
	InputMode            string
	AgentAnalysisEnabled bool
}

// AssembleReport builds the final model.Report from a completed Run.
func AssembleReport(run RunResult, meta ReportMeta) model.Report {
	shared := run.Shared
	packages := buildPackageFindings(shared)

	degradation := computeDegradation(run.records)
	metadata := model.ReportMetadata{
		AnalysisID:           meta.AnalysisID,
		Target:               meta.Target,
		Timestamp:            meta.Timestamp,
		Ecosystem:            shared.Ecosystem,
		InputMode:            meta.InputMode,
		AnalysisStatus:       degradation,
		Confidence:           degradation.Confidence(),
		AgentAnalysisEnabled: meta.AgentAnalysisEnabled,
		DegradationReason:    degradationReason(run.records),
		MissingAnalysis:      missingAnalysis(run.records),
		ErrorSummary:         errorSummary(run.records),
	}

	return model.Report{
		Metadata:            metadata,
		Summary:             buildSummary(shared, packages),
		GithubRuleBased:     buildRuleBasedSummary(shared, packages),
		DependencyGraph:     buildDependencyGraphReport(shared.Graph),
		SupplyChainAnalysis: buildSupplyChainReport(shared.AgentResults["supply_chain"]),
		CodeAnalysis:        buildCodeAnalysisReport(shared.AgentResults["code"]),
		SecurityFindings:    model.SecurityFindings{Packages: packages},
		Recommendations:     buildRecommendations(shared),
		AgentInsights:       buildAgentInsights(run.records),
		PerformanceMetrics:  buildPerformanceMetrics(run),
	}
}

// findingGroup accumulates every finding for one (ecosystem, name, version).
type findingGroup struct {
	name, version string
	ecosystem     model.Ecosystem
	findings      []model.Finding
}

type groupedFindings struct {
	order []string
	byKey map[string]*findingGroup
}

// groupFindings groups findings by package key and orders the groups by
// highest severity then name (spec.md §5's ordering guarantee).
func groupFindings(findings []model.Finding) groupedFindings {
	g := groupedFindings{byKey: make(map[string]*findingGroup)}
	for _, f := range findings {
		key := packageKey(f.Ecosystem, f.PackageName, f.PackageVersion)
		fg, ok := g.byKey[key]
		if !ok {
			fg = &findingGroup{name: f.PackageName, version: f.PackageVersion, ecosystem: f.Ecosystem}
			g.byKey[key] = fg
			g.order = append(g.order, key)
		}
		fg.findings = append(fg.findings, f)
	}

	sort.Slice(g.order, func(i, j int) bool {
		gi, gj := g.byKey[g.order[i]], g.byKey[g.order[j]]
		si, sj := worstSeverity(gi.findings), worstSeverity(gj.findings)
		if si.Rank() != sj.Rank() {
			return si.Rank() < sj.Rank()
		}
		return gi.name < gj.name
	})
	return g
}

func packageKey(ecosystem model.Ecosystem, name, version string) string {
	return string(ecosystem) + ":" + name + ":" + version
}

func parseKey(key string) (ecosystem, name, version string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return "", key, ""
	}
	return parts[0], parts[1], parts[2]
}

func splitKey(key string) (ecosystem, name string) {
	ecosystem, name, _ = parseKey(key)
	return ecosystem, name
}

// worstSeverity returns the most severe finding in the slice, or "" if empty.
func worstSeverity(findings []model.Finding) model.Severity {
	worst := model.Severity("")
	for _, f := range findings {
		if worst == "" || f.Severity.Rank() < worst.Rank() {
			worst = f.Severity
		}
	}
	return worst
}

// sortFindingsBySeverity orders one package's findings critical→low, then
// by confidence descending (spec.md §5).
func sortFindingsBySeverity(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() < findings[j].Severity.Rank()
		}
		return findings[i].Confidence > findings[j].Confidence
	})
}

func riskFromSeverity(sev model.Severity) (float64, model.RiskLevel) {
	switch sev {
	case model.SeverityCritical:
		return 0.9, model.RiskCritical
	case model.SeverityHigh:
		return 0.7, model.RiskHigh
	case model.SeverityMedium:
		return 0.4, model.RiskMedium
	case model.SeverityLow:
		return 0.2, model.RiskLow
	default:
		return 0.1, model.RiskLow
	}
}

func buildPackageFindings(shared model.SharedContext) []model.PackageFindings {
	grouped := groupFindings(shared.InitialFindings)

	vulnPackages, _ := shared.AgentResults["vulnerability"].Data["packages"].(map[string]any)
	repPackages, _ := shared.AgentResults["reputation"].Data["packages"].(map[string]any)

	out := make([]model.PackageFindings, 0, len(grouped.order))
	for _, key := range grouped.order {
		g := grouped.byKey[key]
		sortFindingsBySeverity(g.findings)

		pf := model.PackageFindings{
			Name:      g.name,
			Version:   g.version,
			Ecosystem: g.ecosystem,
			Findings:  g.findings,
		}

		if entry, ok := vulnPackages[key].(map[string]any); ok {
			if recs, ok := entry["vulnerabilities"].([]model.VulnerabilityRecord); ok {
				pf.Vulnerabilities = recs
			}
		}

		if rec, ok := repPackages[key].(model.ReputationRecord); ok {
			score := rec.Score
			pf.ReputationScore = &score
			pf.RiskFactors = rec.RiskFactors
			pf.RiskScore = 1 - rec.Score
			pf.RiskLevel = rec.RiskLevel
		} else {
			pf.RiskScore, pf.RiskLevel = riskFromSeverity(worstSeverity(g.findings))
		}

		out = append(out, pf)
	}
	return out
}

func buildSummary(shared model.SharedContext, packages []model.PackageFindings) model.ReportSummary {
	summary := model.ReportSummary{TotalPackages: len(shared.Packages)}
	for _, pf := range packages {
		if len(pf.Findings) > 0 {
			summary.PackagesWithFindings++
		}
		for _, f := range pf.Findings {
			summary.TotalFindings++
			switch f.Severity {
			case model.SeverityCritical:
				summary.CriticalFindings++
			case model.SeverityHigh:
				summary.HighFindings++
			case model.SeverityMedium:
				summary.MediumFindings++
			case model.SeverityLow:
				summary.LowFindings++
			}
		}
	}
	return summary
}

func buildRuleBasedSummary(shared model.SharedContext, packages []model.PackageFindings) model.RuleBasedSummary {
	issues, withIssues := 0, 0
	for _, pf := range packages {
		if len(pf.Findings) > 0 {
			withIssues++
			issues += len(pf.Findings)
		}
	}
	return model.RuleBasedSummary{
		Description:        "rule-based static analysis: OSV vulnerability lookups, known-malicious/typosquat matching, and install-script pattern scanning",
		Confidence:         0.9,
		TotalPackages:      len(shared.Packages),
		PackagesWithIssues: withIssues,
		TotalIssues:        issues,
		DetectionMethods: map[string]string{
			"osv_api":             "queries OSV for known vulnerabilities per resolved package",
			"malicious_packages":  "exact match against a bundled known-malicious package list",
			"typosquatting":       "Levenshtein distance against a bundled popular-package list",
			"pattern_analysis":    "regex scan of install-lifecycle scripts for dangerous commands",
		},
	}
}

func buildDependencyGraphReport(graph *model.DependencyGraph) model.DependencyGraphReport {
	if graph == nil {
		return model.DependencyGraphReport{Applicable: false}
	}
	return model.DependencyGraphReport{
		Applicable:    true,
		TotalPackages: len(graph.Nodes),
		CircularDependencies: model.CircularDependencies{
			Count: len(graph.Cycles), Details: graph.Cycles,
		},
		VersionConflicts: model.VersionConflictsReport{
			Count: len(graph.VersionConflicts), Details: graph.VersionConflicts,
		},
	}
}

func buildSupplyChainReport(result model.AgentResult) *model.SupplyChainReport {
	if result.Status != model.AgentSuccess {
		return nil
	}
	packages, _ := result.Data["packages"].(map[string]any)
	detected, _ := result.Data["attacks_detected"].(int)

	out := make([]model.SupplyChainPackageInfo, 0, len(packages))
	for _, v := range packages {
		if info, ok := v.(model.SupplyChainPackageInfo); ok {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return &model.SupplyChainReport{
		Applicable:            true,
		Description:           "compares reputation risk-factor combinations against known supply-chain attack patterns",
		TotalPackagesAnalyzed: len(out),
		AttacksDetected:       detected,
		Packages:              out,
		Confidence:            result.Confidence,
		Source:                "supply_chain_agent",
	}
}

func buildCodeAnalysisReport(result model.AgentResult) *model.CodeAnalysisReport {
	if result.Status != model.AgentSuccess {
		return nil
	}
	packages, _ := result.Data["packages"].(map[string]any)

	out := make([]model.CodeAnalysisEntry, 0, len(packages))
	issues := 0
	for _, v := range packages {
		entry, ok := v.(model.CodeAnalysisEntry)
		if !ok {
			continue
		}
		out = append(out, entry)
		if entry.Severity == model.SeverityCritical || entry.Severity == model.SeverityHigh {
			issues++
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return &model.CodeAnalysisReport{
		Applicable:            true,
		Description:           "LLM second opinion on install-script findings, covering obfuscation and behavioral review",
		TotalPackagesAnalyzed: len(out),
		CodeIssuesFound:       issues,
		Packages:              out,
		Confidence:            result.Confidence,
		Source:                "code_agent",
	}
}

func buildRecommendations(shared model.SharedContext) model.Recommendations {
	if recs, ok := shared.AgentResults["synthesis"].Data["recommendations"].(model.Recommendations); ok {
		return recs
	}
	return model.Recommendations{}
}

func buildAgentInsights(records []stageRecord) model.AgentInsights {
	insights := model.AgentInsights{
		AgentDetails: make(map[string]model.AgentDetailInfo, len(records)),
	}
	for _, rec := range records {
		r := rec.result
		switch r.Status {
		case model.AgentSuccess:
			insights.SuccessfulAgents = append(insights.SuccessfulAgents, rec.stage.Name)
		case model.AgentFailed, model.AgentTimeout:
			insights.FailedAgents = append(insights.FailedAgents, model.AgentErrorDetail{
				Agent: rec.stage.Name, Error: r.Error, Type: r.ErrorType,
			})
		}

		packages, _ := r.Data["packages"].(map[string]any)
		insights.AgentDetails[rec.stage.Name] = model.AgentDetailInfo{
			Success:          r.Status == model.AgentSuccess,
			DurationSeconds:  r.DurationSeconds,
			Confidence:       r.Confidence,
			PackagesAnalyzed: len(packages),
			FindingsCount:    len(packages),
			Error:            r.Error,
		}
	}
	insights.DegradationLevel = computeDegradation(records)
	return insights
}

func buildPerformanceMetrics(run RunResult) model.PerformanceMetrics {
	durations := make(map[string]float64, len(run.records))
	for _, rec := range run.records {
		durations[rec.stage.Name] = rec.result.DurationSeconds
	}
	return model.PerformanceMetrics{
		TotalDurationSeconds: run.TotalDuration.Seconds(),
		AgentDurations:       durations,
	}
}

// computeDegradation implements spec.md §4.11's four-level rule over the
// set of stage outcomes.
func computeDegradation(records []stageRecord) model.DegradationLevel {
	requiredTotal, requiredFallback := 0, 0
	optionalFailed := false

	for _, rec := range records {
		r := rec.result
		if rec.stage.Required {
			requiredTotal++
			if r.Status != model.AgentSuccess {
				requiredFallback++
			}
			continue
		}
		if rec.gatedOff {
			continue
		}
		if r.Status != model.AgentSuccess {
			optionalFailed = true
		}
	}

	switch {
	case requiredTotal > 0 && requiredFallback == requiredTotal:
		return model.DegradationMinimal
	case requiredFallback > 0:
		return model.DegradationBasic
	case optionalFailed:
		return model.DegradationPartial
	default:
		return model.DegradationFull
	}
}

func degradationReason(records []stageRecord) string {
	for _, rec := range records {
		if rec.stage.Required && rec.result.Status != model.AgentSuccess {
			return rec.stage.Name + " stage used fallback data: " + rec.result.Error
		}
	}
	for _, rec := range records {
		if !rec.stage.Required && !rec.gatedOff && rec.result.Status != model.AgentSuccess {
			return rec.stage.Name + " stage skipped: " + rec.result.Error
		}
	}
	return ""
}

func missingAnalysis(records []stageRecord) []string {
	var missing []string
	for _, rec := range records {
		if rec.result.Status == model.AgentSkipped && rec.gatedOff {
			continue
		}
		if rec.result.Status != model.AgentSuccess {
			missing = append(missing, rec.stage.Name)
		}
	}
	return missing
}

func errorSummary(records []stageRecord) []model.AgentErrorDetail {
	var out []model.AgentErrorDetail
	for _, rec := range records {
		r := rec.result
		if r.Status == model.AgentFailed || r.Status == model.AgentTimeout {
			out = append(out, model.AgentErrorDetail{Agent: rec.stage.Name, Error: r.Error, Type: r.ErrorType})
		}
	}
	return out
}
