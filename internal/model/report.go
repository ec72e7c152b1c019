package model

// Report is the fixed top-level JSON schema written to
// {OUTPUT_DIRECTORY}/demo_ui_comprehensive_report.json. Field shapes follow
// SPEC_FULL.md §7 exactly; every field here round-trips through
// encoding/json without any custom marshaling.
type Report struct {
	Metadata             ReportMetadata        `json:"metadata"`
	Summary              ReportSummary         `json:"summary"`
	GithubRuleBased      RuleBasedSummary      `json:"github_rule_based"`
	DependencyGraph      DependencyGraphReport `json:"dependency_graph"`
	SupplyChainAnalysis  *SupplyChainReport    `json:"supply_chain_analysis,omitempty"`
	CodeAnalysis         *CodeAnalysisReport   `json:"code_analysis,omitempty"`
	SecurityFindings     SecurityFindings      `json:"security_findings"`
	Recommendations      Recommendations       `json:"recommendations"`
	AgentInsights        AgentInsights         `json:"agent_insights"`
	PerformanceMetrics   PerformanceMetrics    `json:"performance_metrics"`
}

// ReportMetadata is the report's metadata section.
type ReportMetadata struct {
	AnalysisID           string             `json:"analysis_id"`
	Target               string             `json:"target"`
	Timestamp            string             `json:"timestamp"` // ISO8601
	Ecosystem            Ecosystem          `json:"ecosystem"`
	InputMode            string             `json:"input_mode"` // "local" | "github"
	AnalysisStatus       DegradationLevel   `json:"analysis_status"`
	Confidence           float64            `json:"confidence"`
	AgentAnalysisEnabled bool               `json:"agent_analysis_enabled"`
	DegradationReason    string             `json:"degradation_reason,omitempty"`
	MissingAnalysis      []string           `json:"missing_analysis,omitempty"`
	ErrorSummary         []AgentErrorDetail `json:"error_summary,omitempty"`
}

// AgentErrorDetail names one degraded agent's error in metadata/insights.
type AgentErrorDetail struct {
	Agent string    `json:"agent"`
	Error string    `json:"error"`
	Type  ErrorType `json:"type"`
}

// ReportSummary is the report's summary section.
type ReportSummary struct {
	TotalPackages        int `json:"total_packages"`
	PackagesWithFindings int `json:"packages_with_findings"`
	TotalFindings        int `json:"total_findings"`
	CriticalFindings     int `json:"critical_findings"`
	HighFindings         int `json:"high_findings"`
	MediumFindings       int `json:"medium_findings"`
	LowFindings          int `json:"low_findings"`
}

// RuleBasedSummary is the report's github_rule_based section.
type RuleBasedSummary struct {
	Description       string            `json:"description"`
	Confidence        float64           `json:"confidence"`
	TotalPackages     int               `json:"total_packages"`
	PackagesWithIssues int              `json:"packages_with_issues"`
	TotalIssues       int               `json:"total_issues"`
	DetectionMethods  map[string]string `json:"detection_methods"`
}

// DependencyGraphReport is the report's dependency_graph section.
type DependencyGraphReport struct {
	Applicable          bool                  `json:"applicable"`
	TotalPackages       int                   `json:"total_packages"`
	CircularDependencies CircularDependencies `json:"circular_dependencies"`
	VersionConflicts     VersionConflictsReport `json:"version_conflicts"`
}

// CircularDependencies holds the report's circular-dependency details.
type CircularDependencies struct {
	Count   int     `json:"count"`
	Details []Cycle `json:"details"`
}

// VersionConflictsReport holds the report's version-conflict details.
type VersionConflictsReport struct {
	Count   int               `json:"count"`
	Details []VersionConflict `json:"details"`
}

// SupplyChainReport is the optional supply_chain_analysis section.
type SupplyChainReport struct {
	Applicable            bool                     `json:"applicable"`
	Description           string                   `json:"description"`
	TotalPackagesAnalyzed int                      `json:"total_packages_analyzed"`
	AttacksDetected       int                      `json:"attacks_detected"`
	Packages              []SupplyChainPackageInfo `json:"packages"`
	Confidence            float64                  `json:"confidence"`
	Source                string                   `json:"source"`
}

// SupplyChainPackageInfo is one package's supply-chain agent output.
type SupplyChainPackageInfo struct {
	Name                   string                      `json:"name"`
	Version                string                      `json:"version"`
	SupplyChainIndicators  []string                    `json:"supply_chain_indicators"`
	AttackPatternMatches   []AttackPatternMatch        `json:"attack_pattern_matches"`
	AttackLikelihood       string                      `json:"attack_likelihood"`
	Confidence             float64                     `json:"confidence"`
}

// AttackPatternMatch names one matched attack-pattern and its similarity.
type AttackPatternMatch struct {
	PatternName string  `json:"pattern_name"`
	Similarity  float64 `json:"similarity"`
}

// CodeAnalysisReport is the optional code_analysis section.
type CodeAnalysisReport struct {
	Applicable            bool                `json:"applicable"`
	Description           string              `json:"description"`
	TotalPackagesAnalyzed int                 `json:"total_packages_analyzed"`
	CodeIssuesFound       int                 `json:"code_issues_found"`
	Packages              []CodeAnalysisEntry `json:"packages"`
	Confidence            float64             `json:"confidence"`
	Source                string              `json:"source"`
}

// CodeAnalysisEntry is one package's code agent output.
type CodeAnalysisEntry struct {
	Name                   string   `json:"name"`
	Version                string   `json:"version"`
	ObfuscationDetected    []string `json:"obfuscation_detected"`
	BehavioralIndicators   []string `json:"behavioral_indicators"`
	CodeQualityAssessment  string   `json:"code_quality_assessment"`
	Severity               Severity `json:"severity"`
	Confidence             float64  `json:"confidence"`
}

// SecurityFindings is the report's package-grouped security_findings section.
type SecurityFindings struct {
	Packages []PackageFindings `json:"packages"`
}

// PackageFindings groups all findings and derived scores for one package.
type PackageFindings struct {
	Name             string                `json:"name"`
	Version          string                `json:"version"`
	Ecosystem        Ecosystem             `json:"ecosystem"`
	Findings         []Finding             `json:"findings"`
	Vulnerabilities  []VulnerabilityRecord `json:"vulnerabilities,omitempty"`
	ReputationScore  *float64              `json:"reputation_score,omitempty"`
	RiskFactors      []RiskFactor          `json:"risk_factors,omitempty"`
	RiskScore        float64               `json:"risk_score"`
	RiskLevel        RiskLevel             `json:"risk_level"`
}

// Recommendations is the report's prioritized recommendations section.
type Recommendations struct {
	ImmediateActions   []string `json:"immediate_actions"`
	PreventiveMeasures []string `json:"preventive_measures"`
	Monitoring         []string `json:"monitoring"`
}

// AgentInsights is the report's agent_insights section.
type AgentInsights struct {
	SuccessfulAgents []string                   `json:"successful_agents"`
	FailedAgents     []AgentErrorDetail         `json:"failed_agents"`
	DegradationLevel DegradationLevel           `json:"degradation_level"`
	AgentDetails     map[string]AgentDetailInfo `json:"agent_details"`
}

// AgentDetailInfo is one agent's per-stage detail entry.
type AgentDetailInfo struct {
	Success          bool    `json:"success"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Confidence       float64 `json:"confidence"`
	PackagesAnalyzed int     `json:"packages_analyzed"`
	FindingsCount    int     `json:"findings_count"`
	Error            string  `json:"error,omitempty"`
}

// PerformanceMetrics is the report's performance_metrics section.
type PerformanceMetrics struct {
	TotalDurationSeconds float64            `json:"total_duration_seconds"`
	AgentDurations       map[string]float64 `json:"agent_durations"`
}
