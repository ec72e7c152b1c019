// Package model holds the ecosystem-neutral value types shared by every
// other depscan package: package references, manifests, the dependency
// graph, findings, and the final report. This is the one place JSON tags
// live for the wire/report schema.
package model

import "time"

// Ecosystem identifies the package manager a reference belongs to.
type Ecosystem string

const (
	EcosystemNPM  Ecosystem = "npm"
	EcosystemPyPI Ecosystem = "pypi"
)

// PackageRef identifies one package within one ecosystem. Name uniqueness
// is within ecosystem. VersionSpec holds the version as the manifest
// parser extracted it: Poetry constraints are kept as written, but the
// npm, requirements.txt and PEP 621 parsers drop the range operator and
// keep only the version after it ("^1.3.0" → "1.3.0", "requests>=2.0" →
// "2.0"), so the raw constraint is not preserved for those entries.
// ResolvedVersion is set once a registry lookup or lock file resolves it.
type PackageRef struct {
	Ecosystem        Ecosystem `json:"ecosystem"`
	Name             string    `json:"name"`
	VersionSpec      string    `json:"version_spec"`
	ResolvedVersion  string    `json:"resolved_version,omitempty"`
}

// Version returns the resolved version if known, otherwise the raw spec.
func (p PackageRef) Version() string {
	if p.ResolvedVersion != "" {
		return p.ResolvedVersion
	}
	return p.VersionSpec
}

// Key returns the value-identity tuple used by the graph and by findings.
func (p PackageRef) Key() string {
	return string(p.Ecosystem) + ":" + p.Name + ":" + p.Version()
}

// Hook names an npm lifecycle script.
type Hook string

// DangerousHooks run automatically during `npm install`.
var DangerousHooks = map[Hook]bool{
	"preinstall":  true,
	"install":     true,
	"postinstall": true,
}

// Manifest is the root-level set of direct package references plus,
// for npm, the scripts map.
type Manifest struct {
	Ecosystem    Ecosystem             `json:"ecosystem"`
	ProjectPath  string                 `json:"project_path"`
	Direct       []PackageRef           `json:"direct"`
	Scripts      map[Hook]string        `json:"scripts,omitempty"`
	Warnings     []string               `json:"warnings,omitempty"`
}

// DiscoveredFrom records how a dependency node entered the graph.
type DiscoveredFrom string

const (
	DiscoveredFromManifest DiscoveredFrom = "manifest"
	DiscoveredFromRegistry DiscoveredFrom = "registry"
)

// DependencyNode is one node of the dependency graph. It is uniquely
// identified by (ecosystem, name, resolved_version or version_spec) — see
// PackageRef.Key.
type DependencyNode struct {
	Ref            PackageRef     `json:"ref"`
	Depth          int            `json:"depth"`
	Parents        []string       `json:"parents,omitempty"` // parent node keys
	Children       []string       `json:"children,omitempty"`
	DiscoveredFrom DiscoveredFrom `json:"discovered_from"`
	Partial        bool           `json:"partial,omitempty"` // registry lookup failed for this node
}

// Cycle is a minimal back-edge loop discovered during BFS expansion.
type Cycle struct {
	Nodes    []string `json:"cycle"`
	Severity Severity `json:"severity"`
}

// VersionConflict records ≥2 distinct version_spec values observed for the
// same (ecosystem, name).
type VersionConflict struct {
	Name                 string     `json:"package"`
	ConflictingVersions  []string   `json:"conflicting_versions"`
	Paths                [][]string `json:"paths"`
}

// DependencyGraph is a directed multigraph over DependencyNodes, keyed by
// DependencyNode.Ref.Key().
type DependencyGraph struct {
	Root             string                     `json:"root"`
	Nodes            map[string]*DependencyNode `json:"nodes"`
	Cycles           []Cycle                    `json:"cycles,omitempty"`
	VersionConflicts []VersionConflict          `json:"version_conflicts,omitempty"`
}

// Severity is a finding/cycle/escalation level.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank gives a total order for sorting, critical first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank returns a sort key, lower is more severe. Unknown severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Escalate raises severity by one level, saturating at critical.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	case SeverityHigh, SeverityCritical:
		return SeverityCritical
	default:
		return s
	}
}

// FindingType enumerates the kinds of security-relevant observations a
// Finding can record.
type FindingType string

const (
	FindingVulnerability      FindingType = "vulnerability"
	FindingMaliciousPackage   FindingType = "malicious_package"
	FindingTyposquat          FindingType = "typosquat"
	FindingLowReputation      FindingType = "low_reputation"
	FindingMaliciousScript    FindingType = "malicious_script"
	FindingSupplyChainAttack  FindingType = "supply_chain_attack"
	FindingCodeAnomaly        FindingType = "code_anomaly"
)

// DetectionMethod distinguishes rule-based findings from agent-produced ones.
type DetectionMethod string

const (
	DetectionRuleBased DetectionMethod = "rule_based"
	DetectionAgent     DetectionMethod = "agent"
)

// Finding is one normalized record of a security-relevant observation
// about a specific package version.
type Finding struct {
	PackageName     string          `json:"package_name"`
	PackageVersion  string          `json:"package_version"`
	Ecosystem       Ecosystem       `json:"ecosystem"`
	FindingType     FindingType     `json:"finding_type"`
	Severity        Severity        `json:"severity"`
	Confidence      float64         `json:"confidence"`
	Evidence        []string        `json:"evidence"`
	Remediation     []string        `json:"remediation,omitempty"`
	Source          string          `json:"source"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	Extra           map[string]any  `json:"extra,omitempty"`
}

// VulnerabilityRecord is a single vulnerability as reported by OSV.
type VulnerabilityRecord struct {
	ID                       string   `json:"id"`
	Summary                  string   `json:"summary"`
	Severity                 string   `json:"severity"`
	CVSSScore                *float64 `json:"cvss_score,omitempty"`
	AffectedVersions         []string `json:"affected_versions"`
	FixedVersions            []string `json:"fixed_versions"`
	IsCurrentVersionAffected bool     `json:"is_current_version_affected"`
	References               []string `json:"references,omitempty"`
}

// RiskLevel is a coarse reputation/risk bucket.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ReputationFactors holds the four weighted sub-scores that make up a
// reputation score, each in [0,1].
type ReputationFactors struct {
	Age         float64 `json:"age"`
	Downloads   float64 `json:"downloads"`
	Author      float64 `json:"author"`
	Maintenance float64 `json:"maintenance"`
}

// RiskFactor is one qualitative reason contributing to a reputation risk
// level (e.g. "new_package", "abandoned").
type RiskFactor struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// ReputationRecord is the output of the Reputation Scorer for one package.
type ReputationRecord struct {
	Score       float64           `json:"score"`
	RiskLevel   RiskLevel         `json:"risk_level,omitempty"`
	Factors     ReputationFactors `json:"factors"`
	RiskFactors []RiskFactor      `json:"risk_factors,omitempty"`
	Reasoning   string            `json:"reasoning,omitempty"`
	Confidence  float64           `json:"confidence"`
}

// AgentStatus is the terminal state of one agent invocation.
type AgentStatus string

const (
	AgentSuccess AgentStatus = "SUCCESS"
	AgentFailed  AgentStatus = "FAILED"
	AgentTimeout AgentStatus = "TIMEOUT"
	AgentSkipped AgentStatus = "SKIPPED"
)

// ErrorType classifies why an agent failed, driving retry decisions.
type ErrorType string

const (
	ErrorTimeout         ErrorType = "timeout"
	ErrorRateLimit       ErrorType = "rate_limit"
	ErrorConnection      ErrorType = "connection"
	ErrorServiceUnavail  ErrorType = "service_unavailable"
	ErrorAuth            ErrorType = "auth"
	ErrorInvalidResponse ErrorType = "invalid_response"
	ErrorUnknown         ErrorType = "unknown"
)

// Retryable reports whether an error of this type should be retried.
func (e ErrorType) Retryable() bool {
	switch e {
	case ErrorTimeout, ErrorRateLimit, ErrorConnection, ErrorServiceUnavail:
		return true
	default:
		return false
	}
}

// AgentResult is the envelope every agent invocation returns.
//
// Invariant: Status == AgentSuccess implies Data is well-formed per that
// agent's own schema. Status == AgentSkipped is only ever produced by the
// orchestrator, never by an agent's own early return.
type AgentResult struct {
	AgentName       string         `json:"agent_name"`
	Status          AgentStatus    `json:"status"`
	Data            map[string]any `json:"data,omitempty"`
	Confidence      float64        `json:"confidence"`
	DurationSeconds float64        `json:"duration_seconds"`
	Error           string         `json:"error,omitempty"`
	ErrorType       ErrorType      `json:"error_type,omitempty"`
	SkipReason      string         `json:"-"` // "gate" | "failure"; orchestrator-internal, not serialized
}

// SharedContext is the immutable view handed to every agent, plus the
// append-only agent_results map that only the orchestrator writes to.
type SharedContext struct {
	InitialFindings []Finding
	Graph           *DependencyGraph
	Packages        []PackageRef
	Ecosystem       Ecosystem
	ProjectPath     string
	AgentResults    map[string]AgentResult
}

// CacheEntry is one stored blob with TTL/LRU bookkeeping.
type CacheEntry struct {
	Key            string    `json:"key"`
	Value          []byte    `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	TTLSeconds     int64     `json:"ttl_seconds"`
	HitCount       int64     `json:"hit_count"`
	SizeBytes      int64     `json:"size_bytes"`
}

// Live reports whether the entry has not yet expired as of now.
func (e CacheEntry) Live(now time.Time) bool {
	return e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second).After(now) ||
		e.CreatedAt.Add(time.Duration(e.TTLSeconds)*time.Second).Equal(now)
}

// DegradationLevel is the four-valued quality label for the produced report.
type DegradationLevel string

const (
	DegradationFull    DegradationLevel = "full"
	DegradationPartial DegradationLevel = "partial"
	DegradationBasic   DegradationLevel = "basic"
	DegradationMinimal DegradationLevel = "minimal"
)

// Confidence returns the fixed confidence value associated with a
// degradation level, per spec.md §4.11.
func (d DegradationLevel) Confidence() float64 {
	switch d {
	case DegradationFull:
		return 0.95
	case DegradationPartial:
		return 0.75
	case DegradationBasic:
		return 0.55
	case DegradationMinimal:
		return 0.35
	default:
		return 0
	}
}
