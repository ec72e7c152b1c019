// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

// Package rules implements the Rule Detector (spec.md §4.8): the driver
// that composes the manifest, dependency graph, script scanner, OSV
// vulnerability lookups, and the reputation scorer into one deduplicated
// finding list, plus two inline checks (known-malicious exact match and
// Levenshtein-distance typosquat detection) that have no dedicated
// package of their own. Grounded on the teacher's internal/collectors/
// dephealth.go driver shape: one function composes several independent
// sub-checks, merges their signals, and degrades gracefully when one
// sub-check has nothing to report.
package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/osv"
	"github.com/sec-scan/depscan/internal/registry"
	"github.com/sec-scan/depscan/internal/reputation"
	"github.com/sec-scan/depscan/internal/scriptscan"
)

// DefaultReputationScaleSkipThreshold matches spec.md §4.8's default.
const DefaultReputationScaleSkipThreshold = 100

// typosquatMaxDistance is the Levenshtein distance ceiling for a typosquat
// finding (spec.md §4.8).
const typosquatMaxDistance = 2

// Options configures a Detect run.
type Options struct {
	ReputationScaleSkipThreshold int
	MaliciousList                map[model.Ecosystem]map[string]bool
	PopularPackages              map[model.Ecosystem][]string
}

func (o Options) threshold() int {
	if o.ReputationScaleSkipThreshold > 0 {
		return o.ReputationScaleSkipThreshold
	}
	return DefaultReputationScaleSkipThreshold
}

// Result is the Rule Detector's output: the deduplicated finding list plus
// a note on whether the scale-aware reputation skip triggered.
type Result struct {
	Findings             []model.Finding
	ReputationChecksSkipped bool
}

// Detect runs every rule-based check over one resolved dependency graph
// and its backing manifest, scanning scripts, querying OSV, scoring
// reputation (unless skipped by scale), and checking the known-malicious
// and typosquat lists, then dedupes the combined finding set.
func Detect(ctx context.Context, graph model.DependencyGraph, manifest model.Manifest, osvClient *osv.Client, regClient registry.Client, opts Options) Result {
	var findings []model.Finding

	findings = append(findings, scanScripts(manifest)...)
	findings = append(findings, checkKnownMalicious(graph, opts)...)
	findings = append(findings, checkTyposquats(graph, opts)...)

	if osvClient != nil {
		findings = append(findings, checkVulnerabilities(ctx, graph, osvClient)...)
	}

	skipReputation := len(graph.Nodes) > opts.threshold()
	if !skipReputation && regClient != nil {
		findings = append(findings, checkReputation(ctx, graph, regClient)...)
	}

	return Result{
		Findings:                dedupe(findings),
		ReputationChecksSkipped: skipReputation,
	}
}

func scanScripts(manifest model.Manifest) []model.Finding {
	if len(manifest.Scripts) == 0 {
		return nil
	}
	// scriptscan findings are attributed to the manifest's own project,
	// since npm scripts run at the root of the project being scanned, not
	// against any one resolved dependency.
	return scriptscan.Scan(manifest.Scripts, manifest.Ecosystem, manifest.ProjectPath, "")
}

func checkKnownMalicious(graph model.DependencyGraph, opts Options) []model.Finding {
	if len(opts.MaliciousList) == 0 {
		return nil
	}
	var findings []model.Finding
	for _, key := range sortedNodeKeys(graph) {
		node := graph.Nodes[key]
		blocked := opts.MaliciousList[node.Ref.Ecosystem]
		if blocked == nil || !blocked[node.Ref.Name] {
			continue
		}
		findings = append(findings, model.Finding{
			PackageName:     node.Ref.Name,
			PackageVersion:  node.Ref.Version(),
			Ecosystem:       node.Ref.Ecosystem,
			FindingType:     model.FindingMaliciousPackage,
			Severity:        model.SeverityCritical,
			Confidence:      0.95,
			Source:          "known_malicious_list",
			DetectionMethod: model.DetectionRuleBased,
			Evidence:        []string{fmt.Sprintf("%s is present on the bundled known-malicious package list", node.Ref.Name)},
		})
	}
	return findings
}

func checkTyposquats(graph model.DependencyGraph, opts Options) []model.Finding {
	if len(opts.PopularPackages) == 0 {
		return nil
	}
	var findings []model.Finding
	for _, key := range sortedNodeKeys(graph) {
		node := graph.Nodes[key]
		popular := opts.PopularPackages[node.Ref.Ecosystem]
		isPopular := false
		for _, candidate := range popular {
			if candidate == node.Ref.Name {
				isPopular = true
				break
			}
		}
		if isPopular {
			continue // exact match against a popular package is not a typosquat
		}
		for _, candidate := range popular {
			dist := levenshtein(node.Ref.Name, candidate)
			if dist == 0 || dist > typosquatMaxDistance {
				continue
			}
			confidence := 0.75
			if dist == 1 {
				confidence = 0.9
			}
			findings = append(findings, model.Finding{
				PackageName:     node.Ref.Name,
				PackageVersion:  node.Ref.Version(),
				Ecosystem:       node.Ref.Ecosystem,
				FindingType:     model.FindingTyposquat,
				Severity:        model.SeverityHigh,
				Confidence:      confidence,
				Source:          "typosquat_detector",
				DetectionMethod: model.DetectionRuleBased,
				Evidence: []string{
					fmt.Sprintf("%q is %d edit(s) from the popular package %q", node.Ref.Name, dist, candidate),
				},
			})
			break
		}
	}
	return findings
}

func checkVulnerabilities(ctx context.Context, graph model.DependencyGraph, client *osv.Client) []model.Finding {
	refs := make([]model.PackageRef, 0, len(graph.Nodes))
	for _, key := range sortedNodeKeys(graph) {
		refs = append(refs, graph.Nodes[key].Ref)
	}
	if len(refs) == 0 {
		return nil
	}

	batch := client.QueryBatch(ctx, refs)
	var findings []model.Finding
	for _, ref := range refs {
		records := batch.Vulnerabilities[ref.Key()]
		for _, rec := range records {
			severity := osvSeverityToModel(rec.Severity)
			evidence := []string{rec.ID, rec.Summary}
			if len(rec.FixedVersions) > 0 {
				evidence = append(evidence, fmt.Sprintf("fixed in: %v", rec.FixedVersions))
			}
			findings = append(findings, model.Finding{
				PackageName:     ref.Name,
				PackageVersion:  ref.Version(),
				Ecosystem:       ref.Ecosystem,
				FindingType:     model.FindingVulnerability,
				Severity:        severity,
				Confidence:      0.9,
				Source:          "osv",
				DetectionMethod: model.DetectionRuleBased,
				Evidence:        evidence,
				Extra:           map[string]any{"vulnerability_id": rec.ID},
			})
		}
	}
	return findings
}

func checkReputation(ctx context.Context, graph model.DependencyGraph, client registry.Client) []model.Finding {
	var findings []model.Finding
	for _, key := range sortedNodeKeys(graph) {
		node := graph.Nodes[key]
		if node.Partial {
			continue
		}

		meta, err := fetchMetadata(ctx, client, node.Ref)
		if err != nil {
			continue
		}

		rec := reputation.Score(reputation.Input{Metadata: meta})
		if rec.RiskLevel != model.RiskHigh && rec.RiskLevel != model.RiskCritical {
			continue
		}

		findings = append(findings, model.Finding{
			PackageName:     node.Ref.Name,
			PackageVersion:  node.Ref.Version(),
			Ecosystem:       node.Ref.Ecosystem,
			FindingType:     model.FindingLowReputation,
			Severity:        riskLevelToSeverity(rec.RiskLevel),
			Confidence:      rec.Confidence,
			Source:          "reputation_scorer",
			DetectionMethod: model.DetectionRuleBased,
			Evidence:        []string{rec.Reasoning},
			Extra:           map[string]any{"score": rec.Score, "risk_factors": rec.RiskFactors},
		})
	}
	return findings
}

func fetchMetadata(ctx context.Context, client registry.Client, ref model.PackageRef) (registry.Metadata, error) {
	switch ref.Ecosystem {
	case model.EcosystemNPM:
		return client.FetchNPM(ctx, ref.Name, ref.Version())
	case model.EcosystemPyPI:
		return client.FetchPyPI(ctx, ref.Name, ref.Version())
	default:
		return registry.Metadata{}, registry.ErrNotFound
	}
}

func riskLevelToSeverity(level model.RiskLevel) model.Severity {
	switch level {
	case model.RiskHigh:
		return model.SeverityHigh
	case model.RiskMedium:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// osvSeverityToModel maps an OSV severity string to a coarse finding
// severity by its numeric CVSS base score. Only a string that begins with
// a plain number (e.g. "7.5") is read as a score; a CVSS vector string
// ("CVSS:3.1/AV:N/...") carries no bare score and, like any other string
// that can't be read as a number, maps to medium.
func osvSeverityToModel(s string) model.Severity {
	score, ok := cvssBaseScore(s)
	if !ok {
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

func cvssBaseScore(s string) (float64, bool) {
	var score float64
	if _, err := fmt.Sscanf(s, "%f", &score); err == nil {
		return score, true
	}
	return 0, false
}

func sortedNodeKeys(graph model.DependencyGraph) []string {
	keys := make([]string, 0, len(graph.Nodes))
	for k := range graph.Nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// dedupKey groups findings for merge-on-dedup (spec.md §4.8:
// (name, version, finding_type, severity)).
type dedupKey struct {
	name    string
	version string
	typ     model.FindingType
	sev     model.Severity
}

// dedupe merges findings sharing (name, version, finding_type, severity),
// unioning their evidence, keeping the highest confidence seen, and
// preserving first-seen order for deterministic output.
func dedupe(findings []model.Finding) []model.Finding {
	order := make([]dedupKey, 0, len(findings))
	merged := make(map[dedupKey]*model.Finding)

	for _, f := range findings {
		k := dedupKey{name: f.PackageName, version: f.PackageVersion, typ: f.FindingType, sev: f.Severity}
		existing, ok := merged[k]
		if !ok {
			cp := f
			merged[k] = &cp
			order = append(order, k)
			continue
		}
		existing.Evidence = mergeEvidence(existing.Evidence, f.Evidence)
		if f.Confidence > existing.Confidence {
			existing.Confidence = f.Confidence
		}
		if existing.Source != f.Source {
			existing.Source = existing.Source + "," + f.Source
		}
	}

	out := make([]model.Finding, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}
	return out
}

func mergeEvidence(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e] = true
	}
	for _, e := range incoming {
		if !seen[e] {
			existing = append(existing, e)
			seen[e] = true
		}
	}
	return existing
}

// levenshtein computes the edit distance between a and b. This is the one
// stdlib exception documented in DESIGN.md: no string-distance library
// appears anywhere in the retrieval pack.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
