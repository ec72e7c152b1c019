// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

// Package manifest implements the Manifest Parser (spec.md §4.5): npm
// package.json and the three Python manifest formats. npm dependency
// extraction is grounded on the teacher's vuln_npm.go (parseNpmDeps,
// extractNpmVersion); script-map extraction is a new addition (the
// teacher's dephealth collector never reads package.json's scripts field)
// needed for the Script Pattern Engine downstream.
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sec-scan/depscan/internal/model"
)

// packageJSON is the subset of package.json this parser reads.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

// ParseNPMOptions controls optional behavior of ParseNPM.
type ParseNPMOptions struct {
	// IncludeDevDependencies toggles devDependencies inclusion. Defaults
	// to true when the zero-value Options{} is passed, matching the
	// teacher's parseNpmDeps (which always includes devDependencies).
	IncludeDevDependencies *bool
}

func (o ParseNPMOptions) includeDev() bool {
	if o.IncludeDevDependencies == nil {
		return true
	}
	return *o.IncludeDevDependencies
}

// ParseNPM parses a package.json document into a Manifest.
func ParseNPM(data []byte, projectPath string, opts ParseNPMOptions) (model.Manifest, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return model.Manifest{}, fmt.Errorf("parsing package.json: %w", err)
	}

	manifest := model.Manifest{
		Ecosystem:   model.EcosystemNPM,
		ProjectPath: projectPath,
	}

	seen := make(map[string]bool)
	depSets := []map[string]string{pkg.Dependencies}
	if opts.includeDev() {
		depSets = append(depSets, pkg.DevDependencies)
	}
	for _, deps := range depSets {
		for name, versionSpec := range deps {
			if seen[name] {
				continue
			}
			resolved := extractNpmVersion(versionSpec)
			if resolved == "" {
				manifest.Warnings = append(manifest.Warnings,
					fmt.Sprintf("skipping %s: unparseable version spec %q", name, versionSpec))
				continue
			}
			seen[name] = true
			manifest.Direct = append(manifest.Direct, model.PackageRef{
				Ecosystem:   model.EcosystemNPM,
				Name:        name,
				VersionSpec: resolved,
			})
		}
	}

	if len(pkg.Scripts) > 0 {
		manifest.Scripts = make(map[model.Hook]string, len(pkg.Scripts))
		for name, cmd := range pkg.Scripts {
			manifest.Scripts[model.Hook(name)] = cmd
		}
	}

	return manifest, nil
}

// extractNpmVersion strips semver range prefixes and returns the base
// version string. Returns "" for versions that can't be meaningfully
// resolved (wildcards, URLs, tags, workspace refs) — the teacher's
// extractNpmVersion, unchanged.
func extractNpmVersion(version string) string {
	version = strings.TrimSpace(version)

	if version == "" || version == "*" || version == "latest" || version == "next" {
		return ""
	}

	if strings.Contains(version, "://") || strings.HasPrefix(version, "git+") ||
		strings.HasPrefix(version, "file:") || strings.HasPrefix(version, "link:") {
		return ""
	}

	if strings.HasPrefix(version, "workspace:") {
		return ""
	}

	if idx := strings.Index(version, "||"); idx >= 0 {
		version = strings.TrimSpace(version[:idx])
	}

	if idx := strings.Index(version, " "); idx >= 0 {
		version = version[:idx]
	}

	version = strings.TrimLeft(version, "^~>=<!")
	version = strings.TrimSpace(version)

	if version == "" || version[0] < '0' || version[0] > '9' {
		return ""
	}

	return version
}
