// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/sec-scan/depscan/internal/model"
)

// requirementOperators are the PEP 440 constraint operators recognized in
// requirements.txt and PEP 508 dependency strings, in the teacher's
// parseRequirementLine match order (longest operators first so "~=" and
// "==" aren't shadowed by a bare "=").
var requirementOperators = []string{"~=", "==", ">=", "<=", "!=", ">", "<"}

// ParseRequirementsTxt parses a requirements.txt file (spec.md §4.5): one
// constraint per non-comment line, supporting ==,>=,<=,>,<,~=,!=, with
// environment markers stripped. Grounded on the teacher's
// parsePythonRequirements/parseRequirementLine.
func ParseRequirementsTxt(data []byte, projectPath string) (model.Manifest, error) {
	manifest := model.Manifest{Ecosystem: model.EcosystemPyPI, ProjectPath: projectPath}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-") {
			continue
		}
		if strings.Contains(line, "://") {
			manifest.Warnings = append(manifest.Warnings, fmt.Sprintf("skipping URL-based requirement: %s", line))
			continue
		}

		ref, ok := parseRequirementLine(line)
		if !ok {
			manifest.Warnings = append(manifest.Warnings, fmt.Sprintf("skipping unparseable requirement: %s", line))
			continue
		}
		manifest.Direct = append(manifest.Direct, ref)
	}
	if err := scanner.Err(); err != nil {
		return model.Manifest{}, fmt.Errorf("reading requirements.txt: %w", err)
	}

	return manifest, nil
}

// parseRequirementLine parses a single PEP 508-ish dependency line into a
// PackageRef. Returns ok=false if no operator/version could be extracted.
func parseRequirementLine(line string) (model.PackageRef, bool) {
	if idx := strings.Index(line, ";"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}

	var name, version string
	for _, op := range requirementOperators {
		if idx := strings.Index(line, op); idx >= 0 {
			name = strings.TrimSpace(line[:idx])
			rest := line[idx+len(op):]
			if comma := strings.Index(rest, ","); comma >= 0 {
				rest = rest[:comma]
			}
			version = strings.TrimSpace(rest)
			break
		}
	}
	if name == "" || version == "" {
		return model.PackageRef{}, false
	}

	if idx := strings.Index(name, "["); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)

	return model.PackageRef{Ecosystem: model.EcosystemPyPI, Name: name, VersionSpec: version}, true
}

// pyprojectFile is the subset of pyproject.toml read for PEP 621 project
// dependencies and Poetry's [tool.poetry.dependencies] table.
type pyprojectFile struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]toml.Primitive `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// ParsePyprojectToml parses pyproject.toml, reading both PEP 621
// `[project].dependencies` (PEP 508 strings, same grammar as
// requirements.txt) and Poetry's `[tool.poetry.dependencies]` table
// (name -> version-constraint string, or name -> {version = "..."}).
// Grounded on the teacher's parsePyprojectDeps, generalized to also read
// the Poetry table (spec.md §4.5 names both explicitly).
func ParsePyprojectToml(data []byte, projectPath string) (model.Manifest, error) {
	manifest := model.Manifest{Ecosystem: model.EcosystemPyPI, ProjectPath: projectPath}

	var proj pyprojectFile
	if _, err := toml.Decode(string(data), &proj); err != nil {
		return model.Manifest{}, fmt.Errorf("parsing pyproject.toml: %w", err)
	}

	seen := make(map[string]bool)
	for _, dep := range proj.Project.Dependencies {
		ref, ok := parseRequirementLine(dep)
		if !ok {
			manifest.Warnings = append(manifest.Warnings, fmt.Sprintf("skipping unparseable PEP 621 dependency: %s", dep))
			continue
		}
		if seen[ref.Name] {
			continue
		}
		seen[ref.Name] = true
		manifest.Direct = append(manifest.Direct, ref)
	}

	for name, prim := range proj.Tool.Poetry.Dependencies {
		if seen[name] || strings.EqualFold(name, "python") {
			continue
		}
		spec, ok := decodePoetryConstraint(prim)
		if !ok {
			manifest.Warnings = append(manifest.Warnings, fmt.Sprintf("skipping unparseable poetry dependency: %s", name))
			continue
		}
		seen[name] = true
		manifest.Direct = append(manifest.Direct, model.PackageRef{
			Ecosystem: model.EcosystemPyPI, Name: name, VersionSpec: spec,
		})
	}

	return manifest, nil
}

// decodePoetryConstraint handles Poetry's two dependency-value shapes: a
// bare version-constraint string ("^1.2"), or a table with a "version"
// key ({version = "^1.2", extras = [...]}).
func decodePoetryConstraint(prim toml.Primitive) (string, bool) {
	var s string
	if err := toml.PrimitiveDecode(prim, &s); err == nil {
		return s, true
	}
	var table struct {
		Version string `toml:"version"`
	}
	if err := toml.PrimitiveDecode(prim, &table); err == nil && table.Version != "" {
		return table.Version, true
	}
	return "", false
}

// installRequiresRe finds the install_requires= list literal inside a
// setup.py source without executing it (spec.md §4.5 forbids exec).
var installRequiresRe = regexp.MustCompile(`install_requires\s*=\s*\[([^\]]*)\]`)

// requirementStringRe finds quoted string literals inside a matched list.
var requirementStringRe = regexp.MustCompile(`['"]([^'"]+)['"]`)

// cmdclassRe detects a custom cmdclass= install-hook argument, a known
// supply-chain-attack vector (arbitrary code runs during `pip install`).
var cmdclassRe = regexp.MustCompile(`cmdclass\s*=`)

// ParseSetupPy extracts dependency constraints from a setup.py source
// using a line/regex-oriented extractor (no Python AST library exists
// anywhere in the retrieval pack; see DESIGN.md for the stdlib
// justification). It pulls the install_requires list literal and flags
// cmdclass-based custom install hooks without executing the file.
func ParseSetupPy(data []byte, projectPath string) (model.Manifest, error) {
	manifest := model.Manifest{Ecosystem: model.EcosystemPyPI, ProjectPath: projectPath}
	src := string(data)

	if cmdclassRe.MatchString(src) {
		manifest.Warnings = append(manifest.Warnings,
			"setup.py defines a custom cmdclass; install-time hooks were not executed or inspected further")
	}

	match := installRequiresRe.FindStringSubmatch(src)
	if match == nil {
		manifest.Warnings = append(manifest.Warnings, "no install_requires list literal found in setup.py")
		return manifest, nil
	}

	for _, lit := range requirementStringRe.FindAllStringSubmatch(match[1], -1) {
		ref, ok := parseRequirementLine(lit[1])
		if !ok {
			// No version operator (e.g. a bare "requests") still names a
			// real direct dependency, just with an unconstrained spec.
			name := strings.TrimSpace(lit[1])
			if idx := strings.IndexAny(name, "[;"); idx >= 0 {
				name = strings.TrimSpace(name[:idx])
			}
			if name == "" {
				continue
			}
			ref = model.PackageRef{Ecosystem: model.EcosystemPyPI, Name: name, VersionSpec: "*"}
		}
		manifest.Direct = append(manifest.Direct, ref)
	}

	return manifest, nil
}
