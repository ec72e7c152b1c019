// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

// Package depgraph implements the Dependency Resolver (spec.md §4.6): a
// BFS graph builder over registry.Client lookups with max_depth and
// visited-set bounding, cycle detection, and version-conflict detection.
// Grounded on the teacher's internal/analysis/dependency.go graph/cycle
// machinery (adjacencyList, Kahn's-algorithm hasCycle), generalized from
// a single-edge-type LLM-inferred graph to the multi-parent, depth-
// tracked dependency graph the spec requires, and from DAG-breaking
// (remove an edge) to DAG-reporting (record the cycle, keep traversing
// siblings).
package depgraph

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/registry"
)

// DefaultMaxDepth matches spec.md §4.6's default bound.
const DefaultMaxDepth = 5

// queueItem is one pending BFS expansion.
type queueItem struct {
	ref           model.PackageRef
	depth         int
	parentKey     string
	ancestorNames []string // bare package-name chain from root to parent, inclusive
}

// observation records one (ecosystem, name) -> version_spec sighting,
// used to build VersionConflicts after full expansion.
type observation struct {
	version string
	path    []string
}

// Resolve runs the BFS expansion starting from manifest's direct
// dependencies. client is used to fetch each node's own dependency list;
// a lookup failure marks that node Partial and stops expansion there
// without aborting traversal of its siblings.
func Resolve(ctx context.Context, client registry.Client, manifest model.Manifest, maxDepth int) model.DependencyGraph {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	root := manifest.ProjectPath
	if root == "" {
		root = "root"
	}

	graph := model.DependencyGraph{
		Root:  root,
		Nodes: make(map[string]*model.DependencyNode),
	}

	visitedNames := make(map[string]bool)
	observations := make(map[string][]observation)
	var cycles []model.Cycle
	seenCycles := make(map[string]bool)

	var queue []queueItem
	for _, ref := range manifest.Direct {
		queue = append(queue, queueItem{
			ref:           ref,
			depth:         1,
			parentKey:     root,
			ancestorNames: []string{root},
		})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		ref := item.ref
		key := ref.Key()
		nameKey := nameKeyOf(ref)

		observations[nameKey] = append(observations[nameKey], observation{
			version: ref.VersionSpec,
			path:    append(append([]string{}, item.ancestorNames...), ref.Name),
		})

		// Cycle detection must run before the "already resolved" check
		// below: a back-edge to an ancestor can land on the exact same
		// (name, version) key as that ancestor's node, which would
		// otherwise look like an ordinary multi-parent diamond edge.
		if cycleNames, isCycle := detectCycle(item.ancestorNames, ref.Name); isCycle {
			canon := canonicalCycleKey(cycleNames)
			if !seenCycles[canon] {
				seenCycles[canon] = true
				cycles = append(cycles, model.Cycle{Nodes: cycleNames, Severity: model.SeverityMedium})
			}
			continue
		}

		if existing, ok := graph.Nodes[key]; ok {
			existing.Parents = appendUnique(existing.Parents, item.parentKey)
			continue
		}

		node := &model.DependencyNode{
			Ref:     ref,
			Depth:   item.depth,
			Parents: []string{item.parentKey},
		}

		if item.depth > maxDepth {
			node.DiscoveredFrom = model.DiscoveredFromManifest
			graph.Nodes[key] = node
			continue
		}

		if visitedNames[nameKey] {
			// Already expanded via a different path at this or a prior
			// depth; record this edge but don't re-query the registry.
			node.DiscoveredFrom = model.DiscoveredFromManifest
			graph.Nodes[key] = node
			continue
		}
		visitedNames[nameKey] = true

		meta, err := fetchMetadata(ctx, client, ref)
		if err != nil {
			slog.Warn("depgraph: metadata lookup failed, node marked partial",
				"ecosystem", ref.Ecosystem, "name", ref.Name, "error", err)
			node.Partial = true
			node.DiscoveredFrom = model.DiscoveredFromManifest
			graph.Nodes[key] = node
			continue
		}

		node.DiscoveredFrom = model.DiscoveredFromRegistry
		graph.Nodes[key] = node

		childNames := make([]string, 0, len(meta.Dependencies))
		for childName, childSpec := range meta.Dependencies {
			childRef := model.PackageRef{Ecosystem: ref.Ecosystem, Name: childName, VersionSpec: childSpec}
			node.Children = appendUnique(node.Children, childRef.Key())
			childNames = append(childNames, childName)

			queue = append(queue, queueItem{
				ref:           childRef,
				depth:         item.depth + 1,
				parentKey:     key,
				ancestorNames: append(append([]string{}, item.ancestorNames...), ref.Name),
			})
		}
		sort.Strings(node.Children)
	}

	graph.Cycles = cycles
	graph.VersionConflicts = buildVersionConflicts(observations)

	return graph
}

func fetchMetadata(ctx context.Context, client registry.Client, ref model.PackageRef) (registry.Metadata, error) {
	switch ref.Ecosystem {
	case model.EcosystemNPM:
		return client.FetchNPM(ctx, ref.Name, ref.VersionSpec)
	case model.EcosystemPyPI:
		return client.FetchPyPI(ctx, ref.Name, ref.VersionSpec)
	default:
		return registry.Metadata{}, registry.ErrNotFound
	}
}

func nameKeyOf(ref model.PackageRef) string {
	return string(ref.Ecosystem) + ":" + ref.Name
}

// detectCycle reports whether name already appears among ancestorNames,
// which BFS maintains as the chain of bare package names from the root
// down to the current node's parent. If so, it returns the minimal cycle:
// the ancestor chain from the first occurrence of name down to the
// current node's parent, each member of the loop listed once.
func detectCycle(ancestorNames []string, name string) ([]string, bool) {
	for i, a := range ancestorNames {
		if a == name {
			cycle := append([]string{}, ancestorNames[i:]...)
			return cycle, true
		}
	}
	return nil, false
}

// canonicalCycleKey dedupes cycles by the unordered set of node names
// they contain (spec.md §4.6).
func canonicalCycleKey(names []string) string {
	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func buildVersionConflicts(observations map[string][]observation) []model.VersionConflict {
	var conflicts []model.VersionConflict
	names := make([]string, 0, len(observations))
	for nameKey := range observations {
		names = append(names, nameKey)
	}
	sort.Strings(names)

	for _, nameKey := range names {
		obs := observations[nameKey]
		versions := make(map[string]bool)
		for _, o := range obs {
			versions[o.version] = true
		}
		if len(versions) < 2 {
			continue
		}

		var versionList []string
		for v := range versions {
			versionList = append(versionList, v)
		}
		sort.Strings(versionList)

		var paths [][]string
		for _, o := range obs {
			paths = append(paths, o.path)
		}

		_, name, _ := strings.Cut(nameKey, ":")
		conflicts = append(conflicts, model.VersionConflict{
			Name:                name,
			ConflictingVersions: versionList,
			Paths:               paths,
		})
	}

	return conflicts
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
