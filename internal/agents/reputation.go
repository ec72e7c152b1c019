package agents

import (
	"context"

	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/registry"
	"github.com/sec-scan/depscan/internal/reputation"
)

// ReputationAgent fetches registry metadata for every resolved package
// and scores it with the Reputation Scorer (spec.md §4.10), skipping
// packages in ecosystems the registry client doesn't support.
type ReputationAgent struct {
	Registry registry.Client
	// GitHubResolver supplies the author-verification signal when a
	// package declares a github.com repository URL. Nil degrades that
	// factor to "unknown" for every package, same as a lookup failure.
	GitHubResolver *reputation.GitHubAuthorResolver
}

func (a *ReputationAgent) Name() string { return "reputation" }

func (a *ReputationAgent) Analyze(ctx context.Context, shared model.SharedContext) model.AgentResult {
	if a.Registry == nil {
		return model.AgentResult{Status: model.AgentFailed, Error: "no registry client configured", ErrorType: model.ErrorUnknown}
	}

	perPackage := make(map[string]any, len(shared.Packages))
	scored := 0
	var totalScore float64

	for _, ref := range shared.Packages {
		meta, err := fetchMetadata(ctx, a.Registry, ref)
		if err != nil {
			// unsupported ecosystem or lookup failure: skip this package
			// gracefully, don't fail the whole stage.
			continue
		}

		var author reputation.AuthorInfo
		if a.GitHubResolver != nil && meta.RepositoryURL != "" {
			author = a.GitHubResolver.Resolve(ctx, meta.RepositoryURL)
		}

		rec := reputation.Score(reputation.Input{Metadata: meta, Author: author})
		perPackage[ref.Key()] = rec
		scored++
		totalScore += rec.Score
	}

	if scored == 0 && len(shared.Packages) > 0 {
		return model.AgentResult{
			Status:    model.AgentFailed,
			Error:     "no package's registry metadata could be scored",
			ErrorType: model.ErrorConnection,
		}
	}

	confidence := 0.0
	if scored > 0 {
		confidence = totalScore / float64(scored)
	}

	return model.AgentResult{
		Status:     model.AgentSuccess,
		Confidence: confidence,
		Data: map[string]any{
			"packages":       perPackage,
			"scored_count":   scored,
		},
	}
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
