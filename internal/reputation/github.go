package reputation

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
)

// GitHubAuthorResolver fills in the author-history signal Score can't get
// from registry metadata alone: whether a package's repository is owned by
// a GitHub Organization account rather than a personal one. Grounded on the
// teacher's github.com/google/go-github client wrapper, narrowed from
// issue/PR mining down to the single repository-owner lookup this scorer
// needs.
type GitHubAuthorResolver struct {
	client *github.Client
}

// NewGitHubAuthorResolver builds a resolver. token may be empty, which
// uses go-github's unauthenticated (rate-limited) client.
func NewGitHubAuthorResolver(token string) *GitHubAuthorResolver {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubAuthorResolver{client: client}
}

// Resolve inspects repositoryURL's owner account type. It returns the zero
// AuthorInfo (degrading the author factor to "unknown") for any URL that
// isn't a github.com repository, or on lookup failure.
func (r *GitHubAuthorResolver) Resolve(ctx context.Context, repositoryURL string) AuthorInfo {
	if r == nil || r.client == nil {
		return AuthorInfo{}
	}
	owner, name, ok := parseGitHubURL(repositoryURL)
	if !ok {
		return AuthorInfo{}
	}

	repo, _, err := r.client.Repositories.Get(ctx, owner, name)
	if err != nil || repo == nil || repo.Owner == nil {
		return AuthorInfo{}
	}

	return AuthorInfo{VerifiedOrganization: repo.Owner.GetType() == "Organization"}
}

// parseGitHubURL extracts owner/repo from a package's declared repository
// URL, accepting both https and git+ssh forms.
func parseGitHubURL(raw string) (owner, repo string, ok bool) {
	raw = strings.TrimPrefix(raw, "git+")
	raw = strings.TrimPrefix(raw, "git://")

	var host, path string
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host, path = u.Host, u.Path
	} else if strings.HasPrefix(raw, "git@") {
		rest := strings.TrimPrefix(raw, "git@")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return "", "", false
		}
		host, path = parts[0], "/"+parts[1]
	} else {
		return "", "", false
	}

	if !strings.Contains(host, "github.com") {
		return "", "", false
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return "", "", false
	}
	owner = segments[0]
	repo = strings.TrimSuffix(segments[1], ".git")
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
