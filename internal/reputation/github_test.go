package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGitHubURL(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		wantOwner string
		wantRepo  string
		wantOK    bool
	}{
		{"https", "https://github.com/expressjs/express", "expressjs", "express", true},
		{"https with .git suffix", "https://github.com/expressjs/express.git", "expressjs", "express", true},
		{"git+https", "git+https://github.com/lodash/lodash.git", "lodash", "lodash", true},
		{"scp-style ssh", "git@github.com:psf/requests.git", "psf", "requests", true},
		{"non-github host", "https://gitlab.com/owner/repo", "", "", false},
		{"not a url", "not a url at all", "", "", false},
		{"missing repo segment", "https://github.com/owner-only", "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			owner, repo, ok := parseGitHubURL(tc.raw)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantOwner, owner)
			assert.Equal(t, tc.wantRepo, repo)
		})
	}
}

func TestGitHubAuthorResolver_NilResolverDegradesToUnknown(t *testing.T) {
	var r *GitHubAuthorResolver
	info := r.Resolve(nil, "https://github.com/expressjs/express") //nolint:staticcheck // nil ctx is fine: short-circuits before use
	assert.Equal(t, AuthorInfo{}, info)
}
