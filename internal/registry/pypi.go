package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sec-scan/depscan/internal/cache"
)

// requireDistNameRe pulls the leading PEP 508 distribution name off a
// requires_dist entry, e.g. "requests (>=2.0)" -> "requests".
var requireDistNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+`)

// pypiBaseURL is the default PyPI JSON API URL, matching the teacher's
// dephealth_pypi.go constant.
const pypiBaseURL = "https://pypi.org/pypi"

// pypiInfo is the subset of the PyPI JSON API response this client needs,
// generalized from the teacher's deprecation-only pypiPackageInfo to full
// metadata extraction.
type pypiInfo struct {
	Info struct {
		Name        string   `json:"name"`
		Author      string   `json:"author"`
		AuthorEmail string   `json:"author_email"`
		ProjectURLs map[string]string `json:"project_urls"`
		HomePage    string   `json:"home_page"`
		Requires    []string `json:"requires_dist"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTime string `json:"upload_time_iso_8601"`
	} `json:"releases"`
	URLs []struct {
		UploadTime string `json:"upload_time_iso_8601"`
	} `json:"urls"`
}

// PyPI is the real Client.FetchPyPI implementation.
type PyPI struct {
	http    *httpClient
	baseURL string
}

// NewPyPI builds a PyPI registry client. store may be nil to disable
// caching. requestsPerSecond <= 0 falls back to a conservative default.
func NewPyPI(store cache.Store, requestsPerSecond float64, cacheTTL time.Duration) *PyPI {
	return &PyPI{
		http:    newHTTPClient(store, requestsPerSecond, cacheTTL),
		baseURL: pypiBaseURL,
	}
}

// FetchPyPI queries PyPI for name (optionally at version) and returns
// normalized metadata. PyPI has no reliable weekly-downloads figure in
// its public JSON API, so WeeklyDownloads is left zero — the Reputation
// Scorer treats that as "unusable input" for the downloads factor.
func (p *PyPI) FetchPyPI(ctx context.Context, name, version string) (Metadata, error) {
	url := fmt.Sprintf("%s/%s/json", p.baseURL, name)
	if version != "" {
		url = fmt.Sprintf("%s/%s/%s/json", p.baseURL, name, version)
	}
	key := cache.Key("pypi:", name, version)

	body, err := p.http.getJSON(ctx, url, key, "")
	if err != nil {
		return Metadata{}, err
	}

	var doc pypiInfo
	if err := json.Unmarshal(body, &doc); err != nil {
		return Metadata{}, fmt.Errorf("decoding pypi response for %s: %w", name, err)
	}

	md := Metadata{
		Author:        doc.Info.Author,
		Dependencies:  parsePyPIRequiresDist(doc.Info.Requires),
		RepositoryURL: pypiRepositoryURL(doc),
	}
	if doc.Info.Author == "" {
		md.Author = doc.Info.AuthorEmail
	}

	md.PublishedAt = earliestUploadTime(doc.Releases)
	md.LastUpdatedAt = latestUploadTime(doc.URLs, doc.Releases)

	return md, nil
}

func pypiRepositoryURL(doc pypiInfo) string {
	for _, key := range []string{"Source", "Source Code", "Repository", "Homepage"} {
		if u, ok := doc.Info.ProjectURLs[key]; ok && u != "" {
			return u
		}
	}
	return doc.Info.HomePage
}

// parsePyPIRequiresDist reduces PEP 508 requires_dist strings ("requests
// (>=2.0)", "idna; extra == \"socks\"") to a bare name→spec map, skipping
// optional-extra markers since those aren't unconditional dependencies.
func parsePyPIRequiresDist(requires []string) map[string]string {
	if len(requires) == 0 {
		return nil
	}
	deps := make(map[string]string, len(requires))
	for _, r := range requires {
		if i := strings.IndexByte(r, ';'); i >= 0 {
			if strings.Contains(r[i:], "extra") {
				continue
			}
			r = r[:i]
		}
		r = strings.TrimSpace(r)
		name := requireDistNameRe.FindString(r)
		if name == "" {
			continue
		}
		spec := strings.TrimSpace(strings.TrimPrefix(r, name))
		deps[name] = spec
	}
	return deps
}

func earliestUploadTime(releases map[string][]struct {
	UploadTime string `json:"upload_time_iso_8601"`
}) time.Time {
	var earliest time.Time
	for _, files := range releases {
		for _, f := range files {
			t, err := time.Parse(time.RFC3339, f.UploadTime)
			if err != nil {
				continue
			}
			if earliest.IsZero() || t.Before(earliest) {
				earliest = t
			}
		}
	}
	return earliest
}

func latestUploadTime(urls []struct {
	UploadTime string `json:"upload_time_iso_8601"`
}, releases map[string][]struct {
	UploadTime string `json:"upload_time_iso_8601"`
}) time.Time {
	var latest time.Time
	for _, f := range urls {
		t, err := time.Parse(time.RFC3339, f.UploadTime)
		if err != nil {
			continue
		}
		if t.After(latest) {
			latest = t
		}
	}
	if !latest.IsZero() {
		return latest
	}
	for _, files := range releases {
		for _, f := range files {
			t, err := time.Parse(time.RFC3339, f.UploadTime)
			if err != nil {
				continue
			}
			if t.After(latest) {
				latest = t
			}
		}
	}
	return latest
}
