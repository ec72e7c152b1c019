// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sec-scan/depscan/internal/cache"
)

// npmRegistryBaseURL is the default npm registry URL, matching the
// teacher's dephealth_npm.go constant.
const npmRegistryBaseURL = "https://registry.npmjs.org"

// npmAcceptHeader requests the full packument document; the abbreviated
// "application/vnd.npm.install-v1+json" form omits the author, maintainers,
// repository and time fields this client reads.
const npmAcceptHeader = "application/json"

// npmPackument is the subset of the npm registry's packument document
// (full, not abbreviated, since abbreviated responses omit author/repo)
// this client needs.
type npmPackument struct {
	Name     string `json:"name"`
	Time     map[string]string `json:"time"`
	Author   struct {
		Name string `json:"name"`
	} `json:"author"`
	Maintainers []struct {
		Name string `json:"name"`
	} `json:"maintainers"`
	Repository struct {
		URL string `json:"url"`
	} `json:"repository"`
	Versions map[string]struct {
		Dependencies map[string]string `json:"dependencies"`
	} `json:"versions"`
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
}

// npmDownloadCount is the response shape of the npm downloads API.
type npmDownloadCount struct {
	Downloads int64 `json:"downloads"`
}

// NPM is the real Client.FetchNPM implementation.
type NPM struct {
	http    *httpClient
	baseURL string
}

// NewNPM builds an npm registry client. store may be nil to disable
// caching. requestsPerSecond <= 0 falls back to a conservative default.
func NewNPM(store cache.Store, requestsPerSecond float64, cacheTTL time.Duration) *NPM {
	return &NPM{
		http:    newHTTPClient(store, requestsPerSecond, cacheTTL),
		baseURL: npmRegistryBaseURL,
	}
}

// FetchNPM queries the npm registry for name (optionally at version) and
// returns normalized metadata. version == "" resolves to dist-tags.latest.
func (n *NPM) FetchNPM(ctx context.Context, name, version string) (Metadata, error) {
	url := fmt.Sprintf("%s/%s", n.baseURL, name)
	key := cache.Key("npm:", name, version)

	body, err := n.http.getJSON(ctx, url, key, npmAcceptHeader)
	if err != nil {
		return Metadata{}, err
	}

	var doc npmPackument
	if err := json.Unmarshal(body, &doc); err != nil {
		return Metadata{}, fmt.Errorf("decoding npm response for %s: %w", name, err)
	}

	resolved := version
	if resolved == "" {
		resolved = doc.DistTags.Latest
	}
	if resolved != "" {
		if _, ok := doc.Versions[resolved]; !ok {
			return Metadata{}, ErrNotFound
		}
	}

	md := Metadata{
		Author:        doc.Author.Name,
		RepositoryURL: doc.Repository.URL,
	}
	for _, m := range doc.Maintainers {
		md.Maintainers = append(md.Maintainers, m.Name)
	}
	if v, ok := doc.Versions[resolved]; ok {
		md.Dependencies = v.Dependencies
	}
	if ts, ok := doc.Time["created"]; ok {
		md.PublishedAt, _ = time.Parse(time.RFC3339, ts)
	}
	if ts, ok := doc.Time[resolved]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			md.LastUpdatedAt = t
		}
	}
	if md.LastUpdatedAt.IsZero() {
		if ts, ok := doc.Time["modified"]; ok {
			md.LastUpdatedAt, _ = time.Parse(time.RFC3339, ts)
		}
	}

	md.WeeklyDownloads = n.fetchWeeklyDownloads(ctx, name)

	return md, nil
}

// fetchWeeklyDownloads is best-effort: a failure here must not fail the
// overall FetchNPM call, since downloads is only one of four reputation
// factors and the scorer treats a missing value as "unusable input".
func (n *NPM) fetchWeeklyDownloads(ctx context.Context, name string) int64 {
	url := fmt.Sprintf("https://api.npmjs.org/downloads/point/last-week/%s", name)
	key := cache.Key("npm-downloads:", name)

	body, err := n.http.getJSON(ctx, url, key, "")
	if err != nil {
		return 0
	}
	var dc npmDownloadCount
	if err := json.Unmarshal(body, &dc); err != nil {
		return 0
	}
	return dc.Downloads
}
