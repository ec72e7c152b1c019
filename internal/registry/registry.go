// Package registry fetches normalized package metadata from the npm and
// PyPI registries (spec.md §4.2), grounded on the teacher's
// dephealth_npm.go/dephealth_pypi.go interface-plus-real-impl shape,
// generalized from deprecation-only lookups to full metadata extraction.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the registry responds 404 for a package or
// version. It is not a transport failure — callers treat it as a normal
// outcome, never retried.
var ErrNotFound = errors.New("registry: package not found")

// Metadata is the normalized shape returned for both ecosystems (spec.md
// §4.2). Ecosystem-specific fields that don't map cleanly (e.g. PyPI has
// no reliable weekly_downloads) are left zero/empty.
type Metadata struct {
	PublishedAt     time.Time
	LastUpdatedAt   time.Time
	Maintainers     []string
	Dependencies    map[string]string
	WeeklyDownloads int64
	RepositoryURL   string
	Author          string
}

// Client fetches normalized metadata from npm and PyPI. version may be
// empty, meaning "latest".
type Client interface {
	FetchNPM(ctx context.Context, name, version string) (Metadata, error)
	FetchPyPI(ctx context.Context, name, version string) (Metadata, error)
}
