// Package clonetarget resolves a user-supplied target into a local
// directory to analyze: a local path is used as-is, a remote repository
// URL is shallow-cloned to a temp directory (spec.md §6). Grounded on the
// teacher's internal/testable/git.go GitOpener abstraction: a small
// interface wrapping a go-git entry point with a Real* implementation
// behind it, generalized here from read-only PlainOpen access to the
// write-path PlainClone the teacher never needed.
package clonetarget

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// CloneTimeout bounds the shallow clone (spec.md §6).
const CloneTimeout = 60 * time.Second

// Mode reports how a target string resolved.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeGithub Mode = "github"
)

// Resolve classifies target as local or remote. A URL scheme in {http,
// https, ssh, git} or a `git@host:path` SCP-style remote is remote;
// everything else is treated as a local filesystem path.
func Resolve(target string) Mode {
	if isRemote(target) {
		return ModeGithub
	}
	return ModeLocal
}

func isRemote(target string) bool {
	if strings.HasPrefix(target, "git@") {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ssh", "git":
		return true
	default:
		return false
	}
}

// Cloner abstracts the go-git clone call, mirroring the teacher's
// GitOpener/RealGitOpener split so tests never touch the network.
type Cloner interface {
	Clone(ctx context.Context, remoteURL, dir, token string) error
}

// RealCloner is the production Cloner, backed by go-git's PlainClone.
type RealCloner struct{}

// Clone performs a depth-1, single-branch clone of remoteURL into dir.
// token authenticates private repositories via an access-token basic
// auth, matching GitHub's `x-access-token` convention; empty disables auth.
func (RealCloner) Clone(ctx context.Context, remoteURL, dir, token string) error {
	opts := &git.CloneOptions{
		URL:          remoteURL,
		Depth:        1,
		SingleBranch: true,
	}
	if token != "" {
		opts.Auth = &http.BasicAuth{Username: "x-access-token", Password: token}
	}

	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return fmt.Errorf("cloning %s: %w", remoteURL, err)
	}
	return nil
}

// Fetch shallow-clones target into a fresh temp directory bounded by
// CloneTimeout and returns it along with a cleanup func the caller must
// defer. On clone failure, the temp directory is removed before
// returning the error.
func Fetch(ctx context.Context, cloner Cloner, target, token string) (dir string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "depscan-clone-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp clone directory: %w", err)
	}
	cleanup = func() { _ = os.RemoveAll(tmpDir) }

	cloneCtx, cancel := context.WithTimeout(ctx, CloneTimeout)
	defer cancel()

	if err := cloner.Clone(cloneCtx, target, tmpDir, token); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmpDir, cleanup, nil
}
