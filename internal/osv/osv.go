// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

// Package osv implements the Parallel OSV Client (spec.md §4.3), grounded
// directly on the teacher's internal/collectors/vuln_osv.go: the same
// osvClient query-then-detail-fetch shape and doWithRetry exponential
// backoff, generalized from a sequential batch loop to bounded concurrent
// per-package dispatch (golang.org/x/sync/semaphore.Weighted), fronted by
// a DNS-reachability probe for fast offline fail.
package osv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sec-scan/depscan/internal/model"
)

const (
	defaultBaseURL      = "https://api.osv.dev/v1"
	defaultConcurrency  = 10
	defaultTimeout      = 10 * time.Second
	dnsProbeTimeout     = 800 * time.Millisecond
	maxRetries          = 2
	retryBaseDelay      = 500 * time.Millisecond
	maxResponseBytes    = 10 * 1024 * 1024 // 10 MiB
)

// BatchResult is the outcome of one QueryBatch call. Vulnerabilities and
// Errors are keyed by model.PackageRef.Key(); Order lists those keys in
// the same order as the input packages, since Go maps have none of their
// own — this is how the "preserves input order" contract (spec.md §4.3)
// is satisfied without pretending a map is ordered.
type BatchResult struct {
	Vulnerabilities map[string][]model.VulnerabilityRecord
	Errors          map[string]string
	Order           []string
}

// Client is the Parallel OSV Client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	concurrency int
	timeout     time.Duration
}

// New builds a Client. concurrency <= 0 and timeout <= 0 fall back to the
// spec defaults (C=10, T=10s).
func New(concurrency int, timeout time.Duration) *Client {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient:  &http.Client{},
		baseURL:     defaultBaseURL,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// QueryBatch checks every package in pkgs for known vulnerabilities.
func (c *Client) QueryBatch(ctx context.Context, pkgs []model.PackageRef) BatchResult {
	result := BatchResult{
		Vulnerabilities: make(map[string][]model.VulnerabilityRecord, len(pkgs)),
		Errors:          make(map[string]string),
		Order:           make([]string, len(pkgs)),
	}
	for i, p := range pkgs {
		result.Order[i] = p.Key()
	}
	if len(pkgs) == 0 {
		return result
	}

	start := time.Now()

	if !c.reachable(ctx) {
		slog.Info("osv: api unreachable, skipping vulnerability queries", "host", c.apiHost())
		for _, p := range pkgs {
			result.Vulnerabilities[p.Key()] = nil
			result.Errors[p.Key()] = "osv api unreachable"
		}
		return result
	}

	hits := c.queryAll(ctx, pkgs, &result)
	c.fetchDetails(ctx, hits, pkgs, &result)

	succeeded := 0
	for _, p := range pkgs {
		if _, failed := result.Errors[p.Key()]; !failed {
			succeeded++
		}
	}
	elapsed := time.Since(start)
	perSecond := float64(len(pkgs)) / elapsed.Seconds()
	slog.Info("osv: batch complete",
		"total", len(pkgs), "succeeded", succeeded, "failed", len(pkgs)-succeeded,
		"duration", elapsed, "packages_per_second", perSecond)

	return result
}

// reachable performs the DNS-reachability probe (spec.md §4.3): if the
// OSV API host can't even be resolved, there's no point making requests.
func (c *Client) reachable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, dnsProbeTimeout)
	defer cancel()
	_, err := net.DefaultResolver.LookupHost(probeCtx, c.apiHost())
	return err == nil
}

func (c *Client) apiHost() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "api.osv.dev"
	}
	return u.Hostname()
}

// vulnHit records that package p's query came back with a hit on vulnID.
type vulnHit struct {
	vulnID string
	pkg    model.PackageRef
}

// queryAll dispatches one /v1/query request per package, bounded to
// c.concurrency concurrent in flight, and returns every vuln ID hit along
// with which package it was found for. A single package's failure is
// recorded in result.Errors and does not block the others.
func (c *Client) queryAll(ctx context.Context, pkgs []model.PackageRef, result *BatchResult) []vulnHit {
	sem := semaphore.NewWeighted(int64(c.concurrency))

	var mu sync.Mutex
	var hits []vulnHit

	var wg sync.WaitGroup
	for _, p := range pkgs {
		p := p
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Vulnerabilities[p.Key()] = nil
			result.Errors[p.Key()] = err.Error()
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			ids, err := c.queryOne(reqCtx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Vulnerabilities[p.Key()] = nil
				result.Errors[p.Key()] = err.Error()
				return
			}
			result.Vulnerabilities[p.Key()] = nil
			for _, id := range ids {
				hits = append(hits, vulnHit{vulnID: id, pkg: p})
			}
		}()
	}
	wg.Wait()

	return hits
}

// queryOne issues a single-package OSV query and returns the vuln IDs
// that affect it. A 404 is treated as "no vulnerabilities", matching the
// teacher's tolerant status handling in doWithRetry.
func (c *Client) queryOne(ctx context.Context, p model.PackageRef) ([]string, error) {
	body, err := json.Marshal(osvQueryItem{
		Package: osvPackage{Name: p.Name, Ecosystem: osvEcosystem(p.Ecosystem)},
		Version: p.Version(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	resp, err := c.doWithRetry(ctx, http.MethodPost, c.baseURL+"/query", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	var parsed struct {
		Vulns []osvBatchVuln `json:"vulns"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding query response for %s: %w", p.Name, err)
	}

	ids := make([]string, len(parsed.Vulns))
	for i, v := range parsed.Vulns {
		ids[i] = v.ID
	}
	return ids, nil
}

// fetchDetails resolves every unique vuln ID hit (across the whole batch)
// to a full record, bounded to c.concurrency concurrent fetches, then
// assigns matching VulnerabilityRecords back onto each affected package.
func (c *Client) fetchDetails(ctx context.Context, hits []vulnHit, pkgs []model.PackageRef, result *BatchResult) {
	if len(hits) == 0 {
		return
	}

	seen := make(map[string]bool)
	var uniqueIDs []string
	for _, h := range hits {
		if !seen[h.vulnID] {
			seen[h.vulnID] = true
			uniqueIDs = append(uniqueIDs, h.vulnID)
		}
	}

	sem := semaphore.NewWeighted(int64(c.concurrency))
	var mu sync.Mutex
	var wg sync.WaitGroup
	details := make(map[string]*osvVulnerability, len(uniqueIDs))

	for _, id := range uniqueIDs {
		id := id
		if err := sem.Acquire(ctx, 1); err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			v, err := c.fetchVuln(reqCtx, id)
			if err != nil {
				slog.Warn("osv: failed to fetch vuln details, skipping", "id", id, "error", err)
				return
			}
			mu.Lock()
			details[id] = v
			mu.Unlock()
		}()
	}
	wg.Wait()

	dedupKey := make(map[string]bool)
	for _, h := range hits {
		vuln := details[h.vulnID]
		if vuln == nil {
			continue
		}
		key := h.vulnID + "|" + string(h.pkg.Ecosystem) + "|" + h.pkg.Name
		if dedupKey[key] {
			continue
		}
		dedupKey[key] = true

		record := toVulnerabilityRecord(vuln, h.pkg)
		result.Vulnerabilities[h.pkg.Key()] = append(result.Vulnerabilities[h.pkg.Key()], record)
	}
}

func (c *Client) fetchVuln(ctx context.Context, id string) (*osvVulnerability, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, c.baseURL+"/vulns/"+id, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var vuln osvVulnerability
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&vuln); err != nil {
		return nil, fmt.Errorf("decoding vuln %s: %w", id, err)
	}
	return &vuln, nil
}

// doWithRetry executes an HTTP request with exponential backoff retry on
// transient failures (5xx, 429) — the teacher's doWithRetry, generalized
// to the spec's bounded "max 2 retries" instead of the teacher's 3.
func (c *Client) doWithRetry(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * retryBaseDelay
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request to %s: %w", rawURL, err)
			continue
		}

		if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("osv api %s returned %d", rawURL, resp.StatusCode)
			slog.Debug("osv: retryable error", "url", rawURL, "status", resp.StatusCode, "attempt", attempt+1)
			continue
		}

		return nil, fmt.Errorf("osv api %s returned %d", rawURL, resp.StatusCode)
	}

	return nil, fmt.Errorf("osv: max retries exceeded: %w", lastErr)
}

// osvEcosystem maps depscan's ecosystem names onto OSV.dev's.
func osvEcosystem(e model.Ecosystem) string {
	switch e {
	case model.EcosystemNPM:
		return "npm"
	case model.EcosystemPyPI:
		return "PyPI"
	default:
		return string(e)
	}
}

func toVulnerabilityRecord(vuln *osvVulnerability, pkg model.PackageRef) model.VulnerabilityRecord {
	return model.VulnerabilityRecord{
		ID:                       vuln.ID,
		Summary:                  vuln.Summary,
		Severity:                 extractSeverity(vuln),
		CVSSScore:                extractCVSSScore(vuln),
		AffectedVersions:         extractAffectedVersions(vuln, pkg),
		FixedVersions:            extractFixedVersions(vuln, pkg),
		IsCurrentVersionAffected: pkg.Version() != "" && versionInRanges(vuln, pkg),
		References:               vuln.References(),
	}
}

func extractSeverity(vuln *osvVulnerability) string {
	for _, s := range vuln.Severity {
		if s.Type == "CVSS_V3" {
			return s.Score
		}
	}
	if len(vuln.Severity) > 0 {
		return vuln.Severity[0].Score
	}
	return ""
}

func extractCVSSScore(vuln *osvVulnerability) *float64 {
	score := extractSeverity(vuln)
	if score == "" {
		return nil
	}
	// CVSS vector strings (e.g. "CVSS:3.1/AV:N/...") don't carry a bare
	// numeric score; only a plain numeric string can be parsed here.
	var f float64
	if _, err := fmt.Sscanf(score, "%f", &f); err != nil {
		return nil
	}
	return &f
}

func extractAffectedVersions(vuln *osvVulnerability, pkg model.PackageRef) []string {
	var versions []string
	for _, aff := range vuln.Affected {
		if !strings.EqualFold(aff.Package.Ecosystem, osvEcosystem(pkg.Ecosystem)) || aff.Package.Name != pkg.Name {
			continue
		}
		versions = append(versions, aff.Versions...)
	}
	return versions
}

func extractFixedVersions(vuln *osvVulnerability, pkg model.PackageRef) []string {
	var fixed []string
	for _, aff := range vuln.Affected {
		if !strings.EqualFold(aff.Package.Ecosystem, osvEcosystem(pkg.Ecosystem)) || aff.Package.Name != pkg.Name {
			continue
		}
		for _, r := range aff.Ranges {
			for _, e := range r.Events {
				if e.Fixed != "" {
					fixed = append(fixed, e.Fixed)
				}
			}
		}
	}
	return fixed
}

// versionInRanges reports whether pkg's resolved version appears in the
// vuln's explicit affected-versions list for that package. When OSV only
// publishes ranges (no enumerated versions), the package is conservatively
// treated as affected, since it already matched the query.
func versionInRanges(vuln *osvVulnerability, pkg model.PackageRef) bool {
	versions := extractAffectedVersions(vuln, pkg)
	if len(versions) == 0 {
		return true
	}
	for _, v := range versions {
		if v == pkg.Version() {
			return true
		}
	}
	return false
}
