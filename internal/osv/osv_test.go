package osv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sec-scan/depscan/internal/model"
)

func pkgRef(name, version string) model.PackageRef {
	return model.PackageRef{Ecosystem: model.EcosystemNPM, Name: name, ResolvedVersion: version}
}

func TestQueryBatch_NoHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vulns": []}`))
	}))
	defer srv.Close()

	c := New(4, time.Second)
	c.baseURL = srv.URL

	result := c.QueryBatch(context.Background(), []model.PackageRef{pkgRef("left-pad", "1.3.0")})
	assert.Empty(t, result.Vulnerabilities[pkgRef("left-pad", "1.3.0").Key()])
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{pkgRef("left-pad", "1.3.0").Key()}, result.Order)
}

func TestQueryBatch_HitResolvesToDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"vulns": [{"id": "GHSA-xxxx"}]}`))
		default:
			vuln := osvVulnerability{
				ID:      "GHSA-xxxx",
				Summary: "bad package",
				Severity: []osvSeverity{{Type: "CVSS_V3", Score: "7.5"}},
				Affected: []osvAffected{{
					Package:  osvPackage{Name: "left-pad", Ecosystem: "npm"},
					Versions: []string{"1.3.0"},
					Ranges: []osvRange{{Events: []osvEvent{{Fixed: "1.3.1"}}}},
				}},
			}
			b, _ := json.Marshal(vuln)
			_, _ = w.Write(b)
		}
	}))
	defer srv.Close()

	c := New(4, time.Second)
	c.baseURL = srv.URL

	ref := pkgRef("left-pad", "1.3.0")
	result := c.QueryBatch(context.Background(), []model.PackageRef{ref})

	require.Len(t, result.Vulnerabilities[ref.Key()], 1)
	rec := result.Vulnerabilities[ref.Key()][0]
	assert.Equal(t, "GHSA-xxxx", rec.ID)
	assert.Equal(t, "7.5", rec.Severity)
	require.NotNil(t, rec.CVSSScore)
	assert.InDelta(t, 7.5, *rec.CVSSScore, 0.001)
	assert.Equal(t, []string{"1.3.1"}, rec.FixedVersions)
	assert.True(t, rec.IsCurrentVersionAffected)
}

func TestQueryBatch_404IsNoVulnerabilities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(4, time.Second)
	c.baseURL = srv.URL

	ref := pkgRef("unknown-package", "1.0.0")
	result := c.QueryBatch(context.Background(), []model.PackageRef{ref})
	assert.Empty(t, result.Vulnerabilities[ref.Key()])
	assert.Empty(t, result.Errors)
}

func TestQueryBatch_PartialFailureDoesNotBlockOthers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var q osvQueryItem
		_ = json.NewDecoder(r.Body).Decode(&q)
		if q.Package.Name == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vulns": []}`))
	}))
	defer srv.Close()

	c := New(4, time.Second)
	c.baseURL = srv.URL

	broken := pkgRef("broken", "1.0.0")
	ok := pkgRef("fine", "1.0.0")
	result := c.QueryBatch(context.Background(), []model.PackageRef{broken, ok})

	assert.Contains(t, result.Errors, broken.Key())
	assert.NotContains(t, result.Errors, ok.Key())
}

func TestQueryBatch_UnreachableHostReturnsEmptyFast(t *testing.T) {
	c := New(4, time.Second)
	c.baseURL = "https://osv-host-does-not-resolve.invalid"

	ref := pkgRef("left-pad", "1.3.0")
	start := time.Now()
	result := c.QueryBatch(context.Background(), []model.PackageRef{ref})
	elapsed := time.Since(start)

	assert.Empty(t, result.Vulnerabilities[ref.Key()])
	assert.Contains(t, result.Errors, ref.Key())
	assert.Less(t, elapsed, time.Second)
}

func TestQueryBatch_EmptyInput(t *testing.T) {
	c := New(4, time.Second)
	result := c.QueryBatch(context.Background(), nil)
	assert.Empty(t, result.Order)
	assert.Empty(t, result.Vulnerabilities)
}
