package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/registry"
)

func TestScore_HealthyPackage(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	in := Input{
		Now: now,
		Metadata: registry.Metadata{
			PublishedAt:     now.AddDate(-3, 0, 0),
			LastUpdatedAt:   now.AddDate(0, -1, 0),
			WeeklyDownloads: 500000,
			Author:          "trusted-org",
			RepositoryURL:   "https://github.com/trusted-org/pkg",
		},
		Author: AuthorInfo{VerifiedOrganization: true},
	}

	rec := Score(in)
	assert.InDelta(t, 1.0, rec.Score, 0.01)
	assert.Equal(t, model.RiskLevel(""), rec.RiskLevel, "healthy packages should not report a risk level")
	assert.Empty(t, rec.RiskFactors)
	assert.Equal(t, 1.0, rec.Confidence)
}

func TestScore_NewUnknownPackageReportsRisk(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	in := Input{
		Now: now,
		Metadata: registry.Metadata{
			PublishedAt:     now.AddDate(0, 0, -5),
			LastUpdatedAt:   now.AddDate(0, 0, -5),
			WeeklyDownloads: 10,
			Author:          "x",
		},
	}

	rec := Score(in)
	assert.NotEqual(t, model.RiskLevel(""), rec.RiskLevel, "low-scoring package should report some risk level")
	assert.Contains(t, riskFactorTypes(rec), "new_package")
	assert.Contains(t, riskFactorTypes(rec), "low_downloads")
}

func TestScore_AbandonedPackage(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	in := Input{
		Now: now,
		Metadata: registry.Metadata{
			PublishedAt:     now.AddDate(-5, 0, 0),
			LastUpdatedAt:   now.AddDate(-3, 0, 0),
			WeeklyDownloads: 50000,
			Author:          "someone",
		},
		Author: AuthorInfo{PackageCount: 5},
	}

	rec := Score(in)
	assert.Contains(t, riskFactorTypes(rec), "abandoned")
}

func TestScore_MissingMetadataLowersConfidence(t *testing.T) {
	rec := Score(Input{Now: time.Now()})
	assert.Less(t, rec.Confidence, 1.0)
}

func TestScore_SuspiciousPatternFlagged(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	in := Input{
		Now: now,
		Metadata: registry.Metadata{
			PublishedAt:     now.AddDate(-1, 0, 0),
			LastUpdatedAt:   now.AddDate(0, -1, 0),
			WeeklyDownloads: 50000,
			Author:          "x",
		},
		Author: AuthorInfo{PackageCount: 3},
	}

	rec := Score(in)
	assert.Contains(t, riskFactorTypes(rec), "suspicious_patterns")
}

func riskFactorTypes(rec model.ReputationRecord) []string {
	var types []string
	for _, f := range rec.RiskFactors {
		types = append(types, f.Type)
	}
	return types
}
