// Package reputation implements the Reputation Scorer (spec.md §4.4): a
// weighted four-factor score over package registry metadata. New
// component — grounded in shape (not content) on the teacher's
// internal/analysis/priority.go piecewise threshold-to-bucket pattern,
// generalized from confidence-to-priority buckets to the spec's fixed
// age/downloads/author/maintenance weights and thresholds.
package reputation

import (
	"strings"
	"time"

	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/registry"
)

// Weights for the four scored factors (spec.md §4.4 table). They sum to 1.0.
const (
	weightAge         = 0.30
	weightDownloads   = 0.30
	weightAuthor      = 0.20
	weightMaintenance = 0.20
)

// AuthorInfo carries the author-history signal the scorer needs but that
// registry.Metadata alone can't express (verified-org status, package
// count by the same author) — callers that have it (e.g. an org
// membership check) populate it; zero value degrades to "unknown".
type AuthorInfo struct {
	VerifiedOrganization bool
	PackageCount         int
}

// Input bundles everything the scorer needs for one package.
type Input struct {
	Metadata registry.Metadata
	Author   AuthorInfo
	Now      time.Time
}

// Score computes a ReputationRecord from package metadata (spec.md §4.4).
func Score(in Input) model.ReputationRecord {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	ageScore, ageUsable := scoreAge(in.Metadata.PublishedAt, now)
	downloadsScore, downloadsUsable := scoreDownloads(in.Metadata.WeeklyDownloads, in.Metadata.PublishedAt)
	authorScore, authorUsable := scoreAuthor(in.Author, in.Metadata.Author)
	maintenanceScore, maintenanceUsable := scoreMaintenance(in.Metadata.LastUpdatedAt, now)

	overall := ageScore*weightAge + downloadsScore*weightDownloads +
		authorScore*weightAuthor + maintenanceScore*weightMaintenance

	usable := 0
	for _, ok := range []bool{ageUsable, downloadsUsable, authorUsable, maintenanceUsable} {
		if ok {
			usable++
		}
	}

	record := model.ReputationRecord{
		Score: overall,
		Factors: model.ReputationFactors{
			Age:         ageScore,
			Downloads:   downloadsScore,
			Author:      authorScore,
			Maintenance: maintenanceScore,
		},
		Confidence: float64(usable) / 4,
	}
	record.RiskLevel = riskLevel(overall)
	record.RiskFactors = riskFactors(in, ageScore, downloadsScore, authorScore, maintenanceScore)
	record.Reasoning = reasoning(record)

	return record
}

// scoreAge implements the age piecewise-linear table: <30d→0.2, <90d→0.4,
// <365d→0.7, <730d→0.85, else→1.0. An unknown publish date is unusable.
func scoreAge(publishedAt time.Time, now time.Time) (score float64, usable bool) {
	if publishedAt.IsZero() {
		return 0.3, false
	}
	days := now.Sub(publishedAt).Hours() / 24
	switch {
	case days < 30:
		return 0.2, true
	case days < 90:
		return 0.4, true
	case days < 365:
		return 0.7, true
	case days < 730:
		return 0.85, true
	default:
		return 1.0, true
	}
}

// scoreDownloads implements the downloads table: <100→0.2, <1k→0.4,
// <10k→0.7, <100k→0.85, >=100k→1.0. weeklyDownloads <= 0 is treated as
// missing input rather than a genuinely low count (PyPI has no reliable
// downloads API and always reports 0): the factor scores 0.3 and is marked
// unusable, whatever the publish date.
func scoreDownloads(weeklyDownloads int64, publishedAt time.Time) (score float64, usable bool) {
	if weeklyDownloads <= 0 {
		return 0.3, false
	}
	switch {
	case weeklyDownloads < 100:
		return 0.2, true
	case weeklyDownloads < 1000:
		return 0.4, true
	case weeklyDownloads < 10000:
		return 0.7, true
	case weeklyDownloads < 100000:
		return 0.85, true
	default:
		return 1.0, true
	}
}

// scoreAuthor implements: verified-organization→1.0, known-maintainer
// history >=3 packages→0.7, single individual→0.5, unknown/empty→0.3.
func scoreAuthor(info AuthorInfo, authorName string) (score float64, usable bool) {
	if info.VerifiedOrganization {
		return 1.0, true
	}
	if info.PackageCount >= 3 {
		return 0.7, true
	}
	if strings.TrimSpace(authorName) != "" {
		return 0.5, true
	}
	return 0.3, false
}

// scoreMaintenance implements: <180d→1.0, <365d→0.7, <730d→0.4, >=730d→0.2.
func scoreMaintenance(lastUpdatedAt time.Time, now time.Time) (score float64, usable bool) {
	if lastUpdatedAt.IsZero() {
		return 0.2, false
	}
	days := now.Sub(lastUpdatedAt).Hours() / 24
	switch {
	case days < 180:
		return 1.0, true
	case days < 365:
		return 0.7, true
	case days < 730:
		return 0.4, true
	default:
		return 0.2, true
	}
}

// riskLevel implements the score→risk_level thresholds: <0.3→high,
// <0.5→medium, <0.7→low, else not reported (zero value).
func riskLevel(score float64) model.RiskLevel {
	switch {
	case score < 0.3:
		return model.RiskHigh
	case score < 0.5:
		return model.RiskMedium
	case score < 0.7:
		return model.RiskLow
	default:
		return ""
	}
}

func riskFactors(in Input, ageScore, downloadsScore, authorScore, maintenanceScore float64) []model.RiskFactor {
	var factors []model.RiskFactor

	if ageScore <= 0.2 {
		factors = append(factors, model.RiskFactor{
			Type: "new_package", Severity: model.SeverityMedium,
			Description: "package was published less than 30 days ago",
		})
	}
	if maintenanceScore < 0.3 {
		factors = append(factors, model.RiskFactor{
			Type: "abandoned", Severity: model.SeverityMedium,
			Description: "package has not been updated in over two years",
		})
	}
	if authorScore < 0.4 {
		factors = append(factors, model.RiskFactor{
			Type: "unknown_author", Severity: model.SeverityLow,
			Description: "package author could not be verified",
		})
	}
	if downloadsScore < 0.3 {
		factors = append(factors, model.RiskFactor{
			Type: "low_downloads", Severity: model.SeverityLow,
			Description: "package has very low weekly download volume",
		})
	}
	if suspicious := suspiciousPatterns(in); suspicious != "" {
		factors = append(factors, model.RiskFactor{
			Type: "suspicious_patterns", Severity: model.SeverityHigh,
			Description: suspicious,
		})
	}

	return factors
}

// suspiciousPatterns flags metadata anomalies such as a missing
// repository URL combined with a single-letter author name.
func suspiciousPatterns(in Input) string {
	author := strings.TrimSpace(in.Metadata.Author)
	if in.Metadata.RepositoryURL == "" && len(author) == 1 {
		return "no repository URL and a single-letter author name"
	}
	return ""
}

func reasoning(r model.ReputationRecord) string {
	if r.RiskLevel == "" {
		return "reputation factors are within normal ranges"
	}
	var b strings.Builder
	b.WriteString("risk level ")
	b.WriteString(string(r.RiskLevel))
	if len(r.RiskFactors) > 0 {
		b.WriteString(" due to: ")
		for i, f := range r.RiskFactors {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Type)
		}
	}
	return b.String()
}
