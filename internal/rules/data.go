package rules

import "github.com/sec-scan/depscan/internal/model"

// DefaultMaliciousList is the bundled known-malicious package block-list
// (spec.md §4.8): real npm/PyPI supply-chain incidents, checked by exact
// (ecosystem, name) match. Periodically refreshed in a real deployment;
// fixed here since this module ships no update channel for it.
func DefaultMaliciousList() map[model.Ecosystem]map[string]bool {
	return map[model.Ecosystem]map[string]bool{
		model.EcosystemNPM: {
			"flatmap-stream": true,
			"event-stream":   true,
			"eslint-scope":   true,
			"crossenv":       true,
			"getcookies":     true,
		},
		model.EcosystemPyPI: {
			"colourama":        true,
			"python3-dateutil": true,
			"jeIlyfish":        true,
			"urllib":           true,
		},
	}
}

// DefaultPopularPackages is the bundled reference list of widely-used
// package names per ecosystem (spec.md §4.8), the baseline typosquat
// detection measures every resolved name against.
func DefaultPopularPackages() map[model.Ecosystem][]string {
	return map[model.Ecosystem][]string{
		model.EcosystemNPM: {
			"express", "react", "lodash", "axios", "chalk", "commander",
			"request", "async", "moment", "webpack", "babel", "react-dom",
			"jquery", "typescript", "eslint", "prettier", "vue", "next",
			"jest", "mocha", "uuid", "dotenv", "yargs", "debug", "glob",
		},
		model.EcosystemPyPI: {
			"requests", "urllib3", "numpy", "pandas", "flask", "django",
			"boto3", "pytest", "pyyaml", "setuptools", "six", "click",
			"certifi", "idna", "charset-normalizer", "jinja2", "markupsafe",
			"cryptography", "attrs", "packaging",
		},
	}
}
