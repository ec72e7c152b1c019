// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

// Package scriptscan implements the Script Pattern Engine (spec.md §4.7):
// a fixed corpus of attack-pattern categories matched against npm
// `scripts` entries and Python setup.py source. Grounded directly on the
// teacher's internal/collectors/todos.go idiom — a map[category]baseConfidence
// plus compiled regexp.Regexp patterns, one match pass per input — adapted
// from comment-keyword detection to shell-command attack-pattern detection.
package scriptscan

import (
	"math"
	"regexp"
	"strings"

	"github.com/sec-scan/depscan/internal/model"
)

// category is one attack-pattern entry in the fixed corpus.
type category struct {
	name        string
	patterns    []*regexp.Regexp
	severity    model.Severity
	confidence  float64
	description string
}

// categories is the fixed ≥15-category corpus (spec.md §4.7).
var categories = []category{
	{
		name:        "remote_code_exec_pipe_shell",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)(curl|wget)\s+[^|]*\|\s*(sudo\s+)?(sh|bash|zsh)\b`)},
		severity:    model.SeverityCritical,
		confidence:  0.9,
		description: "downloads a remote script and pipes it directly to a shell",
	},
	{
		name:        "base64_decode_pipe_shell",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)base64\s+(-d|--decode)[^|]*\|\s*(sh|bash)\b`)},
		severity:    model.SeverityCritical,
		confidence:  0.9,
		description: "decodes a base64 payload and executes it as a shell command",
	},
	{
		name:        "credential_theft_ssh_path",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)~/\.ssh\b|\.aws/credentials\b|\.npmrc\b`)},
		severity:    model.SeverityHigh,
		confidence:  0.75,
		description: "reads a well-known credential or key file path",
	},
	{
		name:        "reverse_shell",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)bash\s+-i\s*>&\s*/dev/tcp/|nc\s+-e\s+/bin/(sh|bash)`)},
		severity:    model.SeverityCritical,
		confidence:  0.95,
		description: "opens an interactive reverse shell to a remote host",
	},
	{
		name:        "crypto_miner",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)xmrig|minerd|stratum\+tcp://|cryptonight`)},
		severity:    model.SeverityCritical,
		confidence:  0.85,
		description: "launches cryptocurrency mining software",
	},
	{
		name:        "data_exfiltration_archive_upload",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)tar\s+[^|]*\|\s*(curl|nc|wget)\b`)},
		severity:    model.SeverityHigh,
		confidence:  0.8,
		description: "archives local files and streams them to a remote endpoint",
	},
	{
		name:        "js_eval_call",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`\beval\s*\(`)},
		severity:    model.SeverityMedium,
		confidence:  0.55,
		description: "evaluates a dynamically constructed string as code",
	},
	{
		name:        "child_process_exec",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`\b(child_process|require\(['"]child_process['"]\))\.(exec|execSync|spawn)\b`)},
		severity:    model.SeverityHigh,
		confidence:  0.7,
		description: "spawns an OS-level process from a package install script",
	},
	{
		name:        "destructive_rm_rf",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)rm\s+(-[a-z]*r[a-z]*f[a-z]*|-[a-z]*f[a-z]*r[a-z]*)\s+/($|\s)`)},
		severity:    model.SeverityHigh,
		confidence:  0.8,
		description: "recursively deletes files starting from the filesystem root",
	},
	{
		name:        "privilege_escalation_setuid",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)sudo\s+chmod\s+u\+s\b|chmod\s+4[0-7]{3}\b`)},
		severity:    model.SeverityHigh,
		confidence:  0.75,
		description: "sets the setuid bit, a common privilege-escalation primitive",
	},
	{
		name:        "persistence_crontab",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)crontab\s+-`)},
		severity:    model.SeverityHigh,
		confidence:  0.7,
		description: "installs a cron entry to persist across reboots",
	},
	{
		name:        "environment_harvest",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)\benv\b\s*\|\s*(curl|nc|wget)\b|process\.env\s*\)\s*\.\s*(toString|join)\(`)},
		severity:    model.SeverityHigh,
		confidence:  0.7,
		description: "collects environment variables for exfiltration",
	},
	{
		name:        "suspicious_direct_ip_url",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`https?://\d{1,3}(\.\d{1,3}){3}(:\d+)?\b`)},
		severity:    model.SeverityMedium,
		confidence:  0.6,
		description: "references a bare IP address instead of a domain name",
	},
	{
		name:        "prototype_pollution_literal",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`__proto__|constructor\s*\[\s*['"]prototype['"]\s*\]`)},
		severity:    model.SeverityMedium,
		confidence:  0.55,
		description: "manipulates an object's prototype chain directly",
	},
	{
		name:        "registry_hijack",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)npm\s+config\s+set\s+registry\b|pip\s+config\s+set\s+global\.index-url\b`)},
		severity:    model.SeverityHigh,
		confidence:  0.65,
		description: "redirects the package registry used for subsequent installs",
	},
	{
		name:        "obfuscated_node_dash_e",
		patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)node\s+-e\s+['"]`)},
		severity:    model.SeverityMedium,
		confidence:  0.6,
		description: "executes an inline Node.js snippet passed on the command line",
	},
}

// safeTools are well-known bare commands that should never be flagged on
// their own (spec.md §4.7's false-positive exclusion).
var safeTools = map[string]bool{
	"jest": true, "mocha": true, "pytest": true, "eslint": true,
}

// minCommandLength excludes commands too short to meaningfully match an
// attack pattern (spec.md §4.7).
const minCommandLength = 4

// ComplexityThreshold is the score at or above which a script is complex or
// obfuscated enough to warrant an LLM second opinion even when it matched
// none of the fixed attack categories (spec.md §4.10's Code Agent gate).
const ComplexityThreshold = 0.5

// obfuscationTells are substrings that show up disproportionately in
// obfuscated installer payloads (char-code reassembly, hex/unicode escapes,
// dynamic eval-from-string) rather than in ordinary build scripts.
var obfuscationTells = []string{
	`\x`, `\u00`, "fromCharCode", "atob(", "Function(", "unescape(", "%u00",
}

// ComplexityScore estimates how complex or obfuscated a single script
// command is, combining how many attack categories it matches, its raw
// length, and a Shannon-entropy-based obfuscation signal. It returns a
// value in [0, 1]; spec.md §4.10 triggers the Code Agent at 0.5 or above
// even for a script that matched none of the categories scanCommand checks.
func ComplexityScore(command string) float64 {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return 0
	}

	matched := 0
	for _, cat := range categories {
		if matchesAny(cat.patterns, command) {
			matched++
		}
	}
	density := float64(matched) / float64(len(categories))

	lengthFactor := math.Min(1, float64(len(trimmed))/200.0)

	score := 0.45*density + 0.25*lengthFactor + 0.30*obfuscationSignal(trimmed)
	return math.Min(1, score)
}

// obfuscationSignal blends normalized Shannon entropy (obfuscated/encoded
// payloads read as higher-entropy than ordinary shell commands) with a hit
// count against obfuscationTells.
func obfuscationSignal(command string) float64 {
	entropy := math.Min(1, shannonEntropy(command)/4.5)

	hits := 0
	for _, tell := range obfuscationTells {
		if strings.Contains(command, tell) {
			hits++
		}
	}
	tellScore := math.Min(1, float64(hits)/2)

	return 0.6*entropy + 0.4*tellScore
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	n := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// Scan matches every hook's command in an npm scripts map against the
// fixed attack corpus and returns one Finding per (hook, category) match.
func Scan(scripts map[model.Hook]string, ecosystem model.Ecosystem, packageName, packageVersion string) []model.Finding {
	var findings []model.Finding
	for hook, command := range scripts {
		findings = append(findings, scanCommand(hook, command, ecosystem, packageName, packageVersion)...)
	}
	return findings
}

// ScanSetupPy matches a Python setup.py source against the same corpus,
// treated as a single pseudo-hook so cmdclass-based install hooks (which
// run automatically during `pip install`, like npm's dangerous hooks) are
// reported with the same evidence shape.
func ScanSetupPy(source, packageName, packageVersion string) []model.Finding {
	return scanCommand("setup.py", source, model.EcosystemPyPI, packageName, packageVersion)
}

func scanCommand(hook model.Hook, command string, ecosystem model.Ecosystem, packageName, packageVersion string) []model.Finding {
	trimmed := strings.TrimSpace(command)
	if len(trimmed) < minCommandLength {
		return nil
	}
	if safeTools[trimmed] {
		return nil
	}

	score := ComplexityScore(command)
	runsAutomatically := isDangerousHook(hook)

	var findings []model.Finding
	for _, cat := range categories {
		if !matchesAny(cat.patterns, command) {
			continue
		}

		severity := cat.severity
		confidence := cat.confidence
		if runsAutomatically {
			severity = severity.Escalate()
			if confidence < 0.9 {
				confidence = 0.9
			}
		}

		findings = append(findings, model.Finding{
			PackageName:     packageName,
			PackageVersion:  packageVersion,
			Ecosystem:       ecosystem,
			FindingType:     model.FindingMaliciousScript,
			Severity:        severity,
			Confidence:      confidence,
			Source:          "scriptscan",
			DetectionMethod: model.DetectionRuleBased,
			Evidence: []string{
				string(hook),
				command,
				cat.description,
				runsAutomaticallyLabel(runsAutomatically),
			},
			Extra: map[string]any{
				"hook":                    string(hook),
				"command":                 command,
				"category":                cat.name,
				"script_complexity_score": score,
			},
		})
	}

	// A script matching no fixed category can still be complex or
	// obfuscated enough to need LLM review (spec.md §4.10); report it on
	// the complexity signal alone rather than silently dropping it.
	if len(findings) == 0 && score >= ComplexityThreshold {
		confidence := score
		if runsAutomatically && confidence < 0.9 {
			confidence = 0.9
		}
		findings = append(findings, model.Finding{
			PackageName:     packageName,
			PackageVersion:  packageVersion,
			Ecosystem:       ecosystem,
			FindingType:     model.FindingMaliciousScript,
			Severity:        model.SeverityMedium,
			Confidence:      confidence,
			Source:          "scriptscan",
			DetectionMethod: model.DetectionRuleBased,
			Evidence: []string{
				string(hook),
				command,
				"script did not match a known attack pattern but scored high on length/entropy complexity",
				runsAutomaticallyLabel(runsAutomatically),
			},
			Extra: map[string]any{
				"hook":                    string(hook),
				"command":                 command,
				"category":                "high_complexity_script",
				"script_complexity_score": score,
			},
		})
	}

	return findings
}

func matchesAny(patterns []*regexp.Regexp, command string) bool {
	for _, p := range patterns {
		if p.MatchString(command) {
			return true
		}
	}
	return false
}

func isDangerousHook(hook model.Hook) bool {
	return model.DangerousHooks[hook] || hook == "setup.py"
}

func runsAutomaticallyLabel(runs bool) string {
	if runs {
		return "runs automatically"
	}
	return "requires explicit invocation"
}
