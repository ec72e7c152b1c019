package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sec-scan/depscan/internal/agents"
	"github.com/sec-scan/depscan/internal/cache"
	"github.com/sec-scan/depscan/internal/clonetarget"
	"github.com/sec-scan/depscan/internal/config"
	"github.com/sec-scan/depscan/internal/depgraph"
	"github.com/sec-scan/depscan/internal/llm"
	"github.com/sec-scan/depscan/internal/manifest"
	"github.com/sec-scan/depscan/internal/model"
	"github.com/sec-scan/depscan/internal/orchestrator"
	"github.com/sec-scan/depscan/internal/osv"
	"github.com/sec-scan/depscan/internal/registry"
	"github.com/sec-scan/depscan/internal/rules"
)

// reportFileName is the fixed output file name a downstream viewer reads
// (spec.md §6) — never configurable, only the containing directory is.
const reportFileName = "demo_ui_comprehensive_report.json"

// Scan-specific flag values.
var (
	scanOutputDir string
	scanNoLLM     bool
	scanMaxDepth  int
)

// scanCmd is the subcommand that runs a full analysis against one target.
var scanCmd = &cobra.Command{
	Use:   "scan [target]",
	Short: "Scan a local path or remote repository for dependency risk",
	Long: `Scan resolves a local directory or a remote git URL, parses its
npm or Python manifest, builds the dependency graph, runs the rule-based
detectors, and hands off to the five-stage agent pipeline, writing the
combined JSON report to {output-dir}/demo_ui_comprehensive_report.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanOutputDir, "output-dir", "o", "", "directory the report is written into (default: $OUTPUT_DIRECTORY or outputs/)")
	scanCmd.Flags().BoolVar(&scanNoLLM, "no-llm", false, "disable LLM-backed enrichment and synthesis")
	scanCmd.Flags().IntVar(&scanMaxDepth, "max-depth", 0, "dependency graph BFS depth bound (default 5)")
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	ctx := cmd.Context()

	cfg := resolveConfig(cmd)

	localPath, cleanup, inputMode, err := resolveTarget(ctx, target)
	if err != nil {
		return exitErrorf(ExitTotalFailure, "depscan: could not acquire target %q (%v)", target, err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	man, err := loadManifest(localPath)
	if err != nil {
		return exitErrorf(ExitInvalidArgs, "depscan: %v", err)
	}

	store := buildCacheStore(cfg)
	regClient := registry.Multi{
		NPM:  registry.NewNPM(store, cfg.RegistryRequestsPerSecond, cfg.CacheTTL),
		PyPI: registry.NewPyPI(store, cfg.RegistryRequestsPerSecond, cfg.CacheTTL),
	}

	maxDepth := scanMaxDepth
	if maxDepth <= 0 {
		maxDepth = cfg.MaxDepth
	}
	graph := depgraph.Resolve(ctx, regClient, man, maxDepth)

	var osvClient *osv.Client
	if cfg.EnableOSVQueries == nil || *cfg.EnableOSVQueries {
		osvClient = osv.New(cfg.OSVConcurrency, cfg.OSVRequestTimeout)
	}

	ruleResult := rules.Detect(ctx, graph, man, osvClient, regClient, rules.Options{
		ReputationScaleSkipThreshold: cfg.ReputationScaleSkipThreshold,
		MaliciousList:                rules.DefaultMaliciousList(),
		PopularPackages:              rules.DefaultPopularPackages(),
	})
	if ruleResult.ReputationChecksSkipped {
		slog.Info("reputation checks skipped: dependency graph exceeds scale threshold",
			"threshold", cfg.ReputationScaleSkipThreshold, "packages", len(graph.Nodes))
	}

	enricher := buildEnricher(cfg)
	orch := orchestrator.New(osvClient, regClient, enricher, cfg.StageTimeouts, config.GitHubToken())

	shared := model.SharedContext{
		InitialFindings: ruleResult.Findings,
		Graph:           &graph,
		Packages:        man.Direct,
		Ecosystem:       man.Ecosystem,
		ProjectPath:     man.ProjectPath,
	}

	slog.Info("starting agent pipeline", "target", target, "packages", len(man.Direct))
	run := orch.Run(ctx, shared)
	slog.Info("agent pipeline complete", "duration", run.TotalDuration)

	report := orchestrator.AssembleReport(run, orchestrator.ReportMeta{
		AnalysisID:           uuid.NewString(),
		Target:               target,
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		InputMode:            string(inputMode),
		AgentAnalysisEnabled: enricher != nil,
	})

	for agentName, detail := range report.AgentInsights.AgentDetails {
		if detail.Error != "" {
			slog.Warn("agent stage degraded", "agent", agentName, "error", detail.Error)
		} else {
			slog.Info("agent stage complete", "agent", agentName, "confidence", detail.Confidence)
		}
	}

	outputDir := cfg.OutputDirectory
	if outputDir == "" {
		outputDir = "outputs/"
	}
	if err := writeReport(outputDir, report); err != nil {
		return exitErrorf(ExitTotalFailure, "depscan: failed to write report (%v)", err)
	}

	slog.Info("scan complete", "analysis_status", report.Metadata.AnalysisStatus, "report", filepath.Join(outputDir, reportFileName))
	if !quiet {
		printSummary(cmd, report)
	}
	return nil
}

// printSummary writes a one-line, severity-colored finding count to the
// command's stdout. Colors follow the report's own severity ordering:
// critical/high in red, medium in yellow, low in the default color.
func printSummary(cmd *cobra.Command, report model.Report) {
	s := report.Summary
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%s: %d packages, %d findings (", reportFileName, s.TotalPackages, s.TotalFindings)
	_, _ = color.New(color.FgRed, color.Bold).Fprintf(out, "%d critical", s.CriticalFindings)
	_, _ = fmt.Fprint(out, ", ")
	_, _ = color.New(color.FgRed).Fprintf(out, "%d high", s.HighFindings)
	_, _ = fmt.Fprint(out, ", ")
	_, _ = color.New(color.FgYellow).Fprintf(out, "%d medium", s.MediumFindings)
	_, _ = fmt.Fprintf(out, ", %d low)\n", s.LowFindings)
}

// resolveConfig builds the final Config via the flag > env > file >
// default precedence chain (internal/config.Resolve), applying this
// command's own flags as the top overlay.
func resolveConfig(cmd *cobra.Command) config.Config {
	fileCfg, err := config.Load(".")
	if err != nil {
		slog.Warn("failed to load config file, using defaults", "error", err)
		fileCfg = &config.Config{}
	}

	flagCfg := config.Config{}
	if cmd.Flags().Changed("output-dir") {
		flagCfg.OutputDirectory = scanOutputDir
	}
	if cmd.Flags().Changed("no-llm") {
		flagCfg.NoLLM = scanNoLLM
	}
	if cmd.Flags().Changed("max-depth") {
		flagCfg.MaxDepth = scanMaxDepth
	}

	return config.Resolve(*fileCfg, config.FromEnv(), flagCfg)
}

// resolveTarget classifies target as local or remote and, for a remote
// target, shallow-clones it to a temp directory the caller must clean up.
func resolveTarget(ctx context.Context, target string) (path string, cleanup func(), mode clonetarget.Mode, err error) {
	mode = clonetarget.Resolve(target)
	if mode == clonetarget.ModeLocal {
		absPath, err := cmdFS.Abs(target)
		if err != nil {
			return "", nil, mode, err
		}
		if _, err := cmdFS.Stat(absPath); err != nil {
			return "", nil, mode, err
		}
		return absPath, nil, mode, nil
	}

	dir, cleanup, err := clonetarget.Fetch(ctx, clonetarget.RealCloner{}, target, config.GitHubToken())
	if err != nil {
		return "", nil, mode, err
	}
	return dir, cleanup, mode, nil
}

// loadManifest detects which manifest format is present at projectPath
// and parses it. npm's package.json takes precedence; among the Python
// formats, pyproject.toml is preferred over requirements.txt, which is
// preferred over the legacy setup.py.
func loadManifest(projectPath string) (model.Manifest, error) {
	if data, err := cmdFS.ReadFile(filepath.Join(projectPath, "package.json")); err == nil {
		return manifest.ParseNPM(data, projectPath, manifest.ParseNPMOptions{})
	}
	if data, err := cmdFS.ReadFile(filepath.Join(projectPath, "pyproject.toml")); err == nil {
		return manifest.ParsePyprojectToml(data, projectPath)
	}
	if data, err := cmdFS.ReadFile(filepath.Join(projectPath, "requirements.txt")); err == nil {
		return manifest.ParseRequirementsTxt(data, projectPath)
	}
	if data, err := cmdFS.ReadFile(filepath.Join(projectPath, "setup.py")); err == nil {
		return manifest.ParseSetupPy(data, projectPath)
	}
	return model.Manifest{}, fmt.Errorf("no recognized manifest (package.json, pyproject.toml, requirements.txt, setup.py) found in %s", projectPath)
}

func buildCacheStore(cfg config.Config) cache.Store {
	if cfg.CacheEnabled != nil && !*cfg.CacheEnabled {
		return nil
	}
	if cfg.CacheDir != "" {
		return cache.NewDisk(cfg.CacheDir, cfg.CacheMaxBytes)
	}
	return cache.NewMemory(10000, cfg.CacheMaxBytes)
}

func buildEnricher(cfg config.Config) *agents.LLMEnricher {
	if cfg.NoLLM || !config.HasAnthropicKey() {
		return nil
	}
	provider, err := llm.NewAnthropicProvider()
	if err != nil {
		slog.Warn("LLM enrichment disabled: failed to build Anthropic provider", "error", err)
		return nil
	}
	return &agents.LLMEnricher{Provider: provider, Model: cfg.LLMModel}
}

// writeReport marshals report as indented JSON and writes it atomically
// (write to a temp file in the same directory, then rename) to
// outputDir/reportFileName.
func writeReport(outputDir string, report model.Report) error {
	if err := cmdFS.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	finalPath := filepath.Join(outputDir, reportFileName)
	tmp, err := os.CreateTemp(outputDir, ".demo_ui_comprehensive_report-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, finalPath)
}
