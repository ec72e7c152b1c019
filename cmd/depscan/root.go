package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sec-scan/depscan/internal/log"
)

// Global flag values.
var (
	verbose bool
	quiet   bool
	noColor bool
)

// rootCmd is the base command for depscan.
var rootCmd = &cobra.Command{
	Use:   "depscan",
	Short: "Scan a package manifest for supply-chain security risk",
	Long: `depscan analyzes an npm or Python project's dependencies for known
vulnerabilities, malicious packages, typosquats, risky install scripts, and
supply-chain attack patterns, combining rule-based detection with five
specialized agents into one JSON security report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		log.Setup(verbose, quiet)
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}
