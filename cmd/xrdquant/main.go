// Command xrdquant quantifies X-ray powder diffraction patterns by full
// pattern summation, either one-shot from the command line or as a server.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chrissnell/xrdquant/internal/log"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

var (
	// Global flags
	debug   bool
	logFile string
	cfgFile string
	backend string
)

var rootCmd = &cobra.Command{
	Use:   "xrdquant",
	Short: "Quantitative XRPD by full pattern summation",
	Long: `xrdquant fits measured powder diffraction patterns as a weighted sum of
pure-phase reference patterns and reports weight percentages using reference
intensity ratios.

Libraries are given either as a pattern/phase CSV pair (--patterns, --phases)
or by name from a configuration file (--config, --library).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != "" {
			return log.InitFile(debug, logFile)
		}
		return log.Init(debug)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xrdquant %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Turn on debugging output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file, rotated by size")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration source (YAML file or SQLite .db)")
	rootCmd.PersistentFlags().StringVar(&backend, "config-backend", "", "Configuration backend: 'yaml' or 'sqlite' (default: by file extension)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
