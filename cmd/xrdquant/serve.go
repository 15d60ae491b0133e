package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrissnell/xrdquant/internal/app"
	"github.com/chrissnell/xrdquant/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST, gRPC and inbox watcher front ends",
	Long: `Loads the configured reference libraries and storage engines and starts
every configured controller. Runs until interrupted.

Example:
  xrdquant serve -c xrdquant.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return fmt.Errorf("serve needs --config")
		}
		cfg, err := app.LoadConfig(cfgFile, backend)
		if err != nil {
			return err
		}
		return app.New(cfg, log.GetSugaredLogger()).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
