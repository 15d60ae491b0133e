package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chrissnell/xrdquant/internal/log"
	"github.com/chrissnell/xrdquant/pkg/xrd"
)

var splitDir string

var splitCmd = &cobra.Command{
	Use:   "split SAMPLES.csv",
	Short: "Split a multi-sample table into one XY file per sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		samples, err := xrd.ReadMultiSample(f)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(splitDir, 0o755); err != nil {
			return err
		}
		for _, s := range samples {
			path := filepath.Join(splitDir, s.Name+".xy")
			if err := writeXYFile(path, s); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		log.Debugf("split %s into %d samples", args[0], len(samples))
		return nil
	},
}

func init() {
	splitCmd.Flags().StringVarP(&splitDir, "dir", "d", ".", "Output directory")
	rootCmd.AddCommand(splitCmd)
}

func writeXYFile(path string, d *xrd.Diffractogram) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := xrd.WriteXY(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
