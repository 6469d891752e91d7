// Command duskfetch is a CLI front end for the download engine: fetch a
// single URL, watch a live progress display, and inspect or control
// paused downloads through the checkpoint directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duskfetch/dlengine/internal/utils"
)

var (
	debug       bool
	stateDir    string
	connections int
	headers     []string
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "duskfetch",
	Short:   "duskfetch is a resumable, chunked HTTP download engine",
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	home, _ := os.UserHomeDir()
	defaultState := ""
	if home != "" {
		defaultState = home + "/.duskfetch"
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultState, "directory for checkpoints and config")
	rootCmd.PersistentFlags().IntVarP(&connections, "connections", "c", 3, "number of parallel range requests per download")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "custom header 'Key: value', can be repeated")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newBatchCmd())
}

func initLogging() {
	utils.InitLogger(debug)
}
