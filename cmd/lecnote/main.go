package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lecnote/internal/pipeline"
)

var Version = "0.1.0-dev"

// rootOptions holds persistent CLI flag values.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "lecnote",
		Short:         "Turn lecture transcripts into Obsidian study notes",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./lecnote.yaml", "Path to config file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(runCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(watchCmd(opts))
	rootCmd.AddCommand(matchCmd(opts))
	return rootCmd
}

// exitCode maps a command error to the process exit code: the abort code
// for a failed batch, 1 for anything else.
func exitCode(err error) int {
	var abort *pipeline.AbortError
	if errors.As(err, &abort) {
		return abort.Code
	}
	return pipeline.ExitStartup
}
