package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lecnote/internal/pipeline"
)

func runCmd(opts *rootOptions) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every pending transcript once and exit",
		Long: `Process the transcripts waiting in transcript_dir, oldest name first.

Exit codes:
  0  all files done or skipped
  1  configuration or startup failure
  2  note generation failed
  3  note or transcript could not be saved
  4  source transcript could not be archived`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			index, err := a.loadIndex(ctx)
			if err != nil {
				return err
			}

			var resolver pipeline.Resolver = pipeline.NopResolver{}
			if interactive || (a.cfg.Interactive && !cmd.Flags().Changed("interactive")) {
				resolver = pipeline.NewPromptResolver(os.Stdin, os.Stdout)
			}

			controller, err := a.newController(ctx, index, resolver)
			if err != nil {
				return err
			}

			sum, err := controller.Run(ctx)
			a.afterRun(sum, err)
			return err
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for the course when a recording matches no calendar event")
	return cmd
}
