package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lecnote/internal/watch"
)

func watchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stamp new audio recordings in audio_dir with their arrival time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			r := watch.NewRenamer(watch.Options{Dir: a.cfg.AudioDir, Location: a.loc}, a.logger.Named("watch"))
			return r.Run(ctx)
		},
	}
}
