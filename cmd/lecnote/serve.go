package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"lecnote/internal/pipeline"
	"lecnote/internal/scheduler"
	"lecnote/internal/web"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run batches on the configured cron schedule and serve the status API",
		Long: `Run batches on serve.schedule and expose /health, /metrics, /api/status,
/api/match, /api/events and /api/run on serve.listen.

A batch abort stops the server and exits with the abort code.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if listen != "" {
				a.cfg.Serve.Listen = listen
			}

			index, err := a.loadIndex(ctx)
			if err != nil {
				return err
			}
			controller, err := a.newController(ctx, index, pipeline.NopResolver{})
			if err != nil {
				return err
			}

			var (
				abortMu  sync.Mutex
				abortErr error
			)
			batch := func(ctx context.Context) {
				sum, err := controller.Run(ctx)
				a.afterRun(sum, err)
				var abort *pipeline.AbortError
				if errors.As(err, &abort) {
					abortMu.Lock()
					abortErr = abort
					abortMu.Unlock()
					cancel()
				}
			}

			sched := scheduler.New(a.loc, a.logger.Named("scheduler"))
			if err := sched.Add(ctx, "batch", a.cfg.Serve.Schedule, batch); err != nil {
				return err
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				sched.Run(ctx)
			}()

			serverErr := web.StartServer(ctx, a.cfg.Serve, web.Deps{
				Calendar: index,
				Status:   controller,
				Metrics:  a.metrics.Handler(),
				NextRun:  sched.Next,
				RunNow: func() {
					wg.Add(1)
					go func() {
						defer wg.Done()
						batch(ctx)
					}()
				},
				Logger: a.logger.Named("web"),
			})
			cancel()
			wg.Wait()

			abortMu.Lock()
			defer abortMu.Unlock()
			if abortErr != nil {
				return abortErr
			}
			if serverErr != nil {
				return serverErr
			}
			a.logger.Info("lecnote exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
