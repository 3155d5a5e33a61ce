package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"lecnote/internal/config"
	"lecnote/internal/ics"
	"lecnote/internal/llm"
	appLog "lecnote/internal/log"
	"lecnote/internal/metrics"
	"lecnote/internal/note"
	"lecnote/internal/notify"
	"lecnote/internal/pipeline"
	"lecnote/internal/textconv"
	"lecnote/internal/vault"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	logger  *appLog.Logger
	metrics *metrics.Manager
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if cfg == nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	saveErr := err

	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	lvl, lerr := appLog.ParseLevel(level)
	if lerr != nil {
		return nil, lerr
	}
	logger, err := appLog.New(appLog.Options{Level: lvl, FilePath: cfg.Log.File, Output: os.Stderr})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	if saveErr != nil {
		logger.Warn("could not write default config file", "path", opts.configPath, "err", saveErr)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logger.Info("lecnote starting", "version", Version)
	logger.Debug("effective config",
		"config_path", opts.configPath,
		"timezone", cfg.Timezone,
		"semester_start", cfg.SemesterStart,
		"ics", cfg.ICSPath,
		"audio_dir", cfg.AudioDir,
		"transcript_dir", cfg.TranscriptDir,
		"processed_dir", cfg.ProcessedDir,
		"vault", cfg.VaultPath,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"clinical_courses", len(cfg.ClinicalCourses),
	)

	return &app{
		cfg:     cfg,
		loc:     loc,
		logger:  logger,
		metrics: metrics.NewManager(metrics.WithHistogramBuckets(cfg.Metrics.LatencyBuckets)),
	}, nil
}

func (a *app) Close() {
	_ = a.logger.Close()
}

func (a *app) loadIndex(ctx context.Context) (*ics.Index, error) {
	fetcher := ics.NewFetcher(a.cfg.ICSCacheDir, a.logger.Named("ics"))
	index, err := ics.LoadIndex(ctx, fetcher, a.cfg.ICSPath, a.cfg.SemesterStart, a.loc, a.logger.Named("ics"))
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}
	a.metrics.SetCalendar(len(index.Events()), index.Degraded())
	return index, nil
}

func (a *app) newController(ctx context.Context, index *ics.Index, resolver pipeline.Resolver) (*pipeline.Controller, error) {
	client, err := llm.New(ctx, a.cfg.LLM)
	if err != nil {
		return nil, err
	}

	noteLog := a.logger.Named("note")
	selector := note.NewSelector(a.cfg.Prompts.General, a.cfg.Prompts.Clinical, a.cfg.ClinicalCourses, noteLog)
	generator := note.NewGenerator(client, selector, note.Options{
		Model:            a.cfg.LLM.Model,
		Temperature:      a.cfg.LLM.Temperature,
		MaxTokens:        a.cfg.LLM.MaxTokens,
		RetryCount:       a.cfg.LLM.RetryCount,
		RetryDelay:       a.cfg.RetryDelay(),
		SystemPromptPath: a.cfg.Prompts.System,
	}, noteLog, func(_ int, elapsed time.Duration, err error) {
		a.metrics.RecordLLMAttempt(elapsed, err)
	})

	return pipeline.New(pipeline.Options{
		TranscriptDir: a.cfg.TranscriptDir,
		ProcessedDir:  a.cfg.ProcessedDir,
		Location:      a.loc,
	}, pipeline.Deps{
		Matcher:   index,
		Generator: generator,
		Archive:   vault.New(a.cfg.VaultPath, a.logger.Named("vault")),
		Resolver:  resolver,
		Converter: textconv.New(textconv.DefaultProfile, a.logger.Named("textconv")),
		Metrics:   a.metrics,
		Logger:    a.logger.Named("pipeline"),
	}), nil
}

// afterRun exports metrics and reports an abort by email.
func (a *app) afterRun(sum pipeline.Summary, runErr error) {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("metrics export failed", "err", err)
	}

	var abort *pipeline.AbortError
	if !errors.As(runErr, &abort) {
		return
	}
	sender := notify.NewEmailSender(a.cfg.Notify, a.logger.Named("notify"))
	_ = sender.SendAbort(notify.AbortReport{
		RunID:    sum.RunID,
		File:     abort.File,
		Stage:    string(abort.Stage),
		ExitCode: abort.Code,
		Err:      abort.Err,
		At:       time.Now().In(a.loc),
	})
}
