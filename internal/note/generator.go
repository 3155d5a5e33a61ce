// Package note turns a transcript into a study note: template selection,
// prompt rendering, model calls with retry and output normalization.
package note

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"lecnote/internal/llm"
	appLog "lecnote/internal/log"
)

// DefaultSystemPrompt is used when the system prompt file cannot be read.
const DefaultSystemPrompt = "You are a helpful assistant."

// Options controls a Generator.
type Options struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	RetryCount       int
	RetryDelay       time.Duration
	SystemPromptPath string
}

// Result is a generated, post-processed note.
type Result struct {
	Markdown string
	Template string
	// Degraded is true when the template could not be formatted and the
	// metadata block fallback was used.
	Degraded bool
	Attempts int
}

// AttemptObserver is notified after each model call. err is nil on success.
type AttemptObserver func(attempt int, elapsed time.Duration, err error)

// Generator produces notes with an llm.Client.
type Generator struct {
	client   llm.Client
	selector *Selector
	opts     Options
	logger   *appLog.Logger
	observe  AttemptObserver

	readFile func(string) ([]byte, error)
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewGenerator wires a Generator. observe may be nil.
func NewGenerator(client llm.Client, selector *Selector, opts Options, logger *appLog.Logger, observe AttemptObserver) *Generator {
	if opts.RetryCount < 1 {
		opts.RetryCount = 1
	}
	return &Generator{
		client:   client,
		selector: selector,
		opts:     opts,
		logger:   logger,
		observe:  observe,
		readFile: os.ReadFile,
		sleep:    sleepCtx,
	}
}

// systemPrompt is re-read on every call so edits apply without a restart.
func (g *Generator) systemPrompt() string {
	if g.opts.SystemPromptPath == "" {
		return DefaultSystemPrompt
	}
	data, err := g.readFile(g.opts.SystemPromptPath)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		g.logger.Warn("system prompt unavailable, using default", "path", g.opts.SystemPromptPath, "err", err)
		return DefaultSystemPrompt
	}
	return string(data)
}

// Generate selects a template for f.CourseName, renders it and asks the
// model for a note, retrying on errors and empty answers. After
// RetryCount failed attempts it returns an error wrapping
// ErrGenerationFailed and the last cause.
func (g *Generator) Generate(ctx context.Context, f Fields) (Result, error) {
	tmpl := g.selector.Select(f.CourseName)
	prompt, degraded := Render(tmpl.Content, f)
	if degraded {
		g.logger.Warn("template formatting failed, appended metadata block", "template", tmpl.Name, "path", tmpl.Path)
	}
	g.logger.Info("generating note", "course", f.CourseName, "week", f.WeekNum, "template", tmpl.Name, "model", g.opts.Model)

	req := llm.Request{
		Model:       g.opts.Model,
		System:      g.systemPrompt(),
		User:        prompt,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= g.opts.RetryCount; attempt++ {
		start := time.Now()
		out, err := g.client.Complete(ctx, req)
		if err == nil && strings.TrimSpace(out) == "" {
			err = llm.ErrEmptyResponse
		}
		if g.observe != nil {
			g.observe(attempt, time.Since(start), err)
		}
		if err == nil {
			return Result{
				Markdown: PostProcess(out),
				Template: tmpl.Name,
				Degraded: degraded,
				Attempts: attempt,
			}, nil
		}

		lastErr = err
		g.logger.Warn("llm attempt failed", "attempt", attempt, "of", g.opts.RetryCount, "err", err)
		if ctx.Err() != nil {
			break
		}
		if attempt < g.opts.RetryCount {
			if err := g.sleep(ctx, g.opts.RetryDelay); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}
	}
	return Result{Template: tmpl.Name}, fmt.Errorf("%w after %d attempt(s): %w", ErrGenerationFailed, g.opts.RetryCount, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
