// Package pipeline turns the transcripts waiting in the input directory
// into archived notes, one file at a time.
//
// Per file: timestamp -> course -> text -> sequence -> note -> persist ->
// archive source. A file ends Done, Skipped (left in place for follow-up)
// or Aborted, which stops the batch with an *AbortError carrying the
// process exit code.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	appLog "lecnote/internal/log"
	"lecnote/internal/metrics"
	"lecnote/internal/model"
	"lecnote/internal/note"
	"lecnote/internal/vault"
)

// Outcome is the terminal state of one transcript.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeAborted Outcome = "aborted"
)

// Matcher resolves a recording time to a course. *ics.Index implements it.
type Matcher interface {
	Match(t time.Time) (model.CourseMatch, bool)
	WeekNum(t time.Time) int
}

// Generator produces a note for a transcript. *note.Generator implements it.
type Generator interface {
	Generate(ctx context.Context, f note.Fields) (note.Result, error)
}

// Archive persists notes and transcripts. *vault.Store implements it.
type Archive interface {
	NextSequence(course string) (int, error)
	SaveTranscript(course string, seq, week int, text string) (string, error)
	SaveNote(course string, seq, week int, markdown string) (string, error)
}

// TextConverter normalizes raw transcript text. It must never fail.
type TextConverter interface {
	ToSimplified(s string) string
}

// Options configures a Controller.
type Options struct {
	TranscriptDir string
	ProcessedDir  string
	Location      *time.Location
}

// Deps are the collaborators of a Controller. Resolver, Converter and
// Metrics may be nil.
type Deps struct {
	Matcher   Matcher
	Generator Generator
	Archive   Archive
	Resolver  Resolver
	Converter TextConverter
	Metrics   *metrics.Manager
	Logger    *appLog.Logger
}

// FileResult describes what happened to one transcript.
type FileResult struct {
	File           string            `json:"file"`
	Outcome        Outcome           `json:"outcome"`
	Reason         string            `json:"reason,omitempty"`
	Match          model.CourseMatch `json:"match"`
	Sequence       int               `json:"sequence,omitempty"`
	Template       string            `json:"template,omitempty"`
	Attempts       int               `json:"attempts,omitempty"`
	NotePath       string            `json:"note_path,omitempty"`
	TranscriptPath string            `json:"transcript_path,omitempty"`
}

// Summary is the result of one batch.
type Summary struct {
	RunID    string       `json:"run_id"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Files    []FileResult `json:"files"`
	Done     int          `json:"done"`
	Skipped  int          `json:"skipped"`
	Aborted  *AbortError  `json:"-"`
}

// ExitCode maps the summary to a process exit code.
func (s Summary) ExitCode() int {
	if s.Aborted != nil {
		return s.Aborted.Code
	}
	return ExitOK
}

// Controller runs batches. Runs are serialized: sequence numbers are
// derived from directory contents without locking, so two concurrent runs
// could allocate the same number.
type Controller struct {
	opts Options
	deps Deps

	mu      sync.Mutex
	statMu  sync.RWMutex
	last    Summary
	hasLast bool
}

// New creates a Controller.
func New(opts Options, deps Deps) *Controller {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if deps.Resolver == nil {
		deps.Resolver = NopResolver{}
	}
	return &Controller{opts: opts, deps: deps}
}

// LastSummary returns the summary of the most recent finished batch.
func (c *Controller) LastSummary() (Summary, bool) {
	c.statMu.RLock()
	defer c.statMu.RUnlock()
	return c.last, c.hasLast
}

// Pending lists the transcripts waiting in the input directory, sorted by
// file name.
func (c *Controller) Pending() ([]string, error) {
	if err := os.MkdirAll(c.opts.TranscriptDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create transcript dir: %w", err)
	}
	matches, err := filepath.Glob(filepath.Join(c.opts.TranscriptDir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: list transcripts: %w", err)
	}
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run processes every pending transcript. It returns an *AbortError when a
// file aborts; the summary is returned in every case.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := Summary{RunID: uuid.NewString(), Started: time.Now()}
	logger := c.deps.Logger.With("run", sum.RunID)
	defer func() {
		sum.Finished = time.Now()
		c.deps.Metrics.RecordRun(sum.Finished, sum.ExitCode())
		c.statMu.Lock()
		c.last, c.hasLast = sum, true
		c.statMu.Unlock()
	}()

	files, err := c.Pending()
	if err != nil {
		return sum, err
	}
	if len(files) == 0 {
		logger.Info("found 0 new transcripts, nothing to do")
		return sum, nil
	}
	logger.Info("starting batch", "transcripts", len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := c.processFile(ctx, path, logger)
		sum.Files = append(sum.Files, res)
		c.deps.Metrics.RecordFile(string(res.Outcome))

		var abort *AbortError
		if errors.As(err, &abort) {
			sum.Aborted = abort
			logger.Fatal("batch aborted, source kept for retry", abort.Err, "file", res.File, "stage", abort.Stage, "exit_code", abort.Code)
			return sum, abort
		}
		switch res.Outcome {
		case OutcomeDone:
			sum.Done++
		case OutcomeSkipped:
			sum.Skipped++
		}
	}

	logger.Info("all tasks completed", "done", sum.Done, "skipped", sum.Skipped)
	return sum, nil
}

func (c *Controller) skip(res FileResult, logger *appLog.Logger, reason string, err error) (FileResult, error) {
	res.Outcome = OutcomeSkipped
	res.Reason = reason
	logger.Error("skipping transcript", err, "reason", reason)
	return res, nil
}

func (c *Controller) abort(res FileResult, code int, stage Stage, err error) (FileResult, error) {
	res.Outcome = OutcomeAborted
	res.Reason = err.Error()
	return res, &AbortError{Code: code, Stage: stage, File: res.File, Err: err}
}

// processFile runs the state machine for one transcript. The returned
// error is non-nil only for *AbortError.
func (c *Controller) processFile(ctx context.Context, path string, logger *appLog.Logger) (FileResult, error) {
	name := filepath.Base(path)
	res := FileResult{File: name}
	logger = logger.With("file", name)
	logger.Info(">>> processing")
	defer logger.Info("<<< finished")

	ts, ok := TimestampFromName(name, c.opts.Location)
	if !ok {
		t, err := fileTime(path, c.opts.Location)
		if err != nil {
			return c.skip(res, logger, "cannot determine timestamp", err)
		}
		logger.Warn("timestamp not found in filename, using file time", "time", t.Format(time.RFC3339))
		ts = t
	}

	match, ok := c.deps.Matcher.Match(ts)
	if !ok {
		course, answered := c.deps.Resolver.Resolve(ctx, name)
		if !answered {
			return c.skip(res, logger, "course not matched", fmt.Errorf("no calendar event within tolerance of %s", ts.Format(time.RFC3339)))
		}
		match = model.CourseMatch{CourseName: course, WeekNum: c.deps.Matcher.WeekNum(ts)}
		logger.Info("course supplied by operator", "course", course, "week", match.WeekNum)
	}
	res.Match = match

	raw, err := os.ReadFile(path)
	if err != nil {
		return c.skip(res, logger, "read transcript failed", err)
	}
	if !utf8.Valid(raw) {
		return c.skip(res, logger, "read transcript failed", errors.New("transcript is not valid UTF-8"))
	}
	text := string(raw)
	if c.deps.Converter != nil {
		text = c.deps.Converter.ToSimplified(text)
	}

	seq, err := c.deps.Archive.NextSequence(match.CourseName)
	if err != nil {
		return c.abort(res, ExitPersist, StagePersist, err)
	}
	res.Sequence = seq
	meta := model.RenderMetadata{
		Sequence:           seq,
		Date:               ts.Format("2006-01-02"),
		TranscriptFilename: vault.TranscriptFilename(seq, match.WeekNum, match.CourseName),
	}
	logger.Debug("render metadata", "seq", seq, "date", meta.Date, "transcript", meta.TranscriptFilename)

	gen, err := c.deps.Generator.Generate(ctx, note.NewFields(match, meta, text))
	res.Template = gen.Template
	res.Attempts = gen.Attempts
	if err != nil {
		return c.abort(res, ExitGeneration, StageGenerate, err)
	}

	if res.TranscriptPath, err = c.deps.Archive.SaveTranscript(match.CourseName, seq, match.WeekNum, text); err != nil {
		return c.abort(res, ExitPersist, StagePersist, err)
	}
	if res.NotePath, err = c.deps.Archive.SaveNote(match.CourseName, seq, match.WeekNum, gen.Markdown); err != nil {
		return c.abort(res, ExitPersist, StagePersist, err)
	}
	logger.Info("transcript and note saved", "course", match.CourseName, "week", match.WeekNum, "note", res.NotePath)

	if _, err := vault.ArchiveSource(path, c.opts.ProcessedDir); err != nil {
		return c.abort(res, ExitArchive, StageArchive, err)
	}
	logger.Info("archived source file", "dir", c.opts.ProcessedDir)

	res.Outcome = OutcomeDone
	return res, nil
}
