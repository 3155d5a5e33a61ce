package pipeline

import "fmt"

// Process exit codes.
const (
	ExitOK         = 0
	ExitStartup    = 1
	ExitGeneration = 2
	ExitPersist    = 3
	ExitArchive    = 4
)

// Stage names the step a batch aborted in.
type Stage string

const (
	StageGenerate Stage = "generate"
	StagePersist  Stage = "persist"
	StageArchive  Stage = "archive"
)

// AbortError stops the whole batch. The source transcript stays in the
// input directory so the next run retries it.
type AbortError struct {
	Code  int
	Stage Stage
	File  string
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("pipeline: %s failed for %s (exit %d): %v", e.Stage, e.File, e.Code, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }
