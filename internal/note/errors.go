package note

import "errors"

// ErrGenerationFailed is returned when every attempt to obtain a note from
// the model failed. Callers must treat it as fatal for the batch.
var ErrGenerationFailed = errors.New("note: generation failed")
