package vault

import "errors"

var (
	// ErrPersist wraps any failure writing a note or transcript.
	ErrPersist = errors.New("vault: persist failed")
	// ErrArchiveSource wraps failures moving a processed source transcript.
	ErrArchiveSource = errors.New("vault: archive source failed")
)
