// Package vault files transcripts and notes into per-course directories of
// an Obsidian vault.
//
// Layout:
//
//	{root}/{Course}/{seq:03d}-W{week:02d}-{topic}.md
//	{root}/{Course}/Transcripts/{seq:03d}-W{week:02d}-{Course}-Transcript.md
//
// Sequence numbers are derived from the note files on every call; there is
// no counter state. Concurrent runs against the same course directory can
// allocate the same number and must be serialized by the caller.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"lecnote/internal/fsutil"
	appLog "lecnote/internal/log"
)

const (
	// TranscriptsDir is the per-course subdirectory for transcript copies.
	TranscriptsDir = "Transcripts"
	// DefaultCourse names the directory used for an empty course name.
	DefaultCourse = "Course"

	maxNameRunes = 120
	notePerm     = 0o644
	dirPerm      = 0o755
)

var (
	unsafeChars  = regexp.MustCompile(`[\\/:*?"<>|]`)
	spaceRun     = regexp.MustCompile(`\s+`)
	noteSequence = regexp.MustCompile(`(?i)^(\d{3})-.*\.md$`)
)

// Sanitize makes name safe as a single path element: path-unsafe
// characters become spaces, whitespace runs collapse, and the result is
// truncated to 120 runes.
func Sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(name, " ")
	name = strings.TrimSpace(spaceRun.ReplaceAllString(name, " "))
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxNameRunes]))
	}
	return name
}

func courseDirName(course string) string {
	if name := Sanitize(course); name != "" {
		return name
	}
	return DefaultCourse
}

// TranscriptFilename is the archived transcript name for a course.
func TranscriptFilename(seq, week int, course string) string {
	return fmt.Sprintf("%03d-W%02d-%s-Transcript.md", seq, week, courseDirName(course))
}

// NoteFilename is the note name; the week segment is omitted for week 0.
func NoteFilename(seq, week int, topic string) string {
	if week > 0 {
		return fmt.Sprintf("%03d-W%02d-%s.md", seq, week, topic)
	}
	return fmt.Sprintf("%03d-%s.md", seq, topic)
}

// Store is the archive rooted at a vault directory.
type Store struct {
	root   string
	logger *appLog.Logger
}

// New returns a Store rooted at root. Nothing is created until a write.
func New(root string, logger *appLog.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Root returns the vault root.
func (s *Store) Root() string { return s.root }

// CourseDir is where notes for course live.
func (s *Store) CourseDir(course string) string {
	return filepath.Join(s.root, courseDirName(course))
}

// TranscriptDir is where transcript copies for course live.
func (s *Store) TranscriptDir(course string) string {
	return filepath.Join(s.CourseDir(course), TranscriptsDir)
}

// NextSequence scans the course note directory (not Transcripts/) and
// returns max(existing)+1, or 1 when the directory is empty or missing.
// Files whose name contains "Transcript" are ignored.
func (s *Store) NextSequence(course string) (int, error) {
	entries, err := os.ReadDir(s.CourseDir(course))
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("vault: scan %s: %w", s.CourseDir(course), err)
	}

	maxSeq := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		m := noteSequence.FindStringSubmatch(name)
		if m == nil || strings.Contains(name, "Transcript") {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq + 1, nil
}

// SaveTranscript writes the transcript copy directly (not atomically) and
// returns its path.
func (s *Store) SaveTranscript(course string, seq, week int, text string) (string, error) {
	dir := s.TranscriptDir(course)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrPersist, dir, err)
	}
	path := filepath.Join(dir, TranscriptFilename(seq, week, course))
	if err := os.WriteFile(path, []byte(text), notePerm); err != nil {
		return "", fmt.Errorf("%w: write transcript: %w", ErrPersist, err)
	}
	s.logger.Debug("transcript saved", "path", path)
	return path, nil
}

// SaveNote names the note after its topic and writes it atomically: the
// final path holds either the previous file or the complete new one.
func (s *Store) SaveNote(course string, seq, week int, markdown string) (string, error) {
	dir := s.CourseDir(course)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrPersist, dir, err)
	}

	topic, source := ParseTopic(markdown)
	switch source {
	case TopicFromHeading:
		s.logger.Warn("yaml topic not found, using first heading", "topic", topic)
	case TopicUntitled:
		s.logger.Error("could not determine topic from note", errNoTopic, "fallback", topic, "course", course, "seq", seq)
	}

	path := filepath.Join(dir, NoteFilename(seq, week, topic))
	if err := fsutil.WriteFileAtomic(path, []byte(markdown), notePerm); err != nil {
		return "", fmt.Errorf("%w: write note: %w", ErrPersist, err)
	}
	s.logger.Debug("note saved", "path", path, "topic_source", source)
	return path, nil
}
