package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelFatal Level = "FATAL"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

// ParseLevel maps a case-insensitive level name to a Level.
// An empty string yields LevelInfo.
func ParseLevel(s string) (Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return LevelInfo, nil
	}
	if s == "WARNING" {
		return LevelWarn, nil
	}
	l := Level(s)
	if _, ok := levelRank[l]; !ok {
		return LevelInfo, fmt.Errorf("log: unknown level %q", s)
	}
	return l, nil
}

// Options configures a Logger. It is applied once, in New.
type Options struct {
	// Level is the minimum level written. Zero value means INFO.
	Level Level

	// FilePath, if set, receives a copy of every line in addition to Output.
	// Parent directories are created as needed.
	FilePath string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Logger is a leveled key/value logger. It is constructed once by the
// entrypoint and handed to every component that needs it.
type Logger struct {
	out      *stdlog.Logger
	minLevel Level
	kv       []any
	closer   io.Closer
}

// New builds a Logger writing to opts.Output and, optionally, opts.FilePath.
func New(opts Options) (*Logger, error) {
	level := opts.Level
	if level == "" {
		level = LevelInfo
	}
	if _, ok := levelRank[level]; !ok {
		return nil, fmt.Errorf("log: unknown level %q", level)
	}

	var w io.Writer = os.Stderr
	if opts.Output != nil {
		w = opts.Output
	}

	var closer io.Closer
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("log: create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log: open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closer = f
	}

	return &Logger{
		out:      stdlog.New(w, "", 0),
		minLevel: level,
		closer:   closer,
	}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{out: stdlog.New(io.Discard, "", 0), minLevel: LevelFatal}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// With returns a child logger that appends kv to every line.
func (l *Logger) With(kv ...any) *Logger {
	if l == nil {
		return nil
	}
	child := *l
	child.kv = append(append([]any{}, l.kv...), kv...)
	child.closer = nil
	return &child
}

// Named tags every line of the returned logger with component=name.
func (l *Logger) Named(name string) *Logger {
	return l.With("component", name)
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.logWithLevel(LevelDebug, msg, kv...)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.logWithLevel(LevelInfo, msg, kv...)
}

func (l *Logger) Warn(msg string, kv ...any) {
	l.logWithLevel(LevelWarn, msg, kv...)
}

func (l *Logger) Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	l.logWithLevel(LevelError, msg, extended...)
}

// Fatal records an unrecoverable condition. It does not exit; the caller
// owns the process exit code.
func (l *Logger) Fatal(msg string, err error, kv ...any) {
	extended := append([]any{"err", err}, kv...)
	l.logWithLevel(LevelFatal, msg, extended...)
}

func (l *Logger) logWithLevel(level Level, msg string, kv ...any) {
	if l == nil || l.out == nil {
		return
	}
	if !l.enabled(level) {
		return
	}

	ts := time.Now().Format(time.RFC3339Nano)

	// Basic line format:
	// 2025-01-01T00:00:00Z [LEVEL] msg key=value ...
	line := ts + " [" + string(level) + "] " + msg

	if len(l.kv) > 0 {
		line += formatKVs(l.kv...)
	}
	if len(kv) > 0 {
		line += formatKVs(kv...)
	}

	l.out.Println(line)
}

func (l *Logger) enabled(level Level) bool {
	return levelRank[level] >= levelRank[l.minLevel]
}

func formatKVs(kv ...any) string {
	var b strings.Builder
	// Expect kv as pairs: key, value, key, value, ...
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(quoteIfNeeded(fmt.Sprint(kv[i+1])))
	}
	// If odd number of args, last one is ignored.
	return b.String()
}

// quoteIfNeeded keeps values containing spaces readable as a single token.
func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
