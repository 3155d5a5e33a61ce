// Package watch stamps new audio recordings with their arrival time so the
// transcripts derived from them carry a YYYYMMDD-HHMMSS- prefix.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "lecnote/internal/log"
)

// AudioExtensions are the file types the watcher renames.
var AudioExtensions = []string{".mp3", ".m4a", ".wav", ".aac", ".flac", ".ogg", ".m4b"}

var stampPrefix = regexp.MustCompile(`^\d{8}-\d{6}-`)

const (
	defaultPolls        = 20
	defaultPollInterval = 500 * time.Millisecond
	stampLayout         = "20060102-150405"
)

// IsAudio reports whether name has one of AudioExtensions.
func IsAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AudioExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// HasStampPrefix reports whether name already starts with YYYYMMDD-HHMMSS-.
func HasStampPrefix(name string) bool {
	return stampPrefix.MatchString(name)
}

// UniquePath returns dir/base, or dir/stem-N.ext for the smallest N >= 1
// that does not exist yet.
func UniquePath(dir, base string) string {
	target := filepath.Join(dir, base)
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return target
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, stem+"-"+strconv.Itoa(i)+ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// Options configures a Renamer.
type Options struct {
	Dir      string
	Location *time.Location
	// Polls and PollInterval bound the wait for a file's size to settle.
	Polls        int
	PollInterval time.Duration
	Now          func() time.Time
}

// Renamer watches a directory and renames new audio files.
type Renamer struct {
	opts   Options
	logger *appLog.Logger
}

// NewRenamer fills defaults and returns a Renamer.
func NewRenamer(opts Options, logger *appLog.Logger) *Renamer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Polls <= 0 {
		opts.Polls = defaultPolls
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renamer{opts: opts, logger: logger}
}

// waitStable polls until two consecutive non-zero sizes agree or the poll
// budget runs out. It never fails; a file that keeps growing is renamed
// anyway.
func (r *Renamer) waitStable(ctx context.Context, path string) {
	last := int64(-1)
	for i := 0; i < r.opts.Polls; i++ {
		size := int64(-1)
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		if size == last && size > 0 {
			return
		}
		last = size
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.opts.PollInterval):
		}
	}
}

// Handle stamps one file. It returns the final path and whether a rename
// happened. Files that are not audio or are already stamped are left alone.
func (r *Renamer) Handle(ctx context.Context, path string) (string, bool, error) {
	name := filepath.Base(path)
	if !IsAudio(name) {
		return path, false, nil
	}
	r.waitStable(ctx, path)
	if HasStampPrefix(name) {
		return path, false, nil
	}

	stamp := r.opts.Now().In(r.opts.Location).Format(stampLayout)
	target := UniquePath(filepath.Dir(path), stamp+"-"+name)
	if err := os.Rename(path, target); err != nil {
		return path, false, fmt.Errorf("watch: rename %s: %w", name, err)
	}
	r.logger.Info("renamed audio file", "from", name, "to", filepath.Base(target))
	return target, true, nil
}

// Run watches the directory until ctx is cancelled.
func (r *Renamer) Run(ctx context.Context) error {
	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("watch: create %s: %w", r.opts.Dir, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: new watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(r.opts.Dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", r.opts.Dir, err)
	}
	r.logger.Info("audio file monitor started", "dir", r.opts.Dir)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping monitor")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !IsAudio(ev.Name) {
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
				continue
			}
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				if _, _, err := r.Handle(ctx, path); err != nil {
					r.logger.Error("failed to rename audio file", err, "file", filepath.Base(path))
				}
			}(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "err", err)
		}
	}
}
