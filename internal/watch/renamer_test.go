package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	appLog "lecnote/internal/log"
)

func TestNames(t *testing.T) {
	Convey("Audio detection and stamp prefixes", t, func() {
		So(IsAudio("a.MP3"), ShouldBeTrue)
		So(IsAudio("a.m4b"), ShouldBeTrue)
		So(IsAudio("a.txt"), ShouldBeFalse)
		So(HasStampPrefix("20250908-143000-a.mp3"), ShouldBeTrue)
		So(HasStampPrefix("20250908-1430-a.mp3"), ShouldBeFalse)
	})

	Convey("UniquePath appends -N before the extension", t, func() {
		dir := t.TempDir()
		So(UniquePath(dir, "a.mp3"), ShouldEqual, filepath.Join(dir, "a.mp3"))
		So(os.WriteFile(filepath.Join(dir, "a.mp3"), nil, 0o644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dir, "a-1.mp3"), nil, 0o644), ShouldBeNil)
		So(UniquePath(dir, "a.mp3"), ShouldEqual, filepath.Join(dir, "a-2.mp3"))
	})
}

func TestHandle(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	now := time.Date(2025, 9, 8, 6, 30, 0, 0, time.UTC)

	Convey("Given a renamer with a fixed clock", t, func() {
		dir := t.TempDir()
		r := NewRenamer(Options{
			Dir:          dir,
			Location:     loc,
			Polls:        3,
			PollInterval: time.Millisecond,
			Now:          func() time.Time { return now },
		}, appLog.Nop())

		Convey("A new recording gets a local-time stamp", func() {
			src := filepath.Join(dir, "lecture.m4a")
			So(os.WriteFile(src, []byte("audio"), 0o644), ShouldBeNil)

			got, renamed, err := r.Handle(context.Background(), src)
			So(err, ShouldBeNil)
			So(renamed, ShouldBeTrue)
			So(got, ShouldEqual, filepath.Join(dir, "20250908-143000-lecture.m4a"))

			Convey("A collision appends -1", func() {
				src2 := filepath.Join(dir, "lecture.m4a")
				So(os.WriteFile(src2, []byte("audio"), 0o644), ShouldBeNil)
				got, _, err := r.Handle(context.Background(), src2)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, filepath.Join(dir, "20250908-143000-lecture-1.m4a"))
			})
		})

		Convey("Stamped and non-audio files are untouched", func() {
			stamped := filepath.Join(dir, "20250101-000000-x.mp3")
			So(os.WriteFile(stamped, []byte("a"), 0o644), ShouldBeNil)
			_, renamed, err := r.Handle(context.Background(), stamped)
			So(err, ShouldBeNil)
			So(renamed, ShouldBeFalse)

			_, renamed, _ = r.Handle(context.Background(), filepath.Join(dir, "notes.txt"))
			So(renamed, ShouldBeFalse)
		})

		Convey("A vanished file is an error", func() {
			_, _, err := r.Handle(context.Background(), filepath.Join(dir, "gone.mp3"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running watcher", t, func() {
		dir := t.TempDir()
		r := NewRenamer(Options{Dir: dir, Polls: 5, PollInterval: 10 * time.Millisecond}, appLog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- r.Run(ctx) }()
		// Give the watcher time to register.
		time.Sleep(100 * time.Millisecond)

		So(os.WriteFile(filepath.Join(dir, "new.wav"), []byte("pcm"), 0o644), ShouldBeNil)

		var renamed []string
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			renamed, _ = filepath.Glob(filepath.Join(dir, "*-new.wav"))
			if len(renamed) == 1 {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		cancel()

		So(renamed, ShouldHaveLength, 1)
		So(HasStampPrefix(filepath.Base(renamed[0])), ShouldBeTrue)
		So(<-done, ShouldBeNil)
	})
}
