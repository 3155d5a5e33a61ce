package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	appLog "lecnote/internal/log"
)

func touch(path string) {
	convey.So(os.MkdirAll(filepath.Dir(path), 0o755), convey.ShouldBeNil)
	convey.So(os.WriteFile(path, []byte("x"), 0o644), convey.ShouldBeNil)
}

func TestSanitize(t *testing.T) {
	convey.Convey("Unsafe characters and whitespace are cleaned", t, func() {
		convey.So(Sanitize(`  Cardio: A/B  "Q"?  `), convey.ShouldEqual, "Cardio A B Q")
		convey.So(Sanitize("a\t\nb"), convey.ShouldEqual, "a b")
		convey.So(Sanitize(`<>|*`), convey.ShouldEqual, "")
	})

	convey.Convey("Long names are cut to 120 characters", t, func() {
		long := strings.Repeat("心", 130)
		convey.So([]rune(Sanitize(long)), convey.ShouldHaveLength, 120)
	})
}

func TestNextSequence(t *testing.T) {
	convey.Convey("Given a vault", t, func() {
		s := New(t.TempDir(), appLog.Nop())

		convey.Convey("A missing course directory starts at 1", func() {
			n, err := s.NextSequence("Anatomy 101")
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 1)
			_, statErr := os.Stat(s.CourseDir("Anatomy 101"))
			convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)
		})

		convey.Convey("Transcript-named files are not counted", func() {
			dir := s.CourseDir("X")
			touch(filepath.Join(dir, "001-W01-Intro.md"))
			touch(filepath.Join(dir, "002-Heart.MD"))
			touch(filepath.Join(dir, "002-W01-X-Transcript.md"))
			touch(filepath.Join(dir, "009-W01-X-Transcript.md"))
			touch(filepath.Join(dir, "notes.md"))
			touch(filepath.Join(dir, "12-short.md"))
			touch(filepath.Join(dir, TranscriptsDir, "050-W01-X-Transcript.md"))

			n, err := s.NextSequence("X")
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 3)
		})
	})
}

func TestSave(t *testing.T) {
	convey.Convey("Given a vault", t, func() {
		s := New(t.TempDir(), appLog.Nop())

		convey.Convey("The transcript lands under Transcripts", func() {
			path, err := s.SaveTranscript("Anatomy 101", 1, 2, "hello")
			convey.So(err, convey.ShouldBeNil)
			convey.So(path, convey.ShouldEqual, filepath.Join(s.Root(), "Anatomy 101", "Transcripts", "001-W02-Anatomy 101-Transcript.md"))
			data, _ := os.ReadFile(path)
			convey.So(string(data), convey.ShouldEqual, "hello")
		})

		convey.Convey("The note is named after its topic", func() {
			md := "---\ntopic: \"Cardiac Cycle\"\ntags: [a]\n---\n# Ignored\nbody"
			path, err := s.SaveNote("Anatomy 101", 4, 2, md)
			convey.So(err, convey.ShouldBeNil)
			convey.So(filepath.Base(path), convey.ShouldEqual, "004-W02-Cardiac Cycle.md")
			data, _ := os.ReadFile(path)
			convey.So(string(data), convey.ShouldEqual, md)

			n, _ := s.NextSequence("Anatomy 101")
			convey.So(n, convey.ShouldEqual, 5)
		})

		convey.Convey("Week 0 drops the week segment", func() {
			path, err := s.SaveNote("Anatomy 101", 1, 0, "no heading")
			convey.So(err, convey.ShouldBeNil)
			convey.So(filepath.Base(path), convey.ShouldEqual, "001-Untitled.md")
		})

		convey.Convey("A blocked course directory is a persist error", func() {
			touch(filepath.Join(s.Root(), "Blocked"))
			_, err := s.SaveNote("Blocked", 1, 1, "# T")
			convey.So(errors.Is(err, ErrPersist), convey.ShouldBeTrue)
			_, err = s.SaveTranscript("Blocked", 1, 1, "t")
			convey.So(errors.Is(err, ErrPersist), convey.ShouldBeTrue)
		})
	})
}

func TestArchiveSource(t *testing.T) {
	convey.Convey("Given a processed transcript", t, func() {
		root := t.TempDir()
		src := filepath.Join(root, "in", "20250908-143000-lecture.txt")
		touch(src)

		dst, err := ArchiveSource(src, filepath.Join(root, "processed"))

		convey.So(err, convey.ShouldBeNil)
		convey.So(dst, convey.ShouldEqual, filepath.Join(root, "processed", "20250908-143000-lecture.txt"))
		_, statErr := os.Stat(src)
		convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)

		convey.Convey("A vanished source is an archive error", func() {
			_, err := ArchiveSource(src, filepath.Join(root, "processed"))
			convey.So(errors.Is(err, ErrArchiveSource), convey.ShouldBeTrue)
		})
	})
}
