package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestWriteAtomic(t *testing.T) {
	convey.Convey("Given an existing file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "note.md")
		convey.So(os.WriteFile(path, []byte("old complete"), 0o644), convey.ShouldBeNil)

		convey.Convey("When a write fails part-way through", func() {
			err := WriteAtomic(path, 0o644, func(w io.Writer) error {
				_, _ = w.Write([]byte("new partial"))
				return errors.New("interrupted")
			})

			convey.Convey("Then the old content is intact and no temp file remains", func() {
				convey.So(err, convey.ShouldNotBeNil)
				data, rerr := os.ReadFile(path)
				convey.So(rerr, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual, "old complete")

				entries, _ := os.ReadDir(dir)
				convey.So(len(entries), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a write succeeds", func() {
			err := WriteFileAtomic(path, []byte("new complete"), 0o600)

			convey.Convey("Then the new content replaces the old with the requested mode", func() {
				convey.So(err, convey.ShouldBeNil)
				data, _ := os.ReadFile(path)
				convey.So(string(data), convey.ShouldEqual, "new complete")
				info, _ := os.Stat(path)
				convey.So(info.Mode().Perm(), convey.ShouldEqual, os.FileMode(0o600))
			})
		})
	})

	convey.Convey("Writing into a missing directory fails without creating the target", t, func() {
		path := filepath.Join(t.TempDir(), "missing", "x.md")
		err := WriteFileAtomic(path, []byte("x"), 0o644)
		convey.So(err, convey.ShouldNotBeNil)
		_, serr := os.Stat(path)
		convey.So(os.IsNotExist(serr), convey.ShouldBeTrue)
	})
}
