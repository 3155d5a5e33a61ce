package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestTimestampFromName(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")

	convey.Convey("Stamps are read from the prefix or anywhere in the name", t, func() {
		want := time.Date(2025, 9, 8, 14, 30, 0, 0, loc)

		got, ok := TimestampFromName("20250908-143000-lecture.txt", loc)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(got.Equal(want), convey.ShouldBeTrue)
		convey.So(got.Location(), convey.ShouldEqual, loc)

		got, ok = TimestampFromName("rec_20250908-143000.txt", loc)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(got.Equal(want), convey.ShouldBeTrue)

		_, ok = TimestampFromName("lecture.txt", loc)
		convey.So(ok, convey.ShouldBeFalse)

		_, ok = TimestampFromName("20251340-250000-bad.txt", loc)
		convey.So(ok, convey.ShouldBeFalse)
	})

	convey.Convey("The file time stands in when the name has no stamp", t, func() {
		path := filepath.Join(t.TempDir(), "x.txt")
		convey.So(os.WriteFile(path, nil, 0o644), convey.ShouldBeNil)
		mtime := time.Date(2025, 9, 8, 6, 30, 0, 0, time.UTC)
		convey.So(os.Chtimes(path, mtime, mtime), convey.ShouldBeNil)

		got, err := fileTime(path, loc)
		convey.So(err, convey.ShouldBeNil)
		convey.So(got.Equal(mtime), convey.ShouldBeTrue)
		convey.So(got.Hour(), convey.ShouldEqual, 14)

		_, err = fileTime(filepath.Join(t.TempDir(), "missing"), loc)
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestPromptResolver(t *testing.T) {
	convey.Convey("Answers are trimmed and blanks mean skip", t, func() {
		var out bytes.Buffer
		r := NewPromptResolver(strings.NewReader("  Anatomy 101 \n\n"), &out)

		course, ok := r.Resolve(context.Background(), "a.txt")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(course, convey.ShouldEqual, "Anatomy 101")

		_, ok = r.Resolve(context.Background(), "b.txt")
		convey.So(ok, convey.ShouldBeFalse)

		_, ok = r.Resolve(context.Background(), "c.txt")
		convey.So(ok, convey.ShouldBeFalse)
		convey.So(out.String(), convey.ShouldContainSubstring, "[c.txt]")
	})

	convey.Convey("NopResolver never answers", t, func() {
		_, ok := NopResolver{}.Resolve(context.Background(), "a.txt")
		convey.So(ok, convey.ShouldBeFalse)
	})
}
