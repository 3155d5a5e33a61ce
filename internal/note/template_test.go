package note

import (
	"errors"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	appLog "lecnote/internal/log"
	"lecnote/internal/model"
)

func TestIsClinical(t *testing.T) {
	convey.Convey("Clinical classification is literal containment", t, func() {
		clinical := []string{"Internal Medicine", "Surgery"}

		convey.So(IsClinical("Surgery", clinical), convey.ShouldBeTrue)
		convey.So(IsClinical("General Surgery II", clinical), convey.ShouldBeTrue)
		convey.So(IsClinical("Medicine", clinical), convey.ShouldBeTrue)
		convey.So(IsClinical("surgery", clinical), convey.ShouldBeFalse)
		convey.So(IsClinical("Anatomy 101", clinical), convey.ShouldBeFalse)
		convey.So(IsClinical("Anatomy 101", nil), convey.ShouldBeFalse)
	})
}

func stubSelector(files map[string]string) *Selector {
	s := NewSelector("general.txt", "clinical.txt", []string{"Surgery"}, appLog.Nop())
	s.readFile = func(path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, errors.New("not found")
		}
		return []byte(content), nil
	}
	return s
}

func TestSelector(t *testing.T) {
	convey.Convey("Given both templates on disk", t, func() {
		s := stubSelector(map[string]string{"general.txt": "G", "clinical.txt": "C"})

		convey.So(s.Select("Anatomy").Name, convey.ShouldEqual, TemplateGeneral)
		convey.So(s.Select("Anatomy").Content, convey.ShouldEqual, "G")
		convey.So(s.Select("Surgery").Name, convey.ShouldEqual, TemplateClinical)
		convey.So(s.Select("Surgery").Content, convey.ShouldEqual, "C")
	})

	convey.Convey("Given a missing clinical template", t, func() {
		s := stubSelector(map[string]string{"general.txt": "G", "clinical.txt": "  \n"})
		got := s.Select("Surgery")

		convey.So(got.Name, convey.ShouldEqual, TemplateGeneralFallback)
		convey.So(got.Content, convey.ShouldEqual, "G")
	})

	convey.Convey("Given no templates at all", t, func() {
		s := stubSelector(nil)

		convey.So(s.Select("Surgery").Name, convey.ShouldEqual, TemplateBuiltinMinimal)
		convey.So(s.Select("Anatomy").Content, convey.ShouldEqual, BuiltinMinimalPrompt)
	})
}

func TestRender(t *testing.T) {
	f := NewFields(
		model.CourseMatch{CourseName: "Anatomy 101", WeekNum: 2},
		model.RenderMetadata{Sequence: 1, Date: "2025-09-08", TranscriptFilename: "001-W02-Anatomy 101-Transcript.md"},
		"hello",
	)

	convey.Convey("Placeholders and escaped braces are rendered", t, func() {
		out, degraded := Render("{course_name} W{week_num} #{sequence:03d} {date}\n{{keep}}\n[{transcript_filename}]\n{transcript_text}", f)

		convey.So(degraded, convey.ShouldBeFalse)
		convey.So(out, convey.ShouldEqual, "Anatomy 101 W2 #001 2025-09-08\n{keep}\n[001-W02-Anatomy 101-Transcript.md]\nhello")
	})

	convey.Convey("An unknown placeholder degrades to the metadata block", t, func() {
		tmpl := "Summarize {course} please"
		out, degraded := Render(tmpl, f)

		convey.So(degraded, convey.ShouldBeTrue)
		convey.So(strings.HasPrefix(out, tmpl+"\n\n[METADATA_FOR_CONTEXT_ONLY]\n"), convey.ShouldBeTrue)
		convey.So(out, convey.ShouldContainSubstring, "Course Name: Anatomy 101\n")
		convey.So(out, convey.ShouldContainSubstring, "Week: 2\n")
		convey.So(out, convey.ShouldEndWith, "[TRANSCRIPT]\nhello\n")
	})

	convey.Convey("Stray braces and bad specs degrade too", t, func() {
		for _, tmpl := range []string{`{"topic": 1}`, "a } b", "open {date", "{course_name:03d}"} {
			_, degraded := Render(tmpl, f)
			convey.So(degraded, convey.ShouldBeTrue)
		}
	})

	convey.Convey("A template without a transcript placeholder gets the transcript appended", t, func() {
		out, degraded := Render("Notes for {course_name}", f)

		convey.So(degraded, convey.ShouldBeFalse)
		convey.So(strings.HasPrefix(out, "Notes for Anatomy 101\n\n[METADATA_FOR_CONTEXT_ONLY]\n"), convey.ShouldBeTrue)
		convey.So(out, convey.ShouldEndWith, "[TRANSCRIPT]\nhello\n")

		out, _ = Render("literal {{transcript_text}} only", f)
		convey.So(out, convey.ShouldEndWith, "[TRANSCRIPT]\nhello\n")
	})
}

