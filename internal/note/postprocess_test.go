package note

import (
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

const rawModelOutput = "# Heart Physiology\r\n" +
	"\r\n" +
	"### 一句话总结\r\n" +
	"The heart pumps blood; {{c3::systole}} contracts.\r\n" +
	"\r\n" +
	"***\r\n" +
	"\r\n" +
	"## Anki Cards\r\n" +
	"- {c7::Systole} is contraction\r\n" +
	"* - The SA node sets {{c2::rhythm}}\r\n" +
	"\r\n" +
	"## Next\r\n" +
	"Some {c1::prose::hint}.\r\n"

func TestPostProcess(t *testing.T) {
	convey.Convey("Given raw model output", t, func() {
		out := PostProcess(rawModelOutput)
		lines := strings.Split(out, "\n")

		convey.Convey("Then the note is normalized in both modes", func() {
			convey.So(lines, convey.ShouldResemble, []string{
				"# Heart Physiology",
				"",
				"The heart pumps blood; systole contracts.",
				"",
				"---",
				"",
				FlashcardHeading,
				"",
				"{{c1::Systole}} is contraction",
				"The SA node sets {{c1::rhythm}}",
				"",
				"## Next",
				"Some prose.",
			})
		})

		convey.Convey("Then a second pass changes nothing", func() {
			convey.So(PostProcess(out), convey.ShouldEqual, out)
		})
	})

	convey.Convey("Heading variants are canonicalized", t, func() {
		for _, h := range []string{
			"## 🧠 Anki 卡片",
			"## Anki卡片",
			"### anki cards",
			"## 🧠 ANKI CARD",
			"## Flashcards:",
			"## 闪卡",
		} {
			out := PostProcess(h + "\n{c2::a}")
			convey.So(out, convey.ShouldEqual, FlashcardHeading+"\n\n{{c1::a}}")
		}
	})

	convey.Convey("Extra blank lines after the heading collapse to one", t, func() {
		out := PostProcess("## Anki Cards\n\n\n\n- {{c1::x}}")
		convey.So(out, convey.ShouldEqual, FlashcardHeading+"\n\n{{c1::x}}")
	})

	convey.Convey("A heading at the end still gets its blank line", t, func() {
		convey.So(PostProcess("text\n## Anki 卡片"), convey.ShouldEqual, "text\n"+FlashcardHeading+"\n")
	})

	convey.Convey("No cloze marker survives outside the section", t, func() {
		out := PostProcess("{{c1::a}} {c9::b::hint} {{c12::c::d}}\n## 闪卡\n{c3::z}\n# Appendix\n{{c1::y}}")
		convey.So(out, convey.ShouldEqual, "a b c\n"+FlashcardHeading+"\n\n{{c1::z}}\n# Appendix\ny")
		convey.So(PostProcess(out), convey.ShouldEqual, out)
	})

	convey.Convey("Sub-headings do not close the section", t, func() {
		out := PostProcess("## Anki Cards\n### Cardiac\n+ {c2::x}")
		convey.So(out, convey.ShouldEqual, FlashcardHeading+"\n\n### Cardiac\n{{c1::x}}")
	})

	convey.Convey("Horizontal rule variants become ---", t, func() {
		convey.So(PostProcess("a\n* * *\nb\n___\nc"), convey.ShouldEqual, "a\n---\nb\n---\nc")
	})
}
