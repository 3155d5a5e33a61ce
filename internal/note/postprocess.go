package note

import (
	"regexp"
	"strings"
)

// FlashcardHeading is the canonical heading of the flashcard section.
const FlashcardHeading = "## 🧠 Anki 卡片"

// HorizontalRule is the canonical thematic break.
const HorizontalRule = "---"

var (
	// Flashcard heading variants: optional emoji, English or Chinese naming.
	flashcardHeadingRe = regexp.MustCompile(`(?i)^\s*#{2,6}\s*(?:🧠\x{FE0F}?\s*)?(?:anki\s*(?:卡片|cards?|flashcards?)|flashcards?|闪卡|记忆卡片)\s*[:：]?\s*$`)

	// Any level-1 or level-2 heading closes the flashcard section.
	sectionEndRe = regexp.MustCompile(`^\s*#{1,2}\s+\S`)

	// Lines made only of three or more '*' or '_' markers.
	horizontalRuleRe = regexp.MustCompile(`^\s*(?:(?:\*\s*){3,}|(?:_\s*){3,})$`)

	// Redundant "one-sentence summary" sub-heading (body text is kept).
	summaryHeadingRe = regexp.MustCompile(`(?i)^\s*#{2,4}\s*\d*\.?\s*(?:one[- ]sentence summary|一句话总结)\s*[:：]?\s*$`)

	// {{cN::text}} or {cN::text}; the double form is tried first so an
	// already-canonical marker is matched whole.
	clozeRe = regexp.MustCompile(`\{\{c\d+::(.*?)\}\}|\{c\d+::(.*?)\}`)

	// Leading list bullets, possibly repeated ("- - text").
	bulletRe = regexp.MustCompile(`^\s*(?:[-*+•]\s+)+`)
)

// lineMode is the state of the post-processor.
type lineMode int

const (
	outsideSection lineMode = iota
	insideSection
)

// PostProcess deterministically normalizes model output. It is a two-mode
// line processor:
//
//   - everywhere: horizontal rules become "---" and the one-sentence
//     summary sub-heading line is dropped;
//   - outside the flashcard section: cloze markers are unwrapped to their
//     answer text;
//   - the flashcard heading is rewritten to FlashcardHeading and followed by
//     exactly one blank line;
//   - inside the section: list bullets are stripped and every cloze marker
//     becomes {{c1::text}}.
//
// PostProcess(PostProcess(s)) == PostProcess(s).
func PostProcess(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(strings.TrimSpace(content), "\n")

	p := &processor{out: make([]string, 0, len(lines)+1)}
	for _, line := range lines {
		p.feed(line)
	}
	p.flushHeadingGap()
	return strings.Join(p.out, "\n")
}

type processor struct {
	mode lineMode
	// pendingGap is set right after the flashcard heading until the first
	// non-blank line decides where the single blank line goes.
	pendingGap bool
	out        []string
}

func (p *processor) feed(line string) {
	if horizontalRuleRe.MatchString(line) {
		line = HorizontalRule
	}
	if summaryHeadingRe.MatchString(line) {
		return
	}

	if flashcardHeadingRe.MatchString(line) {
		p.flushHeadingGap()
		p.mode = insideSection
		p.out = append(p.out, FlashcardHeading)
		p.pendingGap = true
		return
	}

	if p.mode == insideSection && sectionEndRe.MatchString(line) {
		p.flushHeadingGap()
		p.mode = outsideSection
	}

	switch p.mode {
	case insideSection:
		p.feedInside(line)
	default:
		p.out = append(p.out, unwrapCloze(line))
	}
}

func (p *processor) feedInside(line string) {
	if p.pendingGap {
		if strings.TrimSpace(line) == "" {
			return
		}
		p.flushHeadingGap()
	}
	line = bulletRe.ReplaceAllString(line, "")
	p.out = append(p.out, canonicalCloze(line))
}

func (p *processor) flushHeadingGap() {
	if p.pendingGap {
		p.out = append(p.out, "")
		p.pendingGap = false
	}
}

// canonicalCloze rewrites every cloze marker to {{c1::text}}.
func canonicalCloze(line string) string {
	return clozeRe.ReplaceAllStringFunc(line, func(m string) string {
		return "{{c1::" + clozeText(m) + "}}"
	})
}

// unwrapCloze replaces cloze markers with their answer text, dropping any
// "::hint" suffix.
func unwrapCloze(line string) string {
	return clozeRe.ReplaceAllStringFunc(line, func(m string) string {
		text, _, _ := strings.Cut(clozeText(m), "::")
		return text
	})
}

func clozeText(m string) string {
	sub := clozeRe.FindStringSubmatch(m)
	if sub == nil {
		return m
	}
	if sub[1] != "" || strings.HasPrefix(m, "{{") {
		return sub[1]
	}
	return sub[2]
}
