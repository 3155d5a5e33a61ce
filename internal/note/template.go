package note

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	appLog "lecnote/internal/log"
	"lecnote/internal/model"
)

// Template identities, reported for diagnostics.
const (
	TemplateClinical        = "clinical"
	TemplateGeneral         = "general"
	TemplateGeneralFallback = "general(fallback)"
	TemplateBuiltinMinimal  = "builtin-minimal"
)

// BuiltinMinimalPrompt is the last-resort instruction used when no template
// file can be read.
const BuiltinMinimalPrompt = "你是资深教学助理，请将给定转录整理为结构化 Obsidian 笔记。"

// Template is the selected prompt template.
type Template struct {
	Name    string
	Path    string
	Content string
}

// IsClinical reports whether course matches an entry of clinical exactly,
// or either string contains the other (case-sensitive).
func IsClinical(course string, clinical []string) bool {
	name := strings.TrimSpace(course)
	for _, c := range clinical {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if c == name || strings.Contains(name, c) || strings.Contains(c, name) {
			return true
		}
	}
	return false
}

// candidate is one tier of the template fallback chain.
type candidate struct {
	name string
	path string
	load func() (string, error)
}

// Selector picks the prompt template for a course by walking an ordered
// list of candidates until one yields non-empty content.
type Selector struct {
	GeneralPath  string
	ClinicalPath string
	Clinical     []string

	readFile func(string) ([]byte, error)
	logger   *appLog.Logger
}

// NewSelector builds a Selector reading templates from disk.
func NewSelector(generalPath, clinicalPath string, clinical []string, logger *appLog.Logger) *Selector {
	return &Selector{
		GeneralPath:  generalPath,
		ClinicalPath: clinicalPath,
		Clinical:     clinical,
		readFile:     os.ReadFile,
		logger:       logger,
	}
}

func (s *Selector) fileCandidate(name, path string) candidate {
	return candidate{
		name: name,
		path: path,
		load: func() (string, error) {
			if path == "" {
				return "", errors.New("no path configured")
			}
			data, err := s.readFile(path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

func (s *Selector) chain(course string) []candidate {
	builtin := candidate{
		name: TemplateBuiltinMinimal,
		load: func() (string, error) { return BuiltinMinimalPrompt, nil },
	}
	if IsClinical(course, s.Clinical) {
		return []candidate{
			s.fileCandidate(TemplateClinical, s.ClinicalPath),
			s.fileCandidate(TemplateGeneralFallback, s.GeneralPath),
			builtin,
		}
	}
	return []candidate{
		s.fileCandidate(TemplateGeneral, s.GeneralPath),
		builtin,
	}
}

// Select returns the first template in the chain that loads with
// non-empty content. It never fails: the built-in prompt is the last tier.
func (s *Selector) Select(course string) Template {
	for _, c := range s.chain(course) {
		content, err := c.load()
		if err == nil && strings.TrimSpace(content) != "" {
			s.logger.Debug("selected llm template", "template", c.name, "path", c.path, "course", course)
			return Template{Name: c.name, Path: c.path, Content: content}
		}
		if err == nil {
			err = errors.New("template is empty")
		}
		s.logger.Warn("template unavailable, trying next", "template", c.name, "path", c.path, "err", err)
	}
	// Unreachable: the builtin tier always succeeds.
	return Template{Name: TemplateBuiltinMinimal, Content: BuiltinMinimalPrompt}
}

// Fields are the named placeholders available to templates.
type Fields struct {
	CourseName         string
	WeekNum            int
	Date               string
	Sequence           int
	TranscriptFilename string
	TranscriptText     string
}

// NewFields assembles template fields for one transcript.
func NewFields(match model.CourseMatch, meta model.RenderMetadata, transcript string) Fields {
	return Fields{
		CourseName:         match.CourseName,
		WeekNum:            match.WeekNum,
		Date:               meta.Date,
		Sequence:           meta.Sequence,
		TranscriptFilename: meta.TranscriptFilename,
		TranscriptText:     transcript,
	}
}

func (f Fields) lookup(name string) (any, bool) {
	switch name {
	case "course_name":
		return f.CourseName, true
	case "week_num":
		return f.WeekNum, true
	case "date":
		return f.Date, true
	case "sequence":
		return f.Sequence, true
	case "transcript_filename":
		return f.TranscriptFilename, true
	case "transcript_text":
		return f.TranscriptText, true
	}
	return nil, false
}

// Render fills {field} placeholders in tmpl. "{{" and "}}" are literal
// braces. When the template cannot be formatted (unknown field, stray
// brace, unsupported spec) Render degrades to the raw template followed by
// a metadata block and the transcript; degraded reports that case. A
// template without a {transcript_text} placeholder, such as the built-in
// prompt, always gets that block appended.
func Render(tmpl string, f Fields) (out string, degraded bool) {
	rendered, err := format(tmpl, f)
	if err != nil {
		return fallbackPrompt(tmpl, f), true
	}
	if !transcriptPlaceholder.MatchString(tmpl) {
		return fallbackPrompt(rendered, f), false
	}
	return rendered, false
}

var transcriptPlaceholder = regexp.MustCompile(`(?:^|[^{])\{transcript_text(?::[^}]*)?\}`)

func fallbackPrompt(tmpl string, f Fields) string {
	var b strings.Builder
	b.WriteString(tmpl)
	b.WriteString("\n\n[METADATA_FOR_CONTEXT_ONLY]\n")
	fmt.Fprintf(&b, "Course Name: %s\n", f.CourseName)
	fmt.Fprintf(&b, "Date: %s\n", f.Date)
	fmt.Fprintf(&b, "Week: %d\n", f.WeekNum)
	fmt.Fprintf(&b, "Sequence: %d\n", f.Sequence)
	fmt.Fprintf(&b, "Transcript File Name: %s\n\n", f.TranscriptFilename)
	b.WriteString("[TRANSCRIPT]\n")
	b.WriteString(f.TranscriptText)
	b.WriteString("\n")
	return b.String()
}

var intSpec = regexp.MustCompile(`^0?[0-9]*d$`)

func format(tmpl string, f Fields) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl) + len(f.TranscriptText))

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i += 2
		case c == '}':
			return "", fmt.Errorf("single '}' at offset %d", i)
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unclosed '{' at offset %d", i)
			}
			expr := tmpl[i+1 : i+1+end]
			val, err := formatField(expr, f)
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i += end + 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

func formatField(expr string, f Fields) (string, error) {
	name, spec, _ := strings.Cut(expr, ":")
	v, ok := f.lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown placeholder %q", name)
	}
	if spec == "" {
		return fmt.Sprint(v), nil
	}
	n, isInt := v.(int)
	if !isInt || !intSpec.MatchString(spec) {
		return "", fmt.Errorf("unsupported format spec %q for %q", spec, name)
	}
	width := strings.TrimSuffix(spec, "d")
	if width == "" {
		return strconv.Itoa(n), nil
	}
	return fmt.Sprintf("%"+width+"d", n), nil
}
