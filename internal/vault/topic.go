package vault

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// UntitledTopic is used when a note carries neither a topic key nor an H1.
const UntitledTopic = "Untitled"

// TopicSource reports which tier of the topic chain produced the topic.
type TopicSource string

const (
	TopicFromFrontMatter TopicSource = "front-matter"
	TopicFromHeading     TopicSource = "heading"
	TopicUntitled        TopicSource = "untitled"
)

var errNoTopic = errors.New("no yaml topic and no level-1 heading")

type topicStrategy struct {
	source TopicSource
	find   func(lines []string) (string, bool)
}

var topicChain = []topicStrategy{
	{source: TopicFromFrontMatter, find: frontMatterTopic},
	{source: TopicFromHeading, find: headingTopic},
}

// ParseTopic derives a filename-safe topic from a note. It prefers a
// "topic" key in YAML front matter (a leading "---" block or a ```yaml
// fence), then the first level-1 heading, then UntitledTopic.
func ParseTopic(markdown string) (string, TopicSource) {
	content := strings.ReplaceAll(markdown, "\r\n", "\n")
	lines := strings.Split(strings.TrimSpace(content), "\n")

	for _, st := range topicChain {
		if topic, ok := st.find(lines); ok {
			if safe := Sanitize(topic); safe != "" {
				return safe, st.source
			}
		}
	}
	return UntitledTopic, TopicUntitled
}

// yamlBlock returns the body of the leading "---" block, or else of the
// first ```yaml fence. The note itself is left untouched.
func yamlBlock(lines []string) ([]string, bool) {
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		return blockUntil(lines[1:], "---")
	}
	for i, l := range lines {
		if strings.EqualFold(strings.TrimSpace(l), "```yaml") {
			return blockUntil(lines[i+1:], "```")
		}
	}
	return nil, false
}

func blockUntil(lines []string, closing string) ([]string, bool) {
	for i, l := range lines {
		if strings.TrimSpace(l) == closing {
			return lines[:i], true
		}
	}
	return nil, false
}

func frontMatterTopic(lines []string) (string, bool) {
	block, ok := yamlBlock(lines)
	if !ok {
		return "", false
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(block, "\n")), &fm); err != nil {
		return lineScanTopic(block)
	}
	for k, v := range fm {
		if !strings.EqualFold(strings.TrimSpace(k), "topic") || v == nil {
			continue
		}
		if topic := strings.TrimSpace(fmt.Sprint(v)); topic != "" {
			return topic, true
		}
	}
	return "", false
}

// lineScanTopic reads "topic: value" from front matter that is not valid
// YAML (models often emit unquoted colons in other keys).
func lineScanTopic(block []string) (string, bool) {
	for _, raw := range block {
		s := strings.TrimSpace(raw)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		k, v, ok := strings.Cut(s, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "topic") {
			continue
		}
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if v != "" {
			return v, true
		}
	}
	return "", false
}

func headingTopic(lines []string) (string, bool) {
	for _, l := range lines {
		s := strings.TrimSpace(l)
		if !strings.HasPrefix(s, "# ") {
			continue
		}
		if topic := strings.TrimSpace(strings.TrimLeft(s, "# ")); topic != "" {
			return topic, true
		}
	}
	return "", false
}
