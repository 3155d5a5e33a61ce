package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Resolver asks an operator for the course of a transcript the calendar
// could not place. ok is false when the operator declined.
type Resolver interface {
	Resolve(ctx context.Context, filename string) (course string, ok bool)
}

// NopResolver never resolves; unmatched files are skipped.
type NopResolver struct{}

func (NopResolver) Resolve(context.Context, string) (string, bool) { return "", false }

// PromptResolver reads a course name from a line-oriented reader, usually
// stdin. An empty line or a read error means skip.
type PromptResolver struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptResolver prompts on out and reads answers from in.
func NewPromptResolver(in io.Reader, out io.Writer) *PromptResolver {
	return &PromptResolver{in: bufio.NewReader(in), out: out}
}

func (r *PromptResolver) Resolve(ctx context.Context, filename string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	fmt.Fprintf(r.out, "未匹配到课程信息，手动输入课程名称（回车跳过）[%s]: ", filename)
	line, err := r.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	course := strings.TrimSpace(line)
	return course, course != ""
}
