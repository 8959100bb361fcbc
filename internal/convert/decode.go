// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// ErrUndecodable reports artifact bytes that are not valid UTF-8 text.
var ErrUndecodable = errors.New("artifact is not valid UTF-8")

// Decode turns artifact bytes into Markdown according to kind. Empty
// content is valid and yields an empty (markdown) or heading-only (reflow)
// document.
func Decode(kind types.DecoderKind, data []byte, basename string) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrUndecodable
	}
	switch kind {
	case types.DecoderMarkdown, "":
		return string(data), nil
	case types.DecoderReflow:
		return Reflow(basename, string(data)), nil
	default:
		return "", fmt.Errorf("unknown decoder %q", kind)
	}
}

// Reflow synthesizes Markdown from extracted plain text: a top-level
// heading with the basename, then one paragraph per run of non-blank
// lines, the lines trimmed and joined with single spaces. Every paragraph,
// the heading included, is followed by a blank line.
func Reflow(basename, text string) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(basename)
	b.WriteString("\n\n")

	var para []string
	flush := func() {
		if len(para) == 0 {
			return
		}
		b.WriteString(strings.Join(para, " "))
		b.WriteString("\n\n")
		para = para[:0]
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	flush()
	return b.String()
}
