package termwrap

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

type TermWrap struct {
	width  int
	height int
}

// KeyValue is one row of a two column listing.
type KeyValue struct {
	Key   string
	Value string
}

func NewTermWrap(defaultWidth, defaultHeight int) *TermWrap {
	var err error
	tw := &TermWrap{}

	tw.width, tw.height, err = term.GetSize(0)
	if err != nil {
		tw.width = defaultWidth
		tw.height = defaultHeight
	}

	return tw
}

func (tw *TermWrap) Paragraph(content string) string {
	return wordwrap.WrapString(content, uint(tw.width))
}

func (tw *TermWrap) IndentedParagraph(prefix, content string, minimumWidth int) string {
	width := tw.width
	if width > minimumWidth {
		width -= len(prefix) * 2
	}

	paragraph := wordwrap.WrapString(content, uint(width))
	if width == tw.width {
		return paragraph
	}

	indented := ""
	for _, line := range strings.Split(paragraph, "\n") {
		indented += fmt.Sprintf("%s%s\n", prefix, line)
	}

	return indented
}

// KeyValues lines up rows with the keys padded to the widest one. Long values
// wrap under their own column.
func (tw *TermWrap) KeyValues(rows []KeyValue) string {
	keyWidth := 0
	for _, row := range rows {
		if len(row.Key) > keyWidth {
			keyWidth = len(row.Key)
		}
	}

	const sep = ": "
	valueWidth := tw.width - keyWidth - len(sep)
	if valueWidth < 20 {
		valueWidth = 20
	}

	pad := strings.Repeat(" ", keyWidth+len(sep))

	var sb strings.Builder
	for _, row := range rows {
		lines := strings.Split(wordwrap.WrapString(row.Value, uint(valueWidth)), "\n")
		fmt.Fprintf(&sb, "%-*s%s%s\n", keyWidth, row.Key, sep, lines[0])
		for _, line := range lines[1:] {
			sb.WriteString(pad + line + "\n")
		}
	}

	return sb.String()
}
