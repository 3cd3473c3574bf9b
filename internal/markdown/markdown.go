// Package markdown renders the light markdown used in assistant replies:
// blank-line separated paragraphs, "-"/"*" bullet lists and **bold** spans.
// Nothing else is interpreted.
package markdown

import (
	"strings"
)

// BlockKind distinguishes paragraphs from lists.
type BlockKind int

const (
	Paragraph BlockKind = iota
	List
)

// SpanKind distinguishes plain text from bold text.
type SpanKind int

const (
	Text SpanKind = iota
	Bold
)

// Span is a run of inline text.
type Span struct {
	Kind SpanKind
	Text string
}

// Line is one paragraph line or one list item.
type Line []Span

// Block is a paragraph (Lines are its lines) or a list (Lines are its items).
type Block struct {
	Kind  BlockKind
	Lines []Line
}

// Document is a parsed reply.
type Document struct {
	Blocks []Block
}

// Parse segments text into blocks, then tokenizes each line into spans.
func Parse(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var doc Document
	var group []string
	flush := func() {
		if len(group) > 0 {
			doc.Blocks = append(doc.Blocks, parseBlock(group))
			group = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		group = append(group, line)
	}
	flush()
	return doc
}

func parseBlock(lines []string) Block {
	isList := true
	for _, line := range lines {
		if _, ok := bulletItem(line); !ok {
			isList = false
			break
		}
	}

	block := Block{Kind: Paragraph, Lines: make([]Line, 0, len(lines))}
	if isList {
		block.Kind = List
	}
	for _, line := range lines {
		if isList {
			line, _ = bulletItem(line)
		}
		block.Lines = append(block.Lines, parseInline(line))
	}
	return block
}

// bulletItem strips a leading "-" or "*" bullet. The bullet must be followed
// by whitespace or end the line, so "**bold**" is not a bullet.
func bulletItem(line string) (string, bool) {
	t := strings.TrimLeft(line, " \t")
	if t == "" || (t[0] != '-' && t[0] != '*') {
		return "", false
	}
	if len(t) > 1 && t[1] != ' ' && t[1] != '\t' {
		return "", false
	}
	return strings.TrimSpace(t[1:]), true
}

// parseInline pairs "**" delimiters left to right using the nearest closing
// delimiter. An opening delimiter without a non-empty match stays literal.
func parseInline(s string) Line {
	var spans Line
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			spans = append(spans, Span{Kind: Text, Text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], "**") {
			if end := strings.Index(s[i+2:], "**"); end > 0 {
				flush()
				spans = append(spans, Span{Kind: Bold, Text: s[i+2 : i+2+end]})
				i += end + 4
				continue
			}
			lit.WriteString("**")
			i += 2
			continue
		}
		lit.WriteByte(s[i])
		i++
	}
	flush()
	return spans
}
