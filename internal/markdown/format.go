package markdown

import (
	"html"
	"strings"
)

// Format describes how a Document is written out. Nil funcs leave text as is.
type Format struct {
	Text func(string) string
	Bold func(string) string

	ParagraphOpen, ParagraphClose string
	LineBreak                     string

	ListOpen, ListClose string
	ItemOpen, ItemClose string
	ItemSep             string

	BlockSep string
}

var htmlFormat = Format{
	Text:           html.EscapeString,
	Bold:           func(s string) string { return "<strong>" + html.EscapeString(s) + "</strong>" },
	ParagraphOpen:  "<p>",
	ParagraphClose: "</p>",
	LineBreak:      "<br>\n",
	ListOpen:       "<ul>\n",
	ListClose:      "\n</ul>",
	ItemOpen:       "<li>",
	ItemClose:      "</li>",
	ItemSep:        "\n",
	BlockSep:       "\n",
}

var plainFormat = Format{
	LineBreak: "\n",
	ItemOpen:  "- ",
	ItemSep:   "\n",
	BlockSep:  "\n\n",
}

// HTML renders doc as escaped HTML.
func HTML(doc Document) string {
	return htmlFormat.Render(doc)
}

// Plain renders doc as text with bold markers removed and "- " bullets.
func Plain(doc Document) string {
	return plainFormat.Render(doc)
}

// Render writes doc using f.
func (f Format) Render(doc Document) string {
	var b strings.Builder
	for i, block := range doc.Blocks {
		if i > 0 {
			b.WriteString(f.BlockSep)
		}
		switch block.Kind {
		case List:
			b.WriteString(f.ListOpen)
			for j, item := range block.Lines {
				if j > 0 {
					b.WriteString(f.ItemSep)
				}
				b.WriteString(f.ItemOpen)
				f.writeLine(&b, item)
				b.WriteString(f.ItemClose)
			}
			b.WriteString(f.ListClose)
		default:
			b.WriteString(f.ParagraphOpen)
			for j, line := range block.Lines {
				if j > 0 {
					b.WriteString(f.LineBreak)
				}
				f.writeLine(&b, line)
			}
			b.WriteString(f.ParagraphClose)
		}
	}
	return b.String()
}

func (f Format) writeLine(b *strings.Builder, line Line) {
	for _, span := range line {
		fn := f.Text
		if span.Kind == Bold {
			fn = f.Bold
		}
		if fn == nil {
			b.WriteString(span.Text)
			continue
		}
		b.WriteString(fn(span.Text))
	}
}
