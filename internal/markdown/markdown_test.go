package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParagraphsAndLists(t *testing.T) {
	doc := Parse("Here are some tips:\n\n- Sleep more\n* Walk daily\n\nGood luck")

	require.Len(t, doc.Blocks, 3)
	require.Equal(t, Paragraph, doc.Blocks[0].Kind)
	require.Equal(t, List, doc.Blocks[1].Kind)
	require.Equal(t, Paragraph, doc.Blocks[2].Kind)
	require.Equal(t, Line{{Kind: Text, Text: "Sleep more"}}, doc.Blocks[1].Lines[0])
	require.Equal(t, Line{{Kind: Text, Text: "Walk daily"}}, doc.Blocks[1].Lines[1])

	require.Equal(t,
		"<p>Here are some tips:</p>\n<ul>\n<li>Sleep more</li>\n<li>Walk daily</li>\n</ul>\n<p>Good luck</p>",
		HTML(doc))
}

func TestMixedBlockIsParagraph(t *testing.T) {
	doc := Parse("- one\nnot a bullet")
	require.Len(t, doc.Blocks, 1)
	require.Equal(t, Paragraph, doc.Blocks[0].Kind)
	require.Equal(t, "<p>- one<br>\nnot a bullet</p>", HTML(doc))
}

func TestBoldLineIsNotBullet(t *testing.T) {
	doc := Parse("**Note** read this")
	require.Equal(t, Paragraph, doc.Blocks[0].Kind)
	require.Equal(t, "<p><strong>Note</strong> read this</p>", HTML(doc))
}

func TestBulletNeedsSpaceAfterMarker(t *testing.T) {
	doc := Parse("-item\n*other")
	require.Len(t, doc.Blocks, 1)
	require.Equal(t, Paragraph, doc.Blocks[0].Kind)
	require.Equal(t, "<p>-item<br>\n*other</p>", HTML(doc))

	doc = Parse("- item\n-\n*\tother")
	require.Equal(t, List, doc.Blocks[0].Kind)
	require.Equal(t, "- item\n- \n- other", Plain(doc))
}

func TestInlineBold(t *testing.T) {
	cases := []struct {
		in   string
		want Line
	}{
		{"a **b** c", Line{{Text, "a "}, {Bold, "b"}, {Text, " c"}}},
		{"**x** and **y**", Line{{Bold, "x"}, {Text, " and "}, {Bold, "y"}}},
		{"**unclosed", Line{{Text, "**unclosed"}}},
		{"a ** b", Line{{Text, "a ** b"}}},
		{"****", Line{{Text, "****"}}},
		{"**a**b**", Line{{Bold, "a"}, {Text, "b**"}}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, parseInline(tc.in))
		})
	}
}

func TestMalformedInputDoesNotPanic(t *testing.T) {
	inputs := []string{"", "\n\n\n", "**", "*", "-", "- \n* ", "** **", "\r\n\r\n**x", strings.Repeat("*", 101)}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			doc := Parse(in)
			_ = HTML(doc)
			_ = Plain(doc)
		}, in)
	}
	require.Empty(t, Parse("\n  \n\t\n").Blocks)
	require.Equal(t, "<p>**</p>", HTML(Parse("**")))
}

func TestPlainTextRoundTrips(t *testing.T) {
	inputs := []string{
		"Hello there",
		"First paragraph.\nSecond line.\n\nAnother paragraph.",
		"Numbers 3 * 4 = 12 and a-b",
	}
	for _, in := range inputs {
		doc := Parse(in)
		require.Equal(t, in, Plain(doc))
		html := HTML(doc)
		require.NotContains(t, html, "<strong>")
		require.NotContains(t, html, "<ul>")
	}
}

func TestPlainIsIdempotent(t *testing.T) {
	inputs := []string{
		"**Tip:** rest\n\n- **one**\n- two",
		"**a** **b",
		"* item\n*  spaced item",
		"****a**",
	}
	for _, in := range inputs {
		once := Plain(Parse(in))
		require.Equal(t, once, Plain(Parse(once)), in)
	}
}

func TestHTMLEscapesText(t *testing.T) {
	require.Equal(t, "<p>&lt;b&gt; <strong>&amp;</strong></p>", HTML(Parse("<b> **&**")))
}

func TestCustomFormat(t *testing.T) {
	f := Format{
		Bold:     strings.ToUpper,
		ItemOpen: "• ",
		ItemSep:  "\n",
		BlockSep: "\n\n",
	}
	require.Equal(t, "say HI\n\n• a\n• B", f.Render(Parse("say **hi**\n\n- a\n- **b**")))
}
