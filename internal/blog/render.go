package blog

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// BlockKind identifies a rendered block element.
type BlockKind string

const (
	BlockHeading     BlockKind = "heading"
	BlockParagraph   BlockKind = "paragraph"
	BlockQuote       BlockKind = "blockquote"
	BlockList        BlockKind = "list"
	BlockOrderedList BlockKind = "ordered_list"
	BlockRule        BlockKind = "rule"
)

// SpanKind identifies an inline run.
type SpanKind string

const (
	SpanText   SpanKind = "text"
	SpanStrong SpanKind = "strong"
	SpanEm     SpanKind = "em"
	SpanCode   SpanKind = "code"
)

// Span is a run of inline text.
type Span struct {
	Kind SpanKind `json:"kind"`
	Text string   `json:"text"`
}

// Block is one rendered element of a post body.
type Block struct {
	Kind   BlockKind `json:"kind"`
	Level  int       `json:"level,omitempty"`
	Inline []Span    `json:"inline,omitempty"`
	Items  [][]Span  `json:"items,omitempty"`
}

var (
	inlinePattern  = regexp.MustCompile("(\\*\\*(.+?)\\*\\*)|(\\*(.+?)\\*)|(`(.+?)`)")
	orderedPattern = regexp.MustCompile(`^\d+\. `)
)

// Render converts a small markdown subset into blocks, one line at a time:
// #..#### headings, "> " quotes, "- "/"* " and "N. " lists, ---/*** rules and
// paragraphs. Blank lines only separate blocks.
func Render(source string) []Block {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	blocks := make([]Block, 0, len(lines)/2)

	for i := 0; i < len(lines); {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if level, text, ok := heading(line); ok {
			blocks = append(blocks, Block{Kind: BlockHeading, Level: level, Inline: ParseInline(text)})
			i++
			continue
		}

		switch {
		case strings.HasPrefix(line, "> "):
			blocks = append(blocks, Block{Kind: BlockQuote, Inline: ParseInline(line[2:])})
			i++
		case isBullet(line):
			var items [][]Span
			for i < len(lines) && isBullet(lines[i]) {
				items = append(items, ParseInline(lines[i][2:]))
				i++
			}
			blocks = append(blocks, Block{Kind: BlockList, Items: items})
		case orderedPattern.MatchString(line):
			var items [][]Span
			for i < len(lines) && orderedPattern.MatchString(lines[i]) {
				items = append(items, ParseInline(orderedPattern.ReplaceAllString(lines[i], "")))
				i++
			}
			blocks = append(blocks, Block{Kind: BlockOrderedList, Items: items})
		case trimmed == "---" || trimmed == "***":
			blocks = append(blocks, Block{Kind: BlockRule})
			i++
		case trimmed == "":
			i++
		default:
			blocks = append(blocks, Block{Kind: BlockParagraph, Inline: ParseInline(line)})
			i++
		}
	}
	return blocks
}

func heading(line string) (int, string, bool) {
	for level := 1; level <= 4; level++ {
		prefix := strings.Repeat("#", level) + " "
		if strings.HasPrefix(line, prefix) {
			return level, line[len(prefix):], true
		}
	}
	return 0, "", false
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")
}

// ParseInline splits text into plain, **strong**, *em* and `code` spans.
// Markers do not nest; the leftmost match wins.
func ParseInline(text string) []Span {
	matches := inlinePattern.FindAllStringSubmatchIndex(text, -1)
	spans := make([]Span, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			spans = append(spans, Span{Kind: SpanText, Text: text[last:m[0]]})
		}
		switch {
		case m[2] >= 0:
			spans = append(spans, Span{Kind: SpanStrong, Text: text[m[4]:m[5]]})
		case m[6] >= 0:
			spans = append(spans, Span{Kind: SpanEm, Text: text[m[8]:m[9]]})
		case m[10] >= 0:
			spans = append(spans, Span{Kind: SpanCode, Text: text[m[12]:m[13]]})
		}
		last = m[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Kind: SpanText, Text: text[last:]})
	}
	return spans
}

// RenderHTML serializes blocks to escaped HTML.
func RenderHTML(blocks []Block) string {
	var b strings.Builder
	for _, block := range blocks {
		switch block.Kind {
		case BlockHeading:
			tag := "h" + strconv.Itoa(block.Level)
			b.WriteString("<" + tag + ">")
			writeSpans(&b, block.Inline)
			b.WriteString("</" + tag + ">\n")
		case BlockParagraph:
			b.WriteString("<p>")
			writeSpans(&b, block.Inline)
			b.WriteString("</p>\n")
		case BlockQuote:
			b.WriteString("<blockquote>")
			writeSpans(&b, block.Inline)
			b.WriteString("</blockquote>\n")
		case BlockList, BlockOrderedList:
			tag := "ul"
			if block.Kind == BlockOrderedList {
				tag = "ol"
			}
			b.WriteString("<" + tag + ">")
			for _, item := range block.Items {
				b.WriteString("<li>")
				writeSpans(&b, item)
				b.WriteString("</li>")
			}
			b.WriteString("</" + tag + ">\n")
		case BlockRule:
			b.WriteString("<hr>\n")
		}
	}
	return b.String()
}

func writeSpans(b *strings.Builder, spans []Span) {
	for _, s := range spans {
		text := html.EscapeString(s.Text)
		switch s.Kind {
		case SpanStrong:
			b.WriteString("<strong>" + text + "</strong>")
		case SpanEm:
			b.WriteString("<em>" + text + "</em>")
		case SpanCode:
			b.WriteString("<code>" + text + "</code>")
		default:
			b.WriteString(text)
		}
	}
}
