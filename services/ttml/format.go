package ttml

import (
	"strings"
	"unicode/utf8"
)

// FormatConfig controls how Format lays out a document
type FormatConfig struct {
	// Indent is the number of spaces per nesting level
	Indent int

	// EndPad is the number of newlines terminating the output
	EndPad int

	// MaxLineLength is a soft limit: an opening tag longer than this puts
	// each attribute on its own line. Text and single attributes are never split.
	MaxLineLength int

	// IndentTextNodes moves text in mixed content onto indented lines of its
	// own (trimmed). When false, such content is written inline, untouched.
	IndentTextNodes bool
}

// DefaultFormatConfig is the layout used for .ttml output
var DefaultFormatConfig = FormatConfig{
	Indent:          2,
	EndPad:          1,
	MaxLineLength:   128,
	IndentTextNodes: false,
}

// inlineElements flow with the surrounding text; their parent keeps its
// content on one line
var inlineElements = map[string]bool{
	"span": true,
	"br":   true,
}

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\r", "&#xD;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"\n", "&#xA;",
		"\r", "&#xD;",
		"\t", "&#x9;",
	)
)

// Format re-serializes doc with DefaultFormatConfig
func Format(doc *Document) string {
	return FormatWithConfig(doc, DefaultFormatConfig)
}

// FormatWithConfig re-serializes doc as indentation-normalized XML.
// Formatting a parse of the output again yields the same text.
func FormatWithConfig(doc *Document, cfg FormatConfig) string {
	f := &formatter{doc: doc, cfg: cfg}
	for _, c := range doc.nodes[DocumentNode].children {
		if doc.nodes[c].kind == KindText && isWhitespace(doc.nodes[c].data) {
			continue
		}
		f.block(c, 0)
	}

	out := strings.TrimRight(f.b.String(), "\n")
	if cfg.EndPad > 0 {
		out += strings.Repeat("\n", cfg.EndPad)
	}
	return out
}

type formatter struct {
	doc *Document
	cfg FormatConfig
	b   strings.Builder
}

func (f *formatter) indent(depth int) string {
	if f.cfg.Indent <= 0 || depth <= 0 {
		return ""
	}
	return strings.Repeat(" ", f.cfg.Indent*depth)
}

// block writes a node on its own line(s) at the given depth
func (f *formatter) block(id NodeID, depth int) {
	n := &f.doc.nodes[id]
	pad := f.indent(depth)

	switch n.kind {
	case KindElement:
		f.element(id, depth)
	case KindText:
		f.b.WriteString(pad)
		f.b.WriteString(textEscaper.Replace(strings.TrimSpace(n.data)))
		f.b.WriteByte('\n')
	default:
		f.b.WriteString(pad)
		f.inline(id)
		f.b.WriteByte('\n')
	}
}

func (f *formatter) element(id NodeID, depth int) {
	n := &f.doc.nodes[id]
	pad := f.indent(depth)
	name := n.name.String()

	// Text that is not layout, or an inline child, makes the content mixed.
	// Mixed content is written verbatim so no whitespace is added or lost.
	hasText, hasInline, hasOther := false, false, false
	var significant []NodeID
	for _, c := range n.children {
		cn := &f.doc.nodes[c]
		switch cn.kind {
		case KindText:
			if isLayout(cn.data) {
				continue
			}
			hasText = true
		case KindElement:
			hasInline = hasInline || inlineElements[cn.name.Local]
			hasOther = true
		default:
			hasOther = true
		}
		significant = append(significant, c)
	}

	f.b.WriteString(pad)
	f.openTag(n, pad)

	switch {
	case len(significant) == 0:
		f.b.WriteString("/>\n")
	case (hasText || hasInline) && (!f.cfg.IndentTextNodes || !hasOther):
		f.b.WriteByte('>')
		for _, c := range n.children {
			f.inline(c)
		}
		f.b.WriteString("</" + name + ">\n")
	default:
		f.b.WriteString(">\n")
		for _, c := range significant {
			if f.doc.nodes[c].kind == KindText && isWhitespace(f.doc.nodes[c].data) {
				continue
			}
			f.block(c, depth+1)
		}
		f.b.WriteString(pad + "</" + name + ">\n")
	}
}

// openTag writes "<name attrs" without the closing bracket, wrapping the
// attributes one per line when the tag would exceed MaxLineLength
func (f *formatter) openTag(n *node, pad string) {
	name := n.name.String()
	attrs := make([]string, len(n.attrs))
	length := utf8.RuneCountInString(pad) + 1 + utf8.RuneCountInString(name) + 1
	for i, a := range n.attrs {
		attrs[i] = a.Name.String() + `="` + attrEscaper.Replace(a.Value) + `"`
		length += 1 + utf8.RuneCountInString(attrs[i])
	}

	f.b.WriteString("<" + name)
	if f.cfg.MaxLineLength > 0 && length > f.cfg.MaxLineLength && len(attrs) > 1 {
		inner := pad + strings.Repeat(" ", max(f.cfg.Indent, 1))
		for _, a := range attrs {
			f.b.WriteString("\n" + inner + a)
		}
		return
	}
	for _, a := range attrs {
		f.b.WriteString(" " + a)
	}
}

// inline writes a node and its subtree verbatim, without layout changes
func (f *formatter) inline(id NodeID) {
	n := &f.doc.nodes[id]
	switch n.kind {
	case KindElement:
		name := n.name.String()
		f.b.WriteString("<" + name)
		for _, a := range n.attrs {
			f.b.WriteString(" " + a.Name.String() + `="` + attrEscaper.Replace(a.Value) + `"`)
		}
		if len(n.children) == 0 {
			f.b.WriteString("/>")
			return
		}
		f.b.WriteByte('>')
		for _, c := range n.children {
			f.inline(c)
		}
		f.b.WriteString("</" + name + ">")
	case KindText:
		f.b.WriteString(textEscaper.Replace(n.data))
	case KindComment:
		f.b.WriteString("<!--" + n.data + "-->")
	case KindProcInst:
		f.b.WriteString("<?" + n.target)
		if n.data != "" {
			f.b.WriteString(" " + n.data)
		}
		f.b.WriteString("?>")
	case KindDirective:
		f.b.WriteString("<!" + n.data + ">")
	}
}

func isWhitespace(s string) bool {
	return strings.TrimLeft(s, " \t\r\n") == ""
}

// isLayout reports whether a text node is indentation between block
// elements. Whitespace without a line break, such as the space between two
// word spans, is content.
func isLayout(s string) bool {
	return s == "" || (isWhitespace(s) && strings.ContainsAny(s, "\r\n"))
}
