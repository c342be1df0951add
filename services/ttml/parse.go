package ttml

import (
	"errors"
	"strings"

	"uta-go/logcolors"
	"uta-go/services/lyricerr"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"
)

var errNoRoot = errors.New("document has no root element")

// Parse reads a timed-text markup string into an immutable Document.
// Any reader failure, or input without a root element, is a MalformedMarkup error.
func Parse(raw string) (*Document, error) {
	log.Debugf("%s Parsing markup (length: %d bytes)", logcolors.LogTTMLParser, len(raw))

	src := etree.NewDocument()
	if err := src.ReadFromString(raw); err != nil {
		log.Debugf("%s Failed to read markup: %v", logcolors.LogTTMLParser, err)
		return nil, lyricerr.Markup(err)
	}

	b := &builder{
		nodes: []node{{kind: KindDocument, parent: NoNode}},
	}
	for _, tok := range src.Child {
		b.add(DocumentNode, tok)
	}
	b.nodes[DocumentNode].last = NodeID(len(b.nodes) - 1)

	doc := &Document{nodes: b.nodes, root: NoNode}
	for _, c := range doc.nodes[DocumentNode].children {
		if doc.nodes[c].kind == KindElement {
			doc.root = c
			break
		}
	}
	if doc.root == NoNode {
		return nil, lyricerr.Markup(errNoRoot)
	}

	log.Debugf("%s Parsed <%s> with %d nodes", logcolors.LogTTMLParser, doc.nodes[doc.root].name, len(doc.nodes))
	return doc, nil
}

type builder struct {
	nodes []node
}

func (b *builder) push(parent NodeID, n node) NodeID {
	id := NodeID(len(b.nodes))
	n.parent = parent
	n.last = id
	b.nodes = append(b.nodes, n)
	b.nodes[parent].children = append(b.nodes[parent].children, id)
	return id
}

func (b *builder) add(parent NodeID, tok etree.Token) {
	switch t := tok.(type) {
	case *etree.Element:
		attrs := make([]Attr, 0, len(t.Attr))
		for _, a := range t.Attr {
			attrs = append(attrs, Attr{Name: Name{Space: a.Space, Local: a.Key}, Value: a.Value})
		}
		id := b.push(parent, node{
			kind:  KindElement,
			name:  Name{Space: t.Space, Local: t.Tag},
			attrs: attrs,
		})
		for _, c := range t.Child {
			b.add(id, c)
		}
		b.nodes[id].last = NodeID(len(b.nodes) - 1)
	case *etree.CharData:
		b.push(parent, node{kind: KindText, data: t.Data})
	case *etree.Comment:
		b.push(parent, node{kind: KindComment, data: t.Data})
	case *etree.ProcInst:
		b.push(parent, node{kind: KindProcInst, target: t.Target, data: strings.TrimSpace(t.Inst)})
	case *etree.Directive:
		b.push(parent, node{kind: KindDirective, data: t.Data})
	}
}
