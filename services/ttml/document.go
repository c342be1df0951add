package ttml

import "strings"

// NodeID indexes a node inside a Document's arena
type NodeID int

const (
	// DocumentNode is the synthetic root every parsed tree hangs from
	DocumentNode NodeID = 0

	// NoNode is returned as the parent of DocumentNode
	NoNode NodeID = -1
)

// NodeKind identifies what a node holds
type NodeKind int

const (
	KindDocument NodeKind = iota
	KindElement
	KindText
	KindComment
	KindProcInst
	KindDirective
)

// Name is a possibly prefixed XML name
type Name struct {
	Space string
	Local string
}

func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// matches compares against a selector: prefixed selectors need the full
// name, bare selectors only the local part
func (n Name) matches(selector string) bool {
	if strings.Contains(selector, ":") {
		return n.String() == selector
	}
	return n.Local == selector
}

// Attr is a single element attribute
type Attr struct {
	Name  Name
	Value string
}

type node struct {
	kind     NodeKind
	name     Name   // element name
	attrs    []Attr // element attributes, in source order
	data     string // text, comment, directive body or processing instruction body
	target   string // processing instruction target
	parent   NodeID
	children []NodeID
	last     NodeID // last descendant; ids are assigned in document order
}

// Document is an immutable markup tree stored as an arena. Nodes reference
// each other only through NodeIDs, and node ids follow document order, so
// the descendants of a node occupy the contiguous id range (id, last].
type Document struct {
	nodes []node
	root  NodeID
}

// Len returns the number of nodes, including DocumentNode
func (d *Document) Len() int {
	return len(d.nodes)
}

// Root returns the root element
func (d *Document) Root() NodeID {
	return d.root
}

func (d *Document) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(d.nodes)
}

// Kind returns the kind of the node
func (d *Document) Kind(id NodeID) NodeKind {
	return d.nodes[id].kind
}

// Name returns the element name of the node (zero for non-elements)
func (d *Document) Name(id NodeID) Name {
	return d.nodes[id].name
}

// Tag returns the local element name of the node
func (d *Document) Tag(id NodeID) string {
	return d.nodes[id].name.Local
}

// Attrs returns a copy of the element's attributes in source order
func (d *Document) Attrs(id NodeID) []Attr {
	attrs := make([]Attr, len(d.nodes[id].attrs))
	copy(attrs, d.nodes[id].attrs)
	return attrs
}

// Attr reads an attribute by name; "xml:lang" style names match exactly,
// bare names match the local part
func (d *Document) Attr(id NodeID, name string) (string, bool) {
	if !d.valid(id) {
		return "", false
	}
	for _, a := range d.nodes[id].attrs {
		if a.Name.matches(name) {
			return a.Value, true
		}
	}
	return "", false
}

// Text returns the character data of text, comment and directive nodes,
// and the instruction body of processing instructions
func (d *Document) Text(id NodeID) string {
	return d.nodes[id].data
}

// Target returns the target of a processing instruction node
func (d *Document) Target(id NodeID) string {
	return d.nodes[id].target
}

// Parent returns the parent of the node, or NoNode for DocumentNode
func (d *Document) Parent(id NodeID) NodeID {
	return d.nodes[id].parent
}

// Children returns a copy of the node's child ids in document order
func (d *Document) Children(id NodeID) []NodeID {
	children := make([]NodeID, len(d.nodes[id].children))
	copy(children, d.nodes[id].children)
	return children
}

// FirstText returns the literal text of the node's first child. It reports
// false when the node has no children or the first child is not text.
func (d *Document) FirstText(id NodeID) (string, bool) {
	if !d.valid(id) {
		return "", false
	}
	children := d.nodes[id].children
	if len(children) == 0 {
		return "", false
	}
	first := d.nodes[children[0]]
	if first.kind != KindText {
		return "", false
	}
	return first.data, true
}

// Find returns the first descendant element of id matching the tag selector
func (d *Document) Find(id NodeID, tag string) (NodeID, bool) {
	if !d.valid(id) {
		return NoNode, false
	}
	for i := id + 1; i <= d.nodes[id].last; i++ {
		n := &d.nodes[i]
		if n.kind == KindElement && n.name.matches(tag) {
			return i, true
		}
	}
	return NoNode, false
}

// FindAll returns every descendant element of id matching the tag selector,
// in document order
func (d *Document) FindAll(id NodeID, tag string) []NodeID {
	if !d.valid(id) {
		return nil
	}
	var found []NodeID
	for i := id + 1; i <= d.nodes[id].last; i++ {
		n := &d.nodes[i]
		if n.kind == KindElement && n.name.matches(tag) {
			found = append(found, i)
		}
	}
	return found
}

// HasAncestor reports whether any ancestor of id strictly below stop
// matches the tag selector
func (d *Document) HasAncestor(id, stop NodeID, tag string) bool {
	for p := d.nodes[id].parent; p != NoNode && p != stop; p = d.nodes[p].parent {
		if d.nodes[p].kind == KindElement && d.nodes[p].name.matches(tag) {
			return true
		}
	}
	return false
}
