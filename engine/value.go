// Package engine implements the structured-document template preprocessor: a
// recursive, explicit-stack tree walker that evaluates namespace-tagged
// directives in a template document against a data document, producing a
// compiled document.
package engine

import (
	"fmt"

	"github.com/beevik/etree"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	// KindInt holds an integer produced by literal parsing or arithmetic-free
	// expression evaluation.
	KindInt Kind = iota
	// KindString holds an owned string (a "#..." literal or the rendering of
	// another kind).
	KindString
	// KindNode holds a borrowed reference to a data-tree element.
	KindNode
	// KindAttr holds a borrowed reference to a data-tree attribute.
	KindAttr
)

// Value is the concrete value produced by expression resolution: a tagged
// union of integer, owned string, borrowed node, or borrowed attribute.
// The zero Value is the integer 0; absence is always represented by the
// second (bool) return value of resolver functions, not by a sentinel
// Value.
type Value struct {
	Kind Kind
	Int  int64
	Str  string
	Node *etree.Element
	Attr *etree.Attr
}

// IntValue builds an integer Value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// StringValue builds a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NodeValue builds a node Value.
func NodeValue(n *etree.Element) Value { return Value{Kind: KindNode, Node: n} }

// AttrValue builds an attribute Value.
func AttrValue(a *etree.Attr) Value { return Value{Kind: KindAttr, Attr: a} }

// AsString renders the value as a string, the way `value`/`when` coerce
// operands: a string is itself, an attribute is its value, a node is its
// text content, an integer is its decimal rendering (used, for example,
// when compareKey compares an integer key with a string-ish one).
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindAttr:
		if v.Attr == nil {
			return ""
		}
		return v.Attr.Value
	case KindNode:
		return elementText(v.Node)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	default:
		return ""
	}
}

// elementText returns the node's own text content: the data of its first
// direct CharData child (later CharData children are not included),
// mirroring pugixml's node.text() used by the
// original implementation for node-as-string coercions.
func elementText(n *etree.Element) string {
	if n == nil {
		return ""
	}
	for _, tok := range n.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			return cd.Data
		}
	}
	return ""
}

// absentElement is the tree library's absent-node sentinel: a detached,
// childless, attribute-less element. Navigating through it for further
// children or terminal specs yields more absence, never a panic, matching
// spec.md §4.3's "further navigation chains on it" rule.
var absentElement = etree.NewElement("")

// isAbsent reports whether n is the absent-node sentinel.
func isAbsent(n *etree.Element) bool {
	return n == nil || n == absentElement
}
