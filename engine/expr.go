package engine

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// resolve implements spec.md §4.3's expression grammar: the first matching
// rule (by leading character) consumes the entire prefix. Unlike the
// teacher's chtml/expr.go, which lexes a full `${...}` interpolation
// grammar through an exprLexer state machine (too heavy a hammer for a
// five-case leading-character dispatch), this resolver is a direct switch —
// see DESIGN.md for the reasoning.
//
// base is the optional base node for a leading "$"; when nil, "$" resolves
// through the symbol table instead.
func (p *Preprocessor) resolve(s string, base *etree.Element) (Value, bool) {
	if s == "" {
		return Value{}, false
	}

	switch c := s[0]; {
	case c == '.' || c == '+' || c == '-' || (c >= '1' && c <= '9'):
		return IntValue(parseLeadingInt(s)), true

	case c == '#':
		return StringValue(s[1:]), true

	case c == '{':
		return p.resolveBrace(s)

	case c == '$':
		rest := s[1:]
		if rest == "" {
			// Bare "$": return whatever $ currently is, any kind — this is
			// how for-props binds an attribute reference to $ and
			// `s:value src="$"` still resolves it directly (scenario 3).
			if base != nil {
				return NodeValue(base), true
			}
			return p.symbols.Resolve("$")
		}
		var b *etree.Element
		if base != nil {
			b = base
		} else {
			v, ok := p.symbols.Resolve("$")
			if !ok || v.Kind != KindNode {
				return Value{}, false
			}
			b = v.Node
		}
		if b == nil {
			return Value{}, false
		}
		return p.navigate(b, rest), true

	case c == '/':
		return p.navigate(p.dataRoot, s[1:]), true

	default:
		return Value{}, false
	}
}

// resolveBrace handles the "{name}..." form: look up name as a symbol; if
// it's an integer or attribute, return it directly and stop (ignoring any
// trailing path); if it's a node, continue navigation from the character
// after the closing brace; if it's a string, return it directly when the
// brace closes the expression, else treat further navigation as absent
// (strings have no children to navigate into).
func (p *Preprocessor) resolveBrace(s string) (Value, bool) {
	close := strings.IndexByte(s, '}')
	if close < 0 {
		return Value{}, false
	}
	name := s[1:close]
	v, ok := p.symbols.Resolve(name)
	if !ok {
		return Value{}, false
	}
	rest := s[close+1:]

	switch v.Kind {
	case KindInt, KindAttr:
		return v, true
	case KindString:
		if rest == "" {
			return v, true
		}
		return Value{}, false
	case KindNode:
		if rest == "" {
			return NodeValue(v.Node), true
		}
		return p.navigate(v.Node, rest), true
	default:
		return Value{}, false
	}
}

// navigate implements path navigation: a sequence of /-separated child
// names, optionally terminated by ~<spec>. An empty segment is a no-op
// (e.g. the leading "/" immediately after "$"). Each named segment steps to
// the first child element with that name; a missing child becomes the
// absent-node sentinel, and navigation keeps chaining on it rather than
// short-circuiting, per spec.md §4.3.
func (p *Preprocessor) navigate(base *etree.Element, rem string) Value {
	if rem == "" {
		return NodeValue(base)
	}

	nameSeg := rem
	spec := ""
	hasSpec := false
	if idx := strings.LastIndexByte(rem, '~'); idx >= 0 {
		nameSeg = rem[:idx]
		spec = rem[idx+1:]
		hasSpec = true
	}

	cur := base
	if nameSeg != "" {
		for _, seg := range strings.Split(nameSeg, "/") {
			if seg == "" {
				continue
			}
			cur = firstChildNamed(cur, seg)
		}
	}

	if hasSpec {
		return applySpec(cur, spec)
	}
	return NodeValue(cur)
}

// firstChildNamed returns the first child element of n with the given tag
// name, or the absent-node sentinel if none exists.
func firstChildNamed(n *etree.Element, name string) *etree.Element {
	if isAbsent(n) {
		return absentElement
	}
	for _, child := range n.ChildElements() {
		if child.Tag == name {
			return child
		}
	}
	return absentElement
}

// applySpec resolves the "~<spec>" terminal: "!txt" for the node's own
// text, "!tag" for its element name, anything else for an attribute of
// that name.
func applySpec(n *etree.Element, spec string) Value {
	switch spec {
	case "!txt":
		return StringValue(elementText(n))
	case "!tag":
		if isAbsent(n) {
			return StringValue("")
		}
		return StringValue(n.Tag)
	default:
		if isAbsent(n) {
			return AttrValue(nil)
		}
		a := n.SelectAttr(spec)
		return AttrValue(a)
	}
}

// parseLeadingInt parses a signed decimal integer from the start of s,
// ignoring any non-numeric trailing input, matching the original's
// `atoi`-style "parse what you can" semantics.
func parseLeadingInt(s string) int64 {
	n := len(s)
	i := 0
	negative := n > 0 && s[0] == '-'
	if n > 0 && (s[0] == '+' || s[0] == '-' || s[0] == '.') {
		i++
	}

	end := i
	for end < n && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	digits := s[i:end]
	if digits == "" {
		return 0
	}

	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	if negative {
		return -v
	}
	return v
}
