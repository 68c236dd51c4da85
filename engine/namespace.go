package engine

// namespaceStrings precomputes the full tag/attribute names used by
// directives for a configured prefix, grounded on spec.md §4.1 and
// original_source/src/vs-templ.cpp's ns_strings::prepare (which confirms the
// exact suffix list). The original hand-rolls a single allocation with
// manual byte offsets purely to avoid per-dispatch heap churn; spec.md §9
// calls that out as a non-binding micro-optimization, so this rendering
// just concatenates prefix+suffix once per SetNamespace call and leaves the
// allocator to do its job.
type namespaceStrings struct {
	prefix string

	// Tags
	ForRange string
	For      string
	ForProps string
	Empty    string
	Header   string
	Footer   string
	Item     string
	Error    string
	When     string
	Is       string
	Value    string
	Element  string

	// Attribute-rewrite prefixes applied to non-directive elements.
	ForSrcPrefix     string
	ForPropSrcPrefix string
	UseSrcPrefix     string
	EvalPrefix       string
}

func newNamespaceStrings(prefix string) *namespaceStrings {
	ns := &namespaceStrings{prefix: prefix}
	ns.ForRange = prefix + "for-range"
	ns.For = prefix + "for"
	ns.ForProps = prefix + "for-props"
	ns.Empty = prefix + "empty"
	ns.Header = prefix + "header"
	ns.Footer = prefix + "footer"
	ns.Item = prefix + "item"
	ns.Error = prefix + "error"
	ns.When = prefix + "when"
	ns.Is = prefix + "is"
	ns.Value = prefix + "value"
	ns.Element = prefix + "element"

	ns.ForSrcPrefix = prefix + "for.src."
	ns.ForPropSrcPrefix = prefix + "for-prop.src."
	ns.UseSrcPrefix = prefix + "use.src."
	ns.EvalPrefix = prefix + "eval."
	return ns
}

// directiveTag reports whether name is one of the recognized directive
// element names for this namespace.
func (ns *namespaceStrings) directiveTag(name string) bool {
	switch name {
	case ns.ForRange, ns.For, ns.ForProps, ns.Empty, ns.Header, ns.Footer,
		ns.Item, ns.Error, ns.When, ns.Is, ns.Value, ns.Element:
		return true
	default:
		return false
	}
}

// hasPrefix reports whether name begins with this namespace's prefix.
func (ns *namespaceStrings) hasPrefix(name string) bool {
	return len(name) >= len(ns.prefix) && name[:len(ns.prefix)] == ns.prefix
}

// rewriteRule reports whether an attribute name (already known to carry the
// namespace prefix) matches one of the reserved rewrite-rule prefixes. These
// are accepted but currently elided from the compiled output, per spec.md
// §4.5 and open question 4 in §9.
func (ns *namespaceStrings) rewriteRule(name string) bool {
	return hasStringPrefix(name, ns.ForSrcPrefix) ||
		hasStringPrefix(name, ns.ForPropSrcPrefix) ||
		hasStringPrefix(name, ns.UseSrcPrefix) ||
		hasStringPrefix(name, ns.EvalPrefix)
}

func hasStringPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
