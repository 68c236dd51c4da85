package engine

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// OrderMethod is the sort direction for a selection, grounded on
// original_source/src/vs-templ.cpp's order_method_t enum (ASC/DESC/RANDOM;
// USE_DOT_EVAL there is a combinable bit flag, rendered here as the
// separate DotEval bool on SortKey).
type OrderMethod int

const (
	OrderAsc OrderMethod = iota
	OrderDesc
	OrderRandom
)

// SortKey is one multi-key children-sort criterion: an expression evaluated
// against each candidate child (bound to "$"), a direction, and whether
// comparison is segment-wise ("dot-eval").
type SortKey struct {
	Expr    string
	Order   OrderMethod
	DotEval bool
}

// ChildSelection describes the children-selection operator: an ordered list
// of sort keys (first-non-equal-wins) plus an offset/limit slice. Filter is
// accepted for forward compatibility with the `for` directive grammar but
// is a deliberate no-op — spec.md §4.4/§9 reserve it without a defined
// grammar.
type ChildSelection struct {
	Keys   []SortKey
	Filter string
	Offset int
	Limit  int
	Seed   uint64
}

// AttrSelection describes the attribute-selection operator: unlike
// children, attributes sort by name alone, in a single direction.
type AttrSelection struct {
	Order  OrderMethod
	Filter string
	Offset int
	Limit  int
	Seed   uint64
}

// selectChildren applies sel to n's child elements and returns the
// resulting slice in order. Elements, not copies: callers act on the
// original tree by reference, matching etree's reference semantics
// throughout.
func (p *Preprocessor) selectChildren(n *etree.Element, sel ChildSelection) []*etree.Element {
	if isAbsent(n) {
		return nil
	}
	cands := append([]*etree.Element(nil), n.ChildElements()...)

	if len(sel.Keys) > 0 {
		keyed := make([][]Value, len(cands))
		for i, c := range cands {
			keyed[i] = make([]Value, len(sel.Keys))
			for k, key := range sel.Keys {
				if key.Order == OrderRandom {
					keyed[i][k] = StringValue(randomKey(NodeValue(c).AsString(), sel.Seed, k))
					continue
				}
				release := p.symbols.Guard()
				p.symbols.Set("$", NodeValue(c))
				v, ok := p.resolve(key.Expr, c)
				release()
				if ok {
					keyed[i][k] = v
				} else {
					keyed[i][k] = StringValue("")
				}
			}
		}
		sort.SliceStable(cands, func(i, j int) bool {
			for k, key := range sel.Keys {
				cmp := compareKey(keyed[i][k], keyed[j][k], key.DotEval)
				if cmp == 0 {
					continue
				}
				if key.Order == OrderDesc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	start, end := sliceWindow(len(cands), sel.Offset, sel.Limit)
	return cands[start:end]
}

// selectAttrs applies sel to n's attributes, ordered by attribute name
// alone, and returns the resulting slice in order.
func (p *Preprocessor) selectAttrs(n *etree.Element, sel AttrSelection) []*etree.Attr {
	if isAbsent(n) {
		return nil
	}
	attrs := make([]*etree.Attr, len(n.Attr))
	for i := range n.Attr {
		attrs[i] = &n.Attr[i]
	}

	switch sel.Order {
	case OrderRandom:
		keyed := make([]string, len(attrs))
		for i, a := range attrs {
			keyed[i] = randomKey(a.Key, sel.Seed, 0)
		}
		sort.SliceStable(attrs, func(i, j int) bool { return keyed[i] < keyed[j] })
	case OrderDesc:
		sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key > attrs[j].Key })
	default:
		sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	}

	start, end := sliceWindow(len(attrs), sel.Offset, sel.Limit)
	return attrs[start:end]
}

// sliceWindow applies the offset/limit boundary arithmetic from spec.md
// §4.4: offset is clamped into [0, n]; limit == 0 takes everything from
// offset to the end; limit > 0 takes up to limit items from offset,
// truncated at n; limit < 0 takes from offset up to (n - |limit|), empty
// if that upper bound does not exceed offset.
func sliceWindow(n, offset, limit int) (start, end int) {
	start = offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	switch {
	case limit == 0:
		end = n
	case limit > 0:
		end = start + limit
		if end > n {
			end = n
		}
	default:
		end = n + limit
		if end < start {
			end = start
		}
	}
	return start, end
}

// randomKey derives a stable pseudo-random sort key for a candidate from
// Seed, so that RANDOM ordering is reproducible for a given seed rather
// than changing on every Parse call — see DESIGN.md's open-question
// resolution for RANDOM (spec.md §9 item 3).
func randomKey(s string, seed uint64, keyIndex int) string {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatUint(seed, 16)))
	h.Write([]byte{byte(keyIndex)})
	h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 16)
}

// compareKey compares two resolved sort-key values per spec.md §4.4: when
// both are integers (and dotEval is not requested — dot-eval is a
// string-segment mode), they compare numerically; otherwise each is
// coerced to a string (AsString) and compared as a whole, or, when dotEval
// is set, segment-wise on '.' with numeric comparison per segment when
// both sides parse as integers (falling back to a plain string compare of
// the segment otherwise). Mixing an integer with a string-ish value
// compares them as strings, per spec.md §4.4.
func compareKey(a, b Value, dotEval bool) int {
	if !dotEval && a.Kind == KindInt && b.Kind == KindInt {
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	}
	return compareKeyStrings(a.AsString(), b.AsString(), dotEval)
}

// compareKeyStrings compares two rendered key strings, either as a whole
// string or, when dotEval is set, segment-wise on '.' with numeric
// comparison per segment when both sides parse as integers (falling back
// to a plain string compare of the segment otherwise).
func compareKeyStrings(a, b string, dotEval bool) int {
	if !dotEval {
		return strings.Compare(a, b)
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

func compareSegment(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// parseOrderMethod parses a single order-by token ("asc", "desc",
// "random"), optionally prefixed with "." to request DOT_EVAL mode (e.g.
// ".asc"), defaulting to ascending on an empty or unrecognized value.
func parseOrderMethod(s string) (OrderMethod, bool) {
	dot := false
	if rest, ok := strings.CutPrefix(s, "."); ok {
		s, dot = rest, true
	}
	switch strings.ToLower(s) {
	case "desc":
		return OrderDesc, dot
	case "random":
		return OrderRandom, dot
	default:
		return OrderAsc, dot
	}
}

// parseOrderList splits a comma-separated order-by attribute value into one
// OrderMethod per key, cycling the list if it's shorter than keyCount — per
// the `for` directive's "cycling if shorter than the key list" rule.
func parseOrderList(s string, keyCount int) []OrderMethod {
	if keyCount == 0 {
		return nil
	}
	var toks []string
	if s != "" {
		toks = strings.Split(s, ",")
	}
	if len(toks) == 0 {
		toks = []string{"asc"}
	}
	out := make([]OrderMethod, keyCount)
	for i := 0; i < keyCount; i++ {
		order, _ := parseOrderMethod(strings.TrimSpace(toks[i%len(toks)]))
		out[i] = order
	}
	return out
}

// parseDotEvalList mirrors parseOrderList but yields each key's DotEval
// flag.
func parseDotEvalList(s string, keyCount int) []bool {
	if keyCount == 0 {
		return nil
	}
	var toks []string
	if s != "" {
		toks = strings.Split(s, ",")
	}
	if len(toks) == 0 {
		toks = []string{"asc"}
	}
	out := make([]bool, keyCount)
	for i := 0; i < keyCount; i++ {
		_, dot := parseOrderMethod(strings.TrimSpace(toks[i%len(toks)]))
		out[i] = dot
	}
	return out
}
