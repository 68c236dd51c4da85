package engine

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Directive attribute names. Unlike tag names, these are never
// namespace-prefixed (spec.md §4.1: "Attributes (name-only, directive
// attributes)").
const (
	attrTag      = "tag"
	attrFrom     = "from"
	attrTo       = "to"
	attrStep     = "step"
	attrIn       = "in"
	attrFilter   = "filter"
	attrSortBy   = "sort-by"
	attrOrderBy  = "order-by"
	attrOffset   = "offset"
	attrLimit    = "limit"
	attrSrc      = "src"
	attrType     = "type"
	attrSubject  = "subject"
	attrValue    = "value"
	attrContinue = "continue"
)

// templateFrame is one entry of the template stack: a half-open sweep over
// a parent's child tokens.
type templateFrame struct {
	tokens []etree.Token
	idx    int
}

// pushRange pushes a new template range and a matching compiled append
// point, per spec.md §3's paired-stack invariant.
func (p *Preprocessor) pushRange(tokens []etree.Token, appendPoint *etree.Element) {
	p.templateStack = append(p.templateStack, templateFrame{tokens: tokens})
	p.compiledStack = append(p.compiledStack, appendPoint)
}

// drainTo runs step() until the template stack's depth falls below depth.
// Calling it immediately after a pushRange with depth == len(templateStack)
// implements the sentinel re-entry discipline of spec.md §4.6: the drain
// stops exactly when the range just pushed (and anything nested inside it)
// has fully popped, handing control back to the caller.
func (p *Preprocessor) drainTo(depth int) {
	for len(p.templateStack) >= depth {
		p.step()
	}
}

// emitChildren pushes el's child range onto the stack with appendPoint as
// the parent and drains it immediately. el's own tag is never materialized
// in the compiled output — used for <header>/<item>/<footer>/<empty>/
// <error>/<is> bodies, per spec.md §9 item 4.
func (p *Preprocessor) emitChildren(el *etree.Element, appendPoint *etree.Element) {
	if el == nil {
		return
	}
	p.pushRange(el.Child, appendPoint)
	p.drainTo(len(p.templateStack))
}

// step processes exactly one token at the top of the template stack: pop
// the frame if exhausted, otherwise copy or dispatch the current token and
// advance past it.
func (p *Preprocessor) step() {
	top := len(p.templateStack) - 1
	frame := &p.templateStack[top]
	if frame.idx >= len(frame.tokens) {
		p.templateStack = p.templateStack[:top]
		p.compiledStack = p.compiledStack[:top]
		return
	}

	tok := frame.tokens[frame.idx]
	frame.idx++
	appendPoint := p.compiledStack[top]

	switch t := tok.(type) {
	case *etree.CharData:
		appendPoint.CreateText(t.Data)
	case *etree.Element:
		p.stepElement(t, appendPoint)
	}
}

// stepElement dispatches on an element token's fully-qualified name: a
// plain element is copied; a recognized directive name is handled; an
// unrecognized namespaced name is logged and skipped.
func (p *Preprocessor) stepElement(el *etree.Element, appendPoint *etree.Element) {
	name := el.FullTag()
	if !p.ns.hasPrefix(name) {
		p.copyPlainElement(el, appendPoint)
		return
	}
	if !p.ns.directiveTag(name) {
		p.logf(SeverityError, name, "unrecognized directive")
		return
	}

	switch name {
	case p.ns.ForRange:
		p.doForRange(el, appendPoint)
	case p.ns.For:
		p.doFor(el, appendPoint)
	case p.ns.ForProps:
		p.doForProps(el, appendPoint)
	case p.ns.When:
		p.doWhen(el, appendPoint)
	case p.ns.Element:
		p.doElement(el, appendPoint)
	case p.ns.Value:
		p.doValue(el, appendPoint)
	default:
		// empty/header/footer/item/error/is are only meaningful as a
		// direct child of their owning directive, consumed there by
		// emitChildren; encountered on their own, they produce nothing.
	}
}

// copyPlainElement implements spec.md §4.5's non-directive element copy:
// create a like-named child, copy every non-prefixed attribute, report and
// elide unrecognized rewrite-rule attributes, and recurse into children if
// any.
func (p *Preprocessor) copyPlainElement(el *etree.Element, appendPoint *etree.Element) {
	child := appendPoint.CreateElement(el.FullTag())
	p.copyAttrs(el, child)
	if len(el.Child) > 0 {
		p.pushRange(el.Child, child)
	}
}

func (p *Preprocessor) copyAttrs(src, dst *etree.Element) {
	for i := range src.Attr {
		a := &src.Attr[i]
		fullKey := a.FullKey()
		if !p.ns.hasPrefix(fullKey) {
			dst.CreateAttr(fullKey, a.Value)
			continue
		}
		if p.ns.rewriteRule(fullKey) {
			continue
		}
		p.logf(SeverityError, fullKey, "unrecognized attribute-rewrite rule")
	}
}

// resolveIntAttr resolves a directive attribute as an expression and
// coerces the result to an integer, falling back to def when the
// attribute is absent, the expression is absent, or the resolved value
// isn't (or doesn't parse as) an integer.
func (p *Preprocessor) resolveIntAttr(el *etree.Element, name string, def int64) int64 {
	a := el.SelectAttr(name)
	if a == nil {
		return def
	}
	v, ok := p.resolve(a.Value, nil)
	if !ok {
		return def
	}
	if v.Kind == KindInt {
		return v.Int
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v.AsString()), 10, 64)
	if err != nil {
		return def
	}
	return i
}

// doForRange implements the `for-range` directive (spec.md §4.5). Per §9
// open question 1, the loop condition is literally `i < to` regardless of
// step's sign; an explicit pre-check still guards the one combination
// (negative step, ascending from→to) that would otherwise loop forever.
func (p *Preprocessor) doForRange(el *etree.Element, appendPoint *etree.Element) {
	tag := el.SelectAttrValue(attrTag, "")
	from := p.resolveIntAttr(el, attrFrom, 0)
	to := p.resolveIntAttr(el, attrTo, 0)
	step := p.resolveIntAttr(el, attrStep, 1)

	if step == 0 {
		return
	}
	if step > 0 && from >= to {
		return
	}
	if step < 0 && from <= to {
		return
	}

	for i := from; i < to; i += step {
		release := p.symbols.Guard()
		if tag != "" {
			p.symbols.Set(tag, IntValue(i))
		}
		p.symbols.Set("$", IntValue(i))
		p.emitChildren(el, appendPoint)
		release()
	}
}

// doFor implements the `for` directive: selection over a resolved node's
// children, with header/item/footer/empty sub-blocks.
func (p *Preprocessor) doFor(el *etree.Element, appendPoint *etree.Element) {
	tag := el.SelectAttrValue(attrTag, "")
	inExpr := el.SelectAttrValue(attrIn, "$")
	v, ok := p.resolve(inExpr, nil)
	if !ok || v.Kind != KindNode || isAbsent(v.Node) {
		p.emitChildren(firstChildFullTag(el, p.ns.Error), appendPoint)
		return
	}

	items := p.selectChildren(v.Node, p.buildChildSelection(el))
	if len(items) == 0 {
		p.emitChildren(firstChildFullTag(el, p.ns.Empty), appendPoint)
		return
	}

	p.emitChildren(firstChildFullTag(el, p.ns.Header), appendPoint)
	itemTpl := firstChildFullTag(el, p.ns.Item)
	for _, item := range items {
		release := p.symbols.Guard()
		if tag != "" {
			p.symbols.Set(tag, NodeValue(item))
		}
		p.symbols.Set("$", NodeValue(item))
		p.emitChildren(itemTpl, appendPoint)
		release()
	}
	p.emitChildren(firstChildFullTag(el, p.ns.Footer), appendPoint)
}

// doForProps implements the `for-props` directive: as `for`, but ranging
// over the resolved node's attributes instead of its children.
func (p *Preprocessor) doForProps(el *etree.Element, appendPoint *etree.Element) {
	tag := el.SelectAttrValue(attrTag, "")
	inExpr := el.SelectAttrValue(attrIn, "$")
	v, ok := p.resolve(inExpr, nil)
	if !ok || v.Kind != KindNode || isAbsent(v.Node) {
		p.emitChildren(firstChildFullTag(el, p.ns.Error), appendPoint)
		return
	}

	items := p.selectAttrs(v.Node, p.buildAttrSelection(el))
	if len(items) == 0 {
		p.emitChildren(firstChildFullTag(el, p.ns.Empty), appendPoint)
		return
	}

	p.emitChildren(firstChildFullTag(el, p.ns.Header), appendPoint)
	itemTpl := firstChildFullTag(el, p.ns.Item)
	for _, a := range items {
		release := p.symbols.Guard()
		av := AttrValue(a)
		if tag != "" {
			p.symbols.Set(tag, av)
		}
		p.symbols.Set("$", av)
		p.emitChildren(itemTpl, appendPoint)
		release()
	}
	p.emitChildren(firstChildFullTag(el, p.ns.Footer), appendPoint)
}

// buildChildSelection reads a `for` element's sort-by/order-by/offset/limit
// attributes into a ChildSelection. order-by cycles if it names fewer
// directions than sort-by names keys, per spec.md §4.5.
func (p *Preprocessor) buildChildSelection(el *etree.Element) ChildSelection {
	var keyExprs []string
	if sortBy := el.SelectAttrValue(attrSortBy, ""); sortBy != "" {
		keyExprs = strings.Split(sortBy, ",")
	}
	orderBy := el.SelectAttrValue(attrOrderBy, "asc")
	orders := parseOrderList(orderBy, len(keyExprs))
	dots := parseDotEvalList(orderBy, len(keyExprs))

	keys := make([]SortKey, len(keyExprs))
	for i, k := range keyExprs {
		keys[i] = SortKey{Expr: strings.TrimSpace(k), Order: orders[i], DotEval: dots[i]}
	}

	return ChildSelection{
		Keys:   keys,
		Filter: el.SelectAttrValue(attrFilter, ""),
		Offset: int(p.resolveIntAttr(el, attrOffset, 0)),
		Limit:  int(p.resolveIntAttr(el, attrLimit, 0)),
		Seed:   p.randomSeed,
	}
}

// buildAttrSelection reads a `for-props` element's order-by/offset/limit
// attributes into an AttrSelection.
func (p *Preprocessor) buildAttrSelection(el *etree.Element) AttrSelection {
	order, _ := parseOrderMethod(el.SelectAttrValue(attrOrderBy, "asc"))
	return AttrSelection{
		Order:  order,
		Filter: el.SelectAttrValue(attrFilter, ""),
		Offset: int(p.resolveIntAttr(el, attrOffset, 0)),
		Limit:  int(p.resolveIntAttr(el, attrLimit, 0)),
		Seed:   p.randomSeed,
	}
}

// doWhen implements the `when`/`is` conditional dispatch of spec.md §4.5.
func (p *Preprocessor) doWhen(el *etree.Element, appendPoint *etree.Element) {
	subjExpr := el.SelectAttrValue(attrSubject, "$")
	subj, subjOK := p.resolve(subjExpr, nil)

	for _, is := range el.ChildElements() {
		if is.FullTag() != p.ns.Is {
			continue
		}
		valExpr := is.SelectAttrValue(attrValue, "$")
		val, valOK := p.resolve(valExpr, nil)

		if !valuesEqual(subj, subjOK, val, valOK) {
			continue
		}
		p.emitChildren(is, appendPoint)
		if !parseBool(is.SelectAttrValue(attrContinue, "false")) {
			return
		}
	}
}

// valuesEqual implements the when/is comparison rule: both absent is
// equal, exactly one absent is unequal, both integers compare numerically,
// anything else is coerced to a string and compared byte-wise.
func valuesEqual(a Value, aOK bool, b Value, bOK bool) bool {
	if !aOK && !bOK {
		return true
	}
	if aOK != bOK {
		return false
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		return a.Int == b.Int
	}
	return a.AsString() == b.AsString()
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return v
}

// doElement implements the `element` directive: dynamic element-name
// synthesis from a resolved string or node.
func (p *Preprocessor) doElement(el *etree.Element, appendPoint *etree.Element) {
	typeExpr := el.SelectAttrValue(attrType, "$")
	v, ok := p.resolve(typeExpr, nil)
	if !ok {
		return
	}

	var tagName string
	switch v.Kind {
	case KindString:
		tagName = v.Str
	case KindNode:
		tagName = elementText(v.Node)
	default:
		return
	}
	if tagName == "" {
		return
	}

	child := appendPoint.CreateElement(tagName)
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.FullKey() == attrType {
			continue
		}
		child.CreateAttr(a.FullKey(), a.Value)
	}
	p.emitChildren(el, child)
}

// doValue implements the `value` directive: resolve src and append its
// rendering, or fall back to the directive's own children when absent.
func (p *Preprocessor) doValue(el *etree.Element, appendPoint *etree.Element) {
	srcExpr := el.SelectAttrValue(attrSrc, "$")
	v, ok := p.resolve(srcExpr, nil)
	if !ok {
		p.emitChildren(el, appendPoint)
		return
	}

	switch v.Kind {
	case KindInt:
		appendPoint.CreateText(strconv.FormatInt(v.Int, 10))
	case KindString:
		appendPoint.CreateText(v.Str)
	case KindAttr:
		if v.Attr != nil {
			appendPoint.CreateText(v.Attr.Value)
		} else {
			appendPoint.CreateText("")
		}
	case KindNode:
		if !isAbsent(v.Node) {
			appendPoint.AddChild(v.Node.Copy())
		}
	}
}

// firstChildFullTag returns the first direct child element of n whose
// fully-qualified tag matches fullTag, or nil.
func firstChildFullTag(n *etree.Element, fullTag string) *etree.Element {
	if n == nil {
		return nil
	}
	for _, c := range n.ChildElements() {
		if c.FullTag() == fullTag {
			return c
		}
	}
	return nil
}
