package engine

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

func mustRoot(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return doc.Root()
}

func compile(t *testing.T, dataXML, templateXML string) *etree.Document {
	t.Helper()
	data := mustRoot(t, dataXML)
	tpl := mustRoot(t, templateXML)
	p, err := New(data, tpl, "s:")
	require.NoError(t, err)
	out, err := p.Parse()
	require.NoError(t, err)
	return out
}

func compiledString(t *testing.T, doc *etree.Document) string {
	t.Helper()
	doc.Indent(etree.NoIndent)
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return strings.TrimSpace(s)
}

func TestForRangeIteration(t *testing.T) {
	out := compile(t, `<root/>`,
		`<ul><s:for-range tag="i" from="1" to="4"><li><s:value src="{i}"/></li></s:for-range></ul>`)
	require.Equal(t, "<ul><li>1</li><li>2</li><li>3</li></ul>", compiledString(t, out))
}

func TestForChildIterationWithSort(t *testing.T) {
	// s:item's wrapper tag is stripped (spec.md §9 item 4: header/footer/
	// item/empty/error/is bodies are emitted, never the element itself), so
	// the three sorted children's text is appended directly, one after the
	// other, with no separators.
	out := compile(t, `<root><p n="b"/><p n="a"/><p n="c"/></root>`,
		`<s:for in="/" sort-by="$~n" order-by="asc"><s:item><s:value src="$~n"/></s:item></s:for>`)
	require.Equal(t, "abc", compiledString(t, out))
}

func TestForPropsDescending(t *testing.T) {
	out := compile(t, `<root><e a="1" c="3" b="2"/></root>`,
		`<s:for-props in="/e" order-by="desc"><s:item><s:value src="$"/></s:item></s:for-props>`)
	require.Equal(t, "321", compiledString(t, out))
}

func TestForHeaderItemFooterSequence(t *testing.T) {
	// Exercises the full header → item (×N) → footer chain of the `for`
	// directive end to end, not just its sort order.
	out := compile(t, `<root><p n="a"/><p n="b"/></root>`,
		`<s:for in="/"><s:header>H</s:header><s:item><s:value src="$~n"/></s:item><s:footer>F</s:footer></s:for>`)
	require.Equal(t, "HabF", compiledString(t, out))
}

func TestWhenConditionalDispatch(t *testing.T) {
	out := compile(t, `<root kind="x"/>`,
		`<s:when subject="/~kind"><s:is value="#y"><Y/></s:is><s:is value="#x"><X/></s:is></s:when>`)
	require.Equal(t, "<X/>", compiledString(t, out))
}

func TestDynamicElement(t *testing.T) {
	out := compile(t, `<root><t>section</t></root>`,
		`<s:element type="/t" class="hi"/>`)
	require.Equal(t, `<section class="hi"/>`, compiledString(t, out))
}

func TestEmptyBranch(t *testing.T) {
	out := compile(t, `<root/>`,
		`<s:for in="/"><s:item>X</s:item><s:empty>NONE</s:empty></s:for>`)
	require.Equal(t, "NONE", compiledString(t, out))
}

func TestStructuralIdentityWithoutDirectives(t *testing.T) {
	tplXML := `<page><head title="hi"/><body><p>text</p></body></page>`
	out := compile(t, `<root/>`, tplXML)
	want := mustDoc(t, tplXML)
	require.Equal(t, compiledString(t, want), compiledString(t, out))
}

func TestStacksEmptyAfterParse(t *testing.T) {
	data := mustRoot(t, `<root/>`)
	tpl := mustRoot(t, `<a><b/></a>`)
	p, err := New(data, tpl, "s:")
	require.NoError(t, err)
	_, err = p.Parse()
	require.NoError(t, err)
	require.Empty(t, p.templateStack)
	require.Empty(t, p.compiledStack)
}

func TestSymbolFrameDepthRestoredAfterFor(t *testing.T) {
	data := mustRoot(t, `<root><p/><p/></root>`)
	tpl := mustRoot(t, `<s:for in="/"><s:item>x</s:item></s:for>`)
	p, err := New(data, tpl, "s:")
	require.NoError(t, err)
	depthBefore := p.symbols.Depth()
	out, err := p.Parse()
	require.NoError(t, err)
	require.Equal(t, depthBefore, p.symbols.Depth())
	require.Equal(t, "xx", compiledString(t, out))
}

func TestParseCalledTwiceErrors(t *testing.T) {
	data := mustRoot(t, `<root/>`)
	tpl := mustRoot(t, `<a/>`)
	p, err := New(data, tpl, "s:")
	require.NoError(t, err)
	_, err = p.Parse()
	require.NoError(t, err)
	_, err = p.Parse()
	require.ErrorIs(t, err, ErrAlreadyParsed)
}

func TestResetAllowsReparse(t *testing.T) {
	data := mustRoot(t, `<root/>`)
	tpl := mustRoot(t, `<a/>`)
	p, err := New(data, tpl, "s:")
	require.NoError(t, err)
	_, err = p.Parse()
	require.NoError(t, err)
	p.Reset()
	_, err = p.Parse()
	require.NoError(t, err)
}

func TestUnknownDirectiveIsLogged(t *testing.T) {
	data := mustRoot(t, `<root/>`)
	tpl := mustRoot(t, `<a><s:bogus/></a>`)
	p, err := New(data, tpl, "s:")
	require.NoError(t, err)
	_, err = p.Parse()
	require.NoError(t, err)
	require.Len(t, p.Log(), 1)
	require.Equal(t, SeverityError, p.Log()[0].Severity)
}

func mustDoc(t *testing.T, xml string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return doc
}
