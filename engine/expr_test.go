package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestPreprocessor(t *testing.T, dataXML string) *Preprocessor {
	t.Helper()
	data := mustRoot(t, dataXML)
	tpl := mustRoot(t, `<root/>`)
	p, err := New(data, tpl, "s:")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestResolveLiterals(t *testing.T) {
	p := newTestPreprocessor(t, `<root/>`)

	cases := []struct {
		name string
		expr string
		want Value
	}{
		{"positive int", "42", IntValue(42)},
		{"negative int", "-7", IntValue(-7)},
		{"leading dot int", ".5", IntValue(5)},
		{"string literal", "#hello", StringValue("hello")},
		{"empty string literal", "#", StringValue("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := p.resolve(tc.expr, nil)
			if !ok {
				t.Fatalf("resolve(%q): absent, want present", tc.expr)
			}
			if diff := cmp.Diff(tc.want, got, cmpopts.IgnoreFields(Value{}, "Node", "Attr")); diff != "" {
				t.Errorf("resolve(%q) mismatch (-want +got):\n%s", tc.expr, diff)
			}
		})
	}
}

func TestResolvePathNavigation(t *testing.T) {
	p := newTestPreprocessor(t, `<root><a x="1"><b>hi</b></a></root>`)

	got, ok := p.resolve("/a/b~!txt", nil)
	if !ok || got.Kind != KindString || got.Str != "hi" {
		t.Fatalf("resolve(/a/b~!txt) = %+v, %v", got, ok)
	}

	got, ok = p.resolve("/a~x", nil)
	if !ok || got.Kind != KindAttr || got.Attr == nil || got.Attr.Value != "1" {
		t.Fatalf("resolve(/a~x) = %+v, %v", got, ok)
	}

	got, ok = p.resolve("/a~!tag", nil)
	if !ok || got.Kind != KindString || got.Str != "a" {
		t.Fatalf("resolve(/a~!tag) = %+v, %v", got, ok)
	}
}

func TestResolveMissingChildChainsToAbsent(t *testing.T) {
	p := newTestPreprocessor(t, `<root><a/></root>`)

	got, ok := p.resolve("/a/missing/deeper~missingattr", nil)
	if !ok {
		t.Fatalf("resolve should still be ok=true for a chained-absent attribute lookup")
	}
	if got.Kind != KindAttr || got.Attr != nil {
		t.Fatalf("expected a nil attribute value, got %+v", got)
	}
}

func TestResolveBraceSymbol(t *testing.T) {
	p := newTestPreprocessor(t, `<root><a><b>x</b></a></root>`)
	p.symbols.Set("n", IntValue(9))
	p.symbols.Set("node", NodeValue(mustRoot(t, `<a><b>x</b></a>`)))

	got, ok := p.resolve("{n}", nil)
	if !ok || got.Kind != KindInt || got.Int != 9 {
		t.Fatalf("resolve({n}) = %+v, %v", got, ok)
	}

	got, ok = p.resolve("{node}/b~!txt", nil)
	if !ok || got.Kind != KindString || got.Str != "x" {
		t.Fatalf("resolve({node}/b~!txt) = %+v, %v", got, ok)
	}
}

func TestResolveIdempotent(t *testing.T) {
	p := newTestPreprocessor(t, `<root><a/></root>`)
	first, ok1 := p.resolve("/a", nil)
	second, ok2 := p.resolve("/a", nil)
	if ok1 != ok2 || first.Node != second.Node {
		t.Fatalf("expression resolution is not idempotent: %+v vs %+v", first, second)
	}
}

func TestResolveUnknownLeadingCharIsAbsent(t *testing.T) {
	p := newTestPreprocessor(t, `<root/>`)
	_, ok := p.resolve("?nope", nil)
	if ok {
		t.Fatalf("expected absent for an unrecognized leading character")
	}
}
