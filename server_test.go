package doctpl

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestHandlerRendersPage(t *testing.T) {
	fsys := fstest.MapFS{
		"index.data.xml": &fstest.MapFile{Data: []byte(`<root><name>World</name></root>`)},
		"index.tpl.xml":  &fstest.MapFile{Data: []byte(`<p><s:value src="/name~!txt"/></p>`)},
	}
	h := &Handler{FileSystem: fsys}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "World")
}

func TestHandlerMissingPageReturnsServerError(t *testing.T) {
	fsys := fstest.MapFS{}
	h := &Handler{FileSystem: fsys}

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPageBase(t *testing.T) {
	cases := map[string]string{
		"/":         "index",
		"/about":    "about",
		"/about/":   "about",
		"/a/b":      "a/b",
		"/a/b/":     "a/b",
	}
	for in, want := range cases {
		if got := pageBase(in); got != want {
			t.Errorf("pageBase(%q) = %q, want %q", in, got, want)
		}
	}
}
