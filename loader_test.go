package doctpl

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadPage(t *testing.T) {
	fsys := fstest.MapFS{
		"home.data.xml": &fstest.MapFile{Data: []byte(`<root><name>World</name></root>`)},
		"home.tpl.xml":  &fstest.MapFile{Data: []byte(`<p>Hello, <s:value src="/name~!txt"/>!</p>`)},
	}

	data, tpl, err := LoadPage(fsys, "home")
	require.NoError(t, err)
	require.Equal(t, "root", data.Tag)
	require.Equal(t, "p", tpl.Tag)
}

func TestLoadPageMissingFile(t *testing.T) {
	fsys := fstest.MapFS{
		"home.data.xml": &fstest.MapFile{Data: []byte(`<root/>`)},
	}
	_, _, err := LoadPage(fsys, "home")
	require.Error(t, err)
}
