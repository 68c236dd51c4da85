// Package doctpl wires the template-preprocessor core in package engine to
// the filesystem and to HTTP, the way the teacher's root pages package
// wires its chtml component engine to an fs.FS and an http.Handler.
package doctpl

import (
	"fmt"
	"io/fs"

	"github.com/beevik/etree"
)

// dataExt and templateExt name the two XML documents a Handler pairs up
// for a single compiled page, mirroring the teacher's single chtmlExt
// convention (pages.go's chtmlExt) generalized to this system's two-
// document model.
const (
	dataExt     = ".data.xml"
	templateExt = ".tpl.xml"
)

// loadElement parses fname from fsys as XML and returns its root element.
// ReadSettings.Permissive mirrors the teacher's older etree-based component
// generation (chtml/component.go), which enables it so that hand-authored
// template fragments need not be strictly well-formed XHTML.
func loadElement(fsys fs.FS, fname string) (*etree.Element, error) {
	f, err := fsys.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fname, err)
	}
	defer f.Close()

	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if _, err := doc.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", fname, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parse %s: empty document", fname)
	}
	return root, nil
}

// LoadPage loads the data and template documents for a page named base
// (without extension) from fsys, returning their root elements.
func LoadPage(fsys fs.FS, base string) (data, template *etree.Element, err error) {
	data, err = loadElement(fsys, base+dataExt)
	if err != nil {
		return nil, nil, err
	}
	template, err = loadElement(fsys, base+templateExt)
	if err != nil {
		return nil, nil, err
	}
	return data, template, nil
}
