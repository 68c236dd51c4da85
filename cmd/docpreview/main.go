// Command docpreview is the CLI driver around package engine and the
// package doctpl preview server: it either compiles a single data/template
// pair to stdout, or serves a directory of pages over HTTP with a
// live-reload WebSocket endpoint.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/beevik/etree"

	"github.com/tidalf/doctpl"
	"github.com/tidalf/doctpl/engine"
)

func loadFile(name string) (*etree.Element, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if _, err := doc.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parse %s: empty document", name)
	}
	return root, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "docpreview:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("docpreview", flag.ExitOnError)
	var (
		prefix = fs.String("prefix", "s:", "directive namespace prefix")
		serve  = fs.String("serve", "", "serve a directory of pages over HTTP at this address (e.g. :8080); when set, -data/-template are ignored")
		root   = fs.String("root", ".", "root directory to serve pages from, with -serve")
		data   = fs.String("data", "", "path to the data document")
		tpl    = fs.String("template", "", "path to the template document")
		seed   = fs.Uint64("seed", 0, "seed for RANDOM selection ordering")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *serve != "" {
		return runServer(*serve, *root, *prefix, *seed)
	}
	return runOnce(*data, *tpl, *prefix, *seed)
}

func runServer(addr, root, prefix string, seed uint64) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := &doctpl.Handler{
		FileSystem: os.DirFS(root),
		Prefix:     prefix,
		RandomSeed: seed,
		Logger:     logger,
		OnError: func(r *http.Request, err error) {
			logger.Error("request failed", "path", r.URL.Path, "error", err)
		},
	}
	logger.Info("serving", "addr", addr, "root", root)
	return http.ListenAndServe(addr, h)
}

func runOnce(dataPath, tplPath, prefix string, seed uint64) error {
	if dataPath == "" || tplPath == "" {
		return fmt.Errorf("both -data and -template are required when -serve is not set")
	}

	dataEl, err := loadFile(dataPath)
	if err != nil {
		return err
	}
	tplEl, err := loadFile(tplPath)
	if err != nil {
		return err
	}

	p, err := engine.New(dataEl, tplEl, prefix)
	if err != nil {
		return err
	}
	p.WithRandomSeed(seed)

	compiled, err := p.Parse()
	if err != nil {
		return err
	}
	for _, entry := range p.Log() {
		fmt.Fprintln(os.Stderr, "docpreview:", entry.String())
	}

	compiled.Indent(2)
	_, err = compiled.WriteTo(os.Stdout)
	return err
}
