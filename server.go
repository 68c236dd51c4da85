package doctpl

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/gorilla/websocket"

	"github.com/tidalf/doctpl/engine"
)

// wsUpgrader is a Gorilla WebSocket instance, used to respond to HTTP
// requests with a live-reload WebSocket connection, mirroring the
// teacher's root-package wsUpgrader in pages.go.
var wsUpgrader = websocket.Upgrader{}

// Handler serves compiled documents over HTTP: a GET request for
// "/<page>" loads "<page>.data.xml" and "<page>.tpl.xml" from FileSystem,
// runs them through engine.Preprocessor, and writes the compiled document
// back as XML. A WebSocket upgrade on the same path re-renders and pushes
// the compiled document on every incoming message, for a browser-side
// live-reload client to drive — the "preview server" ambient layer named
// alongside the CLI driver in spec.md §1's out-of-scope collaborators.
type Handler struct {
	// FileSystem to load data/template document pairs from.
	FileSystem fs.FS

	// Prefix is the directive namespace prefix passed to engine.New.
	// Defaults to "s:" when empty.
	Prefix string

	// RandomSeed seeds RANDOM selection ordering; see engine.Preprocessor.WithRandomSeed.
	RandomSeed uint64

	// Logger configures logging for internal events.
	Logger *slog.Logger

	// OnError is called, if set, whenever serving a request fails.
	OnError func(*http.Request, error)

	init   sync.Once
	logger *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init.Do(func() {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		if h.Logger != nil {
			h.logger = h.Logger
		}
	})

	if err := h.handleRequest(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		h.logger.Error("serve request", "url", r.URL.Redacted(), "error", err)
		if h.OnError != nil {
			h.OnError(r, err)
		}
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) error {
	base := pageBase(r.URL.Path)

	if websocket.IsWebSocketUpgrade(r) {
		return h.serveLiveReload(w, r, base)
	}
	return h.renderOnce(w, base)
}

func (h *Handler) renderOnce(w http.ResponseWriter, base string) error {
	doc, logEntries, err := h.compile(base)
	if err != nil {
		return err
	}
	for _, e := range logEntries {
		h.logger.Warn("compile diagnostic", "page", base, "entry", e.String())
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, err = doc.WriteTo(w)
	return err
}

// serveLiveReload upgrades the connection and re-renders the page on every
// incoming message, writing the freshly compiled document back as a text
// message — the teacher's "render on each incoming websocket message"
// loop (pages.go's servePage), simplified: this system has no per-request
// component scope to drive re-renders from data changes, so the client is
// expected to prompt a re-render (e.g. after detecting a file change)
// rather than the server pushing unprompted.
func (h *Handler) serveLiveReload(w http.ResponseWriter, r *http.Request, base string) error {
	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read websocket message: %w", err)
		}

		doc, logEntries, err := h.compile(base)
		if err != nil {
			if err := ws.WriteMessage(websocket.TextMessage, []byte("error: "+err.Error())); err != nil {
				return fmt.Errorf("write websocket error message: %w", err)
			}
			continue
		}
		for _, e := range logEntries {
			h.logger.Warn("compile diagnostic", "page", base, "entry", e.String())
		}

		out, err := doc.WriteToString()
		if err != nil {
			return fmt.Errorf("render compiled document: %w", err)
		}
		if err := ws.WriteMessage(websocket.TextMessage, []byte(out)); err != nil {
			return fmt.Errorf("write websocket message: %w", err)
		}
	}
}

func (h *Handler) compile(base string) (*etree.Document, []engine.LogEntry, error) {
	data, template, err := LoadPage(h.FileSystem, base)
	if err != nil {
		return nil, nil, err
	}

	p, err := engine.New(data, template, h.Prefix)
	if err != nil {
		return nil, nil, err
	}
	p.WithRandomSeed(h.RandomSeed)

	doc, err := p.Parse()
	if err != nil {
		return nil, nil, err
	}
	return doc, p.Log(), nil
}

// pageBase strips the leading slash and maps the root path to "index",
// mirroring the teacher's matchFile convention (pages.go: `if seg == "/"
// { seg = "index" }`).
func pageBase(urlPath string) string {
	base := strings.TrimPrefix(urlPath, "/")
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		base = "index"
	}
	return path.Clean(base)
}
