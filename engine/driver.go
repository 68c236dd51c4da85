package engine

import "github.com/beevik/etree"

// Preprocessor is the template evaluator: it owns the symbol table, the
// namespace strings for its configured prefix, and the paired
// template/compiled stacks described in spec.md §3. A Preprocessor is not
// safe for concurrent use, and Parse may be called once per New/Reset —
// see spec.md §4.7.
type Preprocessor struct {
	ns           *namespaceStrings
	symbols      *SymbolTable
	dataRoot     *etree.Element
	templateRoot *etree.Element
	compiled     *etree.Document

	templateStack []templateFrame
	compiledStack []*etree.Element

	log        []LogEntry
	parsed     bool
	randomSeed uint64
}

// New constructs a Preprocessor over a data root and a template root,
// under the given directive namespace prefix (defaulting to "s:" when
// empty). $ is bound to the data root immediately, matching spec.md §3's
// "symbol $ is always defined once the driver has been initialized"
// invariant.
func New(data, template *etree.Element, prefix string) (*Preprocessor, error) {
	if template == nil {
		return nil, ErrNilTemplate
	}
	if data == nil {
		return nil, ErrNilData
	}
	if prefix == "" {
		prefix = "s:"
	}

	p := &Preprocessor{
		dataRoot:     data,
		templateRoot: template,
	}
	p.ns = newNamespaceStrings(prefix)
	p.symbols = NewSymbolTable()
	p.symbols.Set("$", NodeValue(data))
	return p, nil
}

// SetNamespace recomputes the directive tag/attribute names for a new
// prefix. Per spec.md §4.1, a single Preprocessor must not mix prefixes
// mid-parse; callers should call this only between Reset and Parse.
func (p *Preprocessor) SetNamespace(prefix string) {
	if prefix == "" {
		prefix = "s:"
	}
	p.ns = newNamespaceStrings(prefix)
}

// WithRandomSeed sets the seed used to derive RANDOM ordering keys,
// resolving spec.md §9 open question 3 ("RANDOM must be stable... an open
// policy whether the hash is provided externally") in favor of accepting a
// caller-supplied seed. It returns p for chaining with New.
func (p *Preprocessor) WithRandomSeed(seed uint64) *Preprocessor {
	p.randomSeed = seed
	return p
}

// Reset discards the symbol table, both evaluation stacks, and the log
// buffer, and rebinds $ to the data root, per spec.md §4.7.
func (p *Preprocessor) Reset() {
	p.symbols = NewSymbolTable()
	p.symbols.Set("$", NodeValue(p.dataRoot))
	p.templateStack = nil
	p.compiledStack = nil
	p.log = nil
	p.compiled = nil
	p.parsed = false
}

// Log returns the diagnostics accumulated by the most recent Parse call.
func (p *Preprocessor) Log() []LogEntry {
	return p.log
}

// Parse drains the template stack and returns the compiled document. It
// may be called once per New/Reset.
//
// The template root is pushed as a single-element range over the compiled
// document's own (nameless) element, rather than being specially copied
// ahead of time: this lets a directive tag sitting at the template root
// (e.g. a top-level s:element or s:for) dispatch exactly as it would
// anywhere else in the tree, instead of being bypassed by a root-level
// special case.
func (p *Preprocessor) Parse() (*etree.Document, error) {
	if p.parsed {
		return nil, ErrAlreadyParsed
	}
	p.parsed = true

	p.compiled = etree.NewDocument()
	p.pushRange([]etree.Token{p.templateRoot}, &p.compiled.Element)
	p.drainTo(1)

	return p.compiled, nil
}
