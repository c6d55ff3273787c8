package web

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/odvcencio/arbor/grammars"
	"github.com/odvcencio/arbor/internal/document"
	"github.com/odvcencio/arbor/sitter"
)

// ErrNotOpen is returned for requests naming a document that is not open.
var ErrNotOpen = errors.New("document not open")

// ErrUnknownLanguage is returned when no registered language matches a
// document.
var ErrUnknownLanguage = errors.New("unknown language")

// Workspace holds the documents open in a server.
type Workspace struct {
	parserOpts []sitter.ParserOption

	mu      sync.Mutex
	docs    map[string]*openDoc
	queries map[queryKey]*sitter.Query
	lights  map[string]*sitter.Highlighter
}

type queryKey struct {
	lang string
	role sitter.QueryRole
}

type openDoc struct {
	// mu keeps the tree alive while a request reads it.
	mu    sync.Mutex
	doc   *document.Document
	entry *grammars.LangEntry
	lang  *sitter.Language
}

// NewWorkspace returns an empty workspace. opts apply to every document's
// parser.
func NewWorkspace(opts ...sitter.ParserOption) *Workspace {
	return &Workspace{
		parserOpts: opts,
		docs:       make(map[string]*openDoc),
		queries:    make(map[queryKey]*sitter.Query),
		lights:     make(map[string]*sitter.Highlighter),
	}
}

// Range is a span of a document on the wire.
type Range struct {
	StartByte uint32 `json:"startByte"`
	EndByte   uint32 `json:"endByte"`
	Start     Point  `json:"start"`
	End       Point  `json:"end"`
}

// Point is a row and byte column.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

func wireRange(r sitter.Range) Range {
	return Range{
		StartByte: r.StartByte,
		EndByte:   r.EndByte,
		Start:     Point{Row: r.StartPoint.Row, Column: r.StartPoint.Column},
		End:       Point{Row: r.EndPoint.Row, Column: r.EndPoint.Column},
	}
}

// TreeResult describes a document's current tree.
type TreeResult struct {
	URI      string `json:"uri"`
	Language string `json:"language"`
	Version  int    `json:"version"`
	Tree     string `json:"tree"`
	HasError bool   `json:"hasError"`
}

// ChangeResult is the outcome of an edit, also broadcast as a didChange
// notification.
type ChangeResult struct {
	URI      string  `json:"uri"`
	Version  int     `json:"version"`
	Changed  []Range `json:"changed"`
	HasError bool    `json:"hasError"`
}

// Capture is one query capture.
type Capture struct {
	Pattern int    `json:"pattern"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Range   Range  `json:"range"`
	Text    string `json:"text"`
}

// Highlight is one highlighted span.
type Highlight struct {
	StartByte uint32 `json:"startByte"`
	EndByte   uint32 `json:"endByte"`
	Capture   string `json:"capture"`
}

// Fold is one foldable region with zero-based inclusive lines.
type Fold struct {
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	StartByte uint32 `json:"startByte"`
	EndByte   uint32 `json:"endByte"`
}

// IndentResult is the computed indentation of one line.
type IndentResult struct {
	Line   int    `json:"line"`
	Level  int    `json:"level"`
	Indent string `json:"indent"`
}

// LanguageInfo describes a registered language.
type LanguageInfo struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
	Backend    string   `json:"backend"`
	Roles      []string `json:"roles"`
	Reason     string   `json:"reason,omitempty"`
}

func (w *Workspace) resolveLanguage(uri, name string, text []byte) (*grammars.LangEntry, error) {
	if name != "" {
		if e := grammars.Lookup(name); e != nil {
			return e, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
	}
	if e := grammars.DetectLanguage(uri); e != nil {
		return e, nil
	}
	first, _, _ := bytes.Cut(text, []byte("\n"))
	if e := grammars.DetectLanguageByShebang(string(first)); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w for %s", ErrUnknownLanguage, uri)
}

// Open parses text as the document uri, replacing any document already open
// under that name. An empty language detects it from uri or a shebang line.
func (w *Workspace) Open(uri, language string, text []byte) (*TreeResult, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty uri", errInvalidParams)
	}
	entry, err := w.resolveLanguage(uri, language, text)
	if err != nil {
		return nil, err
	}
	lang, err := entry.Language()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", entry.Name, err)
	}
	od := &openDoc{doc: document.New(lang, text, w.parserOpts...), entry: entry, lang: lang}

	w.mu.Lock()
	old := w.docs[uri]
	w.docs[uri] = od
	w.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.doc.Close()
		old.mu.Unlock()
	}
	log.Infof("opened %s as %s", uri, entry.Name)

	od.mu.Lock()
	defer od.mu.Unlock()
	return od.treeResult(uri), nil
}

func (od *openDoc) treeResult(uri string) *TreeResult {
	_, tree, version := od.doc.Snapshot()
	root := tree.RootNode()
	return &TreeResult{
		URI:      uri,
		Language: od.entry.Name,
		Version:  version,
		Tree:     root.String(),
		HasError: root.HasError(),
	}
}

func (w *Workspace) get(uri string) (*openDoc, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	od, ok := w.docs[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, uri)
	}
	return od, nil
}

// Close drops a document.
func (w *Workspace) Close(uri string) error {
	w.mu.Lock()
	od, ok := w.docs[uri]
	delete(w.docs, uri)
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOpen, uri)
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	od.doc.Close()
	return nil
}

func changeResult(uri string, od *openDoc, ch document.Change) *ChangeResult {
	res := &ChangeResult{URI: uri, Version: ch.Version, Changed: []Range{}}
	for _, r := range ch.Changed {
		res.Changed = append(res.Changed, wireRange(r))
	}
	res.HasError = od.doc.Tree().RootNode().HasError()
	return res
}

// Edit replaces [start, oldEnd) of the document with text.
func (w *Workspace) Edit(uri string, start, oldEnd uint32, text []byte) (*ChangeResult, error) {
	od, err := w.get(uri)
	if err != nil {
		return nil, err
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	ch, err := od.doc.Edit(start, oldEnd, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return changeResult(uri, od, ch), nil
}

// Replace swaps the whole text of the document.
func (w *Workspace) Replace(uri string, text []byte) (*ChangeResult, error) {
	od, err := w.get(uri)
	if err != nil {
		return nil, err
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	return changeResult(uri, od, od.doc.Replace(text)), nil
}

// Tree returns the document's current tree as an S-expression.
func (w *Workspace) Tree(uri string) (*TreeResult, error) {
	od, err := w.get(uri)
	if err != nil {
		return nil, err
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	return od.treeResult(uri), nil
}

// Query runs source against the document. A non-nil window restricts
// matches to nodes intersecting the byte range.
func (w *Workspace) Query(uri, source string, window *[2]uint32) ([]Capture, error) {
	od, err := w.get(uri)
	if err != nil {
		return nil, err
	}
	q, err := sitter.NewQuery(source, od.lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	src, tree, _ := od.doc.Snapshot()
	c := q.Cursor(tree.RootNode())
	c.SetSource(src)
	if window != nil {
		c.SetByteRange(window[0], window[1])
	}
	out := []Capture{}
	for m, capture := range c.Captures() {
		n := capture.Node
		out = append(out, Capture{
			Pattern: m.PatternIndex,
			Name:    capture.Name,
			Type:    n.Type(),
			Range:   wireRange(n.Range()),
			Text:    n.Text(src),
		})
	}
	return out, nil
}

// roleQuery returns the compiled bundled query of a role, or nil when the
// language has none.
func (w *Workspace) roleQuery(od *openDoc, role sitter.QueryRole) (*sitter.Query, error) {
	key := queryKey{od.entry.Name, role}
	w.mu.Lock()
	q, ok := w.queries[key]
	w.mu.Unlock()
	if ok {
		return q, nil
	}
	if src := od.entry.Query(role); src != "" {
		var err error
		if q, err = sitter.NewQuery(src, od.lang); err != nil {
			return nil, fmt.Errorf("%s %s query: %w", od.entry.Name, role, err)
		}
	}
	w.mu.Lock()
	w.queries[key] = q
	w.mu.Unlock()
	return q, nil
}

// Highlight returns the document's highlight spans.
func (w *Workspace) Highlight(uri string) ([]Highlight, error) {
	od, err := w.get(uri)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	h, ok := w.lights[od.entry.Name]
	w.mu.Unlock()
	if !ok {
		src := od.entry.Query(sitter.RoleHighlights)
		if src != "" {
			if h, err = sitter.NewHighlighter(od.lang, src); err != nil {
				return nil, fmt.Errorf("%s highlights query: %w", od.entry.Name, err)
			}
		}
		w.mu.Lock()
		w.lights[od.entry.Name] = h
		w.mu.Unlock()
	}
	out := []Highlight{}
	if h == nil {
		return out, nil
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	src, tree, _ := od.doc.Snapshot()
	for _, r := range h.HighlightTree(tree, src) {
		out = append(out, Highlight{StartByte: r.StartByte, EndByte: r.EndByte, Capture: r.Capture})
	}
	return out, nil
}

// Folds returns the document's fold regions, falling back to brace
// matching when the language has no fold query.
func (w *Workspace) Folds(uri string) ([]Fold, error) {
	od, err := w.get(uri)
	if err != nil {
		return nil, err
	}
	q, err := w.roleQuery(od, sitter.RoleFolds)
	if err != nil {
		return nil, err
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	src, tree, _ := od.doc.Snapshot()
	var regions []sitter.FoldRegion
	if q != nil {
		regions = sitter.Folds(q, tree, src)
	} else {
		regions = sitter.DetectFoldRegions(string(src))
	}
	out := make([]Fold, 0, len(regions))
	for _, r := range regions {
		out = append(out, Fold{StartLine: r.StartLine, EndLine: r.EndLine, StartByte: r.StartByte, EndByte: r.EndByte})
	}
	return out, nil
}

// Indent computes the indentation of line using the language's indent
// query and the document's own indent style.
func (w *Workspace) Indent(uri string, line int) (*IndentResult, error) {
	od, err := w.get(uri)
	if err != nil {
		return nil, err
	}
	q, err := w.roleQuery(od, sitter.RoleIndents)
	if err != nil {
		return nil, err
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	if line < 0 || line >= od.doc.LineCount() {
		return nil, fmt.Errorf("%w: line %d out of range", errInvalidParams, line)
	}
	res := &IndentResult{Line: line}
	if q == nil {
		return res, nil
	}
	src, tree, _ := od.doc.Snapshot()
	res.Level = sitter.IndentLevel(q, tree, src, line)
	res.Indent = sitter.Indentation(sitter.DetectIndentStyle(string(src)), res.Level)
	return res, nil
}

// Languages lists the registered languages with their parse support.
func (w *Workspace) Languages() []LanguageInfo {
	out := []LanguageInfo{}
	reports := grammars.AuditParseSupport()
	byName := make(map[string]grammars.ParseSupport, len(reports))
	for _, r := range reports {
		byName[r.Name] = r
	}
	for _, e := range grammars.AllLanguages() {
		r := byName[e.Name]
		info := LanguageInfo{Name: e.Name, Extensions: e.Extensions, Backend: string(r.Backend), Reason: r.Reason, Roles: []string{}}
		for _, role := range r.Roles {
			info.Roles = append(info.Roles, string(role))
		}
		out = append(out, info)
	}
	return out
}
