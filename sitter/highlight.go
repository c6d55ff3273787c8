package sitter

import "sort"

// HighlightRange represents a styled range of source code, mapping a byte span
// to a capture name from a highlight query. Callers map capture names
// (e.g., "keyword", "string", "function") to their own styles.
type HighlightRange struct {
	StartByte uint32
	EndByte   uint32
	Capture   string // "keyword", "string", "function", etc.
}

// Highlighter is a high-level API that takes source code and returns styled
// ranges. It combines a Parser and a compiled highlight Query.
type Highlighter struct {
	parser     *Parser
	query      *Query
	lang       *Language
	parserOpts []ParserOption
}

// HighlighterOption configures a Highlighter.
type HighlighterOption func(*Highlighter)

// WithParserOptions configures the parser the highlighter uses.
func WithParserOptions(opts ...ParserOption) HighlighterOption {
	return func(h *Highlighter) {
		h.parserOpts = append(h.parserOpts, opts...)
	}
}

// NewHighlighter creates a Highlighter for the given language and highlight
// query (in tree-sitter .scm format). Returns an error if the query fails
// to compile.
func NewHighlighter(lang *Language, highlightQuery string, opts ...HighlighterOption) (*Highlighter, error) {
	q, err := NewQuery(highlightQuery, lang)
	if err != nil {
		return nil, err
	}

	h := &Highlighter{
		query: q,
		lang:  lang,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.parser = NewParser(lang, h.parserOpts...)
	return h, nil
}

// Query returns the compiled highlight query.
func (h *Highlighter) Query() *Query { return h.query }

// HighlightIncremental re-highlights source after edits were applied to oldTree.
// Returns the new highlight ranges and the new parse tree (for use in subsequent
// incremental calls). Call oldTree.Edit() before calling this.
func (h *Highlighter) HighlightIncremental(source []byte, oldTree *Tree) ([]HighlightRange, *Tree) {
	tree := h.parser.ParseIncremental(source, oldTree)
	return h.HighlightTree(tree, source), tree
}

// Highlight parses the source code and executes the highlight query, returning
// a slice of HighlightRange sorted by StartByte. When ranges overlap, inner
// (more specific) captures take priority over outer ones.
func (h *Highlighter) Highlight(source []byte) []HighlightRange {
	if len(source) == 0 {
		return nil
	}
	tree := h.parser.Parse(source)
	defer tree.Release()
	return h.HighlightTree(tree, source)
}

// HighlightTree highlights an existing tree of source.
func (h *Highlighter) HighlightTree(tree *Tree, source []byte) []HighlightRange {
	if tree == nil || tree.RootNode() == nil {
		return nil
	}
	matches := h.query.ExecuteNode(tree.RootNode(), source)
	if len(matches) == 0 {
		return nil
	}

	var ranges []HighlightRange
	for _, m := range matches {
		for _, c := range m.Captures {
			node := c.Node
			if node.StartByte() == node.EndByte() {
				continue
			}
			// Captures starting with "_" are helpers for predicates.
			if len(c.Name) > 0 && c.Name[0] == '_' {
				continue
			}
			ranges = append(ranges, HighlightRange{
				StartByte: node.StartByte(),
				EndByte:   node.EndByte(),
				Capture:   c.Name,
			})
		}
	}

	if len(ranges) == 0 {
		return nil
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].StartByte != ranges[j].StartByte {
			return ranges[i].StartByte < ranges[j].StartByte
		}
		wi := ranges[i].EndByte - ranges[i].StartByte
		wj := ranges[j].EndByte - ranges[j].StartByte
		return wi > wj
	})

	return resolveOverlaps(ranges)
}

// resolveOverlaps takes a sorted slice of ranges (sorted by StartByte asc,
// span width desc) and returns a non-overlapping slice where inner (narrower)
// captures take priority over outer (wider) ones. Between equal spans the
// first capture wins.
func resolveOverlaps(ranges []HighlightRange) []HighlightRange {
	if len(ranges) == 0 {
		return nil
	}

	type event struct {
		pos     uint32
		isStart bool
		idx     int // index into ranges
	}

	events := make([]event, 0, len(ranges)*2)
	for i := range ranges {
		events = append(events,
			event{pos: ranges[i].StartByte, isStart: true, idx: i},
			event{pos: ranges[i].EndByte, isStart: false, idx: i},
		)
	}

	// Ends before starts at the same position; wider starts first so the
	// narrower range ends up on top of the stack.
	sort.Slice(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		if events[i].isStart != events[j].isStart {
			return !events[i].isStart
		}
		if events[i].isStart {
			return events[i].idx < events[j].idx
		}
		return events[i].idx > events[j].idx
	})

	var stack []int
	active := make([]bool, len(ranges))

	var result []HighlightRange
	var lastPos uint32
	var lastCapture string
	hasLast := false

	flushSegment := func(endPos uint32) {
		if !hasLast || endPos <= lastPos || lastCapture == "" {
			return
		}
		// Merge with the previous segment when contiguous and identical.
		if n := len(result); n > 0 && result[n-1].EndByte == lastPos && result[n-1].Capture == lastCapture {
			result[n-1].EndByte = endPos
			return
		}
		result = append(result, HighlightRange{
			StartByte: lastPos,
			EndByte:   endPos,
			Capture:   lastCapture,
		})
	}

	for _, ev := range events {
		if ev.pos > lastPos && hasLast {
			flushSegment(ev.pos)
		}

		if ev.isStart {
			stack = append(stack, ev.idx)
			active[ev.idx] = true
		} else {
			active[ev.idx] = false
			for len(stack) > 0 && !active[stack[len(stack)-1]] {
				stack = stack[:len(stack)-1]
			}
		}

		lastPos = ev.pos
		lastCapture = ""
		hasLast = true
		for i := len(stack) - 1; i >= 0; i-- {
			idx := stack[i]
			if !active[idx] {
				continue
			}
			// Among ranges with identical spans, the earliest one wins.
			best := idx
			for j := i - 1; j >= 0; j-- {
				o := stack[j]
				if active[o] && ranges[o].StartByte == ranges[idx].StartByte && ranges[o].EndByte == ranges[idx].EndByte {
					best = o
				}
			}
			lastCapture = ranges[best].Capture
			break
		}
	}

	return result
}
