package sitter

// Injection is a range of the document written in another language.
type Injection struct {
	Language string
	Range    Range
	Node     *Node
	// IncludeChildren reports whether the content node's children belong
	// to the injected document too.
	IncludeChildren bool
}

// Injections returns the ranges captured as @injection.content. The
// language comes from an @injection.language capture in the same match,
// or from the pattern's injection.language property.
func Injections(q *Query, tree *Tree, source []byte) []Injection {
	var out []Injection
	for _, m := range q.ExecuteNode(tree.RootNode(), source) {
		lang, _ := q.Property(m.PatternIndex, "injection.language")
		if nodes := m.Nodes("injection.language"); len(nodes) > 0 {
			lang = nodes[0].Text(source)
		}
		_, include := q.Property(m.PatternIndex, "injection.include-children")
		for _, n := range m.Nodes("injection.content") {
			if lang == "" || n.StartByte() == n.EndByte() {
				continue
			}
			out = append(out, Injection{
				Language:        lang,
				Range:           n.Range(),
				Node:            n,
				IncludeChildren: include,
			})
		}
	}
	return out
}
