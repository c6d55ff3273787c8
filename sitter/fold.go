package sitter

import (
	"sort"
	"strings"
)

// FoldRegion represents a foldable region of text. Lines are zero-based
// and inclusive.
type FoldRegion struct {
	StartLine int
	EndLine   int
	StartByte uint32
	EndByte   uint32
}

// Folds returns the regions captured as @fold that span more than one
// line, sorted by start line. When several regions start on the same line
// the widest one is kept.
func Folds(q *Query, tree *Tree, source []byte) []FoldRegion {
	byLine := make(map[int]FoldRegion)
	for _, m := range q.ExecuteNode(tree.RootNode(), source) {
		for _, c := range m.Captures {
			if c.Name != "fold" {
				continue
			}
			start, end := c.Node.StartPoint(), c.Node.EndPoint()
			endLine := int(end.Row)
			// A region ending at column 0 does not include that line.
			if end.Column == 0 && endLine > int(start.Row) {
				endLine--
			}
			if endLine <= int(start.Row) {
				continue
			}
			r := FoldRegion{
				StartLine: int(start.Row),
				EndLine:   endLine,
				StartByte: c.Node.StartByte(),
				EndByte:   c.Node.EndByte(),
			}
			if old, ok := byLine[r.StartLine]; !ok || r.EndLine > old.EndLine {
				byLine[r.StartLine] = r
			}
		}
	}
	out := make([]FoldRegion, 0, len(byLine))
	for _, r := range byLine {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out
}

// DetectFoldRegions scans text for brace-delimited blocks and returns fold
// regions. This is a simple heuristic for when no fold query is available.
func DetectFoldRegions(text string) []FoldRegion {
	lines := strings.Split(text, "\n")
	var regions []FoldRegion
	var stack []int // stack of opening brace line indices

	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		for _, ch := range trimmed {
			if ch == '{' {
				stack = append(stack, i)
			} else if ch == '}' {
				if len(stack) > 0 {
					start := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					if i-start >= 2 { // at least 2 lines between braces
						regions = append(regions, FoldRegion{
							StartLine: start,
							EndLine:   i,
						})
					}
				}
			}
		}
	}

	sort.SliceStable(regions, func(i, j int) bool { return regions[i].StartLine < regions[j].StartLine })
	return regions
}
