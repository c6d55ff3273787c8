package sitter

import "strings"

// IndentLevel returns the number of indentation units line should have,
// from @indent and @outdent captures. A line is indented once for every
// @indent node that starts on an earlier line and extends to or past it;
// an @outdent node that is the first token on the line removes one level.
func IndentLevel(q *Query, tree *Tree, source []byte, line int) int {
	row := uint32(line)
	lineStart, ok := lineOffset(source, line)
	if !ok {
		return 0
	}
	firstToken := lineStart
	for int(firstToken) < len(source) && (source[firstToken] == ' ' || source[firstToken] == '\t') {
		firstToken++
	}

	level := 0
	indented := make(map[NodeID]bool)
	for _, m := range q.ExecuteNode(tree.RootNode(), source) {
		for _, c := range m.Captures {
			n := c.Node
			switch c.Name {
			case "indent":
				if indented[n.ID()] {
					continue
				}
				if n.StartPoint().Row < row && n.EndPoint().Row >= row {
					indented[n.ID()] = true
					level++
				}
			case "outdent":
				if n.StartPoint().Row == row && n.StartByte() == firstToken {
					level--
				}
			}
		}
	}
	return max(level, 0)
}

// lineOffset returns the byte offset of the start of a zero-based line.
func lineOffset(source []byte, line int) (uint32, bool) {
	if line < 0 {
		return 0, false
	}
	off := 0
	for i := 0; i < line; i++ {
		nl := strings.IndexByte(bytesToStringNoCopy(source[off:]), '\n')
		if nl < 0 {
			return 0, false
		}
		off += nl + 1
	}
	return uint32(off), true
}

// DetectIndentStyle looks at the text to determine whether tabs or spaces are
// used for indentation. Returns the indent unit string (e.g., "\t" or "    ").
// Defaults to "\t" if no indentation found.
func DetectIndentStyle(text string) string {
	tabCount := 0
	spaceCount := 0
	minSpaceWidth := 0

	for _, line := range strings.Split(text, "\n") {
		if len(line) == 0 {
			continue
		}
		if line[0] == '\t' {
			tabCount++
		} else if line[0] == ' ' {
			spaceCount++
			w := len(line) - len(strings.TrimLeft(line, " "))
			if w == len(line) {
				continue // blank line of spaces
			}
			if minSpaceWidth == 0 || w < minSpaceWidth {
				minSpaceWidth = w
			}
		}
	}

	if spaceCount > tabCount && minSpaceWidth > 0 {
		return strings.Repeat(" ", minSpaceWidth)
	}
	return "\t"
}

// Indentation renders level units of unit.
func Indentation(unit string, level int) string {
	return strings.Repeat(unit, max(level, 0))
}
