package sitter

import (
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

// ChangedRanges returns the ranges of newTree whose syntactic structure
// differs from oldTree. oldTree should be the edited tree newTree was
// parsed from, so that both trees use the same coordinates.
func ChangedRanges(oldTree, newTree *Tree) []Range {
	if oldTree == nil || newTree == nil || oldTree.root == nil || newTree.root == nil {
		return nil
	}
	d := rangeDiffer{lang: newTree.language}
	d.walk(oldTree.root, Length{}, newTree.root, Length{})
	return mergeRanges(d.out)
}

type rangeDiffer struct {
	lang *Language
	out  []Range
}

func (d *rangeDiffer) mark(s *subtree, pos Length) {
	start := pos.add(s.padding)
	end := pos.add(s.total())
	d.out = append(d.out, Range{
		StartByte: start.Bytes, EndByte: end.Bytes,
		StartPoint: start.Extent, EndPoint: end.Extent,
	})
}

func (d *rangeDiffer) markSpan(from, to Length) {
	d.out = append(d.out, Range{
		StartByte: from.Bytes, EndByte: to.Bytes,
		StartPoint: from.Extent, EndPoint: to.Extent,
	})
}

func (d *rangeDiffer) walk(a *subtree, aPos Length, b *subtree, bPos Length) {
	if a == b && aPos.Bytes == bPos.Bytes {
		return
	}
	if a.symbol != b.symbol || a.missing != b.missing {
		d.mark(b, bPos)
		return
	}
	if len(a.children) == 0 || len(b.children) == 0 {
		if a.changed || len(a.children) != len(b.children) ||
			aPos.add(a.padding).Bytes != bPos.add(b.padding).Bytes ||
			a.size.Bytes != b.size.Bytes {
			d.mark(b, bPos)
		}
		return
	}

	aStarts := childStarts(a, aPos)
	bStarts := childStarts(b, bPos)
	if len(a.children) == len(b.children) {
		for i := range a.children {
			d.walk(a.children[i], aStarts[i], b.children[i], bStarts[i])
		}
		return
	}

	m := difflib.NewMatcherWithJunk(d.names(a.children), d.names(b.children), false, nil)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for k := 0; k < op.I2-op.I1; k++ {
				d.walk(a.children[op.I1+k], aStarts[op.I1+k], b.children[op.J1+k], bStarts[op.J1+k])
			}
		case 'd':
			at := bStarts[op.J1]
			d.markSpan(at, at)
		default:
			d.markSpan(bStarts[op.J1], bStarts[op.J2])
		}
	}
}

// childStarts returns the padded start of every child plus the end of the
// last one.
func childStarts(s *subtree, pos Length) []Length {
	out := make([]Length, 0, len(s.children)+1)
	for _, c := range s.children {
		out = append(out, pos)
		pos = pos.add(c.total())
	}
	return append(out, pos)
}

func (d *rangeDiffer) names(children []*subtree) []string {
	out := make([]string, len(children))
	for i, c := range children {
		out[i] = d.lang.SymbolName(c.symbol)
	}
	return out
}

func mergeRanges(rs []Range) []Range {
	if len(rs) == 0 {
		return nil
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].StartByte < rs[j].StartByte })
	out := []Range{rs[0]}
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.StartByte <= last.EndByte {
			if r.EndByte > last.EndByte {
				last.EndByte = r.EndByte
				last.EndPoint = r.EndPoint
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
