package sitter

import "unicode/utf8"

// Point is a row/column position in source text. Columns count bytes.
type Point struct {
	Row    uint32
	Column uint32
}

// Less reports whether p comes before o.
func (p Point) Less(o Point) bool {
	return p.Row < o.Row || (p.Row == o.Row && p.Column < o.Column)
}

// Range is a span of source text.
type Range struct {
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
}

// Length is a byte count together with the rows and columns it spans.
// Subtrees store their sizes as lengths so that they are independent of
// their absolute position.
type Length struct {
	Bytes  uint32
	Extent Point
}

func (a Length) add(b Length) Length {
	out := Length{Bytes: a.Bytes + b.Bytes}
	if b.Extent.Row > 0 {
		out.Extent = Point{Row: a.Extent.Row + b.Extent.Row, Column: b.Extent.Column}
	} else {
		out.Extent = Point{Row: a.Extent.Row, Column: a.Extent.Column + b.Extent.Column}
	}
	return out
}

// sub returns a-b; b must not be larger than a.
func (a Length) sub(b Length) Length {
	out := Length{Bytes: a.Bytes - b.Bytes}
	if a.Extent.Row > b.Extent.Row {
		out.Extent = Point{Row: a.Extent.Row - b.Extent.Row, Column: a.Extent.Column}
	} else if a.Extent.Column >= b.Extent.Column {
		out.Extent = Point{Column: a.Extent.Column - b.Extent.Column}
	}
	return out
}

// saturatingSub is sub clamped at zero.
func (a Length) saturatingSub(b Length) Length {
	if b.Bytes >= a.Bytes {
		return Length{}
	}
	return a.sub(b)
}

func lengthOf(text []byte) Length {
	var l Length
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRune(text[i:])
		i += size
		if r == '\n' {
			l.Extent.Row++
			l.Extent.Column = 0
		} else {
			l.Extent.Column += uint32(size)
		}
	}
	l.Bytes = uint32(len(text))
	return l
}

// PointAt returns the row/column of a byte offset in text.
func PointAt(text []byte, offset uint32) Point {
	if int(offset) > len(text) {
		offset = uint32(len(text))
	}
	return lengthOf(text[:offset]).Extent
}
