package sitter

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

const (
	// incrementalArenaSlab is sized for steady-state edits where only a small
	// frontier of subtrees is rebuilt.
	incrementalArenaSlab = 16 * 1024
	// fullParseArenaSlab fits a full parse of an editor-sized file.
	fullParseArenaSlab = 2 * 1024 * 1024
	minArenaNodeCap    = 64
)

type arenaClass uint8

const (
	arenaClassIncremental arenaClass = iota
	arenaClassFull
)

// nodeArena is a slab-backed allocator for subtrees. Trees share subtrees
// after incremental parses and edits, so every tree retains each arena its
// subtrees live in; the slab returns to the pool when the last tree that
// references it is released.
type nodeArena struct {
	class arenaClass
	nodes []subtree
	used  int
	refs  atomic.Int32
}

var (
	incrementalArenaPool = sync.Pool{
		New: func() any {
			return newNodeArena(arenaClassIncremental, incrementalArenaSlab)
		},
	}
	fullArenaPool = sync.Pool{
		New: func() any {
			return newNodeArena(arenaClassFull, fullParseArenaSlab)
		},
	}
)

func nodeCapacityForBytes(slabBytes int) int {
	nodeSize := int(unsafe.Sizeof(subtree{}))
	if nodeSize <= 0 {
		return minArenaNodeCap
	}
	capacity := slabBytes / nodeSize
	if capacity < minArenaNodeCap {
		return minArenaNodeCap
	}
	return capacity
}

func newNodeArena(class arenaClass, slabBytes int) *nodeArena {
	return &nodeArena{
		class: class,
		nodes: make([]subtree, nodeCapacityForBytes(slabBytes)),
	}
}

func acquireNodeArena(class arenaClass) *nodeArena {
	var a *nodeArena
	switch class {
	case arenaClassIncremental:
		a = incrementalArenaPool.Get().(*nodeArena)
	default:
		a = fullArenaPool.Get().(*nodeArena)
	}
	a.refs.Store(1)
	return a
}

func (a *nodeArena) Retain() {
	if a == nil {
		return
	}
	a.refs.Add(1)
}

func (a *nodeArena) Release() {
	if a == nil {
		return
	}
	if a.refs.Add(-1) != 0 {
		return
	}
	a.reset()
	switch a.class {
	case arenaClassIncremental:
		incrementalArenaPool.Put(a)
	default:
		fullArenaPool.Put(a)
	}
}

func (a *nodeArena) reset() {
	for i := 0; i < a.used; i++ {
		a.nodes[i] = subtree{}
	}
	a.used = 0
}

func (a *nodeArena) alloc() *subtree {
	if a == nil {
		return &subtree{}
	}
	if a.used < len(a.nodes) {
		n := &a.nodes[a.used]
		a.used++
		*n = subtree{}
		return n
	}
	// Fallback when slab is exhausted.
	return &subtree{}
}

// arenaSet is the list of arenas a tree keeps alive.
type arenaSet []*nodeArena

func (s arenaSet) retainAll() arenaSet {
	out := make(arenaSet, 0, len(s)+1)
	for _, a := range s {
		a.Retain()
		out = append(out, a)
	}
	return out
}

func (s arenaSet) releaseAll() {
	for _, a := range s {
		a.Release()
	}
}
