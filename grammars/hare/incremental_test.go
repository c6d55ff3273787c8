package hare

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/arbor/sitter"
)

const editSource = `use fmt;

type point = struct { x: int, y: int };
// the answer
type answer = (int | str | void);

def LIMIT: size = 10;
let counter: u64 = 0u64;

export fn main() void = {
	let x: int = 1 + 2 * 3;
	fmt::println("hello")!;
};

fn f(n: int) int = {
	let m = n;
	yield m;
};

fn g() f64 = 1.5e3;
fn h() bool = true && !false;
`

// fragments mixes valid Hare with text that breaks the syntax.
var fragments = []string{
	"", "::", "{", "}", ";", "(", ")", "=", ",", "\"", "//", "@",
	"x", "fn ", "let y = ", "1 + ", "struct {", "export ", "\n", " ",
	"type t = int;\n", "fmt::println(x)!;",
}

func dumpTree(n *sitter.Node) []string {
	var out []string
	var walk func(n *sitter.Node, depth int)
	walk = func(n *sitter.Node, depth int) {
		kind := n.Type()
		if !n.IsNamed() {
			kind = fmt.Sprintf("%q", kind)
		}
		if n.IsMissing() {
			kind = "MISSING " + kind
		}
		if f := n.FieldName(); f != "" {
			kind = f + ": " + kind
		}
		out = append(out, fmt.Sprintf("%s%s [%d,%d) %v-%v", strings.Repeat("  ", depth), kind,
			n.StartByte(), n.EndByte(), n.StartPoint(), n.EndPoint()))
		for _, c := range n.Children() {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return out
}

func applyEdit(old []byte, start, oldEnd int, insert string) ([]byte, sitter.InputEdit) {
	newEnd := uint32(start + len(insert))
	ie := sitter.InputEdit{StartByte: uint32(start), OldEndByte: uint32(oldEnd), NewEndByte: newEnd}
	text := ie.Apply(old, []byte(insert))
	return text, sitter.EditFromText(old, text, uint32(start), uint32(oldEnd), newEnd)
}

func requireSameTree(t *testing.T, lang *sitter.Language, text []byte, incremental *sitter.Tree, what string) {
	t.Helper()
	full := sitter.NewParser(lang).Parse(text)
	defer full.Release()
	if diff := cmp.Diff(dumpTree(full.RootNode()), dumpTree(incremental.RootNode())); diff != "" {
		t.Fatalf("%s: incremental parse of %q differs (-full +incremental):\n%s", what, text, diff)
	}
}

// TestReparseRecoversLikeFullParse breaks a declaration that follows a
// reusable one, so recovery has to look into the reused declaration.
func TestReparseRecoversLikeFullParse(t *testing.T) {
	lang := mustLanguage(t)
	p := sitter.NewParser(lang)
	old := []byte(editSource)
	tree := p.Parse(old)
	require.False(t, tree.RootNode().HasError(), tree.RootNode().String())

	at := strings.Index(editSource, "export") + len("ex")
	for _, insert := range []string{"::", "{", "= ", ";;"} {
		text, edit := applyEdit(old, at, at, insert)
		next := p.Reparse(tree, edit, text)
		requireSameTree(t, lang, text, next, fmt.Sprintf("insert %q", insert))
		next.Release()
	}
}

// TestReparseRandomEdits applies seeded chains of edits, many of them
// syntax errors, and compares each re-parse with a full parse.
func TestReparseRandomEdits(t *testing.T) {
	lang := mustLanguage(t)
	p := sitter.NewParser(lang)
	rng := rand.New(rand.NewPCG(1, 2))
	chains, steps := 20, 15
	if testing.Short() {
		chains = 4
	}
	for chain := 0; chain < chains; chain++ {
		text := []byte(editSource)
		tree := p.Parse(text)
		for step := 0; step < steps; step++ {
			start := rng.IntN(len(text) + 1)
			oldEnd := start + rng.IntN(min(8, len(text)-start)+1)
			insert := fragments[rng.IntN(len(fragments))]
			next, edit := applyEdit(text, start, oldEnd, insert)
			reparsed := p.Reparse(tree, edit, next)
			tree.Release()
			tree, text = reparsed, next
			requireSameTree(t, lang, text, tree, fmt.Sprintf("chain %d step %d: replace [%d,%d) with %q", chain, step, start, oldEnd, insert))
		}
		tree.Release()
	}
}
