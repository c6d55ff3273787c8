// Package bundled compiles grammars shipped with arbor on first use and
// serves their query files.
package bundled

import (
	"fmt"
	"io/fs"
	"sync"

	"github.com/odvcencio/arbor/generate"
	"github.com/odvcencio/arbor/grammar"
	"github.com/odvcencio/arbor/sitter"
)

// Bundle is a grammar together with its query files. The grammar is
// compiled once, by whichever caller needs it first.
type Bundle struct {
	name    string
	build   func() *grammar.Grammar
	queries fs.FS

	once sync.Once
	res  *generate.Result
	err  error
}

// New returns a bundle for the grammar returned by build. queries holds
// files named after their role, such as highlights.scm, in its root.
func New(name string, build func() *grammar.Grammar, queries fs.FS) *Bundle {
	return &Bundle{name: name, build: build, queries: queries}
}

func (b *Bundle) compile() (*generate.Result, error) {
	b.once.Do(func() {
		b.res, b.err = generate.Compile(b.build())
		if b.err != nil {
			b.err = fmt.Errorf("compile %s grammar: %w", b.name, b.err)
		}
	})
	return b.res, b.err
}

// Language returns the compiled language.
func (b *Bundle) Language() (*sitter.Language, error) {
	res, err := b.compile()
	if err != nil {
		return nil, err
	}
	return res.Language, nil
}

// NodeTypes returns the node-type catalogue of the compiled grammar.
func (b *Bundle) NodeTypes() ([]generate.NodeType, error) {
	res, err := b.compile()
	if err != nil {
		return nil, err
	}
	return res.NodeTypes, nil
}

// Query returns the query source for role, or "" when the bundle has none.
func (b *Bundle) Query(role sitter.QueryRole) string {
	if b.queries == nil {
		return ""
	}
	data, err := fs.ReadFile(b.queries, role.FileName())
	if err != nil {
		return ""
	}
	return string(data)
}

// Queries returns every query of the bundle keyed by role.
func (b *Bundle) Queries() map[sitter.QueryRole]string {
	out := make(map[sitter.QueryRole]string)
	for _, role := range sitter.QueryRoles {
		if q := b.Query(role); q != "" {
			out[role] = q
		}
	}
	return out
}

// Dir returns the subtree of an embedded file system rooted at dir.
func Dir(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
