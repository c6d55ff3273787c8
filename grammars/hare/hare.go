package hare

import (
	"embed"

	"github.com/odvcencio/arbor/generate"
	"github.com/odvcencio/arbor/grammars/internal/bundled"
	"github.com/odvcencio/arbor/sitter"
)

//go:embed queries/*.scm
var queryFiles embed.FS

var bundle = bundled.New("hare", Grammar, bundled.Dir(queryFiles, "queries"))

// Extensions lists the file extensions of Hare sources.
var Extensions = []string{".ha"}

// Language returns the compiled Hare language. The grammar is compiled on
// first use and shared afterwards.
func Language() (*sitter.Language, error) { return bundle.Language() }

// NodeTypes returns the node-type catalogue of the compiled grammar.
func NodeTypes() ([]generate.NodeType, error) { return bundle.NodeTypes() }

// Query returns the bundled query source for role, or "".
func Query(role sitter.QueryRole) string { return bundle.Query(role) }

// Queries returns every bundled query keyed by role.
func Queries() map[sitter.QueryRole]string { return bundle.Queries() }
