package main

import (
	"errors"
	"fmt"
	"go/format"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/odvcencio/arbor/generate"
	"github.com/odvcencio/arbor/grammar"
	"github.com/odvcencio/arbor/sitter"
)

// chunkSize is the number of artifact bytes per line of the generated
// string literal.
const chunkSize = 48

// GeneratedGrammar is a compiled grammar ready to be written as Go source.
type GeneratedGrammar struct {
	Name        string
	Source      string // grammar document the artifact was compiled from
	Artifact    []byte
	StateCount  int
	SymbolCount int
	Extensions  []string
	Queries     map[sitter.QueryRole]string
}

// Build compiles the grammar document at path. A non-empty name overrides
// the grammar's own name.
func Build(path, name string) (*GeneratedGrammar, error) {
	g, err := grammar.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if name != "" {
		g.Name = name
	}
	res, err := generate.Compile(g)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	for _, w := range res.Warnings {
		log.Warningf("%s: %s", g.Name, w.Message)
	}
	data, err := res.Language.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &GeneratedGrammar{
		Name:        g.Name,
		Source:      filepath.Base(path),
		Artifact:    data,
		StateCount:  int(res.Language.StateCount),
		SymbolCount: int(res.Language.SymbolCount),
	}, nil
}

// ReadQueries reads the <role>.scm files present in dir.
func ReadQueries(dir string) (map[sitter.QueryRole]string, error) {
	out := make(map[sitter.QueryRole]string)
	for _, role := range sitter.QueryRoles {
		data, err := os.ReadFile(filepath.Join(dir, role.FileName()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[role] = string(data)
	}
	return out, nil
}

// GenerateGo returns a Go source file defining <Name>Language, which loads
// the embedded artifact once, and <Name>Queries.
func GenerateGo(g *GeneratedGrammar, pkg string) (string, error) {
	fn := languageFuncName(g.Name)
	base := lowerFirst(strings.TrimSuffix(fn, "Language"))

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by grammar2go from %s. DO NOT EDIT.\n\n", g.Source)
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("import (\n\t\"sync\"\n\n\t\"github.com/odvcencio/arbor/sitter\"\n)\n\n")

	fmt.Fprintf(&b, "// %s returns the compiled %s language.\n", fn, g.Name)
	fmt.Fprintf(&b, "func %s() (*sitter.Language, error) { return %sLanguage() }\n\n", fn, base)
	fmt.Fprintf(&b, "var %sLanguage = sync.OnceValues(func() (*sitter.Language, error) {\n", base)
	fmt.Fprintf(&b, "\treturn sitter.LoadLanguage([]byte(%sArtifact))\n})\n\n", base)

	fmt.Fprintf(&b, "// %sQueries holds the %s queries keyed by role.\n", exportedBase(fn), g.Name)
	fmt.Fprintf(&b, "var %sQueries = map[sitter.QueryRole]string{\n", exportedBase(fn))
	for _, role := range sitter.QueryRoles {
		if src, ok := g.Queries[role]; ok {
			fmt.Fprintf(&b, "\tsitter.%s: %s,\n", roleConst(role), strconv.Quote(src))
		}
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(&b, "const %sArtifact = \"\" +\n", base)
	for i := 0; i < len(g.Artifact); i += chunkSize {
		end := min(i+chunkSize, len(g.Artifact))
		b.WriteString("\t")
		b.WriteString(strconv.Quote(string(g.Artifact[i:end])))
		if end < len(g.Artifact) {
			b.WriteString(" +")
		}
		b.WriteString("\n")
	}
	if len(g.Artifact) == 0 {
		b.WriteString("\t\"\"\n")
	}
	return gofmt(b.String())
}

// GenerateRegister returns a Go source file that registers the language
// with the grammars registry at init time.
func GenerateRegister(g *GeneratedGrammar, pkg string) (string, error) {
	fn := languageFuncName(g.Name)
	qualifier := "grammars."
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by grammar2go from %s. DO NOT EDIT.\n\n", g.Source)
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	if pkg == "grammars" {
		qualifier = ""
	} else {
		b.WriteString("import \"github.com/odvcencio/arbor/grammars\"\n\n")
	}
	b.WriteString("func init() {\n")
	fmt.Fprintf(&b, "\t%sRegister(%sLangEntry{\n", qualifier, qualifier)
	fmt.Fprintf(&b, "\t\tName: %s,\n", strconv.Quote(g.Name))
	if len(g.Extensions) > 0 {
		quoted := make([]string, len(g.Extensions))
		for i, ext := range g.Extensions {
			quoted[i] = strconv.Quote(ext)
		}
		fmt.Fprintf(&b, "\t\tExtensions: []string{%s},\n", strings.Join(quoted, ", "))
	}
	fmt.Fprintf(&b, "\t\tLanguage: %s,\n", fn)
	fmt.Fprintf(&b, "\t\tQueries: %sQueries,\n", exportedBase(fn))
	b.WriteString("\t})\n}\n")
	return gofmt(b.String())
}

func gofmt(code string) (string, error) {
	out, err := format.Source([]byte(code))
	if err != nil {
		return "", fmt.Errorf("format generated code: %w", err)
	}
	return string(out), nil
}

// languageFuncName turns a language name into an exported function name:
// "c-sharp" becomes "CSharpLanguage".
func languageFuncName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if b.Len() == 0 && unicode.IsDigit(r) {
			b.WriteString("L")
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String() + "Language"
}

func exportedBase(fn string) string { return strings.TrimSuffix(fn, "Language") }

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func roleConst(role sitter.QueryRole) string {
	s := string(role)
	return "Role" + strings.ToUpper(s[:1]) + s[1:]
}

// safeFileBase turns a name into a lower-case file name stem.
func safeFileBase(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
