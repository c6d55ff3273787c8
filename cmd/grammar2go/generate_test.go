package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/odvcencio/arbor/sitter"
)

const miniGrammar = `{
  "name": "mini",
  "extras": [{"type": "PATTERN", "value": "\\s"}],
  "rules": {
    "list": {"type": "REPEAT", "content": {"type": "SYMBOL", "name": "item"}},
    "item": {"type": "PATTERN", "value": "[0-9]+"}
  }
}`

func writeMini(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "grammar.json")
	if err := os.WriteFile(p, []byte(miniGrammar), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// artifactLiteral pulls the concatenated string constant named name out of
// generated source.
func artifactLiteral(t *testing.T, code, name string) []byte {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", code, 0)
	if err != nil {
		t.Fatalf("generated code does not parse: %v\n%s", err, code)
	}
	var out []byte
	found := false
	ast.Inspect(f, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok || spec.Names[0].Name != name {
			return true
		}
		found = true
		ast.Inspect(spec.Values[0], func(n ast.Node) bool {
			if lit, ok := n.(*ast.BasicLit); ok {
				s, err := strconv.Unquote(lit.Value)
				if err != nil {
					t.Fatal(err)
				}
				out = append(out, s...)
			}
			return true
		})
		return false
	})
	if !found {
		t.Fatalf("no %s in generated code", name)
	}
	return out
}

func TestBuildAndGenerateGo(t *testing.T) {
	dir := t.TempDir()
	g, err := Build(writeMini(t, dir), "")
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "mini" || g.Source != "grammar.json" {
		t.Fatalf("Build = %q from %q", g.Name, g.Source)
	}
	g.Queries = map[sitter.QueryRole]string{sitter.RoleHighlights: "(item) @number\n"}

	code, err := GenerateGo(g, "langs")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"// Code generated by grammar2go from grammar.json. DO NOT EDIT.",
		"package langs",
		"func MiniLanguage() (*sitter.Language, error)",
		"var MiniQueries = map[sitter.QueryRole]string{",
		`sitter.RoleHighlights: "(item) @number\n",`,
	} {
		if !strings.Contains(code, want) {
			t.Errorf("generated code lacks %q:\n%s", want, code)
		}
	}

	data := artifactLiteral(t, code, "miniArtifact")
	if string(data) != string(g.Artifact) {
		t.Fatalf("embedded artifact differs: %d bytes, want %d", len(data), len(g.Artifact))
	}
	lang, err := sitter.LoadLanguage(data)
	if err != nil {
		t.Fatal(err)
	}
	if got := sitter.NewParser(lang).Parse([]byte("1 2")).RootNode().String(); got != "(list (item) (item))" {
		t.Fatalf("parse with embedded artifact = %s", got)
	}
}

func TestBuildRenames(t *testing.T) {
	g, err := Build(writeMini(t, t.TempDir()), "numbers")
	if err != nil {
		t.Fatal(err)
	}
	lang, err := sitter.LoadLanguage(g.Artifact)
	if err != nil {
		t.Fatal(err)
	}
	if lang.Name != "numbers" {
		t.Fatalf("Name = %q, want numbers", lang.Name)
	}
}

func TestGenerateRegister(t *testing.T) {
	g := &GeneratedGrammar{Name: "c-sharp", Source: "grammar.json", Extensions: []string{".cs", ".csx"}}

	code, err := GenerateRegister(g, "grammars")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(code, "import") {
		t.Errorf("register file in package grammars imports itself:\n%s", code)
	}
	for _, want := range []string{"Register(LangEntry{", `Extensions: []string{".cs", ".csx"},`, "Language:   CSharpLanguage,", "Queries:    CSharpQueries,"} {
		if !strings.Contains(code, want) {
			t.Errorf("register code lacks %q:\n%s", want, code)
		}
	}

	code, err = GenerateRegister(g, "langs")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(code, `import "github.com/odvcencio/arbor/grammars"`) || !strings.Contains(code, "grammars.Register(grammars.LangEntry{") {
		t.Errorf("register code outside package grammars:\n%s", code)
	}
}

func TestReadQueries(t *testing.T) {
	dir := t.TempDir()
	for name, src := range map[string]string{"highlights.scm": "(item) @number", "folds.scm": "(list) @fold", "textobjects.scm": "x"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := ReadQueries(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[sitter.RoleFolds] != "(list) @fold" {
		t.Fatalf("ReadQueries = %#v", got)
	}
}

func TestRootCommand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "mini_grammar.go")
	reg := filepath.Join(dir, "mini_register.go")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--input", writeMini(t, dir), "--output", out, "--register", reg, "--extensions", ".mini, .mn", "--package", "langs"})
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "Generated "+out+" (mini language,") {
		t.Errorf("stdout = %q", stdout.String())
	}
	data, err := os.ReadFile(reg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `[]string{".mini", ".mn"}`) {
		t.Errorf("register file:\n%s", data)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"--input", "x.json"})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error without --output")
	}
}
