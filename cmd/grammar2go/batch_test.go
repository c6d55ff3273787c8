package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseManifestWithExtensions(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "manifest.txt")
	content := `
# name repo subdir extensions
hare https://git.sr.ht/~ecs/tree-sitter-hare src .ha
mini ./mini . .mini,.mn
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := ParseManifest(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Subdir != "src" || len(entries[0].Extensions) != 1 {
		t.Fatalf("hare entry = %#v", entries[0])
	}
	if entries[1].Extensions[0] != ".mini" || entries[1].Extensions[1] != ".mn" {
		t.Fatalf("mini extensions = %#v", entries[1].Extensions)
	}

	if err := os.WriteFile(p, []byte("lonely\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseManifest(p); err == nil {
		t.Fatal("expected an error for a line without a repo")
	}
}

func TestSafeFileBase(t *testing.T) {
	if got := safeFileBase("tree-sitter-c-sharp"); got != "tree_sitter_c_sharp" {
		t.Fatalf("safeFileBase got %q", got)
	}
}

func TestLanguageFuncNameSanitize(t *testing.T) {
	tests := map[string]string{
		"c-sharp": "CSharpLanguage",
		"hare":    "HareLanguage",
		"go_mod":  "GoModLanguage",
		"1c":      "L1cLanguage",
	}
	for in, want := range tests {
		if got := languageFuncName(in); got != want {
			t.Errorf("languageFuncName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindGrammarFile(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := findGrammarFile(srcDir); err == nil {
		t.Fatal("expected an error for a repo without a grammar")
	}

	root := filepath.Join(dir, "grammar.yaml")
	if err := os.WriteFile(root, []byte("name: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := findGrammarFile(srcDir)
	if err != nil {
		t.Fatal(err)
	}
	if got != root {
		t.Fatalf("findGrammarFile = %q, want %q", got, root)
	}

	p := filepath.Join(srcDir, "grammar.json")
	if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := findGrammarFile(srcDir); got != p {
		t.Fatalf("findGrammarFile = %q, want %q", got, p)
	}
}

func makeRepo(t *testing.T, root string) string {
	t.Helper()
	repo := filepath.Join(root, "repo")
	for _, d := range []string{"src", "queries"} {
		if err := os.MkdirAll(filepath.Join(repo, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeMini(t, filepath.Join(repo, "src"))
	if err := os.WriteFile(filepath.Join(repo, "queries", "highlights.scm"), []byte("(item) @number\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return repo
}

func runBatch(t *testing.T, root, repo string) string {
	t.Helper()
	manifest := filepath.Join(root, "manifest.txt")
	line := "testlang " + repo + " src .tl\n"
	if err := os.WriteFile(manifest, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(root, "out")
	if err := RunBatchManifest(manifest, outDir, "grammars"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"testlang_grammar.go", "testlang_register.go"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing generated file: %v", err)
		}
	}
	return outDir
}

func TestRunBatchManifestLocalDir(t *testing.T) {
	root := t.TempDir()
	outDir := runBatch(t, root, makeRepo(t, root))

	code, err := os.ReadFile(filepath.Join(outDir, "testlang_grammar.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(code), "func TestlangLanguage()") || !strings.Contains(string(code), "sitter.RoleHighlights") {
		t.Fatalf("generated grammar file:\n%s", code)
	}
}

func TestRunBatchManifestGitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	repo := makeRepo(t, root)
	run := func(dir string, args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v: %s", args, err, strings.TrimSpace(string(out)))
		}
	}
	run(repo, "init")
	run(repo, "config", "user.email", "test@example.com")
	run(repo, "config", "user.name", "test")
	run(repo, "add", ".")
	run(repo, "commit", "-m", "init")

	runBatch(t, root, "file://"+repo)
}
