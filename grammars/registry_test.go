package grammars

import (
	"errors"
	"testing"

	"github.com/odvcencio/arbor/sitter"
)

func TestDetectLanguageHare(t *testing.T) {
	entry := DetectLanguage("main.ha")
	if entry == nil {
		t.Fatal("expected to detect Hare language for main.ha, got nil")
	}
	if entry.Name != "hare" {
		t.Fatalf("expected language name %q, got %q", "hare", entry.Name)
	}
	if entry.Query(sitter.RoleHighlights) == "" {
		t.Fatal("expected Hare language to register a highlight query")
	}
}

func TestDetectLanguageUnknown(t *testing.T) {
	entry := DetectLanguage("readme.xyz")
	if entry != nil {
		t.Fatalf("expected nil for unknown extension, got %q", entry.Name)
	}
}

func TestAllLanguages(t *testing.T) {
	langs := AllLanguages()
	if len(langs) < 2 {
		t.Fatalf("expected the bundled languages, got %d", len(langs))
	}
	for i := 1; i < len(langs); i++ {
		if langs[i-1].Name > langs[i].Name {
			t.Fatalf("languages not sorted: %q before %q", langs[i-1].Name, langs[i].Name)
		}
	}
	if Lookup("json") == nil {
		t.Fatal("expected JSON language to be registered")
	}
}

func TestDetectLanguageByShebang(t *testing.T) {
	// No languages have shebangs registered, so this should return nil.
	entry := DetectLanguageByShebang("#!/usr/bin/env python3")
	if entry != nil {
		t.Fatalf("expected nil for unregistered shebang, got %q", entry.Name)
	}
}

func TestRegisterPatternOverridesExtension(t *testing.T) {
	Register(LangEntry{
		Name:     "fixture-json",
		Patterns: []string{"**/fixtures/*.json"},
		Language: func() (*sitter.Language, error) { return nil, errors.New("not built") },
	})
	t.Cleanup(func() { unregister("fixture-json") })

	if got := DetectLanguage("testdata/fixtures/a.json"); got == nil || got.Name != "fixture-json" {
		t.Fatalf("pattern entry not chosen: %+v", got)
	}
	if got := DetectLanguage("config/a.json"); got == nil || got.Name != "json" {
		t.Fatalf("extension entry not chosen: %+v", got)
	}
}

func TestAuditParseSupport(t *testing.T) {
	Register(LangEntry{
		Name:     "broken",
		Language: func() (*sitter.Language, error) { return nil, errors.New("bad grammar") },
	})
	t.Cleanup(func() { unregister("broken") })

	byName := make(map[string]ParseSupport)
	for _, r := range AuditParseSupport() {
		byName[r.Name] = r
	}
	if r := byName["hare"]; r.Backend != ParseBackendDFA {
		t.Fatalf("hare backend = %q (%s), want %q", r.Backend, r.Reason, ParseBackendDFA)
	}
	if r := byName["hare"]; len(r.Roles) == 0 || r.StateCount == 0 {
		t.Fatalf("hare report incomplete: %+v", r)
	}
	if r := byName["broken"]; r.Backend != ParseBackendUnsupported || r.Reason != "language failed to load: bad grammar" {
		t.Fatalf("broken report = %+v", r)
	}
}

func TestEvaluateParseSupportExternalScanner(t *testing.T) {
	lang := &sitter.Language{
		Name:               "ext",
		LexStates:          []sitter.LexState{{Default: -1, EOF: -1}},
		ExternalTokenCount: 1,
	}
	if r := EvaluateParseSupport(LangEntry{Name: "ext"}, lang, nil); r.Backend != ParseBackendUnsupported {
		t.Fatalf("backend without scanner = %q, want unsupported", r.Backend)
	}
	lang.ExternalScanner = sitter.ExternalScannerFunc(func(*sitter.ExternalLexer, sitter.ExternalState, []bool) (sitter.ExternalState, bool) {
		return nil, false
	})
	if r := EvaluateParseSupport(LangEntry{Name: "ext"}, lang, nil); r.Backend != ParseBackendExternalScanner {
		t.Fatalf("backend with scanner = %q, want %q", r.Backend, ParseBackendExternalScanner)
	}
}

func unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i := range registry {
		if registry[i].Name == name {
			registry = append(registry[:i], registry[i+1:]...)
			return
		}
	}
}
