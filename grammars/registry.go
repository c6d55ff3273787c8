// Package grammars is the registry of languages arbor knows how to parse:
// the grammars bundled with arbor plus any registered at run time from
// configuration.
package grammars

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/odvcencio/arbor/sitter"
)

// LangEntry holds a registered language with the files it applies to and
// its queries.
type LangEntry struct {
	Name       string
	Extensions []string // e.g. [".ha"]
	// Patterns are doublestar globs matched against the slash-separated
	// path, e.g. "**/testdata/*.txt".
	Patterns []string
	Shebangs []string                           // e.g. ["#!/usr/bin/env python"]
	Language func() (*sitter.Language, error) // lazy loader
	Queries  map[sitter.QueryRole]string
}

// Query returns the entry's query for role, or "".
func (e *LangEntry) Query(role sitter.QueryRole) string {
	return e.Queries[role]
}

// Matches reports whether filename belongs to the entry by extension or
// pattern.
func (e *LangEntry) Matches(filename string) bool {
	for _, ext := range e.Extensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	path := filepath.ToSlash(filename)
	for _, pat := range e.Patterns {
		if ok, _ := doublestar.Match(pat, path); ok {
			return true
		}
	}
	return false
}

var (
	registryMu sync.RWMutex
	registry   []LangEntry
)

// Register adds a language to the registry. An entry with the same name
// replaces the earlier one.
func Register(entry LangEntry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i := range registry {
		if registry[i].Name == entry.Name {
			registry[i] = entry
			return
		}
	}
	registry = append(registry, entry)
}

// Lookup returns the entry called name, or nil.
func Lookup(name string) *LangEntry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for i := range registry {
		if registry[i].Name == name {
			e := registry[i]
			return &e
		}
	}
	return nil
}

// DetectLanguage returns the LangEntry for a filename, or nil if unknown.
// Entries registered later win, so configuration can override the
// bundled languages.
func DetectLanguage(filename string) *LangEntry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for i := len(registry) - 1; i >= 0; i-- {
		if registry[i].Matches(filename) {
			e := registry[i]
			return &e
		}
	}
	return nil
}

// DetectLanguageByShebang checks the first line of content for shebang matches.
func DetectLanguageByShebang(firstLine string) *LangEntry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for i := range registry {
		for _, shebang := range registry[i].Shebangs {
			if strings.HasPrefix(firstLine, shebang) {
				e := registry[i]
				return &e
			}
		}
	}
	return nil
}

// AllLanguages returns all registered languages sorted by name.
func AllLanguages() []LangEntry {
	registryMu.RLock()
	out := append([]LangEntry(nil), registry...)
	registryMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
