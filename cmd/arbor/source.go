package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/odvcencio/arbor/grammars"
	"github.com/odvcencio/arbor/sitter"
)

var errUnknownLanguage = errors.New("cannot determine language")

// sourceFile is a file read from disk together with its language.
type sourceFile struct {
	path  string
	text  []byte
	entry *grammars.LangEntry
	lang  *sitter.Language
}

// pickLanguage chooses the language for path: the named one when name is
// set, otherwise by file name and then by shebang line.
func pickLanguage(path, name string, text []byte) (*grammars.LangEntry, error) {
	if name != "" {
		if e := grammars.Lookup(name); e != nil {
			return e, nil
		}
		return nil, fmt.Errorf("%w: no language named %q", errUnknownLanguage, name)
	}
	if e := grammars.DetectLanguage(path); e != nil {
		return e, nil
	}
	first, _, _ := bytes.Cut(text, []byte("\n"))
	if e := grammars.DetectLanguageByShebang(string(first)); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w for %s (use --lang)", errUnknownLanguage, path)
}

func readSource(path, langName string) (*sourceFile, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entry, err := pickLanguage(path, langName, text)
	if err != nil {
		return nil, err
	}
	lang, err := entry.Language()
	if err != nil {
		return nil, fmt.Errorf("load %s grammar: %w", entry.Name, err)
	}
	return &sourceFile{path: path, text: text, entry: entry, lang: lang}, nil
}

func (f *sourceFile) parse() *sitter.Tree {
	return sitter.NewParser(f.lang).Parse(f.text)
}

// roleQuery compiles the language's query for role. It returns nil when
// the language has none.
func (f *sourceFile) roleQuery(role sitter.QueryRole) (*sitter.Query, error) {
	src := f.entry.Query(role)
	if src == "" {
		return nil, nil
	}
	q, err := sitter.NewQuery(src, f.lang)
	if err != nil {
		return nil, fmt.Errorf("%s %s query: %w", f.entry.Name, role, err)
	}
	return q, nil
}
