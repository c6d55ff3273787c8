package grammars

import (
	"sort"

	"github.com/odvcencio/arbor/sitter"
)

// ParseBackend describes how a language can be parsed in this runtime.
type ParseBackend string

const (
	ParseBackendUnsupported     ParseBackend = "unsupported"
	ParseBackendDFA             ParseBackend = "dfa"
	ParseBackendExternalScanner ParseBackend = "external_scanner"
)

// ParseSupport summarizes parser support status for one registered language.
type ParseSupport struct {
	Name                    string
	Backend                 ParseBackend
	Reason                  string
	SymbolCount             uint32
	StateCount              uint32
	HasDFALexer             bool
	RequiresExternalScanner bool
	HasExternalScanner      bool
	Roles                   []sitter.QueryRole
}

// EvaluateParseSupport reports whether a language can parse with the
// table-driven lexer, optionally helped by an external scanner. A nil
// language means it failed to load; loadErr says why.
func EvaluateParseSupport(entry LangEntry, lang *sitter.Language, loadErr error) ParseSupport {
	report := ParseSupport{Name: entry.Name, Backend: ParseBackendUnsupported}
	for _, role := range sitter.QueryRoles {
		if entry.Query(role) != "" {
			report.Roles = append(report.Roles, role)
		}
	}
	if lang == nil {
		report.Reason = "language failed to load"
		if loadErr != nil {
			report.Reason += ": " + loadErr.Error()
		}
		return report
	}

	report.SymbolCount = lang.SymbolCount
	report.StateCount = lang.StateCount
	report.HasDFALexer = len(lang.LexStates) > 0
	report.RequiresExternalScanner = lang.ExternalTokenCount > 0
	report.HasExternalScanner = lang.ExternalScanner != nil

	if !report.HasDFALexer {
		report.Reason = "missing DFA lexer tables (LexStates)"
		return report
	}
	if report.RequiresExternalScanner {
		if !report.HasExternalScanner {
			report.Reason = "requires external scanner, but none is registered"
			return report
		}
		report.Backend = ParseBackendExternalScanner
		report.Reason = "dfa lexer with external scanner"
		return report
	}

	report.Backend = ParseBackendDFA
	report.Reason = "dfa lexer"
	return report
}

// AuditParseSupport evaluates parse support for all registered languages.
// Languages are loaded, and so compiled, as a side effect.
func AuditParseSupport() []ParseSupport {
	entries := AllLanguages()
	reports := make([]ParseSupport, 0, len(entries))
	for _, entry := range entries {
		lang, err := entry.Language()
		reports = append(reports, EvaluateParseSupport(entry, lang, err))
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Name < reports[j].Name
	})
	return reports
}
