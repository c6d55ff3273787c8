// Package generate compiles grammar descriptions into the parse and lex
// tables read by package sitter: LALR(1) parse tables whose declared
// conflicts become GLR forks, and per-state lexer DFAs.
package generate

import (
	"time"

	"github.com/odvcencio/arbor/grammar"
	"github.com/odvcencio/arbor/sitter"
)

// Result is a compiled grammar.
type Result struct {
	Language  *sitter.Language
	NodeTypes []NodeType
	// Warnings lists the conflicts that were resolved by preferring the
	// action declared first.
	Warnings []Warning
}

// Compile builds the parse and lex tables for g.
func Compile(g *grammar.Grammar, opts ...Option) (*Result, error) {
	o := options{logger: generateLog}
	for _, opt := range opts {
		opt(&o)
	}
	if g == nil {
		return nil, grammarErrorf("", KindInvalidGrammar, "nil grammar")
	}
	began := time.Now()
	c := &compiler{g: g, opts: o}

	if err := c.prepare(); err != nil {
		return nil, err
	}
	if err := c.flatten(); err != nil {
		return nil, err
	}
	an := c.analyze()
	if err := c.check(an); err != nil {
		return nil, err
	}
	lexer, err := c.buildLexer()
	if err != nil {
		return nil, err
	}
	auto, err := c.buildAutomaton(an)
	if err != nil {
		return nil, err
	}
	tbl, err := c.buildTables(auto)
	if err != nil {
		return nil, err
	}
	if err := lexer.modes(tbl.valid); err != nil {
		return nil, err
	}
	lang := c.language(tbl, lexer.out)
	res := &Result{Language: lang, NodeTypes: c.nodeTypes(), Warnings: c.warnings}
	o.logger.Infof("compiled %s: %d symbols, %d states, %d lex states, %d conflicts in %s",
		g.Name, lang.SymbolCount, lang.StateCount, len(lang.LexStates), len(c.warnings),
		time.Since(began).Round(time.Millisecond))
	return res, nil
}

// language packs the tables into a sitter.Language.
func (c *compiler) language(tbl *tables, lex *lexTables) *sitter.Language {
	total := c.symbolCount() + len(c.aliases)
	lang := &sitter.Language{
		Name:               c.g.Name,
		SymbolCount:        uint32(total),
		TokenCount:         uint32(c.terminalCount()),
		StateCount:         uint32(len(tbl.rows)),
		FieldCount:         uint32(len(c.fields)),
		ProductionIDCount:  uint32(len(c.productionInfos)),
		SymbolNames:        make([]string, total),
		SymbolMetadata:     make([]sitter.SymbolMetadata, total),
		FieldNames:         append([]string{""}, c.fields...),
		ParseTable:         tbl.rows,
		ParseActions:       tbl.entries,
		LexModes:           lex.modes,
		LexStates:          lex.states,
		KeywordLexStates:   lex.keywordStates,
		ErrorLexMode:       lex.errorMode,
	}
	lang.ExternalScannerStates = lex.externalStates
	lang.SymbolNames[0] = "end"
	for i, t := range c.tokens {
		sym := c.tokenSymbol(i)
		lang.SymbolNames[sym] = t.name
		lang.SymbolMetadata[sym] = sitter.SymbolMetadata{Name: t.name, Visible: t.visible, Named: t.named}
		if t.external {
			lang.ExternalSymbols = append(lang.ExternalSymbols, sitter.Symbol(sym))
		}
	}
	lang.ExternalTokenCount = uint32(len(lang.ExternalSymbols))
	for i, v := range c.vars {
		sym := c.varSymbol(i)
		lang.SymbolNames[sym] = v.name
		lang.SymbolMetadata[sym] = sitter.SymbolMetadata{
			Name: v.name, Visible: v.visible, Named: v.named, Supertype: v.supertype,
		}
	}
	for i, a := range c.aliases {
		sym := c.symbolCount() + i
		lang.SymbolNames[sym] = a.name
		lang.SymbolMetadata[sym] = sitter.SymbolMetadata{Name: a.name, Visible: true, Named: a.named}
	}
	if c.wordToken >= 0 {
		lang.KeywordCaptureToken = sitter.Symbol(c.tokenSymbol(c.wordToken))
	}

	for _, info := range c.productionInfos {
		lang.FieldMapSlices = append(lang.FieldMapSlices,
			[2]uint16{uint16(len(lang.FieldMapEntries)), uint16(len(info.fields))})
		lang.FieldMapEntries = append(lang.FieldMapEntries, info.fields...)
		lang.AliasSequences = append(lang.AliasSequences, info.aliases)
	}

	for vi, v := range c.vars {
		if !v.supertype {
			continue
		}
		if lang.Supertypes == nil {
			lang.Supertypes = make(map[sitter.Symbol][]sitter.Symbol)
		}
		super := sitter.Symbol(c.varSymbol(vi))
		for _, pi := range v.prods {
			steps := c.prods[pi].steps
			if len(steps) != 1 {
				continue
			}
			sub := sitter.Symbol(steps[0].sym)
			if steps[0].alias != "" {
				sub = c.aliasSymbol(steps[0].alias, steps[0].aliasNamed)
			}
			lang.Supertypes[super] = append(lang.Supertypes[super], sub)
		}
	}
	return lang
}
