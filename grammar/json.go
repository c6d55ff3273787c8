package grammar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is wrapped by every error returned from Parse.
var ErrInvalidDocument = errors.New("grammar: invalid document")

// ReadFile loads a grammar document from disk. See Parse.
func ReadFile(path string) (*Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse decodes a grammar in tree-sitter's grammar.json schema. Because
// YAML is a superset of JSON the same document may also be written as
// YAML. Rule order is preserved.
func Parse(data []byte) (*Grammar, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nodeError(root, "expected a mapping at top level")
	}

	g := &Grammar{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		var err error
		switch key {
		case "name":
			g.Name = val.Value
		case "rules":
			if val.Kind != yaml.MappingNode {
				return nil, nodeError(val, "rules must be a mapping")
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				r, rerr := decodeRule(val.Content[j+1])
				if rerr != nil {
					return nil, fmt.Errorf("rule %q: %w", val.Content[j].Value, rerr)
				}
				g.Rules = append(g.Rules, RuleDef{Name: val.Content[j].Value, Rule: r})
			}
		case "extras":
			g.Extras, err = decodeRuleList(val)
		case "externals":
			g.Externals, err = decodeRuleList(val)
		case "conflicts":
			if val.Kind != yaml.SequenceNode {
				return nil, nodeError(val, "conflicts must be a list")
			}
			for _, group := range val.Content {
				names, nerr := decodeNameList(group)
				if nerr != nil {
					return nil, nerr
				}
				g.Conflicts = append(g.Conflicts, names)
			}
		case "inline":
			g.Inline, err = decodeNameList(val)
		case "supertypes":
			g.Supertypes, err = decodeNameList(val)
		case "word":
			g.Word = val.Value
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if g.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidDocument)
	}
	return g, nil
}

func nodeError(n *yaml.Node, msg string) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidDocument, n.Line, msg)
}

func decodeRuleList(n *yaml.Node) ([]*Rule, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, nodeError(n, "expected a list of rules")
	}
	out := make([]*Rule, 0, len(n.Content))
	for _, c := range n.Content {
		r, err := decodeRule(c)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// decodeNameList accepts both plain names and SYMBOL rule objects, since
// grammar.json writes conflicts and supertypes as symbol objects.
func decodeNameList(n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, nodeError(n, "expected a list of names")
	}
	out := make([]string, 0, len(n.Content))
	for _, c := range n.Content {
		if c.Kind == yaml.ScalarNode {
			out = append(out, c.Value)
			continue
		}
		r, err := decodeRule(c)
		if err != nil {
			return nil, err
		}
		if r.Kind != KindSymbol {
			return nil, nodeError(c, "expected a symbol")
		}
		out = append(out, r.Value)
	}
	return out, nil
}

func decodeRule(n *yaml.Node) (*Rule, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nodeError(n, "rule must be a mapping")
	}
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1]
	}
	typ, ok := fields["type"]
	if !ok {
		return nil, nodeError(n, "rule has no type")
	}
	kind, ok := kindFromName(typ.Value)
	if !ok {
		return nil, nodeError(typ, fmt.Sprintf("unknown rule type %q", typ.Value))
	}
	r := &Rule{Kind: kind}

	switch kind {
	case KindString, KindPattern:
		v, ok := fields["value"]
		if !ok {
			return nil, nodeError(n, kind.String()+" rule has no value")
		}
		r.Value = v.Value
	case KindSymbol:
		v, ok := fields["name"]
		if !ok {
			return nil, nodeError(n, "SYMBOL rule has no name")
		}
		r.Value = v.Value
	case KindSeq, KindChoice:
		m, ok := fields["members"]
		if !ok {
			return nil, nodeError(n, kind.String()+" rule has no members")
		}
		members, err := decodeRuleList(m)
		if err != nil {
			return nil, err
		}
		r.Members = members
	case KindPrec, KindPrecLeft, KindPrecRight, KindPrecDynamic:
		v, ok := fields["value"]
		if !ok {
			return nil, nodeError(n, kind.String()+" rule has no value")
		}
		level, err := strconv.Atoi(v.Value)
		if err != nil {
			return nil, nodeError(v, "precedence must be an integer")
		}
		r.Prec = level
	case KindField:
		v, ok := fields["name"]
		if !ok {
			return nil, nodeError(n, "FIELD rule has no name")
		}
		r.Value = v.Value
	case KindAlias:
		v, ok := fields["value"]
		if !ok {
			return nil, nodeError(n, "ALIAS rule has no value")
		}
		r.Value = v.Value
		if named, ok := fields["named"]; ok {
			r.Named = named.Value == "true"
		}
	}

	switch kind {
	case KindRepeat, KindRepeat1, KindPrec, KindPrecLeft, KindPrecRight,
		KindPrecDynamic, KindToken, KindImmediateToken, KindField, KindAlias:
		c, ok := fields["content"]
		if !ok {
			return nil, nodeError(n, kind.String()+" rule has no content")
		}
		content, err := decodeRule(c)
		if err != nil {
			return nil, err
		}
		r.Content = content
	}
	return r, nil
}

// MarshalJSON writes g in tree-sitter's grammar.json schema.
func (g *Grammar) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.WriteJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes g in tree-sitter's grammar.json schema, indented.
func (g *Grammar) WriteJSON(w io.Writer) error {
	e := &jsonWriter{w: w}
	e.str("{\n  \"name\": ")
	e.quote(g.Name)
	e.str(",\n  \"rules\": {")
	for i, def := range g.Rules {
		if i > 0 {
			e.str(",")
		}
		e.str("\n    ")
		e.quote(def.Name)
		e.str(": ")
		e.rule(def.Rule)
	}
	e.str("\n  }")
	e.ruleList("extras", g.Extras)
	if len(g.Conflicts) > 0 {
		e.str(",\n  \"conflicts\": [")
		for i, group := range g.Conflicts {
			if i > 0 {
				e.str(", ")
			}
			e.names(group)
		}
		e.str("]")
	}
	e.ruleList("externals", g.Externals)
	if len(g.Inline) > 0 {
		e.str(",\n  \"inline\": ")
		e.names(g.Inline)
	}
	if len(g.Supertypes) > 0 {
		e.str(",\n  \"supertypes\": ")
		e.names(g.Supertypes)
	}
	if g.Word != "" {
		e.str(",\n  \"word\": ")
		e.quote(g.Word)
	}
	e.str("\n}\n")
	return e.err
}

type jsonWriter struct {
	w   io.Writer
	err error
}

func (e *jsonWriter) str(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

func (e *jsonWriter) quote(s string) {
	b, err := json.Marshal(s)
	if err != nil {
		e.err = err
		return
	}
	e.str(string(b))
}

func (e *jsonWriter) names(names []string) {
	e.str("[")
	for i, n := range names {
		if i > 0 {
			e.str(", ")
		}
		e.quote(n)
	}
	e.str("]")
}

func (e *jsonWriter) ruleList(key string, rules []*Rule) {
	if len(rules) == 0 {
		return
	}
	e.str(",\n  ")
	e.quote(key)
	e.str(": [")
	for i, r := range rules {
		if i > 0 {
			e.str(", ")
		}
		e.rule(r)
	}
	e.str("]")
}

func (e *jsonWriter) rule(r *Rule) {
	e.str(`{"type": `)
	e.quote(r.Kind.String())
	switch r.Kind {
	case KindString, KindPattern, KindAlias:
		e.str(`, "value": `)
		e.quote(r.Value)
		if r.Kind == KindAlias {
			e.str(`, "named": ` + strconv.FormatBool(r.Named))
		}
	case KindSymbol, KindField:
		e.str(`, "name": `)
		e.quote(r.Value)
	case KindPrec, KindPrecLeft, KindPrecRight, KindPrecDynamic:
		e.str(`, "value": ` + strconv.Itoa(r.Prec))
	}
	if r.Kind == KindSeq || r.Kind == KindChoice {
		e.str(`, "members": [`)
		for i, m := range r.Members {
			if i > 0 {
				e.str(", ")
			}
			e.rule(m)
		}
		e.str("]")
	}
	if r.Content != nil {
		e.str(`, "content": `)
		e.rule(r.Content)
	}
	e.str("}")
}
