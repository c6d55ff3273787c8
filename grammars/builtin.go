package grammars

import (
	"github.com/odvcencio/arbor/grammars/hare"
	"github.com/odvcencio/arbor/grammars/json"
)

func init() {
	Register(LangEntry{
		Name:       "hare",
		Extensions: hare.Extensions,
		Language:   hare.Language,
		Queries:    hare.Queries(),
	})
	Register(LangEntry{
		Name:       "json",
		Extensions: json.Extensions,
		Language:   json.Language,
		Queries:    json.Queries(),
	})
}
