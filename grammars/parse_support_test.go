package grammars

import (
	"testing"

	"github.com/odvcencio/arbor/sitter"
)

var parseSmokeSamples = map[string]string{
	"hare": "use fmt;\n\nexport fn main() void = {\n\tfmt::println(\"hi\")!;\n};\n",
	"json": "{\"a\": [1, true, null]}\n",
}

func TestSupportedLanguagesParseSmoke(t *testing.T) {
	for _, report := range AuditParseSupport() {
		sample, ok := parseSmokeSamples[report.Name]
		if !ok {
			t.Fatalf("missing parse smoke sample for language %q", report.Name)
		}
		if report.Backend == ParseBackendUnsupported {
			t.Fatalf("%s is unsupported: %s", report.Name, report.Reason)
		}

		entry := Lookup(report.Name)
		if entry == nil {
			t.Fatalf("missing registry entry for %q", report.Name)
		}
		lang, err := entry.Language()
		if err != nil {
			t.Fatalf("%s: %v", report.Name, err)
		}
		tree := sitter.NewParser(lang).Parse([]byte(sample))
		if tree == nil || tree.RootNode() == nil {
			t.Fatalf("%s parse returned nil root", report.Name)
		}
		if tree.RootNode().HasError() {
			t.Fatalf("%s parse smoke sample produced syntax errors: %s", report.Name, tree.RootNode())
		}
		for role, src := range entry.Queries {
			if _, err := sitter.NewQuery(src, lang); err != nil {
				t.Errorf("%s %s query: %v", report.Name, role, err)
			}
		}
	}
}
