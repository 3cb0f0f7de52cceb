// Package sanitize cleans free-text user input before it is persisted.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict strips every element; script and style bodies are dropped with them.
var strict = bluemonday.StrictPolicy()

// sqlSequences are comment markers and statement terminators that have no
// place in names or other short free text.
var sqlSequences = []string{"--", "/*", "*/", ";"}

var angleReplacer = strings.NewReplacer("<", "", ">", "")

// Text returns s without markup, script content, angle brackets and SQL
// comment or terminator sequences, with runs of whitespace collapsed.
func Text(s string) string {
	out := html.UnescapeString(strict.Sanitize(s))
	out = angleReplacer.Replace(out)
	for {
		before := out
		for _, seq := range sqlSequences {
			out = strings.ReplaceAll(out, seq, "")
		}
		// removing one sequence can join the halves of another ("-/*-")
		if out == before {
			break
		}
	}
	return collapseSpace(out)
}

// Clean returns the sanitized text and whether sanitizing removed anything
// beyond surrounding or repeated whitespace.
func Clean(s string) (string, bool) {
	cleaned := Text(s)
	return cleaned, cleaned != collapseSpace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
