// Package hint matches free-text student queries against a template's
// keyword-triggered hint rules.
package hint

import (
	"strings"
	"unicode"

	"github.com/dverner/edusim/internal/template"
)

// Hint is one matched hint, in template declaration order.
type Hint struct {
	Text string
}

// HintsFor returns every hint rule whose trigger set intersects the
// tokenized query, ties broken by declaration order. No match is an
// empty sequence, not an error.
func HintsFor(tpl *template.Template, query string) []Hint {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	var out []Hint
	for _, rule := range tpl.Hints {
		for _, trigger := range rule.Triggers {
			if tokens[strings.ToLower(trigger)] {
				out = append(out, Hint{Text: rule.Text})
				break
			}
		}
	}
	return out
}

func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
