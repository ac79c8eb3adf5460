// Package cssmin implements a small, fixed-rule CSS minifier.
//
// The rule set is deliberately conservative: it removes comments and
// redundant whitespace and shortens zero values. It never parses the
// stylesheet, so selectors and declarations pass through untouched apart
// from whitespace.
package cssmin

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// rule is one ordered regex substitution
type rule struct {
	name string
	re   *regexp2.Regexp
	repl string
}

func newRule(name, pattern, repl string) rule {
	return rule{
		name: name,
		re:   regexp2.MustCompile(pattern, regexp2.None),
		repl: repl,
	}
}

// rules are applied in order, each over the whole text.
var rules = []rule{
	// Block comments, except /*! license banners
	newRule("comments", `/\*(?!!)[\s\S]*?\*/`, ""),

	newRule("punctuation", `\s*([{};,>:])\s*`, "$1"),
	newRule("whitespace", `\s{2,}`, " "),
	newRule("trailing-semicolon", `;}`, "}"),

	// Arithmetic operators inside a parenthesized run, e.g. calc()
	newRule("operators", `\s*([+\-*/])\s*(?=[^{}]*\))`, "$1"),

	newRule("leading-zero", `(?<=[:\s])0+\.(\d+)`, ".$1"),
	newRule("zero-px", `(?<!\d)0+px\b`, "0"),
	newRule("zero-percent", `(:|\s)0+%`, "${1}0"),
	newRule("zero-unit", `(:|\s)0(?:in|cm|mm|pc|pt|px|em|ex|ch|rem|vh|vw|vmin|vmax|%)\b`, "${1}0"),
}

// Minify returns a compacted copy of css. Empty input yields an empty
// string. Minify is idempotent: Minify(Minify(x)) == Minify(x).
func Minify(css string) string {
	if css == "" {
		return ""
	}

	out := strings.ReplaceAll(css, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.TrimSpace(out)

	for _, r := range rules {
		replaced, err := r.re.Replace(out, r.repl, -1, -1)
		if err != nil {
			// Only a match timeout can fail here; keep the text from the previous rule.
			continue
		}
		out = replaced
	}

	return strings.TrimSpace(out)
}

// MinifyBytes is Minify for byte slices.
func MinifyBytes(css []byte) []byte {
	return []byte(Minify(string(css)))
}
