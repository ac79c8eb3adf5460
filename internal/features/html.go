package features

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

var (
	preservedBlockRe = regexp2.MustCompile(`<(script|style|pre|textarea)\b[^>]*>.*?</\1>`,
		regexp2.IgnoreCase|regexp2.Singleline)
	betweenTagsRe = regexp2.MustCompile(`>\s+<`, regexp2.Singleline)
	lineEdgeRe    = regexp2.MustCompile(`^\s+|\s+$`, regexp2.Multiline)
	multiSpaceRe  = regexp2.MustCompile(`\s{2,}`, regexp2.None)

	// Conditional comments and block delimiters are kept
	htmlCommentRe = regexp2.MustCompile(`<!--(?!\[if|\s*(?:<!|/?wp:|\[endif)).*?-->`, regexp2.Singleline)

	pingbackLinkRe = regexp2.MustCompile(`<link[^>]+rel=["']pingback["'][^>]+?/?>`,
		regexp2.IgnoreCase|regexp2.Singleline)
)

const blockPlaceholder = "__OPTICORE_HTML_BLOCK_%d__"

// MinifyHTML collapses whitespace in a document. The contents of script,
// style, pre and textarea elements are left as they are.
func MinifyHTML(doc string) string {
	if strings.TrimSpace(doc) == "" {
		return doc
	}

	var preserved []string
	out, err := preservedBlockRe.ReplaceFunc(doc, func(m regexp2.Match) string {
		token := fmt.Sprintf(blockPlaceholder, len(preserved))
		preserved = append(preserved, m.String())
		return token
	}, -1, -1)
	if err != nil {
		return doc
	}

	out = replace(betweenTagsRe, out, "><")
	out = replace(lineEdgeRe, out, "")
	out = replace(multiSpaceRe, out, " ")

	for i, block := range preserved {
		out = strings.Replace(out, fmt.Sprintf(blockPlaceholder, i), block, 1)
	}

	return strings.TrimSpace(out)
}

// RemoveHTMLComments strips comments except conditional comments and
// block editor delimiters
func RemoveHTMLComments(doc string) string {
	return replace(htmlCommentRe, doc, "")
}

// RemovePingbackLinks drops <link rel="pingback"> tags
func RemovePingbackLinks(doc string) string {
	return replace(pingbackLinkRe, doc, "")
}

func replace(re *regexp2.Regexp, in, repl string) string {
	out, err := re.Replace(in, repl, -1, -1)
	if err != nil {
		return in
	}
	return out
}
