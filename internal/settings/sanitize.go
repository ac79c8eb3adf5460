package settings

import (
	"regexp"
	"strings"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(?:script|style)[^>]*?>.*?</(?:script|style)>`)
	tagRe         = regexp.MustCompile(`<[^>]*>?`)
	octetRe       = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	lineSpaceRe   = regexp.MustCompile(`[\t ]+`)
	spaceRe       = regexp.MustCompile(`[\r\n\t ]+`)
)

// SanitizeText cleans a single-line form value: invalid UTF-8 and tags
// are dropped, percent-encoded octets removed, whitespace collapsed.
func SanitizeText(s string) string {
	s = strip(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeTextarea cleans a multi-line form value. Line breaks are kept
// so list-valued settings survive a save.
func SanitizeTextarea(s string) string {
	s = strings.ReplaceAll(strip(s), "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(lineSpaceRe.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func strip(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = scriptStyleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = octetRe.ReplaceAllString(s, "")
	return s
}
