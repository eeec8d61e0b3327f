// Package textutils provides text cleanup utilities for OCR and transcript
// output before it reaches intent classification and extraction.
package textutils

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRun = regexp.MustCompile(`[ \t]+`)

// CollapseWhitespace reduces runs of spaces and tabs to a single space.
func CollapseWhitespace(s string) string {
	return whitespaceRun.ReplaceAllString(s, " ")
}

// CleanLine prepares one recognized line: control characters are dropped,
// whitespace runs collapse and the result is trimmed. OCR engines emit both
// freely on low-quality receipts.
func CleanLine(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(CollapseWhitespace(b.String()))
}

// CleanBlock applies CleanLine per line of a multi-line block and drops
// lines that end up empty.
func CleanBlock(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if cleaned := CleanLine(line); cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return strings.Join(lines, "\n")
}
