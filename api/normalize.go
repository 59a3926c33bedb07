package api

import (
	"regexp"
	"strings"
)

// blankRuns matches three or more line breaks separated only by whitespace.
var blankRuns = regexp.MustCompile(`\n\s*\n\s*\n`)

// NormalizePDDL turns escaped "\n" sequences into real newlines and CRLF
// line endings into LF. Text pasted from JSON payloads often carries both.
func NormalizePDDL(text string) string {
	if text == "" {
		return text
	}
	text = strings.ReplaceAll(text, `\n`, "\n")
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// PreparePDDL normalizes text, collapses runs of blank lines to a single
// blank line and trims surrounding whitespace. Every PDDL input is passed
// through it before submission.
func PreparePDDL(text string) string {
	if text == "" {
		return text
	}
	text = NormalizePDDL(text)
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
