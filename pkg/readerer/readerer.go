// Package readerer turns decoded document text into clickable segments and
// resolves clicked offsets back to their sentence.
package readerer

import "regexp"

// Version returns the current version of the package.
func Version() string { return "0.2.0" }

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses (<rp>...</rp>)
// from HTML content. Text extraction keeps furigana otherwise, which duplicates
// words in the reader (e.g. "漢字" becomes "漢字かんじ").
// It operates on bytes, so it is safe for Shift_JIS input as well:
// <, >, r, t, p are ASCII and < is never a trailing byte in Shift_JIS.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	cleaned = reRP.ReplaceAll(cleaned, []byte{})
	return cleaned
}
