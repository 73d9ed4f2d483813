// Package normalize cleans scraped strings and canonicalizes dates.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// scrapedDateLayout matches dates such as "June 3, 1988".
	scrapedDateLayout = "January 2, 2006"
	isoDateLayout     = "2006-01-02"
	birthPrefix       = "in "
)

var (
	controlRun = regexp.MustCompile(`[\r\n\t]+`)
	spaceRun   = regexp.MustCompile(`[\t\n\v\f\r ]+`)
)

// Clean decodes HTML entities, applies NFKC, drops everything outside 7-bit
// ASCII, and collapses whitespace runs into single spaces.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	text = norm.NFKC.String(text)
	text = strings.Map(keepASCII, text)
	text = controlRun.ReplaceAllString(text, " ")
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// keepASCII keeps printable ASCII plus the whitespace controls that the
// collapse passes turn into spaces.
func keepASCII(r rune) rune {
	switch {
	case r > unicode.MaxASCII:
		return -1
	case r == 0x7f:
		return -1
	case r < 0x20 && !isSpaceControl(r):
		return -1
	default:
		return r
	}
}

func isSpaceControl(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// FormatDate cleans text and rewrites "Month D, YYYY" as YYYY-MM-DD. Anything
// that does not parse comes back cleaned but otherwise unchanged.
func FormatDate(text string) string {
	cleaned := Clean(text)
	parsed, err := time.Parse(scrapedDateLayout, cleaned)
	if err != nil {
		return cleaned
	}
	return parsed.Format(isoDateLayout)
}

// StripBirthPrefix removes the literal "in " that author pages put before
// the birthplace.
func StripBirthPrefix(text string) string {
	return strings.TrimPrefix(strings.TrimSpace(text), birthPrefix)
}

// Place cleans a scraped birthplace.
func Place(text string) string {
	return Clean(StripBirthPrefix(text))
}
