package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer = bluemonday.StrictPolicy()
	newlines  = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Sanitize removes HTML tags from user supplied text before it is stored. The result is
// plain text, never entity-escaped: input without tags comes back byte for byte.
func Sanitize(input string) string {
	stripped := html.UnescapeString(sanitizer.Sanitize(input))
	if stripped == newlines.Replace(html.UnescapeString(input)) {
		return input
	}
	return stripped
}
