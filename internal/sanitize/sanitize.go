// Package sanitize strips markup from free-text form input before it is stored.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// plain reverses only the escapes that cannot form markup. Encoded angle
// brackets stay encoded so stored text never carries a live tag.
var plain = strings.NewReplacer(
	"&amp;", "&",
	"&#39;", "'",
	"&#34;", `"`,
	"&quot;", `"`,
)

// Text trims s and removes every tag, keeping the plain text content.
func Text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(plain.Replace(policy.Sanitize(s)))
}

// Optional returns nil for absent or blank input.
func Optional(s *string) *string {
	if s == nil {
		return nil
	}
	clean := Text(*s)
	if clean == "" {
		return nil
	}
	return &clean
}
