// Package sanitize strips markup from user supplied message bodies.
package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer removes every HTML element and escapes the remaining text. Output is
// deterministic and sanitizing it again yields the same string.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New returns a sanitizer using the strict policy.
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize returns text with executable and presentational markup removed.
func (s *Sanitizer) Sanitize(text string) string {
	return s.policy.Sanitize(text)
}
