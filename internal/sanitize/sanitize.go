// Package sanitize rejects free-text input containing characters that
// would change under HTML escaping. The API never stores escaped
// values; a mismatch is a 400 at the handler.
package sanitize

import "html"

// Clean reports whether the field equals its escaped form.
func Clean(field string) bool {
	return field == html.EscapeString(field)
}

// AllClean reports whether every field passes Clean.
func AllClean(fields ...string) bool {
	for _, f := range fields {
		if !Clean(f) {
			return false
		}
	}
	return true
}
