package core

import "strings"

// CleanString trims surrounding whitespace; pass true to also lowercase,
// which is how usernames and emails are canonicalized everywhere.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}
