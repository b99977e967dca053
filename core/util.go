package core

import (
	"strings"

	"github.com/google/uuid"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings trims every element of ss. A nil slice stays nil.
func CleanStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	cleaned := make([]string, len(ss))
	for i, s := range ss {
		cleaned[i] = CleanString(s)
	}
	return cleaned
}

// NewID returns a new random identifier.
func NewID() string {
	return uuid.NewString()
}
