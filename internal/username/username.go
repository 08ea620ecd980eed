// Package username normalizes the free-form usernames clients register with.
//
// Usernames are case-insensitive: two spellings that fold to the same Key
// name the same presence entry and the same side of a private conversation.
package username

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalize trims surrounding whitespace. The returned spelling is the one
// shown to other users.
func Normalize(name string) string {
	return strings.TrimSpace(name)
}

// IsBlank reports whether name is empty or whitespace only.
func IsBlank(name string) bool {
	return Normalize(name) == ""
}

// Key returns the case-folded matching key for name.
func Key(name string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Fold().String(Normalize(name))
}

// Equal reports whether a and b name the same user.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
