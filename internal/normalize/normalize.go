// Package normalize folds free-text game, category and runner names into
// comparison codes and checks display names for allowed characters.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the longest accepted game or category display name.
const MaxNameLength = 100

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	validName       = regexp.MustCompile(`^[a-zA-Z0-9 +=,.:!@#$%&*()'/\\-]{1,100}$`)
)

// Code folds a display name into its comparison code.
// "Super Mario 64" -> "supermario64".
// "Any%" -> "any".
// "Pokémon Red" -> "pokemonred".
// Two names with the same code name the same catalog entity.
func Code(name string) string {
	// Decompose so accented letters keep their base letter.
	s := norm.NFKD.String(name)

	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)

	return nonAlphanumeric.ReplaceAllString(s, "")
}

// ValidName reports whether a display name is 1 to 100 characters of
// letters, digits, spaces and +=,.:!@#$%&*()'/\-.
func ValidName(name string) bool {
	return validName.MatchString(name)
}
