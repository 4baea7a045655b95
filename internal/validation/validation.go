package validation

import (
	"errors"
	"strings"
	"unicode"
)

// Town name length bounds in runes.
const (
	DefaultMinLength = 2
	DefaultMaxLength = 64
)

// ErrTownEmpty is returned when the name is empty or whitespace-only after trim.
var ErrTownEmpty = errors.New("town is required")

// ErrTownTooShort is returned when the name is below the minimum length.
var ErrTownTooShort = errors.New("town too short")

// ErrTownTooLong is returned when the name exceeds the maximum length.
var ErrTownTooLong = errors.New("town too long")

// ErrTownInvalidChars is returned when the name contains disallowed characters.
var ErrTownInvalidChars = errors.New("town contains invalid characters")

// ValidateTown trims the input, enforces length bounds (minLen, maxLen in runes; <= 0 disables)
// and restricts to letters, spaces, hyphens, apostrophes and periods.
// Returns the trimmed name or an error suitable for a 400 INVALID_TOWN response.
func ValidateTown(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrTownEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrTownTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrTownTooLong
	}
	for _, c := range r {
		if !isAllowedTownRune(c) {
			return "", ErrTownInvalidChars
		}
	}
	return s, nil
}

func isAllowedTownRune(r rune) bool {
	if unicode.IsLetter(r) {
		return true
	}
	switch r {
	case ' ', '-', '\'', '.':
		return true
	}
	return false
}
