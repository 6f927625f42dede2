package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseQuantity converts user input to a record quantity.
//
// Empty input means the default of one unit. Signs, decimals and values
// outside [MinQuantity, MaxQuantity] are rejected with ErrInvalidQuantity.
//
// Examples:
//
//	ParseQuantity("")   -> 1, nil
//	ParseQuantity(" 3") -> 3, nil
//	ParseQuantity("11") -> 0, ErrInvalidQuantity
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MinQuantity, nil
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidQuantity
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	if n < MinQuantity || n > MaxQuantity {
		return 0, ErrInvalidQuantity
	}
	return n, nil
}
