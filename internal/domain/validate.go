package domain

import "regexp"

// emailPattern accepts a dotted local part, an @ separator, and dot-separated
// domain labels ending in a top-level label of at least two letters.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)

// ValidEmail reports whether the address matches the reservation email format.
// The address is checked exactly as received; no case normalization happens.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
