package domain

import "errors"

var (
	// ErrDuplicateEmail reports that a reservation already exists for an email.
	ErrDuplicateEmail = errors.New("a record already exists for this email")
	// ErrNotFound reports that no record matched the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidTransition reports a payment-status write that would move the
	// record backward.
	ErrInvalidTransition = errors.New("invalid payment status transition")
)
