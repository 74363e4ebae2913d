// Package auth gates admin-only commands behind a static allow-list.
package auth

import (
	"strconv"
	"strings"
)

// Authorizer answers admin checks against an immutable allow-list fixed at
// startup. Lookups are pure and safe for unsynchronized concurrent use.
type Authorizer struct {
	admins map[string]struct{}
}

// NewAuthorizer builds an Authorizer from the configured admin user ids.
func NewAuthorizer(adminIDs []int64) *Authorizer {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[strconv.FormatInt(id, 10)] = struct{}{}
	}

	return &Authorizer{admins: admins}
}

// IsAdmin reports whether the caller identity is on the allow-list. Unknown or
// empty identities are denied.
func (a *Authorizer) IsAdmin(callerID string) bool {
	if a == nil {
		return false
	}

	_, ok := a.admins[strings.TrimSpace(callerID)]
	return ok
}
