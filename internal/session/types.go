package session

import "strings"

// Principal is the authenticated caller context placed by the fronting
// identity layer before a request reaches the core.
//
// The core must NOT derive or trust any identity claims itself; it only
// consumes what the upstream auth and membership checks already verified.
type Principal struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email,omitempty"`
	OrgID     string `json:"org_id"`
}

// Authenticated reports whether a verified user is present.
func (p Principal) Authenticated() bool {
	return strings.TrimSpace(p.UserID) != ""
}

// Scoped reports whether the principal carries an organization context.
func (p Principal) Scoped() bool {
	return p.Authenticated() && strings.TrimSpace(p.OrgID) != ""
}
