package rbac

import "errors"

var (
	// ErrProfileNotFound indicates the user has no profile in the role source.
	ErrProfileNotFound = errors.New("rbac: profile not found")
	// ErrLookupFailed wraps any failure while reading grants.
	ErrLookupFailed = errors.New("rbac: role lookup failed")
	// ErrMalformedGrant indicates a grant record that cannot be interpreted.
	ErrMalformedGrant = errors.New("rbac: malformed grant")
)
