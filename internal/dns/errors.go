package dns

import "errors"

// Error kinds surfaced by providers. Implementations wrap these with %w so
// callers can classify failures with errors.Is.
var (
	// ErrNotFound means a zone or record name had no match in the listing.
	ErrNotFound = errors.New("not found")
	// ErrAuthFailed means the provider did not accept the session credentials.
	ErrAuthFailed = errors.New("provider authentication failed")
	// ErrUnreachable means the provider could not be reached or answered with a server error.
	ErrUnreachable = errors.New("provider unreachable")
	// ErrRejected means the provider answered but refused the submitted form.
	ErrRejected = errors.New("provider rejected request")
)
