package domain

import "errors"

// Failure taxonomy for the issuance pipeline. Classification is always
// by errors.Is identity, never by message text.
var (
	// ErrConfig marks a programmer error in variant configuration
	// (fixed numbers out of range, duplicated, or more than TicketSize).
	ErrConfig = errors.New("invalid variant configuration")

	// ErrGenerationExhausted means the sampler hit its safety cap.
	ErrGenerationExhausted = errors.New("ticket generation exhausted")

	// ErrUnauthorized is raised by the session layer on a 401. It is
	// resolved at that boundary (token and profile cleared); callers
	// abort, they never retry past it.
	ErrUnauthorized = errors.New("session unauthorized")

	// ErrLoginRequired means no token is present at all.
	ErrLoginRequired = errors.New("login required")

	// ErrPremiumRequired is the 403 entitlement sentinel. It routes to
	// the paywall, not to the generic error path.
	ErrPremiumRequired = errors.New("premium subscription required")

	ErrDrawFetch            = errors.New("draw info fetch failed")
	ErrEngine               = errors.New("prediction engine error")
	ErrInvalidResponseShape = errors.New("unrecognized engine response shape")
	ErrValidation           = errors.New("invalid request")

	// ErrBusy means an issuance attempt is already in flight.
	ErrBusy = errors.New("issuance already in progress")
)
