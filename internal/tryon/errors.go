package tryon

import "errors"

// Frame-level failure taxonomy. Every error here is recoverable: a failed
// frame never corrupts session state or affects later frames.
var (
	// ErrNoUsablePose reports that the current pose is unusable and the
	// session has no prior stable warp to freeze to.
	ErrNoUsablePose = errors.New("no usable pose detected")

	// ErrInvalidGarment reports a garment type outside the closed enum.
	ErrInvalidGarment = errors.New("invalid garment type")

	// ErrMalformedColor reports a color string that is not #RRGGBB or RRGGBB.
	ErrMalformedColor = errors.New("malformed color")

	// ErrMalformedFrame reports an undecodable or missing frame image.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrDetectorTimeout reports that the external landmark detector did not
	// answer within its bound. Callers never see it as a frame error: it is
	// downgraded to the freeze path (or ErrNoUsablePose on a fresh session)
	// and logged distinctly.
	ErrDetectorTimeout = errors.New("landmark detector timed out")

	// ErrSessionNotFound reports an operation on an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionLimit reports that the registry is at capacity.
	ErrSessionLimit = errors.New("session limit reached")

	// ErrDegenerateGeometry reports shoulders too close together to derive
	// a placement (coincident shoulder landmarks).
	ErrDegenerateGeometry = errors.New("degenerate pose geometry")
)
