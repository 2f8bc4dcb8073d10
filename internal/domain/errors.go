package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Session errors
	ErrNotAuthenticated = errors.New("authentication required")

	// Credit errors
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDeductionFailed     = errors.New("credit deduction failed")

	// Backend errors
	ErrBackend       = errors.New("backend request failed")
	ErrMalformedData = errors.New("malformed data")

	// Invocation errors
	ErrUnknownTool = errors.New("unknown tool")
	ErrSuperseded  = errors.New("request superseded by a newer submission")
	ErrNoResult    = errors.New("tool has no result to save")

	// Calendar errors
	ErrCalendarPersist = errors.New("calendar could not be persisted")
	ErrDayOutOfRange   = errors.New("calendar day out of range")
	ErrNoEntry         = errors.New("calendar day has no such entry")

	// Profile errors
	ErrReloadInProgress = errors.New("profile reload already in progress")
)
