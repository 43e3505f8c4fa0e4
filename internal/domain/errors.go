package domain

import "errors"

// Validation and lifecycle errors. All are terminal for the call that
// produced them: a rejected reading never becomes a bucket, a rejected bind
// leaves no binding. Callers match with errors.Is.
var (
	// ErrUnbound is returned when an operation references a location that has
	// no binding. Permanent until the location is bound.
	ErrUnbound = errors.New("location is not bound")

	// ErrAlreadyBound is returned on an attempt to rebind a location.
	// Bindings are write-once for audit stability.
	ErrAlreadyBound = errors.New("location is already bound")

	// ErrInvalidCoordinates is returned when anchor coordinates fall outside
	// the valid fixed-point latitude/longitude range.
	ErrInvalidCoordinates = errors.New("invalid anchor coordinates")

	// ErrEmptyProviderKey is returned when a bind carries no provider
	// location key.
	ErrEmptyProviderKey = errors.New("provider location key is empty")

	// ErrStaleTimestamp is returned when a reading is older than the accepted
	// past drift. The sample should be dropped or flagged, not retried as-is.
	ErrStaleTimestamp = errors.New("reading timestamp too far in the past")

	// ErrFutureTimestamp is returned when a reading is ahead of the accepted
	// future drift.
	ErrFutureTimestamp = errors.New("reading timestamp too far in the future")

	// ErrRainfallOutOfRange is returned when a rainfall value is negative or
	// exceeds the sanity ceiling. Flag for manual review, never clamp.
	ErrRainfallOutOfRange = errors.New("rainfall value out of range")

	// ErrInvalidWindow is returned for a threshold query whose window has
	// start >= end. Caller error, not recoverable by retry.
	ErrInvalidWindow = errors.New("invalid coverage window")
)
