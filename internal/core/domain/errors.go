package domain

import "errors"

var (
	// ErrInvalidGeohash is returned for empty codes, codes longer than 12
	// characters, or codes containing a character outside the alphabet.
	ErrInvalidGeohash = errors.New("invalid geohash")

	// ErrSourceUnavailable marks a remote source that failed to fetch or
	// answered with a non-2xx status.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSurfaceNotReady is returned when the map widget has not reported
	// readiness yet.
	ErrSurfaceNotReady = errors.New("surface not ready")

	// ErrSurfaceReleased is returned for mutations against a surface whose
	// view has been deactivated.
	ErrSurfaceReleased = errors.New("surface released")

	// ErrStaleRun is returned when a newer run has already committed to the
	// surface.
	ErrStaleRun = errors.New("stale run")

	ErrViewNotFound = errors.New("view not found")

	// ErrSourceNotFound is returned for a source id the view does not have.
	ErrSourceNotFound = errors.New("source not found")

	// ErrInvalidParams is returned for malformed view configuration.
	ErrInvalidParams = errors.New("invalid view parameters")

	ErrNoSources = errors.New("view has no sources")

	// ErrViewServiceClosed is returned by Mount after Shutdown.
	ErrViewServiceClosed = errors.New("view service closed")
)
