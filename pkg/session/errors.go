package session

import "errors"

var (
	// ErrInvalidVersion is returned when a counter is outside 0..65535.
	ErrInvalidVersion = errors.New("version must be between 0 and 65535")

	// ErrNoSession is returned for operations on a tab without a session,
	// and fails requests outstanding when a session is torn down locally.
	ErrNoSession = errors.New("no active session for tab")

	// ErrNotInPreview is returned by Commit outside preview mode.
	ErrNotInPreview = errors.New("session is not in preview mode")

	// ErrExcludedDomain is returned when activation is disabled for a domain.
	ErrExcludedDomain = errors.New("activation is disabled for this domain")

	// ErrControllerClosed is returned after Close.
	ErrControllerClosed = errors.New("session controller closed")
)
