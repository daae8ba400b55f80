package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrSignalNotFound    = errors.New("signal not found")
	// ErrForbidden indicates the resource belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrSignalNotClosed rejects deleting a signal that is still in play.
	ErrSignalNotClosed = errors.New("only won, lost or discarded signals can be deleted")
	ErrScrapeDisabled  = errors.New("scrape pipeline not configured")
)
