package domain

import "errors"

var (
	// ErrUnauthenticated is returned when no credential exists or upstream rejected it.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden signals a valid credential that lacks permission for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidArgument signals failed input validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound signals a missing repository or pull request.
	ErrNotFound = errors.New("not found")
	// ErrTransient signals a connectivity failure, timeout or 5xx from upstream.
	ErrTransient = errors.New("transient upstream failure")
	// ErrUpstream signals any other error reported by upstream, e.g. a failed merge precondition.
	ErrUpstream = errors.New("upstream error")
)
