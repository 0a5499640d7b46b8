package status

import "errors"

var (
	ErrAlreadyQueuedOrActive  = errors.New("queue: user already queued or holding the lease")
	ErrNotInQueue             = errors.New("queue: user is not in the queue")
	ErrResourceNotFound       = errors.New("resource: resource not found")
	ErrResourceUnavailable    = errors.New("resource: resource is unavailable")
	ErrNotActiveHolder        = errors.New("lease: user is not the active holder")
	ErrExtensionLimitExceeded = errors.New("lease: extension limit exceeded")
)
