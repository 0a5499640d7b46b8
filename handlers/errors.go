package handlers

import (
	"errors"

	"github.com/pocketbase/pocketbase/apis"

	"reservation-system/status"
)

// apiError maps domain errors to HTTP responses. Unrecognized errors
// surface as a generic 400 so internals do not leak.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrResourceNotFound):
		return apis.NewNotFoundError("Resource not found", err)
	case errors.Is(err, status.ErrResourceUnavailable):
		return apis.NewBadRequestError("Resource is not available for reservation", err)
	case errors.Is(err, status.ErrAlreadyQueuedOrActive):
		return apis.NewBadRequestError("Already queued or holding this resource", err)
	case errors.Is(err, status.ErrNotInQueue):
		return apis.NewNotFoundError("Not in the queue for this resource", err)
	case errors.Is(err, status.ErrNotActiveHolder):
		return apis.NewForbiddenError("Not the active holder of this resource", err)
	case errors.Is(err, status.ErrExtensionLimitExceeded):
		return apis.NewBadRequestError("Extension limit exceeded", err)
	default:
		return apis.NewBadRequestError("Request failed", err)
	}
}
