package tasks

import (
	"errors"
	"net/http"
)

// Domain errors for verification task operations.
var (
	ErrNotFound        = errors.New("task not found")
	ErrConflict        = errors.New("task update lost a concurrent race")
	ErrAlreadyAssigned = errors.New("task already assigned")
	ErrInvalidState    = errors.New("transition not valid from current status")
	ErrNotOwned        = errors.New("task not owned by this reviewer")
	ErrValidation      = errors.New("invalid request")
)

// MapHTTPStatus maps task domain errors to HTTP status codes. Guard and race
// failures surface as 409 so clients can refresh and retry; validation
// failures surface as 422 so clients block submission until corrected.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrNotOwned):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
