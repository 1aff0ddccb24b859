package storage

import (
	"errors"
	"fmt"
	"strings"

	"sprintboard/internal/apperr"
)

// Translate classifies a store error for callers above the storage layer.
// subject names the addressed entity in client messages, e.g. "sprint 4".
// Errors the store does not recognise pass through unchanged.
func Translate(err error, subject string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(subject, args...)
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(apperr.NotFound, err, "%s not found", what)
	case errors.Is(err, ErrInvalid):
		return apperr.Wrap(apperr.Validation, err, "%s", unwrapMessage(err))
	case errors.Is(err, ErrDuplicate):
		return apperr.Wrap(apperr.Conflict, err, "%s already exists", what)
	case errors.Is(err, ErrStale):
		return apperr.Wrap(apperr.Conflict, err, "%s was modified concurrently, retry", what)
	default:
		return err
	}
}

// unwrapMessage drops the wrapping prefixes the store adds, keeping the
// text after the ErrInvalid marker.
func unwrapMessage(err error) string {
	msg := err.Error()
	marker := ErrInvalid.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}
