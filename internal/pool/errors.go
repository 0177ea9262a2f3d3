package pool

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// Error kinds returned by the engine. Callers classify with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalid         = errors.New("invalid")

	// ErrNotAvailable is the Conflict raised when a task is not open for claiming.
	ErrNotAvailable = errors.Wrap(ErrConflict, "not available")

	// ErrInvalidActionType is reported as the routing error of a completion
	// whose route names an unknown or inactive action type.
	ErrInvalidActionType = errors.New("invalid action type")
)

// translate maps storage errors onto engine error kinds.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(ErrNotFound, strings.TrimSuffix(err.Error(), ": "+store.ErrNotFound.Error()))
	}
	return err
}
