package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/atreyu1968/manuscript-mender/internal/ledger"
	"github.com/atreyu1968/manuscript-mender/internal/structural"
)

// ErrNotStructural indicates a structural endpoint was called on a plain
// span correction.
type ErrNotStructural struct {
	ID string
}

func (e *ErrNotStructural) Error() string {
	return fmt.Sprintf("correction %s is not structural", e.ID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound      *ledger.RecordNotFoundError
		notPending    *ledger.NotPendingError
		spanMissing   *ledger.SpanMissingError
		structRecord  *ledger.StructuralRecordError
		pending       *ledger.PendingRemainError
		badOption     *structural.OptionNotFoundError
		notStructural *ErrNotStructural
	)
	switch {
	case errors.As(err, &notStructural):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &notPending):
		return http.StatusConflict
	case errors.As(err, &spanMissing):
		return http.StatusConflict
	case errors.As(err, &structRecord):
		return http.StatusUnprocessableEntity
	case errors.As(err, &pending):
		return http.StatusConflict
	case errors.As(err, &badOption):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
