package httpx

import (
	"errors"
	"net/http"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// RespondError maps business errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var be *shared.Error
	if errors.As(err, &be) {
		switch be.Kind {
		case shared.KindValidation:
			JSON(w, http.StatusBadRequest, ProblemDetail{
				Title:  "Validation Failed",
				Status: http.StatusBadRequest,
				Detail: be.Msg,
				Field:  be.Field,
			})
		case shared.KindInsufficientStock:
			Problem(w, http.StatusConflict, "Insufficient Stock", be.Msg)
		case shared.KindAuth:
			Problem(w, http.StatusUnauthorized, "Unauthorized", be.Msg)
		case shared.KindNotFound:
			Problem(w, http.StatusNotFound, "Not Found", be.Msg)
		default:
			Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", "this request was already processed")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
