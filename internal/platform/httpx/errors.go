package httpx

import (
	"errors"
	"net/http"

	"github.com/stockeasy/stockeasy/internal/shared"
)

// RespondError maps the shared error taxonomy to RFC7807 responses. The detail
// is always the user-safe message, never the wrapped remote error.
func RespondError(w http.ResponseWriter, err error) {
	detail := shared.UserSafeMessage(err)
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", detail)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", detail)
	case errors.Is(err, shared.ErrDuplicateSubmit):
		Problem(w, http.StatusConflict, "Duplicate", detail)
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
	case errors.Is(err, shared.ErrFetch),
		errors.Is(err, shared.ErrCreate),
		errors.Is(err, shared.ErrUpdate),
		errors.Is(err, shared.ErrDelete):
		Problem(w, http.StatusBadGateway, "Backend Failed", detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", detail)
	}
}
