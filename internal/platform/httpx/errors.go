package httpx

import (
	"errors"
	"net/http"

	"github.com/narck25/gestion-visitas-promotores/internal/authz"
	"github.com/narck25/gestion-visitas-promotores/internal/platform/db"
	"github.com/narck25/gestion-visitas-promotores/internal/shared"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// OnDenial, when set, observes every authorization denial's reason code as it
// is written out. Wired to the metrics registry at startup.
var OnDenial func(reason string)

// RespondError maps domain and authorization errors to HTTP responses using
// RFC7807. Authorization denials always map to 403, even when the resource
// exists but is out of scope, so status codes never disclose the existence
// of resources the principal may not see.
func RespondError(w http.ResponseWriter, err error) {
	var (
		authzErr   *authz.AuthorizationError
		validation *authz.ValidationError
		violation  *authz.InvariantViolation
	)
	switch {
	case errors.As(err, &authzErr):
		if OnDenial != nil {
			OnDenial(string(authzErr.Reason))
		}
		JSON(w, http.StatusForbidden, ProblemDetail{
			Title:  "Forbidden",
			Status: http.StatusForbidden,
			Reason: string(authzErr.Reason),
		})
	case errors.As(err, &validation):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: validation.Msg,
			Reason: string(validation.Reason),
		})
	case errors.As(err, &violation):
		JSON(w, http.StatusConflict, ProblemDetail{
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: violation.Msg,
			Reason: string(violation.Reason),
		})
	case db.IsSerializationFailure(err):
		Problem(w, http.StatusConflict, "Conflict", "concurrent update, retry the request")
	case errors.Is(err, ErrNotFound) || errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnauthorized) || errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
