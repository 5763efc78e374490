package handler

import (
	"errors"
	"net/http"
	"net/url"

	"catalogsync-api/internal/model"
	"catalogsync-api/pkg/apierror"
	"catalogsync-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// writeError maps a service error onto the API error envelope. Only the
// coarse operation message reaches the client.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		response.Error(w, apierror.ValidationError(validationErr.Message, apierror.FieldError{
			Field:   validationErr.Field,
			Message: validationErr.Message,
		}))
		return
	}

	message := ""
	var opErr *model.OperationError
	if errors.As(err, &opErr) {
		message = opErr.Message
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		response.Error(w, apierror.NotFound(message))
	case model.IsRetryable(err):
		response.Error(w, apierror.ServiceUnavailable(message))
	default:
		response.Error(w, apierror.InternalError(message))
	}
}

// productID returns the unescaped {id} path parameter. Remote ids contain
// slashes and arrive path-escaped.
func productID(r *http.Request) (string, error) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		return "", apierror.BadRequest("Invalid product id")
	}
	return id, nil
}
