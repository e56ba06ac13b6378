package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fuelpoints/platform/internal/domain"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// errorBody is the wire form every client decodes back into a domain.AppError.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondError writes a JSON error response. A wrapped domain.AppError keeps
// its code and status; anything else is an opaque INTERNAL_ERROR.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		RespondJSON(w, appErr.Status, errorBody{Code: appErr.Code, Message: appErr.Message})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, errorBody{Code: domain.CodeInternal, Message: "internal server error"})
}

// DecodeJSON reads a JSON request body into dst. Malformed or oversized
// (over 1 MiB) bodies come back as VALIDATION errors ready for RespondError.
func DecodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.ErrValidation("request body exceeds 1 MiB")
	}
	return domain.ErrValidation("invalid request body")
}
