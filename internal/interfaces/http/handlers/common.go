package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/turtacn/molscene/pkg/errors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, ErrorResponse{Code: code, Message: message})
}

// writeAppError maps application error codes to HTTP status codes.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	switch code {
	case errors.ErrCodeInvalidArgument, errors.ErrCodeValidation, errors.CodeInvalidParam,
		errors.ErrCodeUnsupportedConfiguration:
		writeError(w, http.StatusBadRequest, string(code), err.Error())
	case errors.ErrCodeNotFound, errors.ErrCodeChainNotFound:
		writeError(w, http.StatusNotFound, string(code), err.Error())
	case errors.ErrCodeConflict:
		writeError(w, http.StatusConflict, string(code), err.Error())
	default:
		// Mask internal errors
		writeError(w, http.StatusInternalServerError, string(errors.ErrCodeInternal), "internal server error")
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "malformed request body")
	}
	return nil
}
