// Package response writes the versioned JSON envelope for handlers that sit
// outside huma, such as middleware and the upload endpoint.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
)

// Version is the envelope format version sent as "v".
const Version = 1

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Success wraps data in a success envelope.
func Success(data any) Envelope {
	return Envelope{Version: Version, Success: true, Data: data}
}

// Failure builds an error envelope. code and details may be empty.
func Failure(code, message string, details any) Envelope {
	return Envelope{
		Version: Version,
		Error:   message,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// JSON writes data in an envelope with the given status code. Statuses of
// 400 and above are reported as unsuccessful.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	env := Success(data)
	env.Success = status < 400
	write(w, status, env, logger)
}

// OK writes a successful JSON response (200 OK).
func OK(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Error writes an error envelope with the given status code.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	write(w, status, Failure(codeForStatus(status), message, nil), logger)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, message, logger)
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, message, logger)
}

// Forbidden writes a 403 Forbidden response.
func Forbidden(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusForbidden, message, logger)
}

// TooManyRequests writes a 429 Too Many Requests response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, message, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, message, logger)
}

// HandleError writes an appropriate response for err. Domain errors keep
// their code and status; anything else becomes a 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		write(w, domainErr.HTTPStatus(),
			Failure(string(domainErr.Code), domainErr.Message, domainErr.Details), logger)
		return
	}

	if logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	InternalError(w, "internal server error", logger)
}

func write(w http.ResponseWriter, status int, env Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusUnauthorized:
		return string(domainerrors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(domainerrors.CodeForbidden)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	default:
		return string(domainerrors.CodeInternal)
	}
}
