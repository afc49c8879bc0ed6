package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsy/shelfsy-server/internal/backup"
	"github.com/shelfsy/shelfsy-server/internal/backup/remote"
	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			if apiErr := classify(err); apiErr != nil {
				return apiErr
			}
		}

		var details any
		if status == http.StatusUnprocessableEntity || status == http.StatusBadRequest {
			details = fieldErrors(errs)
		}

		return &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
			Details: details,
		}
	}
}

// toAPIError converts domain and sentinel errors into huma status errors so
// the response carries their status. Unknown errors pass through.
func toAPIError(err error) error {
	if apiErr := classify(err); apiErr != nil {
		return apiErr
	}
	return err
}

// classify maps known errors to API errors. It returns nil for anything it
// does not recognize.
func classify(err error) *APIError {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return &APIError{
			status:  domainErr.HTTPStatus(),
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		}
	}

	sentinel := func(status int, code domainerrors.Code) *APIError {
		return &APIError{status: status, Code: string(code), Message: err.Error()}
	}

	switch {
	case errors.Is(err, backup.ErrBackupNotFound),
		errors.Is(err, backup.ErrJobNotFound),
		errors.Is(err, remote.ErrObjectNotFound):
		return sentinel(http.StatusNotFound, domainerrors.CodeNotFound)
	case errors.Is(err, backup.ErrRestoreInProgress):
		return sentinel(http.StatusConflict, domainerrors.CodeConflict)
	case errors.Is(err, remote.ErrNotConfigured),
		errors.Is(err, remote.ErrInvalidKey),
		errors.Is(err, backup.ErrUnknownFormat),
		errors.Is(err, backup.ErrInvalidManifest),
		errors.Is(err, backup.ErrVersionMismatch),
		errors.Is(err, backup.ErrCorruptedBackup):
		return sentinel(http.StatusBadRequest, domainerrors.CodeValidation)
	}
	return nil
}

// fieldErrors collects huma's per-field validation messages.
func fieldErrors(errs []error) []string {
	var out []string
	for _, err := range errs {
		if err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
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
