package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var result Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"message": "test"}, discardLogger())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	result := decode(t, w)
	assert.Equal(t, Version, result.Version)
	assert.True(t, result.Success)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Error)
}

func TestJSON_ErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNotFound, map[string]string{"message": "test"}, discardLogger())

	assert.Equal(t, http.StatusNotFound, w.Code)
	result := decode(t, w)
	assert.False(t, result.Success, "Success should be false for status >= 400")
	assert.NotNil(t, result.Data)
}

func TestJSON_NilLogger(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"message": "test"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()

	OK(w, map[string]any{"id": "123", "name": "test"}, discardLogger())

	assert.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)
	assert.True(t, result.Success)

	dataMap, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "123", dataMap["id"])
	assert.Equal(t, "test", dataMap["name"])
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   domainerrors.Code
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "invalid input", nil) }, http.StatusBadRequest, domainerrors.CodeValidation, "invalid input"},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "authentication required", nil) }, http.StatusUnauthorized, domainerrors.CodeUnauthorized, "authentication required"},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "access denied", nil) }, http.StatusForbidden, domainerrors.CodeForbidden, "access denied"},
		{"too many requests", func(w http.ResponseWriter) { TooManyRequests(w, "slow down", nil) }, http.StatusTooManyRequests, domainerrors.CodeRateLimited, "slow down"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "boom", nil) }, http.StatusInternalServerError, domainerrors.CodeInternal, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			result := decode(t, w)
			assert.False(t, result.Success)
			assert.Nil(t, result.Data)
			assert.Equal(t, tt.msg, result.Error)
			assert.Equal(t, tt.msg, result.Message)
			assert.Equal(t, string(tt.code), result.Code)
		})
	}
}

func TestHandleError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()

	err := domainerrors.Conflict("a restore is already running").WithDetails(map[string]string{"job_id": "j1"})
	HandleError(w, err, discardLogger())

	assert.Equal(t, http.StatusConflict, w.Code)
	result := decode(t, w)
	assert.Equal(t, string(domainerrors.CodeConflict), result.Code)
	assert.Equal(t, "a restore is already running", result.Error)
	assert.Equal(t, map[string]any{"job_id": "j1"}, result.Details)
}

func TestHandleError_Unknown(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, errors.New("disk on fire"), discardLogger())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	result := decode(t, w)
	assert.Equal(t, "internal server error", result.Error)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestStatusCodeBoundary(t *testing.T) {
	tests := []struct {
		status          int
		expectedSuccess bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{399, true},
		{400, false},
		{401, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		JSON(w, tt.status, nil, nil)
		assert.Equal(t, tt.expectedSuccess, decode(t, w).Success, "status %d", tt.status)
	}
}

func TestEnvelope_OmitEmpty(t *testing.T) {
	data, err := json.Marshal(Success("test"))
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"v":1`)
	assert.Contains(t, s, `"success":true`)
	assert.Contains(t, s, `"data":"test"`)
	assert.NotContains(t, s, `"error":`)
	assert.NotContains(t, s, `"code":`)

	data, err = json.Marshal(Failure("", "something failed", nil))
	require.NoError(t, err)

	s = string(data)
	assert.Contains(t, s, `"success":false`)
	assert.Contains(t, s, `"error":"something failed"`)
	assert.NotContains(t, s, `"data":`)
	assert.NotContains(t, s, `"details":`)
}
