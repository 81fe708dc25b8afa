package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/workqueue/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		data         any
		expectedBody string
	}{
		{
			name:         "object",
			status:       http.StatusAccepted,
			data:         map[string]any{"id": "abc", "size": 2},
			expectedBody: `{"id":"abc","size":2}`,
		},
		{
			name:         "empty object",
			status:       http.StatusOK,
			data:         map[string]any{},
			expectedBody: `{}`,
		},
		{
			name:         "nil",
			status:       http.StatusOK,
			data:         nil,
			expectedBody: `null`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			RespondWithJSON(w, req, tc.status, tc.data)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestRespondWithJSON_EncodingErrorIsLogged(t *testing.T) {
	log, buf := logger.NewTestLogger()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(logger.WithContext(req.Context(), log))
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]any{"ch": make(chan int)})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, buf.FindEntries("failed to encode JSON response"), 1)
}

func TestRespondWithError(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, "test-trace-id")
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusBadRequest, "Invalid request")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Invalid request", response.Error)
	assert.Equal(t, "test-trace-id", response.TraceID)
}

func TestRespondWithErrorNoTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusUnauthorized, "Unauthorized")

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Unauthorized", response.Error)
	assert.Empty(t, response.TraceID)
	assert.NotContains(t, w.Body.String(), "trace_id")
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		err           error
		opts          []ResponseOption
		expectedLevel string
	}{
		{
			name:          "server error",
			status:        http.StatusInternalServerError,
			err:           errors.New("store unavailable"),
			expectedLevel: slog.LevelError.String(),
		},
		{
			name:          "client error",
			status:        http.StatusBadRequest,
			err:           errors.New("unknown task type"),
			expectedLevel: slog.LevelDebug.String(),
		},
		{
			name:          "elevated client error",
			status:        http.StatusForbidden,
			err:           errors.New("forbidden"),
			opts:          []ResponseOption{WithElevatedLogLevel()},
			expectedLevel: slog.LevelWarn.String(),
		},
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			err:           errors.New("slow down"),
			expectedLevel: slog.LevelWarn.String(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, buf := logger.NewTestLogger()
			ctx := logger.WithContext(context.WithValue(context.Background(), TraceIDKey, "trace-1"), log)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil).WithContext(ctx)
			w := httptest.NewRecorder()

			RespondWithErrorAndLog(w, req, tc.status, "Safe message", tc.err, tc.opts...)

			assert.Equal(t, tc.status, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "Safe message", response.Error)
			assert.NotContains(t, w.Body.String(), tc.err.Error())

			entries := buf.FindEntries("API error response")
			require.Len(t, entries, 1)
			assert.Equal(t, tc.expectedLevel, entries[0]["level"])
			assert.Equal(t, tc.err.Error(), entries[0]["error"])
			assert.Equal(t, "trace-1", entries[0]["trace_id"])
		})
	}
}
