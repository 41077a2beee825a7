package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notification-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeMux_Health(t *testing.T) {
	mux := newServeMux(func(ctx context.Context) error { return fmt.Errorf("never called") })

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServeMux_Ready(t *testing.T) {
	tests := []struct {
		name       string
		ready      func(ctx context.Context) error
		wantCode   int
		wantStatus string
	}{
		{
			name:       "ready",
			ready:      func(ctx context.Context) error { return nil },
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:       "dependency down",
			ready:      func(ctx context.Context) error { return fmt.Errorf("smtp health check failed") },
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newServeMux(tt.ready).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestServeMux_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newServeMux(func(ctx context.Context) error { return nil }).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewTestLogger(t)

	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("not yet")
		}
		return nil
	}, 5, time.Millisecond, log, "flaky")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithBackoff(func() error {
		calls++
		return fmt.Errorf("down")
	}, 2, time.Millisecond, log, "broken")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.EqualError(t, err, "broken failed after 2 attempts: down")
}
