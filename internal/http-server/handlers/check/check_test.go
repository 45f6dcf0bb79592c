package check

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"price_tracker/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triggerFunc func() error

func (f triggerFunc) Trigger() error { return f() }

func TestCheckHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantStarted bool
		wantStatus  string
	}{
		{name: "started", wantCode: http.StatusAccepted, wantStarted: true, wantStatus: "OK"},
		{name: "in progress", err: scheduler.ErrSweepInProgress, wantCode: http.StatusAccepted, wantStatus: "OK"},
		{name: "stopped", err: scheduler.ErrStopped, wantCode: http.StatusServiceUnavailable, wantStatus: "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), triggerFunc(func() error { return tt.err }))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check-prices", nil))

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStarted, resp.Started)
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}
