package authMiddlware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"price_tracker/internal/lib/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	parser := jwt.New("secret")

	token, err := parser.NewToken(5, time.Hour)
	require.NoError(t, err)

	var seen int64
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), parser)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = UserID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	tests := []struct {
		name   string
		header string
		code   int
		user   int64
	}{
		{name: "valid", header: "Bearer " + token, code: http.StatusNoContent, user: 5},
		{name: "missing", header: "", code: http.StatusUnauthorized},
		{name: "raw token", header: token, code: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", code: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0

			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.user, seen)
		})
	}
}
