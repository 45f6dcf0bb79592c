package request

import (
	"net/http"
	"strconv"

	authMiddlware "price_tracker/internal/middleware/auth"

	"github.com/go-chi/chi"
)

// ProductID reads the {id} route parameter; ok is false unless it is a
// positive integer.
func ProductID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

// UserID returns the authenticated owner id; ok is false when the request did
// not pass the auth middleware or carries a non-positive id.
func UserID(r *http.Request) (int64, bool) {
	id, ok := authMiddlware.UserID(r.Context())
	if !ok || id <= 0 {
		return 0, false
	}

	return id, true
}

// IntQuery parses key from the query string, returning def when it is
// missing, malformed or negative.
func IntQuery(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return def
	}

	return v
}
