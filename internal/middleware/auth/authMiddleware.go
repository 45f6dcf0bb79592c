package authMiddlware

import (
	"context"
	"log/slog"
	"net/http"

	resp "price_tracker/internal/lib/api/response"
	"price_tracker/internal/lib/logger/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type contextKey string

const UserIDKey contextKey = "user_id"

type TokenParser interface {
	ParseToken(authHeader string) (int64, error)
}

// New rejects requests without a valid bearer token and stores the owner id
// from the token under UserIDKey.
func New(log *slog.Logger, parser TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Missing authorization"))
				return
			}

			userID, err := parser.ParseToken(authHeader)
			if err != nil {
				log.Debug("rejected token",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the owner id stored by New.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}
