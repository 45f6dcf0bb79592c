package check

import (
	"errors"
	"log/slog"
	"net/http"

	resp "price_tracker/internal/lib/api/response"
	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/scheduler"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Started bool   `json:"started"`
	Message string `json:"message"`
}

type Trigger interface {
	Trigger() error
}

// New starts an out-of-band sweep and answers without waiting for it. A
// request made during a running sweep is folded into that sweep.
func New(log *slog.Logger, trigger Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.check.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		err := trigger.Trigger()

		switch {
		case err == nil:
			log.Info("price check started")

			render.Status(r, http.StatusAccepted)
			render.JSON(w, r, Response{Response: resp.OK(), Started: true, Message: "Price check started"})
		case errors.Is(err, scheduler.ErrSweepInProgress):
			log.Info("price check already in progress")

			render.Status(r, http.StatusAccepted)
			render.JSON(w, r, Response{Response: resp.OK(), Message: "Price check already in progress"})
		default:
			log.Warn("price check refused", sl.Err(err))

			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, resp.Error("scheduler is shutting down"))
		}
	}
}
