package status

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "price_tracker/internal/lib/api/response"
	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/models"
	"price_tracker/internal/scheduler"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	models.Stats
	Scheduler scheduler.Status `json:"scheduler"`
}

type StatsGetter interface {
	Stats(ctx context.Context) (models.Stats, error)
}

type SchedulerStatus interface {
	Status() scheduler.Status
}

func New(log *slog.Logger, stats StatsGetter, sched SchedulerStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.status.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		st, err := stats.Stats(ctx)
		if err != nil {
			log.Error("Failed to collect stats", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if st.PerSite == nil {
			st.PerSite = []models.SiteCount{}
		}

		render.JSON(w, r, Response{
			Response:  resp.OK(),
			Stats:     st,
			Scheduler: sched.Status(),
		})
	}
}
