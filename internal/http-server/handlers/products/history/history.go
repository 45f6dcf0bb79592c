package productHistory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	resp "price_tracker/internal/lib/api/response"
	"price_tracker/internal/lib/api/request"
	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/middleware/products"
	"price_tracker/internal/models"
	"price_tracker/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const maxDays = 365

type Response struct {
	resp.Response
	ProductID int64                `json:"product_id"`
	Days      int                  `json:"days"`
	History   []models.PriceSample `json:"history"`
}

type HistoryGetter interface {
	History(ctx context.Context, productID, userID int64, days int) ([]models.PriceSample, error)
}

// New serves the price history of one product over ?days= (default 30),
// newest sample first.
func New(log *slog.Logger, getter HistoryGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.products.history.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		productID, ok := request.ProductID(r)
		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Invalid id"))

			return
		}

		userID, ok := request.UserID(r)
		if !ok {
			log.Error("User ID not found in context")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Unauthorized"))

			return
		}

		days := int(request.IntQuery(r, "days", products.DefaultHistoryDays))
		if days == 0 {
			days = products.DefaultHistoryDays
		}
		days = min(days, maxDays)

		history, err := getter.History(r.Context(), productID, userID, days)
		if errors.Is(err, storage.ErrProductNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, resp.Error("Product not found"))

			return
		}
		if err != nil {
			log.Error("Failed to get price history", sl.Err(err), slog.Int64("product_id", productID))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if history == nil {
			history = []models.PriceSample{}
		}

		render.JSON(w, r, Response{
			Response:  resp.OK(),
			ProductID: productID,
			Days:      days,
			History:   history,
		})
	}
}
