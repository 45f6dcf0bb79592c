package toggleProduct

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	resp "price_tracker/internal/lib/api/response"
	"price_tracker/internal/lib/api/request"
	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	IsActive bool   `json:"is_active"`
	Message  string `json:"message"`
}

type ProductToggler interface {
	Toggle(ctx context.Context, productID, userID int64) (bool, error)
}

func New(log *slog.Logger, toggler ProductToggler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.products.toggle.New"

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

		active, err := toggler.Toggle(r.Context(), productID, userID)
		if errors.Is(err, storage.ErrProductNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, resp.Error("Product not found"))

			return
		}
		if err != nil {
			log.Error("Failed to toggle product", sl.Err(err), slog.Int64("product_id", productID))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		state := "deactivated"
		if active {
			state = "activated"
		}

		log.Info("Product "+state, slog.Int64("product_id", productID))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			IsActive: active,
			Message:  "Product " + state,
		})
	}
}
