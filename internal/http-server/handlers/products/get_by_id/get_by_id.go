package getByID

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	resp "price_tracker/internal/lib/api/response"
	"price_tracker/internal/lib/api/request"
	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/models"
	"price_tracker/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Product models.Product `json:"product"`
}

type ProductGetter interface {
	ProductByID(ctx context.Context, productID, userID int64) (models.Product, error)
}

func New(log *slog.Logger, getter ProductGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.products.get_by_id.New"

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

		product, err := getter.ProductByID(r.Context(), productID, userID)
		if errors.Is(err, storage.ErrProductNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, resp.Error("Product not found"))

			return
		}
		if err != nil {
			log.Error("Failed to get product",
				sl.Err(err),
				slog.Int64("user_id", userID),
				slog.Int64("product_id", productID),
			)

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		ResponseOK(w, r, product)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, product models.Product) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		Product:  product,
	})
}
