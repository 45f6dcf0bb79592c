package getProducts

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "price_tracker/internal/lib/api/response"
	"price_tracker/internal/lib/api/request"
	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const (
	defaultLimit  = 20
	maxLimit      = 100
	defaultOffset = 0
)

type Response struct {
	resp.Response
	Products   []models.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

type Pagination struct {
	Limit      int64 `json:"limit"`
	Offset     int64 `json:"offset"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

type ProductsGetter interface {
	Products(ctx context.Context, userID, limit, offset int64) ([]models.Product, int64, error)
}

func New(log *slog.Logger, productsGetter ProductsGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.products.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		limit := request.IntQuery(r, "limit", defaultLimit)
		if limit == 0 {
			limit = defaultLimit
		}
		limit = min(limit, maxLimit)

		offset := request.IntQuery(r, "offset", defaultOffset)

		userID, ok := request.UserID(r)
		if !ok {
			log.Error("User ID not found in context")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Unauthorized"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		products, total, err := productsGetter.Products(ctx, userID, limit, offset)
		if err != nil {
			log.Error("Failed to get products",
				sl.Err(err),
				slog.Int64("user_id", userID),
				slog.Int64("limit", limit),
				slog.Int64("offset", offset),
			)

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if products == nil {
			products = []models.Product{}
		}

		log.Debug("Products retrieved",
			slog.Int64("user_id", userID),
			slog.Int("count", len(products)),
			slog.Int64("total", total),
		)

		ResponseOK(w, r, products, limit, offset, total)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, products []models.Product, limit, offset, total int64) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		Products: products,
		Pagination: Pagination{
			Limit:      limit,
			Offset:     offset,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
			HasMore:    offset+int64(len(products)) < total,
		},
	})
}
