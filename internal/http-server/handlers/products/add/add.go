package addProduct

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "price_tracker/internal/lib/api/response"
	"price_tracker/internal/lib/api/request"
	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/middleware/products"
	"price_tracker/internal/models"
	"price_tracker/internal/scraper"
	"price_tracker/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	validator "github.com/go-playground/validator/v10"
)

type Request struct {
	Name        string  `json:"name"`
	URL         string  `json:"url" validate:"required,url"`
	TargetPrice float64 `json:"target_price" validate:"required,gt=0"`
}

type Response struct {
	resp.Response
	Product models.Product `json:"product"`
}

type ProductRegistrar interface {
	Register(ctx context.Context, reg products.Registration) (models.Product, error)
}

// New registers a product. The handler scrapes the page before answering, so
// timeout has to cover a full retry cycle.
func New(
	log *slog.Logger,
	registrar ProductRegistrar,
	validate *validator.Validate,
	timeout time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.products.add.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // * 1 МБ лимит запроса
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			if !errors.As(err, &validateErr) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Invalid request"))

				return
			}

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		userID, ok := request.UserID(r)
		if !ok {
			log.Error("User ID not found in context")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Unauthorized"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		product, err := registrar.Register(ctx, products.Registration{
			Name:        req.Name,
			URL:         req.URL,
			TargetPrice: req.TargetPrice,
			UserID:      userID,
		})
		if err != nil {
			status, msg := registerError(err)
			if status == http.StatusInternalServerError {
				log.Error("Failed to register product", sl.Err(err))
			} else {
				log.Info("Product rejected", slog.String("url", req.URL), sl.Err(err))
			}

			render.Status(r, status)
			render.JSON(w, r, resp.Error(msg))

			return
		}

		log.Info("Product registered",
			slog.Int64("product_id", product.ID),
			slog.Int64("user_id", userID),
		)

		render.Status(r, http.StatusCreated)
		ResponseOK(w, r, product)
	}
}

func registerError(err error) (int, string) {
	switch {
	case errors.Is(err, scraper.ErrUnsupportedSite):
		return http.StatusBadRequest, "Unsupported site"
	case errors.Is(err, scraper.ErrInvalidProductURL):
		return http.StatusBadRequest, "Invalid product URL"
	case errors.Is(err, storage.ErrProductAlreadyTracked):
		return http.StatusConflict, "Product already being tracked"
	case errors.Is(err, scraper.ErrExtraction):
		return http.StatusUnprocessableEntity, "Could not fetch product information"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, product models.Product) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		Product:  product,
	})
}
