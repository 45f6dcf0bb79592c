package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"price_tracker/internal/config"
	"price_tracker/internal/http-server/handlers/check"
	"price_tracker/internal/http-server/handlers/health"
	addProduct "price_tracker/internal/http-server/handlers/products/add"
	deleteProduct "price_tracker/internal/http-server/handlers/products/delete"
	getProducts "price_tracker/internal/http-server/handlers/products/get"
	getByID "price_tracker/internal/http-server/handlers/products/get_by_id"
	productHistory "price_tracker/internal/http-server/handlers/products/history"
	toggleProduct "price_tracker/internal/http-server/handlers/products/toggle"
	"price_tracker/internal/http-server/handlers/status"
	"price_tracker/internal/lib/jwt"
	"price_tracker/internal/lib/logger/sl"
	authMiddlware "price_tracker/internal/middleware/auth"
	"price_tracker/internal/middleware/products"
	"price_tracker/internal/notifier"
	"price_tracker/internal/pricecheck"
	"price_tracker/internal/rabbitmq"
	"price_tracker/internal/scheduler"
	"price_tracker/internal/scraper"
	"price_tracker/internal/storage/postgres"
	"price_tracker/internal/storage/redis"
	"price_tracker/internal/storage/sqlite"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

type store interface {
	products.Store
	pricecheck.Store
	Close() error
}

// deps holds the process-wide clients; close releases them in reverse order
// of creation.
type deps struct {
	store      store
	cache      *redis.ProductCache
	rabbit     *rabbitmq.RabbitMQClient
	router     *scraper.Router
	sender     notifier.Sender
	dispatcher pricecheck.Dispatcher
}

func setupDeps(ctx context.Context, log *slog.Logger, cfg *config.Config) (*deps, error) {
	d := &deps{}

	var err error

	// * Инициализация хранилища
	switch cfg.Storage.Driver {
	case config.StorageDriverSQLite:
		d.store, err = sqlite.New(cfg.SQLite.Path)
	case config.StorageDriverPostgres:
		d.store, err = postgres.New(ctx, cfg)
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	// * Инициализация Redis
	if cfg.Redis.Enabled {
		d.cache, err = redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Db, cfg.Redis.DefaultTTL, cfg.Scheduler.Every)
		if err != nil {
			d.close(log)
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	switch cfg.Notifier.Channel {
	case config.ChannelTelegram:
		d.sender, err = notifier.NewTelegramSender(notifier.TelegramConfig{
			BotToken: cfg.Notifier.Telegram.BotToken,
			ChatID:   cfg.Notifier.Telegram.ChatID,
			APIURL:   cfg.Notifier.Telegram.APIURL,
		})
		if err != nil {
			d.close(log)
			return nil, fmt.Errorf("telegram: %w", err)
		}
	case config.ChannelEmail:
		d.sender = notifier.NewEmailSender(notifier.EmailConfig{
			Host:     cfg.Notifier.Email.Host,
			Port:     cfg.Notifier.Email.Port,
			Username: cfg.Notifier.Email.Username,
			Password: cfg.Notifier.Email.Password,
			From:     cfg.Notifier.Email.From,
			To:       cfg.Notifier.Email.To,
		})
	default:
		d.close(log)
		return nil, fmt.Errorf("unknown notifier channel %q", cfg.Notifier.Channel)
	}

	// * Инициализация RabbitMQ
	if cfg.RabbitMQ.Enabled {
		d.rabbit, err = rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			d.close(log)
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}

		d.dispatcher = notifier.NewQueueDispatcher(
			rabbitmq.NewProducer(d.rabbit.Channel, cfg.RabbitMQ.QueueName),
		)
	} else {
		d.dispatcher = notifier.NewDirectDispatcher(d.sender)
	}

	d.router = scraper.NewRouter(scraper.DefaultSites(scraper.Options{
		Timeout:       cfg.Scraper.Timeout,
		MaxAttempts:   cfg.Scraper.MaxAttempts,
		RetryDelayMin: cfg.Scraper.RetryDelayMin,
		RetryDelayMax: cfg.Scraper.RetryDelayMax,
	})...)

	return d, nil
}

func (d *deps) sweeper(log *slog.Logger, cfg *config.Config) *pricecheck.Sweeper {
	s := pricecheck.NewSweeper(log, d.store, d.router, d.dispatcher, cfg.Scheduler.PaceMin, cfg.Scheduler.PaceMax)
	if d.cache != nil {
		s.WithCache(d.cache)
	}
	return s
}

func (d *deps) operator(log *slog.Logger) *products.ProductOperator {
	var cache products.Cache
	if d.cache != nil {
		cache = d.cache
	}
	return products.New(log, d.store, cache, d.router)
}

func (d *deps) close(log *slog.Logger) {
	if d.rabbit != nil {
		if err := d.rabbit.Close(); err != nil {
			log.Warn("failed to close rabbitmq", sl.Err(err))
		}
	}
	if d.cache != nil {
		if err := d.cache.Close(); err != nil {
			log.Warn("failed to close redis", sl.Err(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Warn("failed to close storage", sl.Err(err))
		}
	}
}

func serve(ctx context.Context, log *slog.Logger, cfg *config.Config) error {
	log.Info("starting price tracker",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
	)

	d, err := setupDeps(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer d.close(log)

	if d.rabbit != nil {
		consumer := rabbitmq.NewConsumer(d.rabbit.Channel, log, cfg.RabbitMQ.QueueName, cfg.RabbitMQ.WorkerPoolSize)
		if err := notifier.NewService(log, d.sender).Run(ctx, consumer); err != nil {
			return fmt.Errorf("alert consumer: %w", err)
		}
	}

	schedCfg := scheduler.Config{PollInterval: cfg.Scheduler.PollInterval}
	if cfg.Scheduler.Enabled {
		schedCfg.Every = cfg.Scheduler.Every
		schedCfg.DailyAt = cfg.Scheduler.DailyAt
	}

	sched, err := scheduler.New(log, d.sweeper(log, cfg), schedCfg)
	if err != nil {
		return err
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	router := setupRouter(log, cfg, validator.New(), jwt.New(cfg.JWTSecret), d.operator(log), sched)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.RegisterTimeout + cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("http server started", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-srvErr:
		log.Error("http server failed", sl.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", sl.Err(err))
	}

	<-schedDone

	log.Info("graceful shutdown complete")

	return nil
}

func sweepOnce(ctx context.Context, log *slog.Logger, cfg *config.Config) error {
	d, err := setupDeps(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer d.close(log)

	sum, err := d.sweeper(log, cfg).Run(ctx)
	if err != nil {
		return err
	}

	log.Info("sweep complete",
		slog.String("run_id", sum.RunID.String()),
		slog.Int("total", sum.Total),
		slog.Int("updated", sum.Updated),
		slog.Int("failed", sum.Failed),
		slog.Int("alerts", sum.Alerts),
	)

	return nil
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	validate *validator.Validate,
	jwtParser *jwt.JWTParser,
	prodOP *products.ProductOperator,
	sched *scheduler.Scheduler,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", health.New())

	r.Group(func(r chi.Router) {
		r.Use(authMiddlware.New(log, jwtParser))

		r.Post("/products", addProduct.New(log, prodOP, validate, cfg.HTTPServer.RegisterTimeout))
		r.Get("/products", getProducts.New(log, prodOP))
		r.Get("/products/{id}", getByID.New(log, prodOP))
		r.Delete("/products/{id}", deleteProduct.New(log, prodOP))
		r.Put("/products/{id}/toggle", toggleProduct.New(log, prodOP))
		r.Get("/products/{id}/history", productHistory.New(log, prodOP))

		r.Post("/check-prices", check.New(log, sched))
		r.Get("/status", status.New(log, prodOP, sched))
	})

	return r
}
