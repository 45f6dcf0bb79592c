package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price_tracker/internal/config"
	"price_tracker/internal/lib/jwt"
	"price_tracker/internal/lib/logger/sl"

	cli "github.com/jawher/mow.cli"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	app := cli.App("price_tracker", "Tracks product prices and alerts when they drop to a target")

	configPath := app.StringOpt("c config", "./config/config.yaml", "path to the YAML config file")

	app.Command("serve", "run the API, the sweep scheduler and the alert consumer", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			cfg := config.MustLoad(*configPath)
			log := setupLogger(cfg.Env)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, log, cfg); err != nil {
				log.Error("service stopped with error", sl.Err(err))
				cli.Exit(1)
			}
		}
	})

	app.Command("sweep", "check all active products once and exit", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			cfg := config.MustLoad(*configPath)
			log := setupLogger(cfg.Env)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := sweepOnce(ctx, log, cfg); err != nil {
				log.Error("sweep failed", sl.Err(err))
				cli.Exit(1)
			}
		}
	})

	app.Command("token", "issue an API token for a user id", func(cmd *cli.Cmd) {
		cmd.Spec = "[--ttl] UID"

		uid := cmd.IntArg("UID", 0, "owner id stored in the token")
		ttl := cmd.StringOpt("ttl", "720h", "token lifetime")

		cmd.Action = func() {
			cfg := config.MustLoad(*configPath)

			lifetime, err := time.ParseDuration(*ttl)
			if err != nil || *uid <= 0 {
				fmt.Fprintln(os.Stderr, "invalid ttl or uid")
				cli.Exit(2)
			}

			token, err := jwt.New(cfg.JWTSecret).NewToken(int64(*uid), lifetime)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				cli.Exit(1)
			}

			fmt.Println(token)
		}
	})

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
