package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Kounain2234/AI-Recruitment-App/internal/config"
	"github.com/Kounain2234/AI-Recruitment-App/internal/httpx"
	"github.com/Kounain2234/AI-Recruitment-App/internal/proxy"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("screening proxy exited")
	}
}

func run() error {
	config.LoadDotEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadProxy()
	handler := proxy.NewHandler(proxy.Options{
		PrimaryURL:   cfg.WebhookURL,
		Timeout:      cfg.WebhookTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Logger:       log.Logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           proxy.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Strs("webhook_candidates", handler.Candidates()).
		Dur("webhook_timeout", cfg.WebhookTimeout).
		Msg("screening proxy listening")
	return httpx.Serve(ctx, srv, 15*time.Second)
}
