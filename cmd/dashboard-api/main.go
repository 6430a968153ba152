package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Kounain2234/AI-Recruitment-App/internal/api"
	"github.com/Kounain2234/AI-Recruitment-App/internal/auth"
	"github.com/Kounain2234/AI-Recruitment-App/internal/config"
	"github.com/Kounain2234/AI-Recruitment-App/internal/dlp"
	"github.com/Kounain2234/AI-Recruitment-App/internal/httpx"
	"github.com/Kounain2234/AI-Recruitment-App/internal/ingest"
	"github.com/Kounain2234/AI-Recruitment-App/internal/objectstore"
	"github.com/Kounain2234/AI-Recruitment-App/internal/screening"
	"github.com/Kounain2234/AI-Recruitment-App/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("dashboard api exited")
	}
}

func run() error {
	config.LoadDotEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadDashboard()

	pool, pg, err := store.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	storage, err := objectstore.Load(ctx, cfg.StorageBackend, cfg.LocalStorageDir, cfg.PublicBaseURL,
		log.With().Str("component", "objectstore").Logger())
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	var filesDir string
	if local, ok := storage.(*objectstore.LocalStore); ok {
		filesDir = local.Dir()
	}

	scanner := dlp.NewRuleScannerFromEnv()
	if scanner == nil {
		log.Warn().Msg("upload policy scanning disabled")
	}

	pipeline := ingest.NewPipeline(ingest.Deps{
		Storage:     storage,
		Analyzer:    screening.NewClient(cfg.ScreeningURL, cfg.ScreeningTimeout),
		Candidates:  pg,
		Scanner:     scanner,
		StepTimeout: cfg.StepTimeout,
		Logger:      log.With().Str("component", "pipeline").Logger(),
	})
	orch := ingest.NewOrchestrator(pipeline, pg, cfg.Workers, &ingest.KPI{},
		log.With().Str("component", "orchestrator").Logger())

	authCfg := auth.LoadConfig()
	if len(authCfg.APIKeys) == 0 {
		log.Warn().Msg("AUTH_API_KEYS not set; trusting X-User-ID header")
	}

	server := api.NewServer(api.Options{
		Sessions:       ingest.NewRegistry(),
		Orchestrator:   orch,
		Jobs:           pg,
		Candidates:     pg,
		Auth:           authCfg,
		FilesDir:       filesDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		BaseContext:    ctx,
		Logger:         log.With().Str("component", "api").Logger(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Int("workers", cfg.Workers).
		Str("storage", storage.Name()).
		Str("screening_url", cfg.ScreeningURL).
		Msg("dashboard api listening")
	return httpx.Serve(ctx, srv, 30*time.Second)
}
