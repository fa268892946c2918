package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"Kerf/internal/api"
	"Kerf/internal/auth"
	"Kerf/internal/calc"
	"Kerf/internal/config"
	"Kerf/internal/logging"
	"Kerf/internal/repo"
)

var wg sync.WaitGroup

func main() {
	cfg, err := config.Load()
	if err != nil {
		fb := logging.Fallback()
		fb.Fatal().Err(err).Msg("configuration")
	}
	log, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fb := logging.Fallback()
		fb.Fatal().Err(err).Msg("logging")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	set, err := calc.Tables(cfg.TablesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.TablesFile).Msg("property tables")
	}
	registry, err := calc.Registry(set)
	if err != nil {
		log.Fatal().Err(err).Msg("calculator registry")
	}

	history, closeHistory := openHistory(ctx, cfg, log)
	defer closeHistory()

	srv := &api.Server{
		Registry: registry,
		Repo:     history,
		Auth: &auth.Authenv{
			JWTkey:        []byte(cfg.TokenKey),
			OperatorLogin: cfg.OperatorLogin,
			OperatorHash:  []byte(cfg.OperatorHash),
			Log:           log,
		},
		Limiter:      auth.NewIPRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		Log:          log,
		BatchWorkers: cfg.BatchWorkers,
		ReportAuthor: cfg.ReportAuthor,
	}
	if !cfg.AuthEnabled() {
		log.Warn().Msg("TOKEN_KEY not set, calculation routes are unauthenticated")
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.Addr).Bool("tls", cfg.TLSCert != "").Msg("starting server")
		var err error
		if cfg.TLSCert != "" {
			err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, closing active connections")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	wg.Wait()
	log.Info().Msg("server stopped")
}

// openHistory uses Postgres when DATABASE_URL is set and process memory
// otherwise.
func openHistory(ctx context.Context, cfg config.Config, log zerolog.Logger) (repo.Repository, func()) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("DATABASE_URL not set, keeping history in memory")
		return repo.NewMemoryRepository(), func() {}
	}
	db, err := repo.InitDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	pg := repo.NewPostgresRepository(db)
	if err := pg.Migrate(ctx); err != nil {
		db.Close()
		log.Fatal().Err(err).Msg("migrate history table")
	}
	return pg, func() { db.Close() }
}
