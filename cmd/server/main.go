package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/control"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/resolver"
)

func main() {
	// .env is optional outside development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	sqlDB, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(sqlDB, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	store := db.NewStore(sqlDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	invalidations, err := OpenBus(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.BusBackend).Msg("invalidation bus")
	}
	defer invalidations.Close()

	app := App{
		Config:  cfg,
		Store:   store,
		Bus:     invalidations,
		Service: control.NewService(store, invalidations),
		Engine:  resolver.NewEngine(cfg.DefaultTimezone),
		Cache:   resolver.NewCache(resolver.NewLoader(store)),
	}

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	RegisterRoutes(r, app)

	srv := &http.Server{Addr: cfg.ServerAddress, Handler: r}
	go func() {
		log.Info().Str("address", cfg.ServerAddress).Str("bus", cfg.BusBackend).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.Development() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
