// Package server provides the public entry point for initializing the
// FinSight service: config, telemetry, store, agents, intervention
// controller, scheduler, and the HTTP surface, wired together and ready
// to serve.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/finsight/finsight/internal/api"
	"github.com/finsight/finsight/internal/api/handlers"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/intervention"
	"github.com/finsight/finsight/internal/notify"
	"github.com/finsight/finsight/internal/phrasing"
	"github.com/finsight/finsight/internal/pipeline"
	"github.com/finsight/finsight/internal/schedule"
	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized FinSight service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store.
	Store store.Store

	// Scheduler owns the background trigger paths.
	Scheduler *schedule.Scheduler

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush
	// telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the service with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var dataStore store.Store
	if cfg.Store.PostgresURL != "" {
		dataStore, err = store.NewPostgresStore(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	} else {
		dataStore = store.NewMemoryStore(cfg.Store.DataDir)
	}
	log.Info().Msg("Store initialized")

	dispatcher := notify.NewDispatcher()
	if cfg.Notify.WebhookURL != "" {
		dispatcher.RegisterDriver(notify.NewWebhookDriver(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret))
	}

	composer := phrasing.New(ctx, cfg.Phrasing)

	orchestrator := pipeline.New(dataStore, nil, nil)
	controller := intervention.New(dataStore, dispatcher, composer, cfg.Controller, nil, nil)
	scheduler := schedule.New(controller, cfg.Schedule.CronSpec)
	if err := scheduler.Start(ctx); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	log.Info().Msg("Pipeline orchestrator initialized")
	log.Info().Msg("Intervention controller initialized")

	h := handlers.New(dataStore, orchestrator, controller, scheduler, cfg.Schedule.ReviewDelay)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Scheduler:    scheduler,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
