// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package main is the entry point for the Convene server.
//
// Convene is a personality-aware place rating and group decision
// platform: users rate places across five experience categories, scores
// are normalized against each rater's introvert/extrovert adjustment
// factor, and groups pick a place through ranked-choice voting over
// personalized recommendations.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 with layered sources (env over YAML over
//     built-in defaults)
//  2. Document store: BadgerDB with SSI transactions
//  3. Insights store (optional): embedded DuckDB fed by the rating
//     event hook
//  4. Event bus: Watermill over an in-process channel transport, or
//     NATS JetStream when built with -tags nats and NATS_ENABLED=true
//  5. Geo: external place directory client (circuit-broken) over the
//     in-memory spatial grid
//  6. Predictor: in-process heuristic, optionally blended with the
//     external model service
//  7. Supervisor tree: data, messaging, and api layers under one root
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context; the supervisor tree then
// drains the HTTP server, flushes the insights writer, and stops every
// service within the configured shutdown timeout.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/convene-app/convene/internal/api"
	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/geo"
	"github.com/convene-app/convene/internal/insights"
	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/notify"
	"github.com/convene-app/convene/internal/predict"
	"github.com/convene-app/convene/internal/store"
	"github.com/convene-app/convene/internal/supervisor"
	"github.com/convene-app/convene/internal/supervisor/services"
	"github.com/convene-app/convene/internal/voting"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_path", cfg.Store.Path).
		Bool("insights_enabled", cfg.Insights.Enabled).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting Convene")

	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open document store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing document store")
		}
	}()

	// The insights store is optional; without it the analytics endpoints
	// answer 503 and the predictor watcher stays off.
	var insightsDB *insights.DB
	var insightsWriter *insights.Writer
	if cfg.Insights.Enabled {
		insightsDB, err = insights.Open(cfg.Insights)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open insights store")
		}
		defer func() {
			if err := insightsDB.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing insights store")
			}
		}()
		insightsWriter = insights.NewWriter(insightsDB, cfg.Insights)
		st.SetRatingEventHook(insightsWriter.Append)
		logging.Info().Str("path", cfg.Insights.Path).Msg("Insights store enabled")
	}

	bus, embedded, err := buildBus(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to set up event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
		if embedded != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.NATS.CloseTimeout)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error stopping embedded NATS server")
			}
		}
	}()

	// Geo resolution degrades: external directory when configured, then
	// the in-memory grid, then a full store scan.
	var geoClient *geo.Client
	if cfg.Geo.ServiceURL != "" {
		geoClient = geo.NewClient(cfg.Geo)
		logging.Info().Str("url", cfg.Geo.ServiceURL).Msg("Place directory service enabled")
	}
	grid := geo.NewSpatialGrid(cfg.Geo.GridCellKm)
	scan := func(ctx context.Context) ([]geo.Point, error) {
		places, err := st.ListPlaces()
		if err != nil {
			return nil, err
		}
		points := make([]geo.Point, 0, len(places))
		for _, p := range places {
			points = append(points, geo.Point{ID: p.ID, Name: p.Name, Address: p.Address, Location: p.Location})
		}
		return points, nil
	}
	resolver := geo.NewResolver(geoClient, grid, scan)

	var mlClient *predict.Client
	if cfg.Predictor.ServiceURL != "" {
		mlClient = predict.NewClient(cfg.Predictor)
		logging.Info().Str("url", cfg.Predictor.ServiceURL).Msg("Model service enabled")
	}
	predictor := predict.NewPredictor(st, mlClient, cfg.Predictor)

	votingSvc := voting.NewService(st, resolver, bus, cfg.Groups)
	janitor := voting.NewJanitor(st, cfg.Groups)

	dispatcher := notify.NewDispatcher(bus)
	live := api.NewLiveFeed(st)
	live.Register(dispatcher)

	handler := api.NewHandler(st, votingSvc, predictor, resolver, insightsDB, cfg)
	router := api.NewRouter(handler, live, cfg.Security)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if insightsWriter != nil {
		tree.AddDataService(insightsWriter)
	}
	tree.AddDataService(janitor)
	tree.AddDataService(services.NewGridService(resolver, scan, cfg.Geo.GridRebuildInterval))

	tree.AddMessagingService(dispatcher)
	if mlClient != nil && insightsDB != nil {
		tree.AddMessagingService(predict.NewWatcher(mlClient, insightsDB, bus, cfg.Predictor))
	}

	tree.AddAPIService(services.NewHTTPService(httpServer, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", httpServer.Addr).Msg("Serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", fmt.Sprintf("%v", svc.Service)).
				Msg("Service did not stop within the shutdown timeout")
		}
	}
	logging.Info().Msg("Shutdown complete")
}

// buildBus selects the event transport: NATS JetStream (external or
// embedded) when enabled and compiled in, the in-process channel
// transport otherwise.
func buildBus(cfg *config.Config) (*notify.Bus, *notify.EmbeddedServer, error) {
	if !cfg.NATS.Enabled {
		return notify.NewChannelBus(), nil, nil
	}
	if !notify.NATSSupported {
		return nil, nil, notify.ErrNATSNotBuilt
	}

	var embedded *notify.EmbeddedServer
	url := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		srv, err := notify.StartEmbeddedServer(cfg.NATS)
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		embedded = srv
		url = srv.ClientURL()
	}

	bus, err := notify.NewNATSBus(cfg.NATS, url)
	if err != nil {
		if embedded != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.NATS.CloseTimeout)
			defer cancel()
			_ = embedded.Shutdown(shutdownCtx)
		}
		return nil, nil, err
	}
	return bus, embedded, nil
}
