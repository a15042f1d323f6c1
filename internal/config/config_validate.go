// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package config

import (
	"fmt"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateInsights(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validatePredictor(); err != nil {
		return err
	}

	if err := c.validateGeo(); err != nil {
		return err
	}

	if err := c.validatePlaces(); err != nil {
		return err
	}

	if err := c.validateGroups(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %s", c.Server.Timeout)
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got: %s", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		return fmt.Errorf("STORE_GC_DISCARD_RATIO must be in (0, 1), got: %g", c.Store.GCDiscardRatio)
	}
	if c.Store.TxnRetries < 1 {
		return fmt.Errorf("STORE_TXN_RETRIES must be at least 1, got: %d", c.Store.TxnRetries)
	}
	return nil
}

func (c *Config) validateInsights() error {
	if !c.Insights.Enabled {
		return nil
	}
	if c.Insights.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required when INSIGHTS_ENABLED=true")
	}
	if c.Insights.BufferSize < 1 {
		return fmt.Errorf("INSIGHTS_BUFFER_SIZE must be at least 1, got: %d", c.Insights.BufferSize)
	}
	if c.Insights.FlushInterval <= 0 {
		return fmt.Errorf("INSIGHTS_FLUSH_INTERVAL must be positive, got: %s", c.Insights.FlushInterval)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if c.NATS.StreamRetentionDays < 1 {
		return fmt.Errorf("NATS_RETENTION_DAYS must be at least 1, got: %d", c.NATS.StreamRetentionDays)
	}
	return nil
}

func (c *Config) validatePredictor() error {
	if c.Predictor.ServiceURL != "" {
		if err := validateHTTPURL(c.Predictor.ServiceURL, "PREDICTOR_SERVICE_URL"); err != nil {
			return err
		}
	}
	if c.Predictor.MLWeight < 0 || c.Predictor.MLWeight > 1 {
		return fmt.Errorf("PREDICTOR_ML_WEIGHT must be in [0, 1], got: %g", c.Predictor.MLWeight)
	}
	if c.Predictor.SimilarityWindow <= 0 {
		return fmt.Errorf("PREDICTOR_SIMILARITY_WINDOW must be positive, got: %g", c.Predictor.SimilarityWindow)
	}
	if c.Predictor.MaxNeighbors < 1 {
		return fmt.Errorf("PREDICTOR_MAX_NEIGHBORS must be at least 1, got: %d", c.Predictor.MaxNeighbors)
	}
	if c.Predictor.RetrainMinRatings < 1 {
		return fmt.Errorf("PREDICTOR_RETRAIN_MIN_RATINGS must be at least 1, got: %d", c.Predictor.RetrainMinRatings)
	}
	return nil
}

func (c *Config) validateGeo() error {
	if c.Geo.ServiceURL != "" {
		if err := validateHTTPURL(c.Geo.ServiceURL, "GEO_SERVICE_URL"); err != nil {
			return err
		}
	}
	if c.Geo.GridCellKm <= 0 {
		return fmt.Errorf("GEO_GRID_CELL_KM must be positive, got: %g", c.Geo.GridCellKm)
	}
	return nil
}

func (c *Config) validatePlaces() error {
	if c.Places.DefaultNearbyRadiusKm <= 0 {
		return fmt.Errorf("PLACES_DEFAULT_NEARBY_RADIUS_KM must be positive, got: %g", c.Places.DefaultNearbyRadiusKm)
	}
	if c.Places.MaxNearbyRadiusKm < c.Places.DefaultNearbyRadiusKm {
		return fmt.Errorf("PLACES_MAX_NEARBY_RADIUS_KM must be at least the default radius, got: %g", c.Places.MaxNearbyRadiusKm)
	}
	if c.Places.FeedLimit < 1 {
		return fmt.Errorf("PLACES_FEED_LIMIT must be at least 1, got: %d", c.Places.FeedLimit)
	}
	return nil
}

func (c *Config) validateGroups() error {
	if c.Groups.MaxMembers < 1 {
		return fmt.Errorf("GROUPS_MAX_MEMBERS must be at least 1, got: %d", c.Groups.MaxMembers)
	}
	if c.Groups.CandidateCount < 1 {
		return fmt.Errorf("GROUPS_CANDIDATE_COUNT must be at least 1, got: %d", c.Groups.CandidateCount)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got: %s", c.Security.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}

	return nil
}
