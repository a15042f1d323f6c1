// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/convene/config.yaml",
	"/etc/convene/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        6371,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Store: StoreConfig{
			Path:           "/data/convene/store",
			InMemory:       false,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
			TxnRetries:     16,
		},
		Insights: InsightsConfig{
			Enabled:       true,
			Path:          "/data/convene/insights.duckdb",
			MaxMemory:     "2GB",
			Threads:       0, // 0 = use runtime.NumCPU()
			BufferSize:    1024,
			FlushInterval: 2 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:             false, // In-process channel transport by default
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/convene/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			DurableName:         "convene-notify",
			QueueGroup:          "notifiers",
			CloseTimeout:        30 * time.Second,
		},
		Predictor: PredictorConfig{
			ServiceURL:        "", // Heuristic-only until a model service is configured
			Timeout:           5 * time.Second,
			MLWeight:          0.3,
			SimilarityWindow:  0.3,
			MaxNeighbors:      50,
			RequestsPerSecond: 10,
			Burst:             20,

			RefreshCheckInterval: 15 * time.Minute,
			RetrainMinRatings:    10,
			RetrainNewRatings:    50,
			RetrainMaxAge:        7 * 24 * time.Hour,
		},
		Geo: GeoConfig{
			ServiceURL:        "",
			Timeout:           5 * time.Second,
			RequestsPerSecond: 10,
			Burst:             20,
			GridCellKm:          1.0,
			GridRebuildInterval: 5 * time.Minute,
		},
		Places: PlacesConfig{
			DefaultNearbyRadiusKm: 5,
			MaxNearbyRadiusKm:     50,
			FeedRadiusKm:          10,
			FeedLimit:             20,
		},
		Groups: GroupsConfig{
			MaxMembers:      20,
			CandidateCount:  5,
			IdleTTL:         14 * 24 * time.Hour,
			JanitorInterval: time.Hour,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// STORE_PATH -> store.path
	// PREDICTOR_ML_WEIGHT -> predictor.ml_weight
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - STORE_PATH -> store.path
//   - DUCKDB_PATH -> insights.path
//   - PREDICTOR_ML_WEIGHT -> predictor.ml_weight
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Store mappings
		"store_path":             "store.path",
		"store_in_memory":        "store.in_memory",
		"store_gc_interval":      "store.gc_interval",
		"store_gc_discard_ratio": "store.gc_discard_ratio",
		"store_txn_retries":      "store.txn_retries",

		// Insights mappings
		"insights_enabled":        "insights.enabled",
		"duckdb_path":             "insights.path",
		"duckdb_max_memory":       "insights.max_memory",
		"duckdb_threads":          "insights.threads",
		"insights_buffer_size":    "insights.buffer_size",
		"insights_flush_interval": "insights.flush_interval",

		// NATS mappings
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",
		"nats_close_timeout":  "nats.close_timeout",

		// Predictor mappings
		"predictor_service_url":            "predictor.service_url",
		"predictor_timeout":                "predictor.timeout",
		"predictor_ml_weight":              "predictor.ml_weight",
		"predictor_similarity_window":      "predictor.similarity_window",
		"predictor_max_neighbors":          "predictor.max_neighbors",
		"predictor_requests_per_second":    "predictor.requests_per_second",
		"predictor_burst":                  "predictor.burst",
		"predictor_refresh_check_interval": "predictor.refresh_check_interval",
		"predictor_retrain_min_ratings":    "predictor.retrain_min_ratings",
		"predictor_retrain_new_ratings":    "predictor.retrain_new_ratings",
		"predictor_retrain_max_age":        "predictor.retrain_max_age",

		// Geo mappings
		"geo_service_url":         "geo.service_url",
		"geo_timeout":             "geo.timeout",
		"geo_requests_per_second": "geo.requests_per_second",
		"geo_burst":               "geo.burst",
		"geo_grid_cell_km":        "geo.grid_cell_km",
		"geo_grid_rebuild":        "geo.grid_rebuild_interval",

		// Places mappings
		"places_default_nearby_radius_km": "places.default_nearby_radius_km",
		"places_max_nearby_radius_km":     "places.max_nearby_radius_km",
		"places_feed_radius_km":           "places.feed_radius_km",
		"places_feed_limit":               "places.feed_limit",

		// Groups mappings
		"groups_max_members":      "groups.max_members",
		"groups_candidate_count":  "groups.candidate_count",
		"groups_idle_ttl":         "groups.idle_ttl",
		"groups_janitor_interval": "groups.janitor_interval",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Security mappings
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"trusted_proxies":     "security.trusted_proxies",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
