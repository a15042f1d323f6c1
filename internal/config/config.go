// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables
// and config files. Provides centralized configuration management for all
// application components including storage, analytics, eventing, the predictor,
// geo lookups, the HTTP server, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Infrastructure:
//     - Store: Badger document store (users, ratings, places, groups)
//     - Insights: DuckDB analytics store for rating events
//     - NATS: Event delivery with Watermill/NATS JetStream (optional)
//
//  2. Domain Services:
//     - Predictor: Score prediction blend weights and model service client
//     - Geo: External place lookup client and spatial index
//     - Places, Groups: Feed, nearby search, and group decision tunables
//
//  3. API & Security:
//     - Server: HTTP server configuration (port, host, timeout)
//     - API: Pagination and response limits
//     - Security: Rate limiting, CORS, trusted proxies
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Insights  InsightsConfig  `koanf:"insights"`
	NATS      NATSConfig      `koanf:"nats"`
	Predictor PredictorConfig `koanf:"predictor"`
	Geo       GeoConfig       `koanf:"geo"`
	Places    PlacesConfig    `koanf:"places"`
	Groups    GroupsConfig    `koanf:"groups"`
	API       APIConfig       `koanf:"api"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: Listen port (default: 6371)
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
//   - ENVIRONMENT: "development" or "production"
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// StoreConfig holds Badger document store settings.
//
// The store is the system of record for users, ratings, places, and groups.
// InMemory runs Badger without disk persistence and exists for tests.
//
// Environment Variables:
//   - STORE_PATH: Badger data directory (default: /data/convene/store)
//   - STORE_IN_MEMORY: Run without persistence (default: false)
//   - STORE_GC_INTERVAL: Value log GC cadence (default: 10m)
type StoreConfig struct {
	Path           string        `koanf:"path"`
	InMemory       bool          `koanf:"in_memory"`
	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`

	// TxnRetries caps transaction retries after Badger conflict errors.
	// Conditional updates (vote, finalize, aggregate recompute) rely on
	// these retries instead of locks.
	TxnRetries int `koanf:"txn_retries"`
}

// InsightsConfig holds DuckDB analytics store settings.
//
// Rating events append through a buffered writer so the rating write path
// never blocks on analytics. Events that arrive while the buffer is full
// are dropped and counted.
//
// Environment Variables:
//   - INSIGHTS_ENABLED: Enable the analytics store (default: true)
//   - DUCKDB_PATH: Database file path (default: /data/convene/insights.duckdb)
//   - DUCKDB_MAX_MEMORY: Memory limit for DuckDB (default: 2GB)
type InsightsConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Path          string        `koanf:"path"`
	MaxMemory     string        `koanf:"max_memory"`
	Threads       int           `koanf:"threads"` // 0 = use runtime.NumCPU()
	BufferSize    int           `koanf:"buffer_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// NATSConfig holds event delivery settings for Watermill over NATS
// JetStream. When disabled, events flow over an in-process channel
// transport instead and no NATS connection is made.
//
// Environment Variables:
//   - NATS_ENABLED: Use NATS JetStream transport (default: false)
//   - NATS_URL: Server URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: Run an embedded NATS server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory
type NATSConfig struct {
	Enabled             bool          `koanf:"enabled"`
	URL                 string        `koanf:"url"`
	EmbeddedServer      bool          `koanf:"embedded_server"`
	StoreDir            string        `koanf:"store_dir"`
	MaxMemory           int64         `koanf:"max_memory"`
	MaxStore            int64         `koanf:"max_store"`
	StreamRetentionDays int           `koanf:"stream_retention_days"`
	DurableName         string        `koanf:"durable_name"`
	QueueGroup          string        `koanf:"queue_group"`
	CloseTimeout        time.Duration `koanf:"close_timeout"`
}

// PredictorConfig holds score prediction settings.
//
// The heuristic component always runs in-process. ServiceURL points at the
// optional learned-model service; when empty or unreachable, predictions
// fall back to heuristic-only and the API stays available.
//
// Environment Variables:
//   - PREDICTOR_SERVICE_URL: Model service base URL (default: none)
//   - PREDICTOR_ML_WEIGHT: Blend weight for the ML component (default: 0.3)
//   - PREDICTOR_SIMILARITY_WINDOW: Adjustment factor window for neighbor
//     similarity (default: 0.3)
type PredictorConfig struct {
	ServiceURL string        `koanf:"service_url"`
	Timeout    time.Duration `koanf:"timeout"`

	MLWeight         float64 `koanf:"ml_weight"`
	SimilarityWindow float64 `koanf:"similarity_window"`
	MaxNeighbors     int     `koanf:"max_neighbors"`

	// Rate limiting and circuit breaking for the model service client.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	// Retrain scheduling: a refresh is due when the model is missing,
	// RetrainNewRatings ratings arrived since the last training run, or
	// RetrainMaxAge has passed. RetrainMinRatings gates training at all.
	RefreshCheckInterval time.Duration `koanf:"refresh_check_interval"`
	RetrainMinRatings    int           `koanf:"retrain_min_ratings"`
	RetrainNewRatings    int           `koanf:"retrain_new_ratings"`
	RetrainMaxAge        time.Duration `koanf:"retrain_max_age"`
}

// GeoConfig holds external place lookup settings.
//
// ServiceURL points at the optional place directory service used to find
// candidate places near a location. When empty or failing, candidate
// search falls back to the local spatial index over stored places.
//
// Environment Variables:
//   - GEO_SERVICE_URL: Place directory base URL (default: none)
//   - GEO_REQUESTS_PER_SECOND: Client rate limit (default: 10)
type GeoConfig struct {
	ServiceURL        string        `koanf:"service_url"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`

	// GridCellKm sizes the spatial index cells. Smaller cells mean more
	// precise candidate sets but more cells per radius query.
	GridCellKm float64 `koanf:"grid_cell_km"`

	// GridRebuildInterval is how often the maintenance service reloads
	// the spatial index from the store. Place writes update the grid
	// immediately; the rebuild only repairs drift.
	GridRebuildInterval time.Duration `koanf:"grid_rebuild_interval"`
}

// PlacesConfig holds nearby search and feed tunables.
type PlacesConfig struct {
	DefaultNearbyRadiusKm float64 `koanf:"default_nearby_radius_km"`
	MaxNearbyRadiusKm     float64 `koanf:"max_nearby_radius_km"`
	FeedRadiusKm          float64 `koanf:"feed_radius_km"`
	FeedLimit             int     `koanf:"feed_limit"`
}

// GroupsConfig holds group decision tunables.
//
// IdleTTL bounds how long an active group may sit without any mutation
// before the janitor archives it. Groups never expire while members are
// still voting because every ballot refreshes UpdatedAt.
type GroupsConfig struct {
	MaxMembers     int `koanf:"max_members"`
	CandidateCount int `koanf:"candidate_count"`

	IdleTTL         time.Duration `koanf:"idle_ttl"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// APIConfig holds API response limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds transport-level protections. Authentication and
// identity live in the upstream gateway; nothing here checks credentials.
//
// Environment Variables:
//   - RATE_LIMIT_REQUESTS: Requests per window per client (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - DISABLE_RATE_LIMIT: Disable rate limiting entirely
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
//   - TRUSTED_PROXIES: Comma-separated CIDRs allowed to set X-Forwarded-For
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
