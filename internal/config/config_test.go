// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaultConfig().Validate() = %v, want nil", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 6371 {
		t.Errorf("Server.Port = %d, want 6371", cfg.Server.Port)
	}
	if cfg.Predictor.MLWeight != 0.3 {
		t.Errorf("Predictor.MLWeight = %g, want 0.3", cfg.Predictor.MLWeight)
	}
	if cfg.Predictor.SimilarityWindow != 0.3 {
		t.Errorf("Predictor.SimilarityWindow = %g, want 0.3", cfg.Predictor.SimilarityWindow)
	}
	if cfg.Predictor.RetrainMinRatings != 10 {
		t.Errorf("Predictor.RetrainMinRatings = %d, want 10", cfg.Predictor.RetrainMinRatings)
	}
	if cfg.Predictor.RetrainNewRatings != 50 {
		t.Errorf("Predictor.RetrainNewRatings = %d, want 50", cfg.Predictor.RetrainNewRatings)
	}
	if cfg.Predictor.RetrainMaxAge != 7*24*time.Hour {
		t.Errorf("Predictor.RetrainMaxAge = %s, want 168h", cfg.Predictor.RetrainMaxAge)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled = true, want false by default")
	}
	if !cfg.Insights.Enabled {
		t.Error("Insights.Enabled = false, want true by default")
	}
	if cfg.Groups.CandidateCount != 5 {
		t.Errorf("Groups.CandidateCount = %d, want 5", cfg.Groups.CandidateCount)
	}
}

func TestLoadWithKoanfEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORE_IN_MEMORY", "true")
	t.Setenv("PREDICTOR_ML_WEIGHT", "0.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if !cfg.Store.InMemory {
		t.Error("Store.InMemory = false, want true")
	}
	if cfg.Predictor.MLWeight != 0.5 {
		t.Errorf("Predictor.MLWeight = %g, want 0.5", cfg.Predictor.MLWeight)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadWithKoanfRejectsInvalidEnv(t *testing.T) {
	t.Setenv("PREDICTOR_ML_WEIGHT", "1.5")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("LoadWithKoanf() error = nil, want validation failure for ML weight 1.5")
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantSub: "HTTP_PORT",
		},
		{
			name:    "bad environment",
			mutate:  func(c *Config) { c.Server.Environment = "staging" },
			wantSub: "ENVIRONMENT",
		},
		{
			name:    "empty store path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantSub: "STORE_PATH",
		},
		{
			name:    "in-memory store allows empty path",
			mutate:  func(c *Config) { c.Store.Path = ""; c.Store.InMemory = true },
			wantSub: "",
		},
		{
			name:    "bad gc ratio",
			mutate:  func(c *Config) { c.Store.GCDiscardRatio = 1.5 },
			wantSub: "STORE_GC_DISCARD_RATIO",
		},
		{
			name:    "insights without path",
			mutate:  func(c *Config) { c.Insights.Path = "" },
			wantSub: "DUCKDB_PATH",
		},
		{
			name:    "disabled insights skips path check",
			mutate:  func(c *Config) { c.Insights.Enabled = false; c.Insights.Path = "" },
			wantSub: "",
		},
		{
			name:    "nats enabled with bad url",
			mutate:  func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "http://localhost:4222" },
			wantSub: "NATS_URL",
		},
		{
			name:    "ml weight above one",
			mutate:  func(c *Config) { c.Predictor.MLWeight = 1.1 },
			wantSub: "PREDICTOR_ML_WEIGHT",
		},
		{
			name:    "negative similarity window",
			mutate:  func(c *Config) { c.Predictor.SimilarityWindow = -0.1 },
			wantSub: "PREDICTOR_SIMILARITY_WINDOW",
		},
		{
			name:    "predictor url with query",
			mutate:  func(c *Config) { c.Predictor.ServiceURL = "http://ml:5000?x=1" },
			wantSub: "PREDICTOR_SERVICE_URL",
		},
		{
			name:    "max radius below default",
			mutate:  func(c *Config) { c.Places.MaxNearbyRadiusKm = 1 },
			wantSub: "PLACES_MAX_NEARBY_RADIUS_KM",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.Security.RateLimitReqs = 0 },
			wantSub: "RATE_LIMIT_REQUESTS",
		},
		{
			name:    "disabled rate limit skips checks",
			mutate:  func(c *Config) { c.Security.RateLimitDisabled = true; c.Security.RateLimitReqs = 0 },
			wantSub: "",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantSub: "LOG_LEVEL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantSub: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantSub == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantSub)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantSub)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"STORE_PATH", "store.path"},
		{"DUCKDB_PATH", "insights.path"},
		{"NATS_ENABLED", "nats.enabled"},
		{"PREDICTOR_ML_WEIGHT", "predictor.ml_weight"},
		{"GEO_GRID_CELL_KM", "geo.grid_cell_km"},
		{"GROUPS_CANDIDATE_COUNT", "groups.candidate_count"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestValidateHTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"plain http", "http://ml:5000", false},
		{"https with port", "https://predictor.internal:8443", false},
		{"base path allowed", "http://ml:5000/api", false},
		{"missing scheme", "ml:5000", true},
		{"bad scheme", "ftp://ml:5000", true},
		{"query params", "http://ml:5000?debug=1", true},
		{"empty host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPURL(tt.url, "TEST_URL")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHTTPURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNATSURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"nats://127.0.0.1:4222", false},
		{"tls://nats.internal:4222", false},
		{"ws://nats.internal:8080", false},
		{"http://localhost:4222", true},
		{"nats://", true},
	}

	for _, tt := range tests {
		err := validateNATSURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateNATSURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}
