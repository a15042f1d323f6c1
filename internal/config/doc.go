// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

/*
Package config provides layered configuration management using Koanf v2.

Configuration is assembled from three sources in increasing priority:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML config file (config.yaml, /etc/convene/config.yaml,
    or the path in CONFIG_PATH)
 3. Environment variables (explicit mapping, unknown variables ignored)

Usage:

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatal().Err(err).Msg("failed to load config")
	}
	st, err := store.Open(cfg.Store)

Every setting has a default that works for local development: an on-disk
Badger store, an on-disk DuckDB insights store, in-process event delivery,
and a heuristic-only predictor. Production deployments typically set
STORE_PATH, DUCKDB_PATH, PREDICTOR_SERVICE_URL, and NATS_ENABLED.

Validation runs on every load; a misconfigured value fails startup with an
error naming the offending environment variable rather than surfacing
later as runtime misbehavior.

Example config.yaml:

	server:
	  port: 6371
	  environment: production
	store:
	  path: /data/convene/store
	insights:
	  path: /data/convene/insights.duckdb
	predictor:
	  service_url: http://senergy-ml:5000
	  ml_weight: 0.3
	nats:
	  enabled: true
	  url: nats://127.0.0.1:4222
	logging:
	  level: info
	  format: json
*/
package config
