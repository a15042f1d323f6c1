// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

//go:build !nats

package notify

import (
	"context"

	"github.com/convene-app/convene/internal/config"
)

// NATSSupported reports whether this binary was built with the NATS
// transport.
const NATSSupported = false

// EmbeddedServer is unavailable without the nats build tag.
type EmbeddedServer struct{}

// StartEmbeddedServer fails without the nats build tag.
func StartEmbeddedServer(_ config.NATSConfig) (*EmbeddedServer, error) {
	return nil, ErrNATSNotBuilt
}

// ClientURL returns an empty URL on the stub.
func (s *EmbeddedServer) ClientURL() string { return "" }

// Shutdown is a no-op on the stub.
func (s *EmbeddedServer) Shutdown(_ context.Context) error { return nil }

// NewNATSBus fails without the nats build tag.
func NewNATSBus(_ config.NATSConfig, _ string) (*Bus, error) {
	return nil, ErrNATSNotBuilt
}
