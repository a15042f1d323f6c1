// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package api exposes Convene over a versioned HTTP surface: profile,
// rating, place, group, prediction, and insights endpoints plus a
// per-group websocket live feed.
//
// Every JSON endpoint wraps its payload in the models.APIResponse
// envelope. Domain errors carry a models.ErrorKind that maps one-to-one
// to an HTTP status and machine-readable code; anything unclassified
// surfaces as a 500 with the details kept in the logs.
//
// Caller identity is the X-User-ID header, injected by the upstream
// gateway after authentication. Handlers never see credentials; an
// absent header fails operations that need an actor with UNAUTHORIZED.
package api
