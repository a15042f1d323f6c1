// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package supervisor builds the suture service tree that runs Convene.
//
// The tree has three child supervisors under a single root:
//
//   - data: the insights event writer, the voting deadline janitor, and
//     the spatial grid maintenance loop
//   - messaging: the notify dispatcher and the predictor retrain watcher
//   - api: the HTTP server
//
// The layering isolates failures: a crashing event consumer restarts
// inside the messaging layer without ever cycling the HTTP listener, and
// vice versa. Every long-running component in the codebase implements
// suture.Service directly (Serve(ctx) error plus fmt.Stringer); the
// services subpackage only wraps the pieces that do not, such as
// *http.Server.
//
// Restart behavior and shutdown timeouts come from TreeConfig, with
// suture's own defaults when left zero.
package supervisor
