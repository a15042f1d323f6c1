// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

/*
Package models defines data structures for the Convene application.

This package contains all data models used throughout the application,
including stored documents, API request/response structures, and the
shared error taxonomy. It serves as the single source of truth for data
structure definitions.

Key Components:

  - User: Profile with personality adjustment factor and derived label
  - Rating: Per-category place rating with an immutable rater snapshot
  - Place: Place document with recomputed aggregate statistics
  - Group: Group decision lifecycle (candidates, ballots, final place)
  - RatingEvent: Append-only analytics row emitted on every rating write
  - APIResponse: Standardized API response wrapper
  - Error: Kind-classified error used across all packages

Model Categories:

 1. Stored Documents:
    User, Rating, Place, Group. All marshal to JSON for storage and
    transport. Struct tags use camelCase field names.

 2. API Request/Response Models:
    APIResponse (standard wrapper), APIError (error details), Metadata
    (timestamp, query time), plus per-endpoint request structs carrying
    go-playground/validator tags.

 3. Analytics Models:
    RatingEvent rows are appended to the insights store and never
    updated; they capture the rater's adjustment factor and bucket at
    write time.

Usage Example - Error Classification:

	import "github.com/convene-app/convene/internal/models"

	rating, err := store.Rating(ctx, id)
	if models.KindOf(err) == models.KindNotFound {
	    // 404 path
	}

Usage Example - API Response:

	response := models.APIResponse{
	    Status: "success",
	    Data:   place,
	    Metadata: models.Metadata{
	        Timestamp:   time.Now().UTC(),
	        QueryTimeMS: 12,
	    },
	}

Thread Safety:

All models are plain data structures with no internal synchronization.
Treat stored documents as immutable snapshots: mutate copies inside
store transactions, never shared instances.

See Also:

  - internal/store: Persistence for these documents
  - internal/api: HTTP handlers returning these models
  - internal/insights: Analytics queries over RatingEvent rows
*/
package models
