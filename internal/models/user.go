// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package models

import (
	"time"
)

// User represents a profile on the platform. Authentication lives in the
// identity provider; this document carries only what rating and group
// logic needs.
//
// AdjustmentFactor is the personality score in [-1, 1]: negative values
// lean introvert, positive lean extrovert. PersonalityType is the display
// label derived from the factor and is recomputed whenever the factor
// changes, never stored independently.
type User struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"displayName"`
	AdjustmentFactor float64 `json:"adjustmentFactor"`
	PersonalityType  string  `json:"personalityType"`

	// LastKnownLocation is refreshed from the rating location each time
	// the user rates a place; nil until the first rating with a location.
	LastKnownLocation *LatLng `json:"lastKnownLocation,omitempty"`

	TotalRatingsCount int `json:"totalRatingsCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   uint64    `json:"version"`
}

// CreateUserRequest registers a new profile. AdjustmentFactor defaults to
// 0 (ambivert) until a quiz submission sets it.
type CreateUserRequest struct {
	DisplayName      string   `json:"displayName" validate:"required,min=1,max=100"`
	AdjustmentFactor *float64 `json:"adjustmentFactor,omitempty" validate:"omitempty,min=-1,max=1"`
}

// UpdateUserRequest mutates profile fields. Nil fields are left unchanged.
type UpdateUserRequest struct {
	DisplayName *string `json:"displayName,omitempty" validate:"omitempty,min=1,max=100"`
	Location    *LatLng `json:"location,omitempty"`
}

// QuizSubmission carries the personality quiz outcome. The quiz itself
// renders client-side; the server only stores the resulting factor.
type QuizSubmission struct {
	AdjustmentFactor float64 `json:"adjustmentFactor" validate:"min=-1,max=1"`
}
