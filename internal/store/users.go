// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package store

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/personality"
)

func getUserTxn(txn *badger.Txn, id string) (*models.User, error) {
	var user models.User
	if err := getJSON(txn, userKey(id), &user); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, models.NotFound("user %s not found", id)
		}
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return &user, nil
}

// CreateUser registers a new profile. The personality label is always
// derived from the adjustment factor, never stored independently.
func (s *Store) CreateUser(req models.CreateUserRequest) (*models.User, error) {
	start := time.Now()
	now := start.UTC()

	factor := 0.0
	if req.AdjustmentFactor != nil {
		factor = *req.AdjustmentFactor
	}

	user := models.User{
		ID:               uuid.NewString(),
		DisplayName:      req.DisplayName,
		AdjustmentFactor: factor,
		PersonalityType:  personality.Label(factor),
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}

	err := s.update("user_create", func(txn *badger.Txn) error {
		return setJSON(txn, userKey(user.ID), user)
	})
	metrics.RecordStoreOp("create", "user", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser returns the user document for id.
func (s *Store) GetUser(id string) (*models.User, error) {
	start := time.Now()
	var user *models.User
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUserTxn(txn, id)
		return err
	})
	metrics.RecordStoreOp("get", "user", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser applies the non-nil fields of req to the user's profile.
func (s *Store) UpdateUser(id string, req models.UpdateUserRequest) (*models.User, error) {
	start := time.Now()
	now := start.UTC()

	var updated models.User
	err := s.update("user_update", func(txn *badger.Txn) error {
		user, err := getUserTxn(txn, id)
		if err != nil {
			return err
		}
		if req.DisplayName != nil {
			user.DisplayName = *req.DisplayName
		}
		if req.Location != nil {
			loc := *req.Location
			user.LastKnownLocation = &loc
		}
		user.UpdatedAt = now
		user.Version++
		if err := setJSON(txn, userKey(id), user); err != nil {
			return err
		}
		updated = *user
		return nil
	})
	metrics.RecordStoreOp("update", "user", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetPersonality stores a new adjustment factor from a quiz submission
// and recomputes the display label. Existing ratings keep the factor
// snapshot they were created with.
func (s *Store) SetPersonality(id string, factor float64) (*models.User, error) {
	start := time.Now()
	now := start.UTC()

	var updated models.User
	err := s.update("user_set_personality", func(txn *badger.Txn) error {
		user, err := getUserTxn(txn, id)
		if err != nil {
			return err
		}
		user.AdjustmentFactor = factor
		user.PersonalityType = personality.Label(factor)
		user.UpdatedAt = now
		user.Version++
		if err := setJSON(txn, userKey(id), user); err != nil {
			return err
		}
		updated = *user
		return nil
	})
	metrics.RecordStoreOp("set_personality", "user", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
