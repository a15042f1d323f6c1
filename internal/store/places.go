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
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

func getPlaceTxn(txn *badger.Txn, id string) (*models.Place, error) {
	var place models.Place
	if err := getJSON(txn, placeKey(id), &place); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, models.NotFound("place %s not found", id)
		}
		return nil, fmt.Errorf("failed to load place %s: %w", id, err)
	}
	return &place, nil
}

// CreatePlace registers a new place. It starts with no aggregate; Stats
// appears with the first rating.
func (s *Store) CreatePlace(req models.CreatePlaceRequest) (*models.Place, error) {
	start := time.Now()
	now := start.UTC()

	place := models.Place{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Address:   req.Address,
		Location:  req.Location,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	err := s.update("place_create", func(txn *badger.Txn) error {
		return setJSON(txn, placeKey(place.ID), place)
	})
	metrics.RecordStoreOp("create", "place", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &place, nil
}

// GetPlace returns the place document for id.
func (s *Store) GetPlace(id string) (*models.Place, error) {
	start := time.Now()
	var place *models.Place
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		place, err = getPlaceTxn(txn, id)
		return err
	})
	metrics.RecordStoreOp("get", "place", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return place, nil
}

// ListPlaces returns every stored place. The spatial grid rebuild and
// the scan fallback of the nearby resolver both feed from here.
func (s *Store) ListPlaces() ([]models.Place, error) {
	start := time.Now()

	var places []models.Place
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(placeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var place models.Place
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &place)
			}); err != nil {
				return fmt.Errorf("failed to decode place %s: %w", it.Item().Key(), err)
			}
			places = append(places, place)
		}
		return nil
	})
	metrics.RecordStoreOp("list", "place", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return places, nil
}
