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

	"github.com/convene-app/convene/internal/aggregate"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/personality"
)

func getRatingTxn(txn *badger.Txn, id string) (*models.Rating, error) {
	var rating models.Rating
	if err := getJSON(txn, ratingKey(id), &rating); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, models.NotFound("rating %s not found", id)
		}
		return nil, fmt.Errorf("failed to load rating %s: %w", id, err)
	}
	return &rating, nil
}

func ratingIDsForPlaceTxn(txn *badger.Txn, placeID string) ([]string, error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var ids []string
	prefix := []byte(ratingPlaceKeyPrefix + placeID + ":")
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			ids = append(ids, string(val))
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to read rating index %s: %w", it.Item().Key(), err)
		}
	}
	return ids, nil
}

func ratingsForPlaceTxn(txn *badger.Txn, placeID string) ([]models.Rating, error) {
	ids, err := ratingIDsForPlaceTxn(txn, placeID)
	if err != nil {
		return nil, err
	}

	ratings := make([]models.Rating, 0, len(ids))
	for _, id := range ids {
		var rating models.Rating
		if err := getJSON(txn, ratingKey(id), &rating); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load rating %s: %w", id, err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, nil
}

func ratingEventFor(op string, r models.Rating, at time.Time) models.RatingEvent {
	return models.RatingEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  at,
		Op:          op,
		RatingID:    r.ID,
		UserID:      r.UserID,
		PlaceID:     r.PlaceID,
		Overall:     r.OverallScore,
		Categories:  r.Categories,
		RaterAF:     r.RaterAdjustmentFactor,
		RaterBucket: string(personality.BucketFor(r.RaterAdjustmentFactor)),
	}
}

// CreateRating stores a new rating and, in the same transaction, updates
// the author's counters and recomputes the place aggregate from the full
// rating set. The author's current adjustment factor is snapshotted onto
// the rating and drives the stored overall score.
func (s *Store) CreateRating(req models.CreateRatingRequest) (*models.Rating, error) {
	start := time.Now()
	now := start.UTC()

	lock := s.placeLocks.Acquire(req.PlaceID)
	defer s.placeLocks.Release(lock)

	var (
		created    models.Rating
		event      models.RatingEvent
		total      int
		aggElapsed time.Duration
	)
	err := s.update("rating_create", func(txn *badger.Txn) error {
		user, err := getUserTxn(txn, req.UserID)
		if err != nil {
			return err
		}
		place, err := getPlaceTxn(txn, req.PlaceID)
		if err != nil {
			return err
		}

		pairKey := ratingUserKey(req.UserID, req.PlaceID)
		switch _, err := txn.Get(pairKey); {
		case err == nil:
			return models.Conflict("user %s already rated place %s", req.UserID, req.PlaceID)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to check rating uniqueness: %w", err)
		}

		// Snapshot the existing set before inserting the new document so
		// the recompute below never depends on iterator merge order.
		existing, err := ratingsForPlaceTxn(txn, place.ID)
		if err != nil {
			return err
		}

		rating := models.Rating{
			ID:                    uuid.NewString(),
			UserID:                user.ID,
			PlaceID:               place.ID,
			Categories:            req.Categories,
			OverallScore:          personality.OverallScore(req.Categories, user.AdjustmentFactor),
			RaterAdjustmentFactor: user.AdjustmentFactor,
			Comment:               req.Comment,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := setJSON(txn, ratingKey(rating.ID), rating); err != nil {
			return err
		}
		if err := txn.Set(pairKey, []byte(rating.ID)); err != nil {
			return err
		}
		if err := txn.Set(ratingPlaceKey(place.ID, rating.ID), []byte(rating.ID)); err != nil {
			return err
		}

		user.TotalRatingsCount++
		if req.Location != nil {
			loc := *req.Location
			user.LastKnownLocation = &loc
		}
		user.UpdatedAt = now
		user.Version++
		if err := setJSON(txn, userKey(user.ID), user); err != nil {
			return err
		}

		all := append(existing, rating)
		aggStart := time.Now()
		place.Stats = aggregate.Compute(all, now)
		aggElapsed = time.Since(aggStart)
		place.UpdatedAt = now
		place.Version++
		if err := setJSON(txn, placeKey(place.ID), place); err != nil {
			return err
		}

		created = rating
		total = len(all)
		event = ratingEventFor(models.RatingOpCreate, rating, now)
		return nil
	})
	metrics.RecordStoreOp("create", "rating", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	metrics.RecordRatingWrite(models.RatingOpCreate, event.RaterBucket)
	metrics.RecordAggregateRecompute(aggElapsed, total)
	s.emitRatingEvent(event)
	return &created, nil
}

// GetRating returns the rating document for id.
func (s *Store) GetRating(id string) (*models.Rating, error) {
	start := time.Now()
	var rating *models.Rating
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rating, err = getRatingTxn(txn, id)
		return err
	})
	metrics.RecordStoreOp("get", "rating", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return rating, nil
}

// UpdateRating applies the non-nil fields of req to an existing rating
// and recomputes both its overall score and the place aggregate. The
// overall score always uses the factor snapshot taken at creation, so an
// author who has since retaken the quiz edits under their old factor.
// Only the rating's author may update it.
func (s *Store) UpdateRating(actorID, ratingID string, req models.UpdateRatingRequest) (*models.Rating, error) {
	start := time.Now()
	now := start.UTC()

	placeID, err := s.placeIDOfRating(ratingID)
	if err != nil {
		metrics.RecordStoreOp("update", "rating", time.Since(start), err)
		return nil, err
	}

	lock := s.placeLocks.Acquire(placeID)
	defer s.placeLocks.Release(lock)

	var (
		updated    models.Rating
		event      models.RatingEvent
		total      int
		aggElapsed time.Duration
	)
	err = s.update("rating_update", func(txn *badger.Txn) error {
		rating, err := getRatingTxn(txn, ratingID)
		if err != nil {
			return err
		}
		if rating.UserID != actorID {
			return models.Unauthorized("rating %s does not belong to user %s", ratingID, actorID)
		}

		if req.Categories != nil {
			rating.Categories = *req.Categories
		}
		if req.Comment != nil {
			rating.Comment = *req.Comment
		}
		rating.OverallScore = personality.OverallScore(rating.Categories, rating.RaterAdjustmentFactor)
		rating.UpdatedAt = now
		if err := setJSON(txn, ratingKey(rating.ID), rating); err != nil {
			return err
		}

		place, err := getPlaceTxn(txn, rating.PlaceID)
		if err != nil {
			return err
		}
		all, err := ratingsForPlaceTxn(txn, place.ID)
		if err != nil {
			return err
		}

		aggStart := time.Now()
		place.Stats = aggregate.Compute(all, now)
		aggElapsed = time.Since(aggStart)
		place.UpdatedAt = now
		place.Version++
		if err := setJSON(txn, placeKey(place.ID), place); err != nil {
			return err
		}

		updated = *rating
		total = len(all)
		event = ratingEventFor(models.RatingOpUpdate, *rating, now)
		return nil
	})
	metrics.RecordStoreOp("update", "rating", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	metrics.RecordRatingWrite(models.RatingOpUpdate, event.RaterBucket)
	metrics.RecordAggregateRecompute(aggElapsed, total)
	s.emitRatingEvent(event)
	return &updated, nil
}

// DeleteRating removes a rating, its index entries, and its contribution
// to the place aggregate. Deleting the last rating clears the aggregate
// entirely. Only the rating's author may delete it.
func (s *Store) DeleteRating(actorID, ratingID string) error {
	start := time.Now()
	now := start.UTC()

	placeID, err := s.placeIDOfRating(ratingID)
	if err != nil {
		metrics.RecordStoreOp("delete", "rating", time.Since(start), err)
		return err
	}

	lock := s.placeLocks.Acquire(placeID)
	defer s.placeLocks.Release(lock)

	var (
		event      models.RatingEvent
		total      int
		aggElapsed time.Duration
	)
	err = s.update("rating_delete", func(txn *badger.Txn) error {
		rating, err := getRatingTxn(txn, ratingID)
		if err != nil {
			return err
		}
		if rating.UserID != actorID {
			return models.Unauthorized("rating %s does not belong to user %s", ratingID, actorID)
		}

		place, err := getPlaceTxn(txn, rating.PlaceID)
		if err != nil {
			return err
		}
		all, err := ratingsForPlaceTxn(txn, place.ID)
		if err != nil {
			return err
		}
		remaining := make([]models.Rating, 0, len(all))
		for _, r := range all {
			if r.ID != rating.ID {
				remaining = append(remaining, r)
			}
		}

		if err := txn.Delete(ratingKey(rating.ID)); err != nil {
			return err
		}
		if err := txn.Delete(ratingUserKey(rating.UserID, rating.PlaceID)); err != nil {
			return err
		}
		if err := txn.Delete(ratingPlaceKey(rating.PlaceID, rating.ID)); err != nil {
			return err
		}

		user, err := getUserTxn(txn, rating.UserID)
		if err != nil {
			return err
		}
		if user.TotalRatingsCount > 0 {
			user.TotalRatingsCount--
		}
		user.UpdatedAt = now
		user.Version++
		if err := setJSON(txn, userKey(user.ID), user); err != nil {
			return err
		}

		aggStart := time.Now()
		place.Stats = aggregate.Compute(remaining, now)
		aggElapsed = time.Since(aggStart)
		place.UpdatedAt = now
		place.Version++
		if err := setJSON(txn, placeKey(place.ID), place); err != nil {
			return err
		}

		total = len(remaining)
		event = ratingEventFor(models.RatingOpDelete, *rating, now)
		return nil
	})
	metrics.RecordStoreOp("delete", "rating", time.Since(start), err)
	if err != nil {
		return err
	}

	metrics.RecordRatingWrite(models.RatingOpDelete, event.RaterBucket)
	metrics.RecordAggregateRecompute(aggElapsed, total)
	s.emitRatingEvent(event)
	return nil
}

// placeIDOfRating resolves the place a rating belongs to, outside any
// write transaction, so mutations can take the right place lock first.
func (s *Store) placeIDOfRating(ratingID string) (string, error) {
	var placeID string
	err := s.db.View(func(txn *badger.Txn) error {
		rating, err := getRatingTxn(txn, ratingID)
		if err != nil {
			return err
		}
		placeID = rating.PlaceID
		return nil
	})
	return placeID, err
}

// RatingsForPlace returns every rating of the place, in rating ID order.
func (s *Store) RatingsForPlace(placeID string) ([]models.Rating, error) {
	start := time.Now()
	var ratings []models.Rating
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ratings, err = ratingsForPlaceTxn(txn, placeID)
		return err
	})
	metrics.RecordStoreOp("list_by_place", "rating", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

// RatingsForUser returns every rating authored by the user.
func (s *Store) RatingsForUser(userID string) ([]models.Rating, error) {
	start := time.Now()

	var ratings []models.Rating
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var ids []string
		prefix := []byte(ratingUserKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			}); err != nil {
				return fmt.Errorf("failed to read rating index %s: %w", it.Item().Key(), err)
			}
		}

		ratings = make([]models.Rating, 0, len(ids))
		for _, id := range ids {
			var rating models.Rating
			if err := getJSON(txn, ratingKey(id), &rating); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return fmt.Errorf("failed to load rating %s: %w", id, err)
			}
			ratings = append(ratings, rating)
		}
		return nil
	})
	metrics.RecordStoreOp("list_by_user", "rating", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

// RatingForUserAndPlace returns the user's rating of the place, if any.
func (s *Store) RatingForUserAndPlace(userID, placeID string) (*models.Rating, error) {
	start := time.Now()

	var rating *models.Rating
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ratingUserKey(userID, placeID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.NotFound("user %s has no rating for place %s", userID, placeID)
			}
			return fmt.Errorf("failed to read rating index: %w", err)
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		rating, err = getRatingTxn(txn, id)
		return err
	})
	metrics.RecordStoreOp("get_by_pair", "rating", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return rating, nil
}
