// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package store persists users, places, ratings, and groups in Badger and
// owns the transactional write pipelines that keep documents, secondary
// indexes, and place aggregates consistent with each other.
//
// Key layout:
//
//	user:<userId>                      user document
//	place:<placeId>                    place document
//	rating:<ratingId>                  rating document
//	group:<groupId>                    group document
//	rating_place:<placeId>:<ratingId>  index, value is the rating ID
//	rating_user:<userId>:<placeId>     index, value is the rating ID
//	group_member:<userId>:<groupId>    index, value is the group ID
//
// The rating_user index doubles as the uniqueness guard for the one
// rating per (user, place) pair rule.
package store

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/convene-app/convene/internal/aggregate"
	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

const (
	userKeyPrefix   = "user:"
	placeKeyPrefix  = "place:"
	ratingKeyPrefix = "rating:"
	groupKeyPrefix  = "group:"

	ratingPlaceKeyPrefix = "rating_place:"
	ratingUserKeyPrefix  = "rating_user:"
	groupMemberKeyPrefix = "group_member:"

	defaultTxnRetries     = 3
	defaultGCDiscardRatio = 0.5
)

func userKey(id string) []byte   { return []byte(userKeyPrefix + id) }
func placeKey(id string) []byte  { return []byte(placeKeyPrefix + id) }
func ratingKey(id string) []byte { return []byte(ratingKeyPrefix + id) }
func groupKey(id string) []byte  { return []byte(groupKeyPrefix + id) }

func ratingPlaceKey(placeID, ratingID string) []byte {
	return []byte(ratingPlaceKeyPrefix + placeID + ":" + ratingID)
}

func ratingUserKey(userID, placeID string) []byte {
	return []byte(ratingUserKeyPrefix + userID + ":" + placeID)
}

func groupMemberKey(userID, groupID string) []byte {
	return []byte(groupMemberKeyPrefix + userID + ":" + groupID)
}

// Store is the Badger-backed document store. All writes go through
// update, which retries commit conflicts, so concurrent API calls never
// observe a half-applied rating or group mutation.
type Store struct {
	db         *badger.DB
	txnRetries int

	// placeLocks serializes the rating write pipeline per place so the
	// aggregate recompute inside each transaction does not livelock on
	// Badger conflict retries under write bursts to a popular place.
	placeLocks aggregate.PlaceLocks

	// onRatingEvent, when set, receives one event per committed rating
	// write. Set it during wiring, before the store serves traffic.
	onRatingEvent func(models.RatingEvent)

	stopGC chan struct{}
	doneGC chan struct{}
}

// Open opens the store at cfg.Path, or an ephemeral in-memory store when
// cfg.InMemory is set. On-disk stores run a value log GC loop until
// Close.
func Open(cfg config.StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	retries := cfg.TxnRetries
	if retries <= 0 {
		retries = defaultTxnRetries
	}

	s := &Store{
		db:         db,
		txnRetries: retries,
		stopGC:     make(chan struct{}),
		doneGC:     make(chan struct{}),
	}

	if cfg.InMemory || cfg.GCInterval <= 0 {
		close(s.doneGC)
		return s, nil
	}
	go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	return s, nil
}

// Close stops the GC loop and closes the underlying database.
func (s *Store) Close() error {
	close(s.stopGC)
	<-s.doneGC
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger store: %w", err)
	}
	return nil
}

// SetRatingEventHook registers the callback invoked after every
// committed rating write. The hook runs on the writer's goroutine and
// must not block; wire it before serving traffic.
func (s *Store) SetRatingEventHook(fn func(models.RatingEvent)) {
	s.onRatingEvent = fn
}

func (s *Store) emitRatingEvent(ev models.RatingEvent) {
	if s.onRatingEvent == nil {
		return
	}
	s.onRatingEvent(ev)
}

func (s *Store) gcLoop(interval time.Duration, discardRatio float64) {
	defer close(s.doneGC)

	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = defaultGCDiscardRatio
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// Each successful pass rewrites one value log file; keep
			// going until there is nothing left to reclaim.
			for {
				err := s.db.RunValueLogGC(discardRatio)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logging.Debug().Err(err).Msg("Badger value log GC pass failed")
					}
					break
				}
			}
		}
	}
}

// update runs fn in a read-write transaction, retrying when the commit
// loses a conflict race. Badger detects conflicts at commit time, so fn
// must be safe to run more than once.
func (s *Store) update(op string, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt <= s.txnRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		metrics.RecordTxnConflict(op)
	}
	metrics.RecordTxnRetriesExhausted(op)
	return models.Wrap(models.KindConflict, err, "%s lost %d consecutive commit races", op, s.txnRetries+1)
}

func setJSON(txn *badger.Txn, key []byte, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}
