// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package store

import (
	"sync"
	"testing"

	"github.com/convene-app/convene/internal/models"
)

func TestCreateRatingStoresScoreAndSnapshot(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ada", 0)
	place := seedPlace(t, s, "Cafe")

	rating := seedRating(t, s, user.ID, place.ID)

	if rating.OverallScore != 6.8 {
		t.Errorf("OverallScore = %v, want 6.8", rating.OverallScore)
	}
	if rating.RaterAdjustmentFactor != 0 {
		t.Errorf("RaterAdjustmentFactor = %v, want 0", rating.RaterAdjustmentFactor)
	}

	got, err := s.GetUser(user.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.TotalRatingsCount != 1 {
		t.Errorf("TotalRatingsCount = %d, want 1", got.TotalRatingsCount)
	}

	updated, err := s.GetPlace(place.ID)
	if err != nil {
		t.Fatalf("GetPlace() error = %v", err)
	}
	if updated.Stats == nil {
		t.Fatal("place Stats = nil after first rating")
	}
	if updated.Stats.TotalRatings != 1 {
		t.Errorf("TotalRatings = %d, want 1", updated.Stats.TotalRatings)
	}
	if updated.Stats.AvgOverallScore != 6.8 {
		t.Errorf("AvgOverallScore = %v, want 6.8", updated.Stats.AvgOverallScore)
	}
	if updated.Stats.AvgCategories != testCategories() {
		t.Errorf("AvgCategories = %+v, want raw submitted values", updated.Stats.AvgCategories)
	}
	if updated.Stats.LastRatedAt == nil {
		t.Error("LastRatedAt = nil, want set")
	}
	if updated.Version != place.Version+1 {
		t.Errorf("place Version = %d, want %d", updated.Version, place.Version+1)
	}
}

func TestCreateRatingInvertsForIntrovert(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ida", -0.5)
	place := seedPlace(t, s, "Cafe")

	rating := seedRating(t, s, user.ID, place.ID)

	if rating.OverallScore != 6.05 {
		t.Errorf("OverallScore = %v, want 6.05", rating.OverallScore)
	}
	if rating.RaterAdjustmentFactor != -0.5 {
		t.Errorf("RaterAdjustmentFactor = %v, want -0.5", rating.RaterAdjustmentFactor)
	}
}

func TestCreateRatingRefreshesUserLocation(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ada", 0)
	place := seedPlace(t, s, "Cafe")

	loc := models.LatLng{Lat: 40.73, Lng: -73.99}
	_, err := s.CreateRating(models.CreateRatingRequest{
		UserID:     user.ID,
		PlaceID:    place.ID,
		Categories: testCategories(),
		Location:   &loc,
	})
	if err != nil {
		t.Fatalf("CreateRating() error = %v", err)
	}

	got, err := s.GetUser(user.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.LastKnownLocation == nil || *got.LastKnownLocation != loc {
		t.Errorf("LastKnownLocation = %+v, want %+v", got.LastKnownLocation, loc)
	}
}

func TestCreateRatingDuplicatePairConflicts(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ada", 0)
	place := seedPlace(t, s, "Cafe")
	seedRating(t, s, user.ID, place.ID)

	_, err := s.CreateRating(models.CreateRatingRequest{
		UserID:     user.ID,
		PlaceID:    place.ID,
		Categories: testCategories(),
	})
	if models.KindOf(err) != models.KindConflict {
		t.Errorf("second rating kind = %v, want KindConflict", models.KindOf(err))
	}

	got, err := s.GetPlace(place.ID)
	if err != nil {
		t.Fatalf("GetPlace() error = %v", err)
	}
	if got.Stats.TotalRatings != 1 {
		t.Errorf("TotalRatings = %d after rejected duplicate, want 1", got.Stats.TotalRatings)
	}
}

func TestCreateRatingUnknownRefsNotFound(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ada", 0)
	place := seedPlace(t, s, "Cafe")

	_, err := s.CreateRating(models.CreateRatingRequest{
		UserID:     "missing",
		PlaceID:    place.ID,
		Categories: testCategories(),
	})
	if models.KindOf(err) != models.KindNotFound {
		t.Errorf("unknown user kind = %v, want KindNotFound", models.KindOf(err))
	}

	_, err = s.CreateRating(models.CreateRatingRequest{
		UserID:     user.ID,
		PlaceID:    "missing",
		Categories: testCategories(),
	})
	if models.KindOf(err) != models.KindNotFound {
		t.Errorf("unknown place kind = %v, want KindNotFound", models.KindOf(err))
	}
}

func TestAggregateSplitsByRaterBucket(t *testing.T) {
	s := newTestStore(t)
	ambivert := seedUser(t, s, "Ada", 0)
	introvert := seedUser(t, s, "Ida", -0.5)
	place := seedPlace(t, s, "Cafe")

	seedRating(t, s, ambivert.ID, place.ID)
	seedRating(t, s, introvert.ID, place.ID)

	got, err := s.GetPlace(place.ID)
	if err != nil {
		t.Fatalf("GetPlace() error = %v", err)
	}
	stats := got.Stats
	if stats.TotalRatings != 2 {
		t.Fatalf("TotalRatings = %d, want 2", stats.TotalRatings)
	}
	// Mean of 6.8 and 6.05, rounded to one decimal.
	if stats.AvgOverallScore != 6.4 {
		t.Errorf("AvgOverallScore = %v, want 6.4", stats.AvgOverallScore)
	}
	if b := stats.ByPersonality["ambivert"]; b.Count != 1 || b.AvgScore != 6.8 {
		t.Errorf("ambivert bucket = %+v, want {6.8 1}", b)
	}
	if b := stats.ByPersonality["introvert"]; b.Count != 1 || b.AvgScore != 6.1 {
		t.Errorf("introvert bucket = %+v, want {6.1 1}", b)
	}
	if len(stats.ByPersonality) != 2 {
		t.Errorf("ByPersonality has %d buckets, want 2", len(stats.ByPersonality))
	}
	if stats.AvgCategories != testCategories() {
		t.Errorf("AvgCategories = %+v, want raw submitted values", stats.AvgCategories)
	}
}

func TestUpdateRatingKeepsFactorSnapshot(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ida", -0.5)
	place := seedPlace(t, s, "Cafe")
	rating := seedRating(t, s, user.ID, place.ID)

	// Retaking the quiz must not leak into existing ratings.
	if _, err := s.SetPersonality(user.ID, 0.8); err != nil {
		t.Fatalf("SetPersonality() error = %v", err)
	}

	cats := testCategories()
	updated, err := s.UpdateRating(user.ID, rating.ID, models.UpdateRatingRequest{Categories: &cats})
	if err != nil {
		t.Fatalf("UpdateRating() error = %v", err)
	}
	if updated.RaterAdjustmentFactor != -0.5 {
		t.Errorf("RaterAdjustmentFactor = %v, want -0.5", updated.RaterAdjustmentFactor)
	}
	if updated.OverallScore != 6.05 {
		t.Errorf("OverallScore = %v, want 6.05 under the stored snapshot", updated.OverallScore)
	}
}

func TestUpdateRatingRecomputesAggregate(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ada", 0)
	place := seedPlace(t, s, "Cafe")
	rating := seedRating(t, s, user.ID, place.ID)

	cats := models.CategoryScores{CrowdSize: 2, NoiseLevel: 2, SocialEnergy: 2, Service: 2, Atmosphere: 2}
	comment := "quieter than expected"
	updated, err := s.UpdateRating(user.ID, rating.ID, models.UpdateRatingRequest{
		Categories: &cats,
		Comment:    &comment,
	})
	if err != nil {
		t.Fatalf("UpdateRating() error = %v", err)
	}
	if updated.OverallScore != 2 {
		t.Errorf("OverallScore = %v, want 2", updated.OverallScore)
	}
	if updated.Comment != comment {
		t.Errorf("Comment = %q, want %q", updated.Comment, comment)
	}

	got, err := s.GetPlace(place.ID)
	if err != nil {
		t.Fatalf("GetPlace() error = %v", err)
	}
	if got.Stats.AvgOverallScore != 2 {
		t.Errorf("AvgOverallScore = %v, want 2", got.Stats.AvgOverallScore)
	}
	if got.Stats.AvgCategories != cats {
		t.Errorf("AvgCategories = %+v, want %+v", got.Stats.AvgCategories, cats)
	}
}

func TestUpdateRatingByNonAuthorUnauthorized(t *testing.T) {
	s := newTestStore(t)
	author := seedUser(t, s, "Ada", 0)
	other := seedUser(t, s, "Eve", 0)
	place := seedPlace(t, s, "Cafe")
	rating := seedRating(t, s, author.ID, place.ID)

	cats := testCategories()
	_, err := s.UpdateRating(other.ID, rating.ID, models.UpdateRatingRequest{Categories: &cats})
	if models.KindOf(err) != models.KindUnauthorized {
		t.Errorf("UpdateRating by non-author kind = %v, want KindUnauthorized", models.KindOf(err))
	}

	if err := s.DeleteRating(other.ID, rating.ID); models.KindOf(err) != models.KindUnauthorized {
		t.Errorf("DeleteRating by non-author kind = %v, want KindUnauthorized", models.KindOf(err))
	}
}

func TestDeleteRatingRecomputesAggregate(t *testing.T) {
	s := newTestStore(t)
	ambivert := seedUser(t, s, "Ada", 0)
	introvert := seedUser(t, s, "Ida", -0.5)
	place := seedPlace(t, s, "Cafe")

	seedRating(t, s, ambivert.ID, place.ID)
	toDelete := seedRating(t, s, introvert.ID, place.ID)

	if err := s.DeleteRating(introvert.ID, toDelete.ID); err != nil {
		t.Fatalf("DeleteRating() error = %v", err)
	}

	got, err := s.GetPlace(place.ID)
	if err != nil {
		t.Fatalf("GetPlace() error = %v", err)
	}
	if got.Stats.TotalRatings != 1 {
		t.Errorf("TotalRatings = %d, want 1", got.Stats.TotalRatings)
	}
	if got.Stats.AvgOverallScore != 6.8 {
		t.Errorf("AvgOverallScore = %v, want 6.8", got.Stats.AvgOverallScore)
	}
	if _, ok := got.Stats.ByPersonality["introvert"]; ok {
		t.Error("introvert bucket still present after delete")
	}

	user, err := s.GetUser(introvert.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.TotalRatingsCount != 0 {
		t.Errorf("TotalRatingsCount = %d, want 0", user.TotalRatingsCount)
	}

	if _, err := s.GetRating(toDelete.ID); models.KindOf(err) != models.KindNotFound {
		t.Errorf("GetRating(deleted) kind = %v, want KindNotFound", models.KindOf(err))
	}
}

func TestDeleteLastRatingClearsAggregate(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ada", 0)
	place := seedPlace(t, s, "Cafe")
	rating := seedRating(t, s, user.ID, place.ID)

	if err := s.DeleteRating(user.ID, rating.ID); err != nil {
		t.Fatalf("DeleteRating() error = %v", err)
	}

	got, err := s.GetPlace(place.ID)
	if err != nil {
		t.Fatalf("GetPlace() error = %v", err)
	}
	if got.Stats != nil {
		t.Errorf("Stats = %+v after last delete, want nil", got.Stats)
	}

	// The pair is free again.
	if _, err := s.CreateRating(models.CreateRatingRequest{
		UserID:     user.ID,
		PlaceID:    place.ID,
		Categories: testCategories(),
	}); err != nil {
		t.Errorf("re-rating after delete error = %v", err)
	}
}

func TestRatingLookups(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "Ada", 0)
	other := seedUser(t, s, "Ben", 0)
	placeA := seedPlace(t, s, "Cafe A")
	placeB := seedPlace(t, s, "Cafe B")

	ra := seedRating(t, s, user.ID, placeA.ID)
	rb := seedRating(t, s, user.ID, placeB.ID)
	seedRating(t, s, other.ID, placeA.ID)

	byPlace, err := s.RatingsForPlace(placeA.ID)
	if err != nil {
		t.Fatalf("RatingsForPlace() error = %v", err)
	}
	if len(byPlace) != 2 {
		t.Errorf("RatingsForPlace() returned %d ratings, want 2", len(byPlace))
	}

	byUser, err := s.RatingsForUser(user.ID)
	if err != nil {
		t.Fatalf("RatingsForUser() error = %v", err)
	}
	ids := map[string]bool{}
	for _, r := range byUser {
		ids[r.ID] = true
	}
	if len(byUser) != 2 || !ids[ra.ID] || !ids[rb.ID] {
		t.Errorf("RatingsForUser() = %v, want ratings %s and %s", ids, ra.ID, rb.ID)
	}

	pair, err := s.RatingForUserAndPlace(user.ID, placeB.ID)
	if err != nil {
		t.Fatalf("RatingForUserAndPlace() error = %v", err)
	}
	if pair.ID != rb.ID {
		t.Errorf("RatingForUserAndPlace() = %s, want %s", pair.ID, rb.ID)
	}

	_, err = s.RatingForUserAndPlace(other.ID, placeB.ID)
	if models.KindOf(err) != models.KindNotFound {
		t.Errorf("missing pair kind = %v, want KindNotFound", models.KindOf(err))
	}
}

func TestRatingEventHookSeesEveryWrite(t *testing.T) {
	s := newTestStore(t)

	var mu sync.Mutex
	var events []models.RatingEvent
	s.SetRatingEventHook(func(ev models.RatingEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	user := seedUser(t, s, "Ida", -0.5)
	place := seedPlace(t, s, "Cafe")
	rating := seedRating(t, s, user.ID, place.ID)

	cats := testCategories()
	if _, err := s.UpdateRating(user.ID, rating.ID, models.UpdateRatingRequest{Categories: &cats}); err != nil {
		t.Fatalf("UpdateRating() error = %v", err)
	}
	if err := s.DeleteRating(user.ID, rating.ID); err != nil {
		t.Fatalf("DeleteRating() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 {
		t.Fatalf("hook saw %d events, want 3", len(events))
	}
	wantOps := []string{models.RatingOpCreate, models.RatingOpUpdate, models.RatingOpDelete}
	for i, ev := range events {
		if ev.Op != wantOps[i] {
			t.Errorf("event %d op = %q, want %q", i, ev.Op, wantOps[i])
		}
		if ev.RatingID != rating.ID {
			t.Errorf("event %d rating = %s, want %s", i, ev.RatingID, rating.ID)
		}
		if ev.RaterBucket != "introvert" {
			t.Errorf("event %d bucket = %q, want introvert", i, ev.RaterBucket)
		}
		if ev.EventID == "" {
			t.Errorf("event %d has empty EventID", i)
		}
	}
	if events[0].Overall != 6.05 {
		t.Errorf("create event overall = %v, want 6.05", events[0].Overall)
	}
}

func TestConcurrentRatingsSameNewPlace(t *testing.T) {
	s := newTestStore(t)
	place := seedPlace(t, s, "Cafe")

	const raters = 8
	users := make([]*models.User, raters)
	for i := range users {
		users[i] = seedUser(t, s, "u", 0)
	}

	var wg sync.WaitGroup
	errs := make(chan error, raters)
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := s.CreateRating(models.CreateRatingRequest{
				UserID:     userID,
				PlaceID:    place.ID,
				Categories: testCategories(),
			})
			errs <- err
		}(u.ID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent CreateRating() error = %v", err)
		}
	}

	got, err := s.GetPlace(place.ID)
	if err != nil {
		t.Fatalf("GetPlace() error = %v", err)
	}
	if got.Stats == nil || got.Stats.TotalRatings != raters {
		t.Errorf("TotalRatings = %+v, want %d", got.Stats, raters)
	}
	if got.Stats != nil && got.Stats.AvgOverallScore != 6.8 {
		t.Errorf("AvgOverallScore = %v, want 6.8", got.Stats.AvgOverallScore)
	}
}
