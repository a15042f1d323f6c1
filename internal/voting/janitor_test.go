// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package voting

import (
	"testing"
	"time"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/models"
)

func TestJanitorSweepArchivesIdleGroups(t *testing.T) {
	st := newTestStore(t)
	svc := newTestService(t, st)
	idle, _ := seedVotingGroup(t, svc, st, 2)

	j := NewJanitor(st, config.GroupsConfig{IdleTTL: time.Hour})

	// Nothing is idle yet.
	n, err := j.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 0 {
		t.Errorf("archived = %d, want 0 before TTL", n)
	}

	// Jump the clock past the TTL.
	j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = j.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("archived = %d, want 1 past TTL", n)
	}

	got, err := st.GetGroup(idle.ID)
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	if got.Status != models.GroupArchived {
		t.Errorf("Status = %v, want archived", got.Status)
	}
}

func TestJanitorSkipsFinalizedGroups(t *testing.T) {
	st := newTestStore(t)
	svc := newTestService(t, st)
	group, members := seedVotingGroup(t, svc, st, 1)

	if _, _, err := svc.CastVotes(group.ID, models.CastVoteRequest{
		UserID:   members[0],
		PlaceIDs: []string{"place-a"},
	}); err != nil {
		t.Fatalf("CastVotes() error = %v", err)
	}

	j := NewJanitor(st, config.GroupsConfig{IdleTTL: time.Hour})
	j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := j.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 0 {
		t.Errorf("archived = %d, want 0", n)
	}

	got, err := st.GetGroup(group.ID)
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	if got.Status != models.GroupPlaceSelected {
		t.Errorf("Status = %v, want place_selected preserved", got.Status)
	}
}

func TestJanitorDisabledWithoutTTL(t *testing.T) {
	st := newTestStore(t)
	svc := newTestService(t, st)
	seedVotingGroup(t, svc, st, 1)

	j := NewJanitor(st, config.GroupsConfig{IdleTTL: 0})
	j.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }

	n, err := j.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 0 {
		t.Errorf("archived = %d, want 0 with TTL disabled", n)
	}
}
