// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package voting drives the group decision lifecycle: candidate
// generation, ranked-choice ballots, finalization, and archival.
//
// Every mutation runs as a conditional update on the group document,
// so two racing operations serialize through the store's transaction
// retry and finalization fires exactly once. The only legal status
// transitions are active → place_selected and active → archived.
package voting

import (
	"context"
	"time"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/geo"
	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/scoring"
	"github.com/convene-app/convene/internal/store"
)

// Finalization triggers, recorded on metrics and events.
const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
)

// Notifier receives group lifecycle announcements. Implementations must
// not block and must not fail the operation; *notify.Bus satisfies
// this.
type Notifier interface {
	RecommendationsGenerated(g *models.Group)
	VoteCast(g *models.Group, memberID string)
	GroupFinalized(g *models.Group, trigger string)
}

// NopNotifier discards all announcements.
type NopNotifier struct{}

func (NopNotifier) RecommendationsGenerated(*models.Group) {}
func (NopNotifier) VoteCast(*models.Group, string)         {}
func (NopNotifier) GroupFinalized(*models.Group, string)   {}

// Service implements the group decision operations over the store.
type Service struct {
	store       *store.Store
	resolver    *geo.Resolver
	recommender *scoring.Recommender
	notifier    Notifier
	cfg         config.GroupsConfig
}

// NewService builds the voting service. resolver may be nil in tests
// that never generate candidates.
func NewService(st *store.Store, resolver *geo.Resolver, notifier Notifier, cfg config.GroupsConfig) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		store:       st,
		resolver:    resolver,
		recommender: scoring.NewRecommender(st),
		notifier:    notifier,
		cfg:         cfg,
	}
}

// CreateGroup opens a new group decision.
func (s *Service) CreateGroup(req models.CreateGroupRequest) (*models.Group, error) {
	group, err := s.store.CreateGroup(req)
	if err != nil {
		return nil, err
	}
	metrics.GroupsCreated.Inc()
	logging.Info().Str("group_id", group.ID).Str("creator_id", group.CreatorID).
		Int("members", len(group.Members)).Msg("Group created")
	return group, nil
}

// GenerateRecommendations finds places near the group's search location
// and scores them for the whole group. Any member may trigger it.
// Regenerating replaces the candidate set and clears all ballots, since
// existing ballots reference places that may no longer be candidates.
func (s *Service) GenerateRecommendations(ctx context.Context, groupID, actorID string) (*models.Group, error) {
	group, err := s.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	if group.Status != models.GroupActive {
		return nil, models.Conflict("group %s is %s; recommendations can only be generated while it is active", groupID, group.Status)
	}
	if !group.IsMember(actorID) {
		return nil, models.Unauthorized("user %s is not a member of group %s", actorID, groupID)
	}

	// Over-fetch seeds so scoring still has cfg.CandidateCount places to
	// choose between after ranking.
	matches, err := s.resolver.Nearby(ctx, group.SearchLocation, group.SearchRadiusKm, s.cfg.CandidateCount*4)
	if err != nil {
		return nil, err
	}
	seeds := make([]scoring.Seed, 0, len(matches))
	for _, m := range matches {
		seeds = append(seeds, scoring.Seed{
			PlaceID:  m.PlaceID,
			Name:     m.Name,
			Address:  m.Address,
			Location: m.Location,
		})
	}

	candidates, err := s.recommender.Candidates(group, seeds, s.cfg.CandidateCount)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateGroup("generate_recommendations", groupID, func(g *models.Group) error {
		if g.Status != models.GroupActive {
			return models.Conflict("group %s is %s; recommendations can only be generated while it is active", groupID, g.Status)
		}
		g.RecommendedPlaces = candidates
		g.Votes = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CandidatesGenerated.Observe(float64(len(candidates)))
	s.notifier.RecommendationsGenerated(updated)
	logging.Info().Str("group_id", groupID).Int("candidates", len(candidates)).
		Msg("Recommendations generated")
	return updated, nil
}

// CastVotes submits or replaces req.UserID's ranked ballot. When the
// ballot completes the set — every member has voted — the group
// finalizes in the same transaction and the winning tally is returned
// alongside the updated group; otherwise the tally is nil.
func (s *Service) CastVotes(groupID string, req models.CastVoteRequest) (*models.Group, []models.TallyEntry, error) {
	var (
		tally     []models.TallyEntry
		finalized bool
	)
	updated, err := s.store.UpdateGroup("cast_vote", groupID, func(g *models.Group) error {
		// Reset per attempt: commit conflicts rerun the closure.
		tally, finalized = nil, false

		if g.Status != models.GroupActive {
			return models.Conflict("group %s is %s; voting is closed", groupID, g.Status)
		}
		if !g.IsMember(req.UserID) {
			return models.Unauthorized("user %s is not a member of group %s", req.UserID, groupID)
		}
		if len(g.RecommendedPlaces) == 0 {
			return models.Conflict("group %s has no recommended places to vote on", groupID)
		}
		if len(req.PlaceIDs) < 1 || len(req.PlaceIDs) > 3 {
			return models.Validation("ballot must rank between 1 and 3 places, got %d", len(req.PlaceIDs))
		}
		for _, placeID := range req.PlaceIDs {
			if _, ok := candidateByID(g, placeID); !ok {
				return models.Validation("place %s is not among the recommended places of group %s", placeID, groupID)
			}
		}

		if g.Votes == nil {
			g.Votes = make(map[string][]string, len(g.Members))
		}
		g.Votes[req.UserID] = append([]string(nil), req.PlaceIDs...)

		if !g.AllVoted() {
			return nil
		}

		tally = Tally(g)
		win, ok := winner(tally)
		if !ok {
			return nil
		}
		chosen, _ := candidateByID(g, win.PlaceID)
		g.FinalPlace = &models.FinalPlace{
			PlaceID:    chosen.PlaceID,
			PlaceName:  chosen.PlaceName,
			Location:   chosen.Location,
			SelectedAt: time.Now().UTC(),
		}
		g.Status = models.GroupPlaceSelected
		finalized = true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.VotesCast.Inc()
	s.notifier.VoteCast(updated, req.UserID)

	if !finalized {
		return updated, nil, nil
	}
	metrics.RecordFinalize(TriggerAuto)
	s.notifier.GroupFinalized(updated, TriggerAuto)
	logging.Info().Str("group_id", groupID).
		Str("place_id", updated.FinalPlace.PlaceID).
		Msg("Group auto-finalized, all members voted")
	return updated, tally, nil
}

// Finalize closes voting early. Only the creator may finalize. With no
// explicit place the current tally winner is selected, which requires
// at least one ballot; req.PlaceID overrides the tally with a direct
// pick from the recommended places.
func (s *Service) Finalize(groupID string, req models.FinalizeRequest) (*models.FinalizeResult, error) {
	var tally []models.TallyEntry
	updated, err := s.store.UpdateGroup("group_finalize", groupID, func(g *models.Group) error {
		tally = nil

		if req.UserID != g.CreatorID {
			return models.Unauthorized("user %s is not the creator of group %s", req.UserID, groupID)
		}
		if g.Status != models.GroupActive {
			return models.Conflict("group %s is already %s", groupID, g.Status)
		}

		var chosen models.CandidatePlace
		if req.PlaceID != "" {
			c, ok := candidateByID(g, req.PlaceID)
			if !ok {
				return models.Validation("place %s is not among the recommended places of group %s", req.PlaceID, groupID)
			}
			chosen = c
			tally = Tally(g)
		} else {
			if len(g.Votes) == 0 {
				return models.Conflict("group %s has no ballots; finalize with an explicit place or wait for votes", groupID)
			}
			tally = Tally(g)
			win, ok := winner(tally)
			if !ok {
				return models.Conflict("group %s has no recommended places to select", groupID)
			}
			chosen, _ = candidateByID(g, win.PlaceID)
		}

		g.FinalPlace = &models.FinalPlace{
			PlaceID:    chosen.PlaceID,
			PlaceName:  chosen.PlaceName,
			Location:   chosen.Location,
			SelectedAt: time.Now().UTC(),
		}
		g.Status = models.GroupPlaceSelected
		return nil
	})
	if err != nil {
		if models.KindOf(err) == models.KindConflict {
			metrics.FinalizeConflicts.Inc()
		}
		return nil, err
	}

	metrics.RecordFinalize(TriggerManual)
	s.notifier.GroupFinalized(updated, TriggerManual)
	logging.Info().Str("group_id", groupID).
		Str("place_id", updated.FinalPlace.PlaceID).
		Msg("Group finalized by creator")
	return &models.FinalizeResult{Group: *updated, Tally: tally}, nil
}

// Archive retires an active group without selecting a place. Only the
// creator may archive.
func (s *Service) Archive(groupID, actorID string) (*models.Group, error) {
	updated, err := s.store.UpdateGroup("group_archive", groupID, func(g *models.Group) error {
		if actorID != g.CreatorID {
			return models.Unauthorized("user %s is not the creator of group %s", actorID, groupID)
		}
		if g.Status != models.GroupActive {
			return models.Conflict("group %s is already %s", groupID, g.Status)
		}
		g.Status = models.GroupArchived
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Info().Str("group_id", groupID).Msg("Group archived")
	return updated, nil
}

// Results derives the live voting view for a group: running tally,
// per-place ballot detail, and progress. Any member may view results
// at any time, including after finalization.
func (s *Service) Results(groupID, actorID string) (*models.VotingResults, error) {
	group, err := s.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(actorID) {
		return nil, models.Unauthorized("user %s is not a member of group %s", actorID, groupID)
	}

	votes := make(map[string][]models.VoteDetail)
	for memberID, ballot := range group.Votes {
		for pos, placeID := range ballot {
			votes[placeID] = append(votes[placeID], models.VoteDetail{
				MemberID: memberID,
				Rank:     pos + 1,
			})
		}
	}

	return &models.VotingResults{
		GroupID:    group.ID,
		Status:     group.Status,
		Tally:      Tally(group),
		Votes:      votes,
		Ballots:    len(group.Votes),
		Members:    len(group.Members),
		FinalPlace: group.FinalPlace,
	}, nil
}
