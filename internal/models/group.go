// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package models

import (
	"time"
)

// GroupStatus is the lifecycle state of a group decision.
//
// The only legal transitions are active → place_selected (finalize) and
// active → archived (explicit archive or disband). Terminal states never
// transition again.
type GroupStatus string

const (
	GroupActive        GroupStatus = "active"
	GroupPlaceSelected GroupStatus = "place_selected"
	GroupArchived      GroupStatus = "archived"
)

// IsValid reports whether s is a known status value.
func (s GroupStatus) IsValid() bool {
	switch s {
	case GroupActive, GroupPlaceSelected, GroupArchived:
		return true
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func (s GroupStatus) IsTerminal() bool {
	return s == GroupPlaceSelected || s == GroupArchived
}

// CanTransitionTo reports whether the s → next transition is legal.
func (s GroupStatus) CanTransitionTo(next GroupStatus) bool {
	return s == GroupActive && (next == GroupPlaceSelected || next == GroupArchived)
}

// MemberProfile is the snapshot of a member taken when they join a group.
// It is not refreshed when the member later changes their profile, so a
// group renders consistently for its whole lifetime.
type MemberProfile struct {
	DisplayName      string  `json:"displayName"`
	AdjustmentFactor float64 `json:"adjustmentFactor"`
	PersonalityType  string  `json:"personalityType"`
}

// Group represents one group decision: a set of members, generated
// candidate places, ranked-choice ballots, and a final selection.
//
// Members is never empty and always contains CreatorID. Votes keys are
// always a subset of Members; removing a member deletes their ballot in
// the same transaction. The creator cannot leave while other members
// remain; disbanding archives the group instead.
//
// Version increments on every stored mutation and backs the
// compare-and-swap that makes finalization fire exactly once.
type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatorID string `json:"creatorId"`

	Members        []string                 `json:"members"`
	MemberProfiles map[string]MemberProfile `json:"memberProfiles"`

	SearchLocation LatLng  `json:"searchLocation"`
	SearchRadiusKm float64 `json:"searchRadiusKm"`

	RecommendedPlaces []CandidatePlace    `json:"recommendedPlaces,omitempty"`
	Votes             map[string][]string `json:"votes,omitempty"`
	FinalPlace        *FinalPlace         `json:"finalPlace,omitempty"`

	Status GroupStatus `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   uint64    `json:"version"`
}

// IsMember reports whether userID currently belongs to the group.
func (g *Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// AllVoted reports whether every current member has a ballot. False for
// groups with no members (which cannot exist through the API).
func (g *Group) AllVoted() bool {
	if len(g.Members) == 0 {
		return false
	}
	for _, m := range g.Members {
		if len(g.Votes[m]) == 0 {
			return false
		}
	}
	return true
}

// CandidatePlace is one recommended place within a group, scored for the
// whole group. PredictedScore and Confidence average the member
// breakdown; Rank is the position in the original generated order and
// serves as a stable tie-break key during vote tallying.
type CandidatePlace struct {
	PlaceID             string         `json:"placeId"`
	PlaceName           string         `json:"placeName"`
	Address             string         `json:"address,omitempty"`
	Location            LatLng         `json:"location"`
	PredictedScore      float64        `json:"predictedScore"`
	Confidence          float64        `json:"confidence"`
	PredictedCategories CategoryScores `json:"predictedCategories"`
	MemberBreakdown     []MemberScore  `json:"memberBreakdown"`
	Rank                int            `json:"rank"`
}

// MemberScore is one member's predicted experience of a candidate place.
// Rated marks members whose score comes from their own rating rather
// than a prediction.
type MemberScore struct {
	UserID     string  `json:"userId"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Rated      bool    `json:"rated"`
}

// FinalPlace records the winning place once a group reaches
// place_selected.
type FinalPlace struct {
	PlaceID    string    `json:"placeId"`
	PlaceName  string    `json:"placeName"`
	Location   LatLng    `json:"location"`
	SelectedAt time.Time `json:"selectedAt"`
}

// TallyEntry is one place's total in a ranked-choice tally: 3 points per
// first choice, 2 per second, 1 per third.
type TallyEntry struct {
	PlaceID   string `json:"placeId"`
	PlaceName string `json:"placeName"`
	Points    int    `json:"points"`
	Ballots   int    `json:"ballots"`
}

// CreateGroupRequest opens a new group decision. The creator is always a
// member; MemberIDs lists additional members to add at creation.
type CreateGroupRequest struct {
	Name           string   `json:"name,omitempty" validate:"max=200"`
	CreatorID      string   `json:"creatorId" validate:"required,uuid4"`
	MemberIDs      []string `json:"memberIds,omitempty" validate:"omitempty,unique,dive,uuid4"`
	SearchLocation LatLng   `json:"searchLocation" validate:"required"`
	SearchRadiusKm float64  `json:"searchRadiusKm" validate:"required,gt=0,max=100"`
}

// AddMemberRequest adds one user to an active group.
type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required,uuid4"`
}

// CastVoteRequest submits or replaces a member's ranked ballot: one to
// three distinct place IDs drawn from the group's recommended places, in
// preference order.
type CastVoteRequest struct {
	UserID   string   `json:"userId" validate:"required,uuid4"`
	PlaceIDs []string `json:"placeIds" validate:"required,min=1,max=3,unique,dive,uuid4"`
}

// FinalizeRequest closes voting. Only the group creator may finalize.
// PlaceID, when set, selects that candidate directly instead of the
// tally winner.
type FinalizeRequest struct {
	UserID  string `json:"userId" validate:"required,uuid4"`
	PlaceID string `json:"placeId,omitempty" validate:"omitempty,uuid4"`
}

// FinalizeResult is the outcome of a finalization: the updated group plus
// the tally that selected the final place, in descending order.
type FinalizeResult struct {
	Group Group        `json:"group"`
	Tally []TallyEntry `json:"tally"`
}

// VoteDetail is one member's placement of a place on their ballot.
// Rank is 1-based preference order.
type VoteDetail struct {
	MemberID string `json:"memberId"`
	Rank     int    `json:"rank"`
}

// VotingResults is the live view of a group's vote: the running tally,
// who ranked what, and overall progress. Served while voting is still
// open as well as after finalization.
type VotingResults struct {
	GroupID    string                  `json:"groupId"`
	Status     GroupStatus             `json:"status"`
	Tally      []TallyEntry            `json:"tally"`
	Votes      map[string][]VoteDetail `json:"votes"`
	Ballots    int                     `json:"ballots"`
	Members    int                     `json:"members"`
	FinalPlace *FinalPlace             `json:"finalPlace,omitempty"`
}
