// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package store

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/convene-app/convene/internal/metrics"
	"github.com/convene-app/convene/internal/models"
)

func getGroupTxn(txn *badger.Txn, id string) (*models.Group, error) {
	var group models.Group
	if err := getJSON(txn, groupKey(id), &group); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, models.NotFound("group %s not found", id)
		}
		return nil, fmt.Errorf("failed to load group %s: %w", id, err)
	}
	return &group, nil
}

func memberProfileOf(u *models.User) models.MemberProfile {
	return models.MemberProfile{
		DisplayName:      u.DisplayName,
		AdjustmentFactor: u.AdjustmentFactor,
		PersonalityType:  u.PersonalityType,
	}
}

// CreateGroup opens a new group decision. The creator is always the
// first member; duplicate member IDs collapse. Every member must exist,
// and each gets a profile snapshot that is never refreshed afterward.
func (s *Store) CreateGroup(req models.CreateGroupRequest) (*models.Group, error) {
	start := time.Now()
	now := start.UTC()

	memberIDs := make([]string, 0, len(req.MemberIDs)+1)
	memberIDs = append(memberIDs, req.CreatorID)
	for _, id := range req.MemberIDs {
		if !slices.Contains(memberIDs, id) {
			memberIDs = append(memberIDs, id)
		}
	}

	var group models.Group
	err := s.update("group_create", func(txn *badger.Txn) error {
		profiles := make(map[string]models.MemberProfile, len(memberIDs))
		for _, id := range memberIDs {
			user, err := getUserTxn(txn, id)
			if err != nil {
				return err
			}
			profiles[id] = memberProfileOf(user)
		}

		group = models.Group{
			ID:             uuid.NewString(),
			Name:           req.Name,
			CreatorID:      req.CreatorID,
			Members:        memberIDs,
			MemberProfiles: profiles,
			SearchLocation: req.SearchLocation,
			SearchRadiusKm: req.SearchRadiusKm,
			Status:         models.GroupActive,
			CreatedAt:      now,
			UpdatedAt:      now,
			Version:        1,
		}
		if err := setJSON(txn, groupKey(group.ID), group); err != nil {
			return err
		}
		for _, id := range memberIDs {
			if err := txn.Set(groupMemberKey(id, group.ID), []byte(group.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	metrics.RecordStoreOp("create", "group", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetGroup returns the group document for id.
func (s *Store) GetGroup(id string) (*models.Group, error) {
	start := time.Now()
	var group *models.Group
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		group, err = getGroupTxn(txn, id)
		return err
	})
	metrics.RecordStoreOp("get", "group", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return group, nil
}

// GroupsForMember returns every group the user belongs to, including
// finalized and archived ones, newest first.
func (s *Store) GroupsForMember(userID string) ([]models.Group, error) {
	start := time.Now()

	var groups []models.Group
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var ids []string
		prefix := []byte(groupMemberKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			}); err != nil {
				return fmt.Errorf("failed to read group index %s: %w", it.Item().Key(), err)
			}
		}

		groups = make([]models.Group, 0, len(ids))
		for _, id := range ids {
			var group models.Group
			if err := getJSON(txn, groupKey(id), &group); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return fmt.Errorf("failed to load group %s: %w", id, err)
			}
			groups = append(groups, group)
		}
		return nil
	})
	metrics.RecordStoreOp("list_by_member", "group", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].CreatedAt.After(groups[j].CreatedAt)
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// ActiveGroups returns every group still in the active state. The idle
// group janitor feeds from here.
func (s *Store) ActiveGroups() ([]models.Group, error) {
	start := time.Now()

	var groups []models.Group
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(groupKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var group models.Group
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &group)
			}); err != nil {
				return fmt.Errorf("failed to decode group %s: %w", it.Item().Key(), err)
			}
			if group.Status == models.GroupActive {
				groups = append(groups, group)
			}
		}
		return nil
	})
	metrics.RecordStoreOp("list_active", "group", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// UpdateGroup loads the group, applies mutate, and persists the result
// in one transaction, bumping UpdatedAt and Version. Membership index
// entries stay in sync with whatever mutate does to Members. A mutate
// error aborts the transaction unchanged and passes through to the
// caller; mutate must be safe to run more than once because commit
// conflicts retry the whole closure.
func (s *Store) UpdateGroup(op, groupID string, mutate func(g *models.Group) error) (*models.Group, error) {
	start := time.Now()
	now := start.UTC()

	var updated models.Group
	err := s.update(op, func(txn *badger.Txn) error {
		group, err := getGroupTxn(txn, groupID)
		if err != nil {
			return err
		}

		before := append([]string(nil), group.Members...)
		if err := mutate(group); err != nil {
			return err
		}
		group.UpdatedAt = now
		group.Version++
		if err := setJSON(txn, groupKey(group.ID), group); err != nil {
			return err
		}

		for _, id := range before {
			if !group.IsMember(id) {
				if err := txn.Delete(groupMemberKey(id, group.ID)); err != nil {
					return err
				}
			}
		}
		for _, id := range group.Members {
			if !slices.Contains(before, id) {
				if err := txn.Set(groupMemberKey(id, group.ID), []byte(group.ID)); err != nil {
					return err
				}
			}
		}

		updated = *group
		return nil
	})
	metrics.RecordStoreOp(op, "group", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddGroupMember adds a user to an active group with a fresh profile
// snapshot. Adding an existing member is a conflict, matching the
// duplicate-rating rule.
func (s *Store) AddGroupMember(groupID, userID string, maxMembers int) (*models.Group, error) {
	start := time.Now()
	now := start.UTC()

	var updated models.Group
	err := s.update("group_add_member", func(txn *badger.Txn) error {
		group, err := getGroupTxn(txn, groupID)
		if err != nil {
			return err
		}
		if group.Status != models.GroupActive {
			return models.Conflict("group %s is %s; members can change only while it is active", groupID, group.Status)
		}
		if group.IsMember(userID) {
			return models.Conflict("user %s is already a member of group %s", userID, groupID)
		}
		if maxMembers > 0 && len(group.Members) >= maxMembers {
			return models.Validation("group %s is full (limit %d members)", groupID, maxMembers)
		}

		user, err := getUserTxn(txn, userID)
		if err != nil {
			return err
		}
		group.Members = append(group.Members, userID)
		if group.MemberProfiles == nil {
			group.MemberProfiles = make(map[string]models.MemberProfile)
		}
		group.MemberProfiles[userID] = memberProfileOf(user)
		group.UpdatedAt = now
		group.Version++
		if err := setJSON(txn, groupKey(group.ID), group); err != nil {
			return err
		}
		if err := txn.Set(groupMemberKey(userID, group.ID), []byte(group.ID)); err != nil {
			return err
		}
		updated = *group
		return nil
	})
	metrics.RecordStoreOp("add_member", "group", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RemoveGroupMember removes a user from an active group, deleting their
// ballot in the same transaction. Removal never finalizes the group even
// when everyone left has voted; the next cast or an explicit finalize
// closes the vote.
//
// Only the member themselves or the creator may remove a member. The
// creator cannot leave while others remain; a creator alone in the group
// leaves by disbanding, which archives the group in place.
func (s *Store) RemoveGroupMember(groupID, userID, actorID string) (*models.Group, error) {
	start := time.Now()
	now := start.UTC()

	var updated models.Group
	err := s.update("group_remove_member", func(txn *badger.Txn) error {
		group, err := getGroupTxn(txn, groupID)
		if err != nil {
			return err
		}
		if group.Status != models.GroupActive {
			return models.Conflict("group %s is %s; members can change only while it is active", groupID, group.Status)
		}
		if actorID != userID && actorID != group.CreatorID {
			return models.Unauthorized("user %s cannot remove user %s from group %s", actorID, userID, groupID)
		}
		if !group.IsMember(userID) {
			return models.NotFound("user %s is not a member of group %s", userID, groupID)
		}

		if userID == group.CreatorID {
			if len(group.Members) > 1 {
				return models.Validation("creator cannot leave group %s while other members remain", groupID)
			}
			group.Status = models.GroupArchived
			group.UpdatedAt = now
			group.Version++
			if err := setJSON(txn, groupKey(group.ID), group); err != nil {
				return err
			}
			updated = *group
			return nil
		}

		members := make([]string, 0, len(group.Members)-1)
		for _, m := range group.Members {
			if m != userID {
				members = append(members, m)
			}
		}
		group.Members = members
		delete(group.MemberProfiles, userID)
		delete(group.Votes, userID)
		group.UpdatedAt = now
		group.Version++
		if err := setJSON(txn, groupKey(group.ID), group); err != nil {
			return err
		}
		if err := txn.Delete(groupMemberKey(userID, group.ID)); err != nil {
			return err
		}
		updated = *group
		return nil
	})
	metrics.RecordStoreOp("remove_member", "group", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
