package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateGroup inserts a group and its members.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if err := s.enter(ctx, OpCreateGroup); err != nil {
		return err
	}

	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if group.CreatedAt == 0 {
		group.CreatedAt = now
	}
	if group.UpdatedAt == 0 {
		group.UpdatedAt = group.CreatedAt
	}

	return s.write(ctx, func(d *dataset) error {
		if _, exists := d.groups[group.ID]; exists {
			return fmt.Errorf("%w: group %s already exists", storage.ErrConstraintViolation, group.ID)
		}
		if _, ok := d.users[group.CreatedBy]; !ok {
			return fmt.Errorf("%w: unknown creator %s", storage.ErrConstraintViolation, group.CreatedBy)
		}

		stored := copyGroup(group)
		stored.Members = nil
		d.groups[group.ID] = stored
		d.joinedAt[group.ID] = make(map[string]int64)

		return d.addMembers(group.ID, group.Members, now)
	})
}

// GetGroup retrieves a group with its members.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	if err := s.enter(ctx, OpGetGroup); err != nil {
		return nil, err
	}

	var group *models.Group
	err := s.read(func(d *dataset) error {
		g, ok := d.groups[groupID]
		if !ok {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		group = copyGroup(g)
		return nil
	})
	return group, err
}

// ListGroupsByUser returns the groups userID belongs to, newest first.
func (s *Store) ListGroupsByUser(ctx context.Context, userID string) ([]*models.Group, error) {
	if err := s.enter(ctx, OpListGroupsByUser); err != nil {
		return nil, err
	}

	var groups []*models.Group
	err := s.read(func(d *dataset) error {
		for groupID, members := range d.joinedAt {
			if _, ok := members[userID]; ok {
				groups = append(groups, copyGroup(d.groups[groupID]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].CreatedAt != groups[j].CreatedAt {
			return groups[i].CreatedAt > groups[j].CreatedAt
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// UpdateGroup changes the name and description of a group.
func (s *Store) UpdateGroup(ctx context.Context, group *models.Group) error {
	if err := s.enter(ctx, OpUpdateGroup); err != nil {
		return err
	}

	group.UpdatedAt = time.Now().Unix()
	return s.write(ctx, func(d *dataset) error {
		g, ok := d.groups[group.ID]
		if !ok {
			return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
		}
		g.Name = group.Name
		g.Description = group.Description
		g.UpdatedAt = group.UpdatedAt
		return nil
	})
}

// DeleteGroup removes a group with its membership, expenses and splits.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	if err := s.enter(ctx, OpDeleteGroup); err != nil {
		return err
	}

	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.groups[groupID]; !ok {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		d.deleteGroup(groupID)
		return nil
	})
}

// AddGroupMembers adds users to a group, skipping existing members.
func (s *Store) AddGroupMembers(ctx context.Context, groupID string, userIDs []string) error {
	if err := s.enter(ctx, OpAddGroupMembers); err != nil {
		return err
	}

	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.groups[groupID]; !ok {
			return fmt.Errorf("%w: unknown group %s", storage.ErrConstraintViolation, groupID)
		}
		return d.addMembers(groupID, userIDs, time.Now().Unix())
	})
}

// RemoveGroupMember removes one user from a group.
func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	if err := s.enter(ctx, OpRemoveGroupMember); err != nil {
		return err
	}

	return s.write(ctx, func(d *dataset) error {
		members := d.joinedAt[groupID]
		if _, ok := members[userID]; !ok {
			return fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
		}
		delete(members, userID)

		g := d.groups[groupID]
		kept := g.Members[:0]
		for _, m := range g.Members {
			if m != userID {
				kept = append(kept, m)
			}
		}
		g.Members = kept
		return nil
	})
}

// IsGroupMember reports whether userID belongs to groupID.
func (s *Store) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	if err := s.enter(ctx, OpIsGroupMember); err != nil {
		return false, err
	}

	var member bool
	err := s.read(func(d *dataset) error {
		_, member = d.joinedAt[groupID][userID]
		return nil
	})
	return member, err
}

func (d *dataset) addMembers(groupID string, userIDs []string, joinedAt int64) error {
	g := d.groups[groupID]
	members := d.joinedAt[groupID]

	for _, userID := range userIDs {
		if _, ok := d.users[userID]; !ok {
			return fmt.Errorf("%w: unknown user %s", storage.ErrConstraintViolation, userID)
		}
		if _, ok := members[userID]; ok {
			continue
		}
		members[userID] = joinedAt
		g.Members = append(g.Members, userID)
	}
	return nil
}

func (d *dataset) deleteGroup(groupID string) {
	for id, e := range d.expenses {
		if e.GroupID == groupID {
			d.deleteExpense(id)
		}
	}
	delete(d.groups, groupID)
	delete(d.joinedAt, groupID)
}
