package memory

import (
	"context"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateUser inserts a user. Emails are unique.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.enter(ctx, OpCreateUser); err != nil {
		return err
	}

	if user.DefaultCurrency == "" {
		user.DefaultCurrency = models.DefaultCurrencyCode
	}

	return s.write(ctx, func(d *dataset) error {
		if _, exists := d.users[user.ID]; exists {
			return fmt.Errorf("%w: user %s already exists", storage.ErrConstraintViolation, user.ID)
		}
		if _, exists := d.usersByEmail[user.Email]; exists {
			return fmt.Errorf("%w: email %s already registered", storage.ErrConstraintViolation, user.Email)
		}
		d.users[user.ID] = copyUser(user)
		d.usersByEmail[user.Email] = user.ID
		return nil
	})
}

// GetUserByEmail returns nil and no error if the user does not exist.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := s.enter(ctx, OpGetUserByEmail); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.read(func(d *dataset) error {
		if id, ok := d.usersByEmail[email]; ok {
			user = copyUser(d.users[id])
		}
		return nil
	})
	return user, err
}

// GetUserByID returns nil and no error if the user does not exist.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := s.enter(ctx, OpGetUserByID); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.read(func(d *dataset) error {
		if u, ok := d.users[id]; ok {
			user = copyUser(u)
		}
		return nil
	})
	return user, err
}

// GetUsersByIDs returns the users that exist among ids.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	if err := s.enter(ctx, OpGetUsersByIDs); err != nil {
		return nil, err
	}

	users := make(map[string]*models.User)
	err := s.read(func(d *dataset) error {
		for _, id := range ids {
			if u, ok := d.users[id]; ok {
				users[id] = copyUser(u)
			}
		}
		return nil
	})
	return users, err
}
