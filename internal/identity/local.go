package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/tourdesk/internal/models"
	"gorm.io/gorm"
)

// LocalStore resolves identities from the local users table, the fallback
// for accounts that never migrated to the external provider.
type LocalStore struct {
	db *gorm.DB
}

// NewLocalStore returns a resolver over the local users table.
func NewLocalStore(db *gorm.DB) *LocalStore {
	return &LocalStore{db: db}
}

func (s *LocalStore) Resolve(ctx context.Context, id string) (*Identity, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: local lookup %s: %w", id, err)
	}
	return &Identity{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}, nil
}

// Ensure creates the local user record if it does not exist and returns its
// identity. Used when a booking arrives with email and name for a user the
// provider does not know.
func (s *LocalStore) Ensure(ctx context.Context, id, email, displayName string) (*Identity, error) {
	if ident, err := s.Resolve(ctx, id); err == nil {
		return ident, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user := models.User{ID: id, Email: email, DisplayName: displayName}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("identity: create local user %s: %w", id, err)
	}
	return &Identity{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}, nil
}
