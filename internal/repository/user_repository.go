package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"optin-backfill/internal/model"
)

// UserRepository reads the user table.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository wraps db for user reads.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Count returns the number of users.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ListPage returns users ordered by ascending id in [offset, offset+limit).
func (r *UserRepository) ListPage(ctx context.Context, offset, limit int) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users [%d:%d]: %w", offset, offset+limit, err)
	}
	return users, nil
}
