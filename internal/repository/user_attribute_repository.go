package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"optin-backfill/internal/model"
)

// UserAttributeRepository stores named per-user values.
type UserAttributeRepository struct {
	db *gorm.DB
}

// NewUserAttributeRepository wraps db for attribute reads and writes.
func NewUserAttributeRepository(db *gorm.DB) *UserAttributeRepository {
	return &UserAttributeRepository{db: db}
}

// Get returns the stored value, or "" when the attribute is not set.
func (r *UserAttributeRepository) Get(ctx context.Context, userID uint, name string) (string, error) {
	var attr model.UserAttribute
	err := r.db.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).First(&attr).Error
	switch {
	case err == nil:
		return attr.Value, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("find user attribute: %w", err)
	}
}

// Set updates the attribute row for (userID, name) or creates it.
func (r *UserAttributeRepository) Set(ctx context.Context, userID uint, name, value string) error {
	var attr model.UserAttribute
	err := r.db.WithContext(ctx).
		Where(model.UserAttribute{UserID: userID, Name: name}).
		Assign(map[string]interface{}{"value": value}).
		FirstOrCreate(&attr).Error
	if err != nil {
		return fmt.Errorf("set user attribute %q: %w", name, err)
	}
	return nil
}

// CountByName returns how many rows carry the given attribute name.
func (r *UserAttributeRepository) CountByName(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.UserAttribute{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count user attributes: %w", err)
	}
	return n, nil
}
