package model

import "time"

// User is the account record owned by the host application.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex"`
	Email     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
