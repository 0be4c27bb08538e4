package model

import "time"

// MarketingEmailsOptIn is the attribute name populated by the backfill.
const MarketingEmailsOptIn = "marketing_emails_opt_in"

// UserAttribute is a named key/value fact about a user.
type UserAttribute struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_user_attribute_name,unique"`
	Name      string `gorm:"index:idx_user_attribute_name,unique;size:255"`
	Value     string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
