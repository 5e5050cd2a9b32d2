package models

import (
	"time"
)

// Account represents a tracked social-media account. One row exists per
// (platform, username); the counters are a denormalized copy of the most
// recent collection and are resynced in place on every run.
type Account struct {
	ID       int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Platform string `gorm:"type:varchar(16);not null;uniqueIndex:accounts_ux1;column:platform" json:"platform"`
	Username string `gorm:"type:varchar(255);not null;uniqueIndex:accounts_ux1;column:username" json:"username"`

	DisplayName string `gorm:"type:varchar(255);not null;default:'';column:display_name" json:"display_name"`
	// Platform-native account identifier; empty until the first successful
	// collection fills it in.
	PlatformAccountID string `gorm:"type:varchar(255);not null;default:'';column:account_id" json:"account_id"`

	// Current counters, refreshed on each collection
	FollowerCount  int64 `gorm:"not null;default:0;column:follower_count" json:"follower_count"`
	FollowingCount int64 `gorm:"not null;default:0;column:following_count" json:"following_count"`
	PostCount      int64 `gorm:"not null;default:0;column:post_count" json:"post_count"`

	Bio string `gorm:"type:text;not null;default:'';column:bio" json:"bio"`

	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}
