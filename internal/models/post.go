package models

import (
	"database/sql"
	"time"
)

// Post represents a single post/video/tweet owned by a tracked account.
// Rows are recognized by (platform, post_id) and frozen after the first
// sighting; re-collecting a known post never rewrites its fields.
type Post struct {
	ID        int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	AccountID int64  `gorm:"not null;index:posts_account_idx;column:account_id" json:"account_id"`
	Platform  string `gorm:"type:varchar(16);not null;uniqueIndex:posts_ux1;column:platform" json:"platform"`
	// Platform-native post identifier
	PlatformPostID string `gorm:"type:varchar(255);not null;uniqueIndex:posts_ux1;column:post_id" json:"post_id"`

	PostType string `gorm:"type:varchar(16);not null;default:'';column:post_type" json:"post_type"`
	Caption  string `gorm:"type:text;not null;default:'';column:caption" json:"caption"`
	// Source-reported publish time; null when the source does not report one
	PublishedAt  sql.NullTime `gorm:"column:published_at" json:"published_at"`
	URL          string       `gorm:"type:varchar(1024);not null;default:'';column:url" json:"url"`
	ThumbnailURL string       `gorm:"type:varchar(1024);not null;default:'';column:thumbnail_url" json:"thumbnail_url"`

	// Set once, at first sighting
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`

	Account *Account `gorm:"foreignKey:AccountID;references:ID" json:"-"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}
