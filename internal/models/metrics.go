package models

import (
	"time"
)

// PostMetrics is an append-only snapshot of a post's engagement counters at
// one collection instant. Rows are never updated or deleted individually;
// they go away only when the owning account is deleted.
type PostMetrics struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	PostID      int64     `gorm:"not null;index:post_metrics_post_idx,priority:1;column:post_id" json:"post_id"`
	CollectedAt time.Time `gorm:"not null;index:post_metrics_post_idx,priority:2;index:post_metrics_date_idx;column:collected_at" json:"collected_at"`

	Views       int64 `gorm:"not null;default:0;column:views" json:"views"`
	Likes       int64 `gorm:"not null;default:0;column:likes" json:"likes"`
	Comments    int64 `gorm:"not null;default:0;column:comments" json:"comments"`
	Shares      int64 `gorm:"not null;default:0;column:shares" json:"shares"`
	Saves       int64 `gorm:"not null;default:0;column:saves" json:"saves"`
	Plays       int64 `gorm:"not null;default:0;column:plays" json:"plays"`
	Reach       int64 `gorm:"not null;default:0;column:reach" json:"reach"`
	Impressions int64 `gorm:"not null;default:0;column:impressions" json:"impressions"`
}

// TableName specifies the table name for PostMetrics
func (PostMetrics) TableName() string {
	return "post_metrics"
}

// AccountMetrics is an append-only snapshot of an account's counters at one
// collection instant.
type AccountMetrics struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	AccountID   int64     `gorm:"not null;index:account_metrics_account_idx,priority:1;column:account_id" json:"account_id"`
	CollectedAt time.Time `gorm:"not null;index:account_metrics_account_idx,priority:2;column:collected_at" json:"collected_at"`

	FollowerCount  int64 `gorm:"not null;default:0;column:follower_count" json:"follower_count"`
	FollowingCount int64 `gorm:"not null;default:0;column:following_count" json:"following_count"`
	PostCount      int64 `gorm:"not null;default:0;column:post_count" json:"post_count"`

	// Optional rollups across the account's posts at collection time
	TotalLikes    int64 `gorm:"not null;default:0;column:total_likes" json:"total_likes"`
	TotalComments int64 `gorm:"not null;default:0;column:total_comments" json:"total_comments"`
	TotalViews    int64 `gorm:"not null;default:0;column:total_views" json:"total_views"`
}

// TableName specifies the table name for AccountMetrics
func (AccountMetrics) TableName() string {
	return "account_metrics"
}
