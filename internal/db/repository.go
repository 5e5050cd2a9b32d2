package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/socialtrack/socialtrack/internal/models"
)

// Repository provides shared database access for the concrete repositories.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// AccountRepository handles account-related database operations.
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{Repository: NewRepository(db)}
}

// Upsert inserts the account or, when a row already exists for its
// (platform, username), refreshes the mutable fields in place. The returned
// account always carries the canonical row ID.
func (r *AccountRepository) Upsert(ctx context.Context, account *models.Account) (*models.Account, error) {
	now := time.Now().UTC()
	account.UpdatedAt = now
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform"}, {Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "account_id", "follower_count",
			"following_count", "post_count", "bio", "updated_at",
		}),
	}).Create(account).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}

	// OnConflict updates may not populate the ID on all drivers; re-select
	// by the natural key so callers always see the canonical row.
	var saved models.Account
	err = r.db.WithContext(ctx).
		Where("platform = ? AND username = ?", account.Platform, account.Username).
		First(&saved).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load upserted account: %w", err)
	}
	return &saved, nil
}

// GetByID fetches an account by its row ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetByName fetches an account by its (platform, username) natural key.
func (r *AccountRepository) GetByName(ctx context.Context, platform, username string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("platform = ? AND username = ?", platform, username).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// List returns tracked accounts, optionally filtered to one platform,
// ordered by platform then username.
func (r *AccountRepository) List(ctx context.Context, platform string) ([]models.Account, error) {
	var accounts []models.Account
	query := r.db.WithContext(ctx).Model(&models.Account{})
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	err := query.Order("platform ASC, username ASC").Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Delete removes an account and everything hanging off it: post snapshots,
// posts, and account snapshots, in that order, inside one transaction.
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		err := tx.First(&account, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}

		err = tx.Where("post_id IN (?)",
			tx.Model(&models.Post{}).Select("id").Where("account_id = ?", id),
		).Delete(&models.PostMetrics{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete post metrics: %w", err)
		}

		if err := tx.Where("account_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("failed to delete posts: %w", err)
		}

		if err := tx.Where("account_id = ?", id).Delete(&models.AccountMetrics{}).Error; err != nil {
			return fmt.Errorf("failed to delete account metrics: %w", err)
		}

		if err := tx.Delete(&account).Error; err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		return nil
	})
}

// PostRepository handles post-related database operations.
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{Repository: NewRepository(db)}
}

// Upsert inserts the post if it has not been seen before. Posts are frozen
// at first sighting: when a row already exists for (platform, post_id) the
// incoming fields are discarded and the stored row is returned unchanged.
func (r *PostRepository) Upsert(ctx context.Context, post *models.Post) (*models.Post, error) {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "post_id"}},
		DoNothing: true,
	}).Create(post)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to upsert post: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Conflict: the post is already known, return the frozen row.
		var existing models.Post
		err := r.db.WithContext(ctx).
			Where("platform = ? AND post_id = ?", post.Platform, post.PlatformPostID).
			First(&existing).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load existing post: %w", err)
		}
		return &existing, nil
	}
	return post, nil
}

// GetByID fetches a post by its row ID.
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// PostListOptions filters and orders ListByAccount results. The zero value
// lists everything, newest published first.
type PostListOptions struct {
	SortBy   string     // "published_at" (default) or "created_at"
	Order    string     // "desc" (default) or "asc"
	DateFrom *time.Time // inclusive lower bound on published_at
	DateTo   *time.Time // exclusive upper bound on published_at
	Limit    int        // 0 means no limit
}

// ListByAccount returns posts owned by the account. By default posts come
// back newest published first with unknown publish dates last.
func (r *PostRepository) ListByAccount(ctx context.Context, accountID int64, opts PostListOptions) ([]models.Post, error) {
	sortBy := opts.SortBy
	switch sortBy {
	case "", "published_at":
		sortBy = "published_at"
	case "created_at":
	default:
		return nil, fmt.Errorf("unknown sort field: %s", opts.SortBy)
	}
	order := "DESC"
	if strings.EqualFold(opts.Order, "asc") {
		order = "ASC"
	}

	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if opts.DateFrom != nil {
		query = query.Where("published_at >= ?", *opts.DateFrom)
	}
	if opts.DateTo != nil {
		query = query.Where("published_at < ?", *opts.DateTo)
	}
	if sortBy == "published_at" {
		query = query.Order(fmt.Sprintf("published_at %s NULLS LAST, id %s", order, order))
	} else {
		query = query.Order(fmt.Sprintf("created_at %s, id %s", order, order))
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// CountByAccount returns how many posts the account owns.
func (r *PostRepository) CountByAccount(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// MetricsRepository handles metrics snapshot operations. Snapshots are
// append-only: every call adds rows, never rewrites them.
type MetricsRepository struct {
	*Repository
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *DB) *MetricsRepository {
	return &MetricsRepository{Repository: NewRepository(db)}
}

// AppendPostMetrics appends one snapshot for a post. The post must exist.
func (r *MetricsRepository) AppendPostMetrics(ctx context.Context, m *models.PostMetrics) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", m.PostID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to verify post: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: post %d does not exist", ErrIntegrity, m.PostID)
	}

	if m.CollectedAt.IsZero() {
		m.CollectedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to append post metrics: %w", err)
	}
	return nil
}

// AppendAccountMetrics appends one snapshot for an account. The account must
// exist.
func (r *MetricsRepository) AppendAccountMetrics(ctx context.Context, m *models.AccountMetrics) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", m.AccountID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to verify account: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: account %d does not exist", ErrIntegrity, m.AccountID)
	}

	if m.CollectedAt.IsZero() {
		m.CollectedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to append account metrics: %w", err)
	}
	return nil
}

// PostMetricsHistory returns all snapshots for a post in collection order.
func (r *MetricsRepository) PostMetricsHistory(ctx context.Context, postID int64) ([]models.PostMetrics, error) {
	var history []models.PostMetrics
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("collected_at ASC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load post metrics history: %w", err)
	}
	return history, nil
}

// AccountMetricsHistory returns the account's snapshots newest first,
// bounded by limit when positive.
func (r *MetricsRepository) AccountMetricsHistory(ctx context.Context, accountID int64, limit int) ([]models.AccountMetrics, error) {
	var history []models.AccountMetrics
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("collected_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to load account metrics history: %w", err)
	}
	return history, nil
}

// LatestPostMetrics returns the newest snapshot for a post, breaking
// collected_at ties by the higher snapshot ID. Returns ErrNotFound when the
// post has no snapshots yet.
func (r *MetricsRepository) LatestPostMetrics(ctx context.Context, postID int64) (*models.PostMetrics, error) {
	var m models.PostMetrics
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("collected_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest post metrics: %w", err)
	}
	return &m, nil
}

// LatestAccountMetrics returns the account's newest snapshot, or ErrNotFound
// when no snapshot exists.
func (r *MetricsRepository) LatestAccountMetrics(ctx context.Context, accountID int64) (*models.AccountMetrics, error) {
	var m models.AccountMetrics
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("collected_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest account metrics: %w", err)
	}
	return &m, nil
}

// LatestPostMetricsBulk resolves the latest snapshot for every given post in
// one grouped query instead of one query per post. Posts with no snapshots
// are simply absent from the result.
func (r *MetricsRepository) LatestPostMetricsBulk(ctx context.Context, postIDs []int64) (map[int64]*models.PostMetrics, error) {
	latest := make(map[int64]*models.PostMetrics, len(postIDs))
	if len(postIDs) == 0 {
		return latest, nil
	}

	// Find the newest collected_at per post, then pull all snapshot rows at
	// those instants. Duplicate timestamps per post are resolved in Go by
	// keeping the row with the highest ID.
	var rows []models.PostMetrics
	sub := r.db.Model(&models.PostMetrics{}).
		Select("post_id, MAX(collected_at) AS max_collected_at").
		Where("post_id IN ?", postIDs).
		Group("post_id")
	err := r.db.WithContext(ctx).
		Joins("JOIN (?) latest ON post_metrics.post_id = latest.post_id AND post_metrics.collected_at = latest.max_collected_at", sub).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest post metrics: %w", err)
	}

	for i := range rows {
		row := &rows[i]
		if cur, ok := latest[row.PostID]; !ok || row.ID > cur.ID {
			latest[row.PostID] = row
		}
	}
	return latest, nil
}
