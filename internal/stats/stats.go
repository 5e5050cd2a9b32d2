package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/internal/models"
)

// Engine computes aggregations over stored accounts, posts and their
// snapshot histories. All reads are snapshot-based: post counters always
// come from each post's latest snapshot, never from the post row itself.
type Engine struct {
	database *db.DB
	accounts *db.AccountRepository
	posts    *db.PostRepository
	metrics  *db.MetricsRepository
}

// NewEngine creates a stats engine over the given database.
func NewEngine(database *db.DB) *Engine {
	return &Engine{
		database: database,
		accounts: db.NewAccountRepository(database),
		posts:    db.NewPostRepository(database),
		metrics:  db.NewMetricsRepository(database),
	}
}

// AccountTotals sums engagement counters across the latest snapshot of every
// post owned by the account.
type AccountTotals struct {
	AccountID  int64 `json:"account_id"`
	PostCount  int64 `json:"post_count"`
	Views      int64 `json:"views"`
	Likes      int64 `json:"likes"`
	Comments   int64 `json:"comments"`
	Shares     int64 `json:"shares"`
	Saves      int64 `json:"saves"`
	TrackedFor int64 `json:"tracked_posts"`
}

// Totals computes AccountTotals for one account. Posts that have never been
// snapshotted contribute nothing except to PostCount.
func (e *Engine) Totals(ctx context.Context, accountID int64) (*AccountTotals, error) {
	if _, err := e.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	posts, err := e.posts.ListByAccount(ctx, accountID, db.PostListOptions{})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	latest, err := e.metrics.LatestPostMetricsBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	totals := &AccountTotals{AccountID: accountID, PostCount: int64(len(posts))}
	for _, m := range latest {
		totals.TrackedFor++
		totals.Views += m.Views
		totals.Likes += m.Likes
		totals.Comments += m.Comments
		totals.Shares += m.Shares
		totals.Saves += m.Saves
	}
	return totals, nil
}

// FollowerDelta returns the change in follower count between the account's
// two most recent snapshots. With fewer than two snapshots the delta is 0.
func (e *Engine) FollowerDelta(ctx context.Context, accountID int64) (int64, error) {
	history, err := e.metrics.AccountMetricsHistory(ctx, accountID, 2)
	if err != nil {
		return 0, err
	}
	if len(history) < 2 {
		return 0, nil
	}
	return history[0].FollowerCount - history[1].FollowerCount, nil
}

// EngagementRate computes (likes + comments) / followers * 100 rounded to
// two decimal places. Zero followers yields 0.0, never a division error.
func EngagementRate(likes, comments, followers int64) float64 {
	if followers <= 0 {
		return 0.0
	}
	rate := float64(likes+comments) / float64(followers) * 100
	return math.Round(rate*100) / 100
}

// Engagement computes the account's engagement rate from its latest account
// snapshot and the latest snapshots of its posts.
func (e *Engine) Engagement(ctx context.Context, accountID int64) (float64, error) {
	account, err := e.metrics.LatestAccountMetrics(ctx, accountID)
	if errors.Is(err, db.ErrNotFound) {
		return 0.0, nil
	}
	if err != nil {
		return 0, err
	}

	totals, err := e.Totals(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return EngagementRate(totals.Likes, totals.Comments, account.FollowerCount), nil
}

// DailyPoint is one day of aggregated post snapshot activity.
type DailyPoint struct {
	Date      string `json:"date"`
	Snapshots int64  `json:"snapshots"`
	Views     int64  `json:"views"`
	Likes     int64  `json:"likes"`
	Comments  int64  `json:"comments"`
	Shares    int64  `json:"shares"`
}

// DailyRollup groups the account's post snapshots by calendar day over the
// trailing window, oldest day first. Days with no snapshots are absent.
func (e *Engine) DailyRollup(ctx context.Context, accountID int64, days int) ([]DailyPoint, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	var points []DailyPoint
	err := e.database.WithContext(ctx).
		Model(&models.PostMetrics{}).
		Select("DATE(post_metrics.collected_at) AS date, COUNT(*) AS snapshots, "+
			"SUM(post_metrics.views) AS views, SUM(post_metrics.likes) AS likes, "+
			"SUM(post_metrics.comments) AS comments, SUM(post_metrics.shares) AS shares").
		Joins("JOIN posts ON posts.id = post_metrics.post_id").
		Where("posts.account_id = ? AND post_metrics.collected_at >= ?", accountID, since).
		Group("DATE(post_metrics.collected_at)").
		Order("date ASC").
		Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily rollup: %w", err)
	}
	return points, nil
}

// TrendPoint is one account snapshot reduced to trend fields.
type TrendPoint struct {
	CollectedAt    time.Time `json:"collected_at"`
	FollowerCount  int64     `json:"follower_count"`
	FollowingCount int64     `json:"following_count"`
	PostCount      int64     `json:"post_count"`
}

// AccountTrends returns the account's follower trajectory over the trailing
// window, oldest snapshot first.
func (e *Engine) AccountTrends(ctx context.Context, accountID int64, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	var points []TrendPoint
	err := e.database.WithContext(ctx).
		Model(&models.AccountMetrics{}).
		Select("collected_at, follower_count, following_count, post_count").
		Where("account_id = ? AND collected_at >= ?", accountID, since).
		Order("collected_at ASC, id ASC").
		Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute account trends: %w", err)
	}
	return points, nil
}

// RankedPost is a post joined with its latest snapshot for ranking.
type RankedPost struct {
	Post    models.Post        `json:"post"`
	Metrics models.PostMetrics `json:"metrics"`
}

// TopPosts ranks posts by their latest snapshot's view count, descending,
// breaking ties by likes. An empty platform ranks across all platforms.
// Posts without snapshots never rank.
func (e *Engine) TopPosts(ctx context.Context, platform string, limit int) ([]RankedPost, error) {
	if limit <= 0 {
		limit = 10
	}

	var posts []models.Post
	query := e.database.WithContext(ctx).Model(&models.Post{})
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	ids := make([]int64, len(posts))
	byID := make(map[int64]models.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	latest, err := e.metrics.LatestPostMetricsBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedPost, 0, len(latest))
	for postID, m := range latest {
		ranked = append(ranked, RankedPost{Post: byID[postID], Metrics: *m})
	}
	// views desc, then likes desc, then post ID asc for a stable final order
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Metrics.Views != b.Metrics.Views {
			return a.Metrics.Views > b.Metrics.Views
		}
		if a.Metrics.Likes != b.Metrics.Likes {
			return a.Metrics.Likes > b.Metrics.Likes
		}
		return a.Post.ID < b.Post.ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// PlatformSummary aggregates stored state for one platform.
type PlatformSummary struct {
	Platform      string     `json:"platform"`
	Accounts      int64      `json:"accounts"`
	Posts         int64      `json:"posts"`
	Snapshots     int64      `json:"snapshots"`
	Followers     int64      `json:"followers"`
	LastCollected *time.Time `json:"last_collected,omitempty"`
}

// Summary reports per-platform account, post and snapshot counts plus the
// sum of current follower counters.
func (e *Engine) Summary(ctx context.Context) ([]PlatformSummary, error) {
	summaries := make([]PlatformSummary, 0, len(models.Platforms))
	for _, platform := range models.Platforms {
		s := PlatformSummary{Platform: platform}

		err := e.database.WithContext(ctx).Model(&models.Account{}).
			Where("platform = ?", platform).
			Count(&s.Accounts).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count accounts: %w", err)
		}

		err = e.database.WithContext(ctx).Model(&models.Post{}).
			Where("platform = ?", platform).
			Count(&s.Posts).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count posts: %w", err)
		}

		err = e.database.WithContext(ctx).Model(&models.PostMetrics{}).
			Joins("JOIN posts ON posts.id = post_metrics.post_id").
			Where("posts.platform = ?", platform).
			Count(&s.Snapshots).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count snapshots: %w", err)
		}

		var followers struct{ Total int64 }
		err = e.database.WithContext(ctx).Model(&models.Account{}).
			Select("COALESCE(SUM(follower_count), 0) AS total").
			Where("platform = ?", platform).
			Scan(&followers).Error
		if err != nil {
			return nil, fmt.Errorf("failed to sum followers: %w", err)
		}
		s.Followers = followers.Total

		var lastSnap models.AccountMetrics
		err = e.database.WithContext(ctx).Model(&models.AccountMetrics{}).
			Joins("JOIN accounts ON accounts.id = account_metrics.account_id").
			Where("accounts.platform = ?", platform).
			Order("account_metrics.collected_at DESC").
			First(&lastSnap).Error
		if err == nil {
			at := lastSnap.CollectedAt
			s.LastCollected = &at
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to find last collection: %w", err)
		}

		summaries = append(summaries, s)
	}
	return summaries, nil
}

// OrphanReport counts snapshot rows whose parent no longer exists. A healthy
// store always reports zeros.
type OrphanReport struct {
	OrphanPostMetrics    int64 `json:"orphan_post_metrics"`
	OrphanAccountMetrics int64 `json:"orphan_account_metrics"`
	OrphanPosts          int64 `json:"orphan_posts"`
}

// CheckIntegrity scans for snapshot or post rows left behind without a
// parent row.
func (e *Engine) CheckIntegrity(ctx context.Context) (*OrphanReport, error) {
	report := &OrphanReport{}

	err := e.database.WithContext(ctx).Model(&models.PostMetrics{}).
		Where("post_id NOT IN (?)", e.database.Model(&models.Post{}).Select("id")).
		Count(&report.OrphanPostMetrics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan post metrics: %w", err)
	}

	err = e.database.WithContext(ctx).Model(&models.AccountMetrics{}).
		Where("account_id NOT IN (?)", e.database.Model(&models.Account{}).Select("id")).
		Count(&report.OrphanAccountMetrics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan account metrics: %w", err)
	}

	err = e.database.WithContext(ctx).Model(&models.Post{}).
		Where("account_id NOT IN (?)", e.database.Model(&models.Account{}).Select("id")).
		Count(&report.OrphanPosts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan posts: %w", err)
	}

	return report, nil
}
