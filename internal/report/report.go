// Package report writes CSV exports of tracked accounts and posts.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/internal/stats"
	"github.com/socialtrack/socialtrack/pkg/config"
	"github.com/socialtrack/socialtrack/pkg/logging"
)

// Generator writes CSV reports into the configured directory.
type Generator struct {
	dir      string
	accounts *db.AccountRepository
	posts    *db.PostRepository
	metrics  *db.MetricsRepository
	stats    *stats.Engine
	logger   *zap.Logger

	// now is swapped out in tests for stable file names
	now func() time.Time
}

// NewGenerator creates a report generator. The report directory is created
// on first use.
func NewGenerator(cfg *config.ReportsConfig, database *db.DB) *Generator {
	return &Generator{
		dir:      cfg.Dir,
		accounts: db.NewAccountRepository(database),
		posts:    db.NewPostRepository(database),
		metrics:  db.NewMetricsRepository(database),
		stats:    stats.NewEngine(database),
		logger:   logging.WithComponent("report"),
		now:      time.Now,
	}
}

// Weekly writes one row per tracked account with its totals, follower change
// and engagement rate. Returns the written file path.
func (g *Generator) Weekly(ctx context.Context, platform string) (string, error) {
	accounts, err := g.accounts.List(ctx, platform)
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(accounts))
	for _, account := range accounts {
		totals, err := g.stats.Totals(ctx, account.ID)
		if err != nil {
			return "", err
		}
		delta, err := g.stats.FollowerDelta(ctx, account.ID)
		if err != nil {
			return "", err
		}

		var avgViews, avgLikes int64
		if totals.PostCount > 0 {
			avgViews = totals.Views / totals.PostCount
			avgLikes = totals.Likes / totals.PostCount
		}
		engagement := stats.EngagementRate(totals.Likes, totals.Comments, account.FollowerCount)

		rows = append(rows, []string{
			account.Platform,
			account.Username,
			account.DisplayName,
			strconv.FormatInt(account.FollowerCount, 10),
			strconv.FormatInt(delta, 10),
			strconv.FormatInt(totals.PostCount, 10),
			strconv.FormatInt(totals.Views, 10),
			strconv.FormatInt(totals.Likes, 10),
			strconv.FormatInt(totals.Comments, 10),
			strconv.FormatInt(totals.Shares, 10),
			strconv.FormatInt(avgViews, 10),
			strconv.FormatInt(avgLikes, 10),
			strconv.FormatFloat(engagement, 'f', 2, 64),
		})
	}

	header := []string{
		"platform", "username", "display_name", "follower_count", "follower_change",
		"post_count", "total_views", "total_likes", "total_comments", "total_shares",
		"avg_views", "avg_likes", "engagement_rate",
	}
	return g.write("weekly_report", header, rows)
}

// Posts writes one row per post with the counters from its latest snapshot.
func (g *Generator) Posts(ctx context.Context, platform string, limit int) (string, error) {
	if limit <= 0 {
		limit = 100
	}

	ranked, err := g.stats.TopPosts(ctx, platform, limit)
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(ranked))
	for _, item := range ranked {
		caption := truncate(item.Post.Caption, 100)
		publishedAt := ""
		if item.Post.PublishedAt.Valid {
			publishedAt = item.Post.PublishedAt.Time.Format(time.RFC3339)
		}

		rows = append(rows, []string{
			item.Post.Platform,
			strconv.FormatInt(item.Post.AccountID, 10),
			item.Post.PlatformPostID,
			item.Post.PostType,
			caption,
			publishedAt,
			item.Post.URL,
			strconv.FormatInt(item.Metrics.Views, 10),
			strconv.FormatInt(item.Metrics.Likes, 10),
			strconv.FormatInt(item.Metrics.Comments, 10),
			strconv.FormatInt(item.Metrics.Shares, 10),
			strconv.FormatInt(item.Metrics.Saves, 10),
			item.Metrics.CollectedAt.Format(time.RFC3339),
		})
	}

	header := []string{
		"platform", "account_id", "post_id", "post_type", "caption",
		"published_at", "url", "views", "likes", "comments",
		"shares", "saves", "collected_at",
	}
	return g.write("post_report", header, rows)
}

// AccountSummary writes one row per account with its current counters and
// the follower change across its last seven snapshots.
func (g *Generator) AccountSummary(ctx context.Context) (string, error) {
	accounts, err := g.accounts.List(ctx, "")
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(accounts))
	for _, account := range accounts {
		history, err := g.metrics.AccountMetricsHistory(ctx, account.ID, 7)
		if err != nil {
			return "", err
		}
		var weekDelta int64
		if len(history) >= 2 {
			weekDelta = history[0].FollowerCount - history[len(history)-1].FollowerCount
		}

		totals, err := g.stats.Totals(ctx, account.ID)
		if err != nil {
			return "", err
		}

		bio := truncate(account.Bio, 100)

		rows = append(rows, []string{
			account.Platform,
			account.Username,
			account.DisplayName,
			strconv.FormatInt(account.FollowerCount, 10),
			strconv.FormatInt(account.FollowingCount, 10),
			strconv.FormatInt(account.PostCount, 10),
			strconv.FormatInt(weekDelta, 10),
			strconv.FormatInt(totals.Views, 10),
			strconv.FormatInt(totals.Likes, 10),
			bio,
			account.UpdatedAt.Format(time.RFC3339),
		})
	}

	header := []string{
		"platform", "username", "display_name", "follower_count",
		"following_count", "post_count", "follower_change_7d",
		"total_views", "total_likes", "bio", "last_updated",
	}
	return g.write("account_summary", header, rows)
}

// truncate caps s at max runes. Cutting at a byte offset could split a
// multi-byte rune and emit invalid UTF-8.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func (g *Generator) write(prefix string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.csv", prefix, g.now().UTC().Format("20060102_150405"))
	path := filepath.Join(g.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush report: %w", err)
	}

	g.logger.Info("Report written", zap.String("path", path), zap.Int("rows", len(rows)))
	return path, nil
}
