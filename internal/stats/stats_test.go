package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/internal/models"
)

func TestEngagementRate(t *testing.T) {
	tests := []struct {
		name      string
		likes     int64
		comments  int64
		followers int64
		expected  float64
	}{
		{
			name:      "typical rate",
			likes:     150,
			comments:  50,
			followers: 10000,
			expected:  2.0,
		},
		{
			name:      "rounds to two decimals",
			likes:     1,
			comments:  0,
			followers: 3000,
			expected:  0.03,
		},
		{
			name:      "zero followers",
			likes:     100,
			comments:  100,
			followers: 0,
			expected:  0.0,
		},
		{
			name:      "negative followers",
			likes:     100,
			comments:  100,
			followers: -5,
			expected:  0.0,
		},
		{
			name:      "no engagement",
			likes:     0,
			comments:  0,
			followers: 500,
			expected:  0.0,
		},
		{
			name:      "over one hundred percent",
			likes:     300,
			comments:  0,
			followers: 100,
			expected:  300.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EngagementRate(tt.likes, tt.comments, tt.followers)
			if result != tt.expected {
				t.Errorf("EngagementRate(%d, %d, %d) = %v, want %v",
					tt.likes, tt.comments, tt.followers, result, tt.expected)
			}
		})
	}
}

func newTestEngine(t *testing.T) (*Engine, *db.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	database := &db.DB{DB: gdb}
	require.NoError(t, database.Migrate())
	return NewEngine(database), database
}

type fixture struct {
	account *models.Account
	posts   []*models.Post
}

func seedFixture(t *testing.T, database *db.DB, platform, username string, followers int64) *fixture {
	t.Helper()
	ctx := context.Background()

	accounts := db.NewAccountRepository(database)
	account, err := accounts.Upsert(ctx, &models.Account{
		Platform:      platform,
		Username:      username,
		FollowerCount: followers,
	})
	require.NoError(t, err)
	return &fixture{account: account}
}

func (f *fixture) addPost(t *testing.T, database *db.DB, postID string, snapshots []models.PostMetrics) *models.Post {
	t.Helper()
	ctx := context.Background()

	posts := db.NewPostRepository(database)
	metrics := db.NewMetricsRepository(database)

	post, err := posts.Upsert(ctx, &models.Post{
		AccountID:      f.account.ID,
		Platform:       f.account.Platform,
		PlatformPostID: postID,
	})
	require.NoError(t, err)

	for i := range snapshots {
		snapshots[i].PostID = post.ID
		require.NoError(t, metrics.AppendPostMetrics(ctx, &snapshots[i]))
	}
	f.posts = append(f.posts, post)
	return post
}

func TestTotals_UsesLatestSnapshots(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	fix := seedFixture(t, database, "instagram", "brand", 1000)
	base := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	// Two snapshots per post; only the newer counters count.
	fix.addPost(t, database, "p1", []models.PostMetrics{
		{CollectedAt: base, Views: 100, Likes: 10, Comments: 1},
		{CollectedAt: base.Add(time.Hour), Views: 200, Likes: 20, Comments: 2},
	})
	fix.addPost(t, database, "p2", []models.PostMetrics{
		{CollectedAt: base, Views: 50, Likes: 5, Comments: 5},
	})
	// Post with no snapshots contributes only to PostCount.
	fix.addPost(t, database, "p3", nil)

	totals, err := engine.Totals(ctx, fix.account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.PostCount)
	assert.Equal(t, int64(2), totals.TrackedFor)
	assert.Equal(t, int64(250), totals.Views)
	assert.Equal(t, int64(25), totals.Likes)
	assert.Equal(t, int64(7), totals.Comments)
}

func TestTotals_UnknownAccount(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Totals(context.Background(), 404)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestFollowerDelta(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	fix := seedFixture(t, database, "tiktok", "grower", 0)
	metrics := db.NewMetricsRepository(database)

	// No snapshots: delta is zero.
	delta, err := engine.FollowerDelta(ctx, fix.account.ID)
	require.NoError(t, err)
	assert.Zero(t, delta)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, metrics.AppendAccountMetrics(ctx, &models.AccountMetrics{
		AccountID: fix.account.ID, CollectedAt: base, FollowerCount: 1000,
	}))

	// One snapshot: still zero.
	delta, err = engine.FollowerDelta(ctx, fix.account.ID)
	require.NoError(t, err)
	assert.Zero(t, delta)

	require.NoError(t, metrics.AppendAccountMetrics(ctx, &models.AccountMetrics{
		AccountID: fix.account.ID, CollectedAt: base.AddDate(0, 0, 1), FollowerCount: 900,
	}))

	// Newest minus second newest, negative deltas included.
	delta, err = engine.FollowerDelta(ctx, fix.account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), delta)
}

func TestEngagement_FromLatestSnapshots(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	fix := seedFixture(t, database, "instagram", "brand", 0)
	metrics := db.NewMetricsRepository(database)

	// No account snapshot: 0.0, no error.
	rate, err := engine.Engagement(ctx, fix.account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate)

	base := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	fix.addPost(t, database, "p1", []models.PostMetrics{
		{CollectedAt: base, Likes: 150, Comments: 50},
	})
	require.NoError(t, metrics.AppendAccountMetrics(ctx, &models.AccountMetrics{
		AccountID: fix.account.ID, CollectedAt: base, FollowerCount: 10000,
	}))

	rate, err = engine.Engagement(ctx, fix.account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, rate)
}

func TestTopPosts_OrderingAndTieBreak(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	fix := seedFixture(t, database, "youtube", "channel", 0)
	other := seedFixture(t, database, "tiktok", "other", 0)
	base := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	fix.addPost(t, database, "low", []models.PostMetrics{
		{CollectedAt: base, Views: 10, Likes: 100},
	})
	fix.addPost(t, database, "high", []models.PostMetrics{
		{CollectedAt: base, Views: 500, Likes: 1},
	})
	// Same views as "high", fewer likes: ranks below it.
	fix.addPost(t, database, "tied", []models.PostMetrics{
		{CollectedAt: base, Views: 500, Likes: 0},
	})
	// No snapshots: never ranks.
	fix.addPost(t, database, "silent", nil)

	other.addPost(t, database, "elsewhere", []models.PostMetrics{
		{CollectedAt: base, Views: 9000, Likes: 9000},
	})

	ranked, err := engine.TopPosts(ctx, "youtube", 10)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].Post.PlatformPostID)
	assert.Equal(t, "tied", ranked[1].Post.PlatformPostID)
	assert.Equal(t, "low", ranked[2].Post.PlatformPostID)

	// Cross-platform ranking includes everything; limit truncates.
	all, err := engine.TopPosts(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "elsewhere", all[0].Post.PlatformPostID)
}

func TestAccountTrends_Window(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	fix := seedFixture(t, database, "twitter", "poster", 0)
	metrics := db.NewMetricsRepository(database)

	now := time.Now().UTC()
	for _, daysAgo := range []int{40, 5, 1} {
		require.NoError(t, metrics.AppendAccountMetrics(ctx, &models.AccountMetrics{
			AccountID:     fix.account.ID,
			CollectedAt:   now.AddDate(0, 0, -daysAgo),
			FollowerCount: int64(daysAgo),
		}))
	}

	trends, err := engine.AccountTrends(ctx, fix.account.ID, 30)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	// Oldest first within the window.
	assert.Equal(t, int64(5), trends[0].FollowerCount)
	assert.Equal(t, int64(1), trends[1].FollowerCount)
}

func TestDailyRollup_GroupsByDay(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	fix := seedFixture(t, database, "instagram", "daily", 0)
	now := time.Now().UTC()
	dayOne := now.AddDate(0, 0, -2).Truncate(24 * time.Hour).Add(12 * time.Hour)
	dayTwo := now.AddDate(0, 0, -1).Truncate(24 * time.Hour).Add(12 * time.Hour)

	fix.addPost(t, database, "p1", []models.PostMetrics{
		{CollectedAt: dayOne, Views: 10, Likes: 1},
		{CollectedAt: dayOne.Add(time.Minute), Views: 20, Likes: 2},
		{CollectedAt: dayTwo, Views: 40, Likes: 4},
	})

	rollup, err := engine.DailyRollup(ctx, fix.account.ID, 7)
	require.NoError(t, err)
	require.Len(t, rollup, 2)

	assert.Equal(t, dayOne.Format("2006-01-02"), rollup[0].Date)
	assert.Equal(t, int64(2), rollup[0].Snapshots)
	assert.Equal(t, int64(30), rollup[0].Views)
	assert.Equal(t, int64(3), rollup[0].Likes)
	assert.Equal(t, int64(40), rollup[1].Views)
}

func TestSummary_CountsPerPlatform(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	fix := seedFixture(t, database, "instagram", "one", 500)
	seedFixture(t, database, "instagram", "two", 300)
	base := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	fix.addPost(t, database, "p1", []models.PostMetrics{
		{CollectedAt: base, Views: 1},
		{CollectedAt: base.Add(time.Hour), Views: 2},
	})
	metrics := db.NewMetricsRepository(database)
	require.NoError(t, metrics.AppendAccountMetrics(ctx, &models.AccountMetrics{
		AccountID: fix.account.ID, CollectedAt: base, FollowerCount: 500,
	}))

	summary, err := engine.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, len(models.Platforms))

	byPlatform := make(map[string]PlatformSummary, len(summary))
	for _, s := range summary {
		byPlatform[s.Platform] = s
	}
	insta := byPlatform["instagram"]
	assert.Equal(t, int64(2), insta.Accounts)
	assert.Equal(t, int64(1), insta.Posts)
	assert.Equal(t, int64(2), insta.Snapshots)
	assert.Equal(t, int64(800), insta.Followers)
	require.NotNil(t, insta.LastCollected)
	assert.WithinDuration(t, base, *insta.LastCollected, time.Second)
	assert.Zero(t, byPlatform["twitter"].Accounts)
	assert.Nil(t, byPlatform["twitter"].LastCollected)
}

func TestCheckIntegrity_CleanStore(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	fix := seedFixture(t, database, "instagram", "clean", 0)
	fix.addPost(t, database, "p1", []models.PostMetrics{
		{CollectedAt: time.Now().UTC(), Views: 1},
	})

	report, err := engine.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.OrphanPosts)
	assert.Zero(t, report.OrphanPostMetrics)
	assert.Zero(t, report.OrphanAccountMetrics)
}

func TestCheckIntegrity_FindsOrphans(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	// Write orphan rows directly, bypassing the repositories.
	require.NoError(t, database.Create(&models.PostMetrics{
		PostID: 999, CollectedAt: time.Now().UTC(),
	}).Error)
	require.NoError(t, database.Create(&models.Post{
		AccountID: 999, Platform: "instagram", PlatformPostID: "orphan",
		CreatedAt: time.Now().UTC(),
	}).Error)

	report, err := engine.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.OrphanPostMetrics)
	assert.Equal(t, int64(1), report.OrphanPosts)
}
