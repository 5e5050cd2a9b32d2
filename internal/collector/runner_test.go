package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/internal/platform"
	"github.com/socialtrack/socialtrack/pkg/config"
)

type fakeClient struct {
	platform string
	info     *platform.AccountInfo
	infoErr  error
	posts    []platform.PostData
	postsErr error
}

func (f *fakeClient) Platform() string { return f.platform }

func (f *fakeClient) FetchAccountInfo(ctx context.Context, username string) (*platform.AccountInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeClient) FetchPosts(ctx context.Context, username string, limit int) ([]platform.PostData, error) {
	if f.postsErr != nil {
		return nil, f.postsErr
	}
	if len(f.posts) > limit {
		return f.posts[:limit], nil
	}
	return f.posts, nil
}

func newTestRunner(t *testing.T, client *fakeClient) (*Runner, *db.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	database := &db.DB{DB: gdb}
	require.NoError(t, database.Migrate())

	cfg := &config.Config{
		Collector: config.CollectorConfig{
			PostLimit:      20,
			RequestTimeout: 5 * time.Second,
		},
	}

	runner := NewRunner(cfg, database, NewRegistry())
	runner.factory = func(tag string, _ *config.PlatformsConfig, _ time.Duration) (platform.Client, error) {
		if client == nil {
			return nil, platform.ErrNotConfigured
		}
		return client, nil
	}
	return runner, database
}

func publishedAt(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func TestCollect_HappyPath(t *testing.T) {
	client := &fakeClient{
		platform: "instagram",
		info: &platform.AccountInfo{
			AccountID:      "787132",
			DisplayName:    "Nat Geo",
			FollowerCount:  1000,
			FollowingCount: 10,
			PostCount:      2,
			Bio:            "wildlife",
		},
		posts: []platform.PostData{
			{
				PostID:      "p1",
				PostType:    models.PostTypeImage,
				Caption:     "lions",
				PublishedAt: publishedAt("2026-08-01T10:00:00Z"),
				Views:       100, Likes: 10, Comments: 2,
			},
			{
				PostID:   "p2",
				PostType: models.PostTypeReel,
				Views:    500, Likes: 50, Comments: 5, Shares: 3,
			},
		},
	}
	runner, database := newTestRunner(t, client)
	ctx := context.Background()

	attempt, err := runner.Collect(ctx, "instagram", "natgeo", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, attempt.Status)
	assert.Equal(t, 2, attempt.PostsSeen)
	assert.Equal(t, 2, attempt.PostsCollected)
	assert.Zero(t, attempt.PostsSkipped)
	require.NotNil(t, attempt.EndedAt)

	// Account row resynced from the fetched info.
	accounts := db.NewAccountRepository(database)
	account, err := accounts.GetByName(ctx, "instagram", "natgeo")
	require.NoError(t, err)
	assert.Equal(t, "787132", account.PlatformAccountID)
	assert.Equal(t, int64(1000), account.FollowerCount)

	// One account snapshot with post rollups.
	metrics := db.NewMetricsRepository(database)
	accountSnap, err := metrics.LatestAccountMetrics(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), accountSnap.FollowerCount)
	assert.Equal(t, int64(60), accountSnap.TotalLikes)
	assert.Equal(t, int64(600), accountSnap.TotalViews)

	// One snapshot per post.
	posts := db.NewPostRepository(database)
	stored, err := posts.ListByAccount(ctx, account.ID, db.PostListOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, p := range stored {
		_, err := metrics.LatestPostMetrics(ctx, p.ID)
		assert.NoError(t, err)
	}
}

func TestCollect_AccountInfoFailureWritesNothing(t *testing.T) {
	client := &fakeClient{
		platform: "tiktok",
		infoErr:  errors.New("upstream 500"),
		posts: []platform.PostData{
			{PostID: "never-stored"},
		},
	}
	runner, database := newTestRunner(t, client)
	ctx := context.Background()

	attempt, err := runner.Collect(ctx, "tiktok", "ghost", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, attempt.Status)
	assert.Contains(t, attempt.Error, "no account info")

	var accounts, posts, postSnaps, accountSnaps int64
	database.Model(&models.Account{}).Count(&accounts)
	database.Model(&models.Post{}).Count(&posts)
	database.Model(&models.PostMetrics{}).Count(&postSnaps)
	database.Model(&models.AccountMetrics{}).Count(&accountSnaps)
	assert.Zero(t, accounts)
	assert.Zero(t, posts)
	assert.Zero(t, postSnaps)
	assert.Zero(t, accountSnaps)
}

func TestCollect_PostFetchFailureStillRecordsAccount(t *testing.T) {
	client := &fakeClient{
		platform: "youtube",
		info: &platform.AccountInfo{
			AccountID:     "UCabc",
			DisplayName:   "Channel",
			FollowerCount: 42,
		},
		postsErr: errors.New("quota exceeded"),
	}
	runner, database := newTestRunner(t, client)
	ctx := context.Background()

	attempt, err := runner.Collect(ctx, "youtube", "channel", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, attempt.Status)
	assert.Zero(t, attempt.PostsSeen)

	accounts := db.NewAccountRepository(database)
	account, err := accounts.GetByName(ctx, "youtube", "channel")
	require.NoError(t, err)

	metrics := db.NewMetricsRepository(database)
	snap, err := metrics.LatestAccountMetrics(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), snap.FollowerCount)
	assert.Zero(t, snap.TotalLikes)
}

func TestCollect_RepeatRunAppendsSnapshots(t *testing.T) {
	client := &fakeClient{
		platform: "twitter",
		info: &platform.AccountInfo{
			AccountID:     "99",
			FollowerCount: 100,
		},
		posts: []platform.PostData{
			{PostID: "t1", Caption: "first sighting", Likes: 1},
		},
	}
	runner, database := newTestRunner(t, client)
	ctx := context.Background()

	_, err := runner.Collect(ctx, "twitter", "poster", 0)
	require.NoError(t, err)

	// Second run: post fields change upstream, counters grow.
	client.info.FollowerCount = 150
	client.posts[0].Caption = "edited upstream"
	client.posts[0].Likes = 9

	_, err = runner.Collect(ctx, "twitter", "poster", 0)
	require.NoError(t, err)

	accounts := db.NewAccountRepository(database)
	account, err := accounts.GetByName(ctx, "twitter", "poster")
	require.NoError(t, err)
	assert.Equal(t, int64(150), account.FollowerCount)

	posts := db.NewPostRepository(database)
	stored, err := posts.ListByAccount(ctx, account.ID, db.PostListOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	// Post row frozen at first sighting.
	assert.Equal(t, "first sighting", stored[0].Caption)

	metrics := db.NewMetricsRepository(database)
	history, err := metrics.PostMetricsHistory(ctx, stored[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].Likes)
	assert.Equal(t, int64(9), history[1].Likes)
}

func TestCollect_MalformedPostsSkipped(t *testing.T) {
	// Two records arrive without a platform post id. They must be counted
	// as skipped, not collapsed into a shared row.
	posts := make([]platform.PostData, 0, 10)
	for i := 0; i < 8; i++ {
		posts = append(posts, platform.PostData{
			PostID:   fmt.Sprintf("p%d", i),
			PostType: models.PostTypeImage,
			Likes:    int64(i),
		})
	}
	posts = append(posts,
		platform.PostData{Caption: "no id", Likes: 999},
		platform.PostData{Caption: "also no id", Views: 42},
	)

	client := &fakeClient{
		platform: "instagram",
		info:     &platform.AccountInfo{AccountID: "55", FollowerCount: 10},
		posts:    posts,
	}
	runner, database := newTestRunner(t, client)
	ctx := context.Background()

	attempt, err := runner.Collect(ctx, "instagram", "patchy", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, attempt.Status)
	assert.Equal(t, 10, attempt.PostsSeen)
	assert.Equal(t, 8, attempt.PostsCollected)
	assert.Equal(t, 2, attempt.PostsSkipped)

	accounts := db.NewAccountRepository(database)
	account, err := accounts.GetByName(ctx, "instagram", "patchy")
	require.NoError(t, err)

	repo := db.NewPostRepository(database)
	stored, err := repo.ListByAccount(ctx, account.ID, db.PostListOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 8)
	for _, p := range stored {
		assert.NotEmpty(t, p.PlatformPostID)
	}
}

func TestCollect_PostLimitOverridesDefault(t *testing.T) {
	client := &fakeClient{
		platform: "tiktok",
		info:     &platform.AccountInfo{AccountID: "7", FollowerCount: 3},
		posts: []platform.PostData{
			{PostID: "v1"}, {PostID: "v2"}, {PostID: "v3"},
			{PostID: "v4"}, {PostID: "v5"},
		},
	}
	runner, _ := newTestRunner(t, client)
	ctx := context.Background()

	attempt, err := runner.Collect(ctx, "tiktok", "dancer", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, attempt.PostsSeen)
	assert.Equal(t, 2, attempt.PostsCollected)

	// Zero falls back to the configured default, which covers all five.
	attempt, err = runner.Collect(ctx, "tiktok", "dancer", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, attempt.PostsSeen)
}

func TestCollect_UnconfiguredPlatform(t *testing.T) {
	runner, _ := newTestRunner(t, nil)

	_, err := runner.Collect(context.Background(), "instagram", "whoever", 0)
	assert.ErrorIs(t, err, platform.ErrNotConfigured)
	assert.Empty(t, runner.Registry().List())
}

func TestSweepAll_CollectsEveryAccount(t *testing.T) {
	client := &fakeClient{
		platform: "instagram",
		info:     &platform.AccountInfo{AccountID: "1", FollowerCount: 5},
	}
	runner, database := newTestRunner(t, client)
	ctx := context.Background()

	accounts := db.NewAccountRepository(database)
	for _, username := range []string{"a", "b", "c"} {
		_, err := accounts.Upsert(ctx, &models.Account{Platform: "instagram", Username: username})
		require.NoError(t, err)
	}

	attempts := runner.SweepAll(ctx, "", 0)
	require.Len(t, attempts, 3)
	for _, a := range attempts {
		assert.Equal(t, StatusCompleted, a.Status)
	}
}

func TestSweepAll_PlatformFilter(t *testing.T) {
	client := &fakeClient{
		platform: "twitter",
		info:     &platform.AccountInfo{AccountID: "2", FollowerCount: 1},
	}
	runner, database := newTestRunner(t, client)
	ctx := context.Background()

	accounts := db.NewAccountRepository(database)
	seed := []models.Account{
		{Platform: "instagram", Username: "ig1"},
		{Platform: "twitter", Username: "tw1"},
		{Platform: "twitter", Username: "tw2"},
	}
	for i := range seed {
		_, err := accounts.Upsert(ctx, &seed[i])
		require.NoError(t, err)
	}

	attempts := runner.SweepAll(ctx, "twitter", 0)
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		assert.Equal(t, "twitter", a.Platform)
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	first := registry.Create("instagram", "one")
	second := registry.Create("tiktok", "two")

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StatusPending, first.Status)

	got, ok := registry.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, "one", got.Username)

	_, ok = registry.Get("no-such-id")
	assert.False(t, ok)

	registry.markRunning(first.ID)
	registry.markCompleted(first.ID, 5, 4, 1)
	got, _ = registry.Get(first.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 4, got.PostsCollected)
	assert.NotNil(t, got.EndedAt)

	registry.markFailed(second.ID, errors.New("boom"))
	got, _ = registry.Get(second.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	// Newest first.
	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}
