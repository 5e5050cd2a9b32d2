package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/internal/platform"
	"github.com/socialtrack/socialtrack/pkg/config"
	"github.com/socialtrack/socialtrack/pkg/logging"
	"github.com/socialtrack/socialtrack/pkg/telemetry"
)

// clientFactory builds platform clients; swapped out in tests.
type clientFactory func(tag string, platforms *config.PlatformsConfig, timeout time.Duration) (platform.Client, error)

// Runner drives collection: fetch account state and recent posts from a
// platform, resync the account row, and append one snapshot per fetched
// post plus one account snapshot.
type Runner struct {
	config   *config.Config
	accounts *db.AccountRepository
	posts    *db.PostRepository
	metrics  *db.MetricsRepository
	registry *Registry
	factory  clientFactory
	logger   *zap.Logger
}

// NewRunner creates a collection runner over the given database.
func NewRunner(cfg *config.Config, database *db.DB, registry *Registry) *Runner {
	return &Runner{
		config:   cfg,
		accounts: db.NewAccountRepository(database),
		posts:    db.NewPostRepository(database),
		metrics:  db.NewMetricsRepository(database),
		registry: registry,
		factory:  platform.New,
		logger:   logging.WithComponent("collector"),
	}
}

// Registry exposes the attempt registry backing this runner.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// postLimit resolves a per-call post limit, falling back to the
// configured default when the caller passed zero or less.
func (r *Runner) postLimit(requested int) int {
	if requested > 0 {
		return requested
	}
	return r.config.Collector.PostLimit
}

// Collect runs one collection synchronously and returns the finished
// attempt. postLimit caps the number of posts fetched; zero means the
// configured default. Configuration problems (unknown platform, missing
// API key) surface as errors before any attempt is registered.
func (r *Runner) Collect(ctx context.Context, platformTag, username string, postLimit int) (Attempt, error) {
	client, err := r.factory(platformTag, &r.config.Platforms, r.config.Collector.RequestTimeout)
	if err != nil {
		return Attempt{}, err
	}

	attempt := r.registry.Create(platformTag, username)
	r.run(ctx, client, attempt.ID, platformTag, username, r.postLimit(postLimit))

	finished, _ := r.registry.Get(attempt.ID)
	return finished, nil
}

// CollectAsync registers an attempt and runs the collection in the
// background. The returned attempt is still pending.
func (r *Runner) CollectAsync(ctx context.Context, platformTag, username string, postLimit int) (Attempt, error) {
	client, err := r.factory(platformTag, &r.config.Platforms, r.config.Collector.RequestTimeout)
	if err != nil {
		return Attempt{}, err
	}

	attempt := r.registry.Create(platformTag, username)
	go r.run(context.WithoutCancel(ctx), client, attempt.ID, platformTag, username, r.postLimit(postLimit))
	return attempt, nil
}

// SweepAll collects every tracked account sequentially, optionally
// restricted to one platform. Accounts on unconfigured platforms are
// skipped, per-account failures are logged and do not stop the sweep.
// Returns the attempts that ran.
func (r *Runner) SweepAll(ctx context.Context, platformTag string, postLimit int) []Attempt {
	ctx, span := telemetry.StartSpan(ctx, "collector.sweep_all")
	defer span.End()

	accounts, err := r.accounts.List(ctx, platformTag)
	if err != nil {
		r.logger.Error("Failed to list accounts for sweep", zap.Error(err))
		return nil
	}

	attempts := make([]Attempt, 0, len(accounts))
	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}

		attempt, err := r.Collect(ctx, account.Platform, account.Username, postLimit)
		if errors.Is(err, platform.ErrNotConfigured) {
			r.logger.Debug("Skipping unconfigured platform",
				zap.String("platform", account.Platform),
				zap.String("username", account.Username))
			continue
		}
		if err != nil {
			r.logger.Error("Sweep collection failed",
				zap.String("platform", account.Platform),
				zap.String("username", account.Username),
				zap.Error(err))
			continue
		}
		attempts = append(attempts, attempt)
	}

	r.logger.Info("Sweep finished", zap.Int("attempts", len(attempts)))
	return attempts
}

// run executes the attempt state machine. Nothing is written unless the
// account info fetch succeeds.
func (r *Runner) run(ctx context.Context, client platform.Client, attemptID, platformTag, username string, postLimit int) {
	ctx, span := telemetry.StartSpan(ctx, "collector.collect")
	defer span.End()

	logger := r.logger.With(
		zap.String("platform", platformTag),
		zap.String("username", username),
		zap.String("attempt_id", attemptID),
	)

	r.registry.markRunning(attemptID)
	logger.Info("Collection started")

	info, err := client.FetchAccountInfo(ctx, username)
	if err != nil {
		logger.Warn("No account info, aborting collection", zap.Error(err))
		r.registry.markFailed(attemptID, fmt.Errorf("no account info: %w", err))
		return
	}

	fetched, err := client.FetchPosts(ctx, username, postLimit)
	if err != nil {
		// Posts are best effort once the account info is in hand; the run
		// still records the account state.
		logger.Warn("Post fetch failed, recording account only", zap.Error(err))
		fetched = nil
	}

	// A record without a platform post id cannot be keyed; storing it
	// would collapse every such record into one shared row. Drop them
	// before anything derived from the batch is written.
	valid := make([]platform.PostData, 0, len(fetched))
	skipped := 0
	for _, data := range fetched {
		if data.PostID == "" {
			logger.Warn("Skipping post without platform id",
				zap.String("caption", data.Caption))
			skipped++
			continue
		}
		valid = append(valid, data)
	}

	collectedAt := time.Now().UTC()

	account, err := r.accounts.Upsert(ctx, &models.Account{
		Platform:          platformTag,
		Username:          username,
		DisplayName:       info.DisplayName,
		PlatformAccountID: info.AccountID,
		FollowerCount:     info.FollowerCount,
		FollowingCount:    info.FollowingCount,
		PostCount:         info.PostCount,
		Bio:               info.Bio,
	})
	if err != nil {
		logger.Error("Account upsert failed", zap.Error(err))
		r.registry.markFailed(attemptID, err)
		return
	}

	// Account snapshot goes in before any post snapshot so a partially
	// failed run never leaves post rows newer than their account state.
	var totalLikes, totalComments, totalViews int64
	for _, p := range valid {
		totalLikes += p.Likes
		totalComments += p.Comments
		totalViews += p.Views
	}
	err = r.metrics.AppendAccountMetrics(ctx, &models.AccountMetrics{
		AccountID:      account.ID,
		CollectedAt:    collectedAt,
		FollowerCount:  info.FollowerCount,
		FollowingCount: info.FollowingCount,
		PostCount:      info.PostCount,
		TotalLikes:     totalLikes,
		TotalComments:  totalComments,
		TotalViews:     totalViews,
	})
	if err != nil {
		logger.Error("Account snapshot failed", zap.Error(err))
		r.registry.markFailed(attemptID, err)
		return
	}

	collected := 0
	for _, data := range valid {
		if err := r.storePost(ctx, account.ID, platformTag, collectedAt, data); err != nil {
			logger.Warn("Skipping post",
				zap.String("post_id", data.PostID),
				zap.Error(err))
			skipped++
			continue
		}
		collected++
	}

	r.registry.markCompleted(attemptID, len(fetched), collected, skipped)
	logger.Info("Collection finished",
		zap.Int("posts_seen", len(fetched)),
		zap.Int("posts_collected", collected),
		zap.Int("posts_skipped", skipped))
}

func (r *Runner) storePost(ctx context.Context, accountID int64, platformTag string, collectedAt time.Time, data platform.PostData) error {
	post := &models.Post{
		AccountID:      accountID,
		Platform:       platformTag,
		PlatformPostID: data.PostID,
		PostType:       data.PostType,
		Caption:        data.Caption,
		URL:            data.URL,
		ThumbnailURL:   data.ThumbnailURL,
	}
	if data.PublishedAt != nil {
		post.PublishedAt.Time = *data.PublishedAt
		post.PublishedAt.Valid = true
	}

	saved, err := r.posts.Upsert(ctx, post)
	if err != nil {
		return err
	}

	return r.metrics.AppendPostMetrics(ctx, &models.PostMetrics{
		PostID:      saved.ID,
		CollectedAt: collectedAt,
		Views:       data.Views,
		Likes:       data.Likes,
		Comments:    data.Comments,
		Shares:      data.Shares,
		Saves:       data.Saves,
		Plays:       data.Plays,
	})
}
