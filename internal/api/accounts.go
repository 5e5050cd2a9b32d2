package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/internal/models"
)

type addAccountRequest struct {
	Platform string `json:"platform" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// addAccount registers an account for tracking. Re-adding an existing
// (platform, username) pair is idempotent and returns the existing row.
func (r *Router) addAccount(c *gin.Context) {
	var req addAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, NewError(http.StatusBadRequest, "platform and username are required"))
		return
	}
	if !models.ValidPlatform(req.Platform) {
		respondError(c, NewError(http.StatusBadRequest, "unsupported platform: "+req.Platform))
		return
	}

	account, err := r.accounts.Upsert(c.Request.Context(), &models.Account{
		Platform: req.Platform,
		Username: req.Username,
	})
	if err != nil {
		r.logger.Error("Failed to add account", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (r *Router) listAccounts(c *gin.Context) {
	platform := c.Query("platform")
	if platform != "" && !models.ValidPlatform(platform) {
		respondError(c, NewError(http.StatusBadRequest, "unsupported platform: "+platform))
		return
	}

	accounts, err := r.accounts.List(c.Request.Context(), platform)
	if err != nil {
		r.logger.Error("Failed to list accounts", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (r *Router) getAccount(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	account, err := r.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	totals, err := r.stats.Totals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	delta, err := r.stats.FollowerDelta(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	engagement, err := r.stats.Engagement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":         account,
		"totals":          totals,
		"follower_delta":  delta,
		"engagement_rate": engagement,
	})
}

// deleteAccount removes the account and all its posts and snapshots.
func (r *Router) deleteAccount(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := r.accounts.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	r.logger.Info("Account deleted", zap.Int64("account_id", id))
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (r *Router) listAccountPosts(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := r.accounts.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	opts, err := postListOptions(c)
	if err != nil {
		respondError(c, err)
		return
	}

	posts, err := r.posts.ListByAccount(c.Request.Context(), id, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	// Join each post with its latest snapshot so callers get live counters.
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	latest, err := r.metrics.LatestPostMetricsBulk(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}

	type postWithMetrics struct {
		Post    models.Post         `json:"post"`
		Metrics *models.PostMetrics `json:"metrics"`
	}
	out := make([]postWithMetrics, len(posts))
	for i, p := range posts {
		out[i] = postWithMetrics{Post: p, Metrics: latest[p.ID]}
	}
	c.JSON(http.StatusOK, gin.H{"posts": out})
}

func (r *Router) postHistory(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	post, err := r.posts.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := r.metrics.PostMetricsHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "history": history})
}

// postListOptions parses the sort/filter query parameters for a post listing.
// Dates are calendar days; date_to is inclusive of the named day.
func postListOptions(c *gin.Context) (db.PostListOptions, error) {
	opts := db.PostListOptions{
		SortBy: c.DefaultQuery("sort", "published_at"),
		Order:  c.DefaultQuery("order", "desc"),
		Limit:  queryInt(c, "limit", 0),
	}
	if opts.SortBy != "published_at" && opts.SortBy != "created_at" {
		return opts, NewError(http.StatusBadRequest, "sort must be published_at or created_at")
	}
	if opts.Order != "asc" && opts.Order != "desc" {
		return opts, NewError(http.StatusBadRequest, "order must be asc or desc")
	}

	if raw := c.Query("date_from"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return opts, NewError(http.StatusBadRequest, "invalid date_from, want YYYY-MM-DD")
		}
		opts.DateFrom = &ts
	}
	if raw := c.Query("date_to"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return opts, NewError(http.StatusBadRequest, "invalid date_to, want YYYY-MM-DD")
		}
		end := ts.AddDate(0, 0, 1)
		opts.DateTo = &end
	}
	return opts, nil
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
