package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/cache"
	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/internal/stats"
)

const statsCacheTTL = 60 * time.Second

func (r *Router) accountTrends(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := r.accounts.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	days := queryInt(c, "days", 30)
	trends, err := r.stats.AccountTrends(c.Request.Context(), id, days)
	if err != nil {
		r.logger.Error("Failed to compute trends", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "days": days, "trends": trends})
}

func (r *Router) accountDaily(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := r.accounts.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	days := queryInt(c, "days", 30)
	rollup, err := r.stats.DailyRollup(c.Request.Context(), id, days)
	if err != nil {
		r.logger.Error("Failed to compute daily rollup", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "days": days, "daily": rollup})
}

func (r *Router) topPosts(c *gin.Context) {
	platform := c.Query("platform")
	if platform != "" && !models.ValidPlatform(platform) {
		respondError(c, NewError(http.StatusBadRequest, "unsupported platform: "+platform))
		return
	}
	limit := queryInt(c, "limit", 10)

	cacheKey := "top-posts:" + cache.HashKey(platform, strconv.Itoa(limit))
	var ranked []stats.RankedPost
	if err := r.cache.GetJSON(cacheKey, &ranked); err == nil {
		c.JSON(http.StatusOK, gin.H{"posts": ranked, "cached": true})
		return
	}

	ranked, err := r.stats.TopPosts(c.Request.Context(), platform, limit)
	if err != nil {
		r.logger.Error("Failed to rank posts", zap.Error(err))
		respondError(c, err)
		return
	}

	if err := r.cache.SetJSON(cacheKey, ranked, statsCacheTTL); err != nil && err != cache.ErrCacheDisabled {
		r.logger.Warn("Failed to cache top posts", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"posts": ranked})
}

func (r *Router) platformStats(c *gin.Context) {
	cacheKey := "stats:summary"
	var summary []stats.PlatformSummary
	if err := r.cache.GetJSON(cacheKey, &summary); err == nil {
		c.JSON(http.StatusOK, gin.H{"platforms": summary, "cached": true})
		return
	}

	summary, err := r.stats.Summary(c.Request.Context())
	if err != nil {
		r.logger.Error("Failed to compute summary", zap.Error(err))
		respondError(c, err)
		return
	}

	if err := r.cache.SetJSON(cacheKey, summary, statsCacheTTL); err != nil && err != cache.ErrCacheDisabled {
		r.logger.Warn("Failed to cache summary", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"platforms": summary})
}

func queryInt(c *gin.Context, name string, defaultValue int) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
