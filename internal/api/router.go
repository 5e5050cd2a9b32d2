package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/cache"
	"github.com/socialtrack/socialtrack/internal/collector"
	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/internal/stats"
	"github.com/socialtrack/socialtrack/pkg/logging"
)

// Router sets up API routes
type Router struct {
	db       *db.DB
	cache    *cache.Cache
	runner   *collector.Runner
	accounts *db.AccountRepository
	posts    *db.PostRepository
	metrics  *db.MetricsRepository
	stats    *stats.Engine
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache, runner *collector.Runner) *Router {
	return &Router{
		db:       database,
		cache:    redisCache,
		runner:   runner,
		accounts: db.NewAccountRepository(database),
		posts:    db.NewPostRepository(database),
		metrics:  db.NewMetricsRepository(database),
		stats:    stats.NewEngine(database),
		logger:   logging.WithComponent("api-router"),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	api := engine.Group("/api")
	{
		api.GET("/platforms", r.listPlatforms)

		api.GET("/accounts", r.listAccounts)
		api.POST("/accounts", r.addAccount)
		api.GET("/accounts/:id", r.getAccount)
		api.DELETE("/accounts/:id", r.deleteAccount)
		api.GET("/accounts/:id/posts", r.listAccountPosts)
		api.GET("/accounts/:id/trends", r.accountTrends)
		api.GET("/accounts/:id/daily", r.accountDaily)

		api.GET("/posts/:id/history", r.postHistory)

		api.GET("/top-posts", r.topPosts)
		api.GET("/stats", r.platformStats)

		api.POST("/collect/:platform/:username", r.collectOne)
		api.POST("/collect-all", r.collectAll)
		api.GET("/attempts", r.listAttempts)
		api.GET("/attempts/:id", r.getAttempt)
	}
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	if err := r.db.Health(c.Request.Context()); err != nil {
		c.JSON(503, gin.H{
			"status":  "DOWN",
			"service": "socialtrack-api",
		})
		return
	}
	c.JSON(200, gin.H{
		"status":  "OK",
		"service": "socialtrack-api",
	})
}

func (r *Router) listPlatforms(c *gin.Context) {
	c.JSON(200, gin.H{"platforms": models.Platforms})
}
