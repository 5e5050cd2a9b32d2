package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/socialtrack/socialtrack/internal/models"
)

// collectRequest is the optional body for collection endpoints. A zero
// post limit means the configured default.
type collectRequest struct {
	PostLimit int `json:"post_limit"`
}

func bindCollectRequest(c *gin.Context) (collectRequest, error) {
	var req collectRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, NewError(http.StatusBadRequest, "invalid request body")
		}
	}
	if req.PostLimit < 0 {
		return req, NewError(http.StatusBadRequest, "post_limit must not be negative")
	}
	return req, nil
}

// collectOne starts a background collection for one account and returns the
// pending attempt. Poll /api/attempts/:id for the outcome.
func (r *Router) collectOne(c *gin.Context) {
	platform := c.Param("platform")
	username := c.Param("username")

	if !models.ValidPlatform(platform) {
		respondError(c, NewError(http.StatusBadRequest, "unsupported platform: "+platform))
		return
	}
	if username == "" {
		respondError(c, NewError(http.StatusBadRequest, "username is required"))
		return
	}
	req, err := bindCollectRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	attempt, err := r.runner.CollectAsync(c.Request.Context(), platform, username, req.PostLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, attempt)
}

// collectAll sweeps every tracked account synchronously and reports the
// attempts that ran. The sweep can be restricted to one platform.
func (r *Router) collectAll(c *gin.Context) {
	platform := c.Query("platform")
	if platform != "" && !models.ValidPlatform(platform) {
		respondError(c, NewError(http.StatusBadRequest, "unsupported platform: "+platform))
		return
	}
	req, err := bindCollectRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	attempts := r.runner.SweepAll(c.Request.Context(), platform, req.PostLimit)
	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"count":    len(attempts),
	})
}

func (r *Router) listAttempts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"attempts": r.runner.Registry().List()})
}

func (r *Router) getAttempt(c *gin.Context) {
	attempt, ok := r.runner.Registry().Get(c.Param("id"))
	if !ok {
		respondError(c, NewError(http.StatusNotFound, "unknown attempt"))
		return
	}
	c.JSON(http.StatusOK, attempt)
}
