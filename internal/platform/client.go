package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/pkg/config"
)

var (
	// ErrNotConfigured indicates the platform has no API key configured.
	ErrNotConfigured = errors.New("platform not configured")

	// ErrUnsupportedPlatform indicates the tag names no known platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrAccountNotFound indicates the upstream API knows no such account.
	ErrAccountNotFound = errors.New("account not found")
)

// APIError carries an upstream HTTP failure.
type APIError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Platform, e.StatusCode, e.Body)
}

// AccountInfo is the platform-reported state of an account.
type AccountInfo struct {
	AccountID      string
	DisplayName    string
	FollowerCount  int64
	FollowingCount int64
	PostCount      int64
	Bio            string
}

// PostData is one post as reported by a platform, with the engagement
// counters observed at fetch time.
type PostData struct {
	PostID       string
	PostType     string
	Caption      string
	PublishedAt  *time.Time
	URL          string
	ThumbnailURL string

	Views    int64
	Likes    int64
	Comments int64
	Shares   int64
	Saves    int64
	Plays    int64
}

// Client fetches account state and recent posts from one platform.
type Client interface {
	Platform() string
	FetchAccountInfo(ctx context.Context, username string) (*AccountInfo, error)
	FetchPosts(ctx context.Context, username string, limit int) ([]PostData, error)
}

// New builds a client for the given platform tag. Platforms without an API
// key return ErrNotConfigured.
func New(platform string, platforms *config.PlatformsConfig, timeout time.Duration) (Client, error) {
	if !models.ValidPlatform(platform) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	cfg := platforms.Platform(platform)
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, platform)
	}

	switch platform {
	case models.PlatformInstagram:
		return newInstagramClient(cfg, timeout), nil
	case models.PlatformTikTok:
		return newTikTokClient(cfg, timeout), nil
	case models.PlatformYouTube:
		return newYouTubeClient(cfg, timeout), nil
	case models.PlatformTwitter:
		return newTwitterClient(cfg, timeout), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
}

// newRapidAPIClient builds a resty client preloaded with RapidAPI headers.
func newRapidAPIClient(cfg *config.PlatformConfig, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL("https://"+cfg.APIHost).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("x-rapidapi-key", cfg.APIKey).
		SetHeader("x-rapidapi-host", cfg.APIHost)
}

func apiError(platform string, resp *resty.Response) *APIError {
	body := string(resp.Body())
	if len(body) > 200 {
		body = body[:200]
	}
	return &APIError{Platform: platform, StatusCode: resp.StatusCode(), Body: body}
}
