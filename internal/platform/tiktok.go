package platform

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/pkg/config"
	"github.com/socialtrack/socialtrack/pkg/logging"
	"github.com/socialtrack/socialtrack/pkg/telemetry"
)

// tiktokClient talks to the TikTok-API23 RapidAPI. Video listing needs the
// user's secUid, which is resolved from /api/user/info and cached for the
// client's lifetime.
type tiktokClient struct {
	http   *resty.Client
	logger *zap.Logger

	mu      sync.Mutex
	secUIDs map[string]string
}

func newTikTokClient(cfg *config.PlatformConfig, timeout time.Duration) *tiktokClient {
	return &tiktokClient{
		http:    newRapidAPIClient(cfg, timeout),
		logger:  logging.WithPlatform(models.PlatformTikTok),
		secUIDs: make(map[string]string),
	}
}

func (c *tiktokClient) Platform() string { return models.PlatformTikTok }

type ttUserInfoResponse struct {
	UserInfo *struct {
		User struct {
			ID        string `json:"id"`
			Nickname  string `json:"nickname"`
			SecUID    string `json:"secUid"`
			Signature string `json:"signature"`
		} `json:"user"`
		Stats struct {
			FollowerCount  int64 `json:"followerCount"`
			FollowingCount int64 `json:"followingCount"`
			VideoCount     int64 `json:"videoCount"`
		} `json:"stats"`
	} `json:"userInfo"`
}

func (c *tiktokClient) FetchAccountInfo(ctx context.Context, username string) (*AccountInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "tiktok.fetch_account_info")
	defer span.End()

	var out ttUserInfoResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("uniqueId", username).
		SetResult(&out).
		Get("/api/user/info")
	if err != nil {
		return nil, fmt.Errorf("tiktok user info request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(models.PlatformTikTok, resp)
	}
	if out.UserInfo == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}

	user := out.UserInfo.User
	if user.SecUID != "" {
		c.mu.Lock()
		c.secUIDs[username] = user.SecUID
		c.mu.Unlock()
	}

	displayName := user.Nickname
	if displayName == "" {
		displayName = username
	}
	return &AccountInfo{
		AccountID:      user.ID,
		DisplayName:    displayName,
		FollowerCount:  out.UserInfo.Stats.FollowerCount,
		FollowingCount: out.UserInfo.Stats.FollowingCount,
		PostCount:      out.UserInfo.Stats.VideoCount,
		Bio:            user.Signature,
	}, nil
}

func (c *tiktokClient) secUID(ctx context.Context, username string) (string, error) {
	c.mu.Lock()
	cached, ok := c.secUIDs[username]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	// A fresh info call populates the cache.
	if _, err := c.FetchAccountInfo(ctx, username); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	secUID, ok := c.secUIDs[username]
	if !ok {
		return "", fmt.Errorf("tiktok user %s has no secUid", username)
	}
	return secUID, nil
}

type ttVideoItem struct {
	ID         string `json:"id"`
	Desc       string `json:"desc"`
	CreateTime int64  `json:"createTime"`
	Video      struct {
		Cover string `json:"cover"`
	} `json:"video"`
	Stats struct {
		PlayCount    int64 `json:"playCount"`
		DiggCount    int64 `json:"diggCount"`
		CommentCount int64 `json:"commentCount"`
		ShareCount   int64 `json:"shareCount"`
		CollectCount int64 `json:"collectCount"`
	} `json:"stats"`
}

type ttPostsPage struct {
	ItemList []ttVideoItem `json:"itemList"`
	HasMore  bool          `json:"hasMore"`
	Cursor   interface{}   `json:"cursor"`
}

type ttPostsResponse struct {
	// Some deployments nest the page under "data".
	Data *ttPostsPage `json:"data"`
	ttPostsPage
}

func (r *ttPostsResponse) page() *ttPostsPage {
	if r.Data != nil {
		return r.Data
	}
	return &r.ttPostsPage
}

func (c *tiktokClient) FetchPosts(ctx context.Context, username string, limit int) ([]PostData, error) {
	ctx, span := telemetry.StartSpan(ctx, "tiktok.fetch_posts")
	defer span.End()

	secUID, err := c.secUID(ctx, username)
	if err != nil {
		return nil, err
	}

	posts := make([]PostData, 0, limit)
	cursor := "0"

	for len(posts) < limit {
		count := limit - len(posts)
		if count > 30 {
			count = 30
		}

		var out ttPostsResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"secUid": secUID,
				"count":  strconv.Itoa(count),
				"cursor": cursor,
			}).
			SetResult(&out).
			Get("/api/user/posts")
		if err != nil {
			return nil, fmt.Errorf("tiktok posts request failed: %w", err)
		}
		if resp.IsError() {
			return nil, apiError(models.PlatformTikTok, resp)
		}

		page := out.page()
		if len(page.ItemList) == 0 {
			break
		}

		for _, item := range page.ItemList {
			if len(posts) >= limit {
				break
			}

			var publishedAt *time.Time
			if item.CreateTime > 0 {
				t := time.Unix(item.CreateTime, 0).UTC()
				publishedAt = &t
			}

			posts = append(posts, PostData{
				PostID:       item.ID,
				PostType:     models.PostTypeVideo,
				Caption:      item.Desc,
				PublishedAt:  publishedAt,
				URL:          fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", username, item.ID),
				ThumbnailURL: item.Video.Cover,
				Views:        item.Stats.PlayCount,
				Likes:        item.Stats.DiggCount,
				Comments:     item.Stats.CommentCount,
				Shares:       item.Stats.ShareCount,
				Saves:        item.Stats.CollectCount,
				Plays:        item.Stats.PlayCount,
			})
		}

		if !page.HasMore {
			break
		}
		cursor = fmt.Sprintf("%v", page.Cursor)
	}

	c.logger.Debug("Fetched videos", zap.String("username", username), zap.Int("count", len(posts)))
	return posts, nil
}
