package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/pkg/config"
	"github.com/socialtrack/socialtrack/pkg/logging"
	"github.com/socialtrack/socialtrack/pkg/telemetry"
)

// youtubeClient talks to the YouTube Data API v3. The API is keyed by
// channel ID, so handles and channel names are resolved first: a channel
// search, then the forHandle lookup as fallback. Raw channel IDs (UC...,
// 24 chars) pass through unresolved.
type youtubeClient struct {
	http   *resty.Client
	logger *zap.Logger
}

func newYouTubeClient(cfg *config.PlatformConfig, timeout time.Duration) *youtubeClient {
	host := cfg.APIHost
	if host == "" {
		host = "www.googleapis.com"
	}
	return &youtubeClient{
		http: resty.New().
			SetBaseURL("https://" + host + "/youtube/v3").
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond).
			SetQueryParam("key", cfg.APIKey),
		logger: logging.WithPlatform(models.PlatformYouTube),
	}
}

func (c *youtubeClient) Platform() string { return models.PlatformYouTube }

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			ChannelID   string `json:"channelId"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Thumbnails  struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

type ytChannelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (c *youtubeClient) resolveChannelID(ctx context.Context, username string) (string, error) {
	if strings.HasPrefix(username, "UC") && len(username) == 24 {
		return username, nil
	}
	handle := strings.TrimPrefix(username, "@")

	var search ytSearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":          "@" + handle,
			"type":       "channel",
			"part":       "snippet",
			"maxResults": "1",
		}).
		SetResult(&search).
		Get("/search")
	if err != nil {
		return "", fmt.Errorf("youtube channel search failed: %w", err)
	}
	if resp.IsError() {
		return "", apiError(models.PlatformYouTube, resp)
	}
	if len(search.Items) > 0 && search.Items[0].Snippet.ChannelID != "" {
		return search.Items[0].Snippet.ChannelID, nil
	}

	var channels ytChannelsResponse
	resp, err = c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"forHandle": handle,
			"part":      "id",
		}).
		SetResult(&channels).
		Get("/channels")
	if err != nil {
		return "", fmt.Errorf("youtube handle lookup failed: %w", err)
	}
	if resp.IsError() {
		return "", apiError(models.PlatformYouTube, resp)
	}
	if len(channels.Items) > 0 {
		return channels.Items[0].ID, nil
	}

	return "", fmt.Errorf("%w: %s", ErrAccountNotFound, username)
}

func (c *youtubeClient) FetchAccountInfo(ctx context.Context, username string) (*AccountInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "youtube.fetch_account_info")
	defer span.End()

	channelID, err := c.resolveChannelID(ctx, username)
	if err != nil {
		return nil, err
	}

	var out ytChannelsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"id":   channelID,
			"part": "snippet,statistics",
		}).
		SetResult(&out).
		Get("/channels")
	if err != nil {
		return nil, fmt.Errorf("youtube channel request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(models.PlatformYouTube, resp)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}

	channel := out.Items[0]
	subscribers, _ := strconv.ParseInt(channel.Statistics.SubscriberCount, 10, 64)
	videos, _ := strconv.ParseInt(channel.Statistics.VideoCount, 10, 64)

	bio := channel.Snippet.Description
	if len(bio) > 500 {
		bio = bio[:500]
	}
	displayName := channel.Snippet.Title
	if displayName == "" {
		displayName = username
	}
	return &AccountInfo{
		AccountID:     channelID,
		DisplayName:   displayName,
		FollowerCount: subscribers,
		// Subscriptions are not exposed by the channel endpoint.
		FollowingCount: 0,
		PostCount:      videos,
		Bio:            bio,
	}, nil
}

type ytVideosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (c *youtubeClient) FetchPosts(ctx context.Context, username string, limit int) ([]PostData, error) {
	ctx, span := telemetry.StartSpan(ctx, "youtube.fetch_posts")
	defer span.End()

	channelID, err := c.resolveChannelID(ctx, username)
	if err != nil {
		return nil, err
	}

	posts := make([]PostData, 0, limit)
	pageToken := ""

	for len(posts) < limit {
		maxResults := limit - len(posts)
		if maxResults > 50 {
			maxResults = 50
		}

		params := map[string]string{
			"channelId":  channelID,
			"part":       "snippet",
			"type":       "video",
			"order":      "date",
			"maxResults": strconv.Itoa(maxResults),
		}
		if pageToken != "" {
			params["pageToken"] = pageToken
		}

		var search ytSearchResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(&search).
			Get("/search")
		if err != nil {
			return nil, fmt.Errorf("youtube video search failed: %w", err)
		}
		if resp.IsError() {
			return nil, apiError(models.PlatformYouTube, resp)
		}
		if len(search.Items) == 0 {
			break
		}

		videoIDs := make([]string, 0, len(search.Items))
		for _, item := range search.Items {
			if item.ID.VideoID != "" {
				videoIDs = append(videoIDs, item.ID.VideoID)
			}
		}

		// One batched statistics call per search page.
		var stats ytVideosResponse
		if len(videoIDs) > 0 {
			resp, err = c.http.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"id":   strings.Join(videoIDs, ","),
					"part": "statistics,snippet,contentDetails",
				}).
				SetResult(&stats).
				Get("/videos")
			if err != nil {
				return nil, fmt.Errorf("youtube video stats failed: %w", err)
			}
			if resp.IsError() {
				return nil, apiError(models.PlatformYouTube, resp)
			}
		}

		byID := make(map[string]struct {
			Views, Likes, Comments int64
		}, len(stats.Items))
		for _, v := range stats.Items {
			views, _ := strconv.ParseInt(v.Statistics.ViewCount, 10, 64)
			likes, _ := strconv.ParseInt(v.Statistics.LikeCount, 10, 64)
			comments, _ := strconv.ParseInt(v.Statistics.CommentCount, 10, 64)
			byID[v.ID] = struct{ Views, Likes, Comments int64 }{views, likes, comments}
		}

		for _, item := range search.Items {
			if len(posts) >= limit {
				break
			}
			videoID := item.ID.VideoID
			if videoID == "" {
				continue
			}

			var publishedAt *time.Time
			if item.Snippet.PublishedAt != "" {
				if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
					t = t.UTC()
					publishedAt = &t
				}
			}

			counters := byID[videoID]
			posts = append(posts, PostData{
				PostID:       videoID,
				PostType:     models.PostTypeVideo,
				Caption:      item.Snippet.Title,
				PublishedAt:  publishedAt,
				URL:          "https://www.youtube.com/watch?v=" + videoID,
				ThumbnailURL: item.Snippet.Thumbnails.High.URL,
				Views:        counters.Views,
				Likes:        counters.Likes,
				Comments:     counters.Comments,
				Plays:        counters.Views,
			})
		}

		if search.NextPageToken == "" {
			break
		}
		pageToken = search.NextPageToken
	}

	c.logger.Debug("Fetched videos", zap.String("username", username), zap.Int("count", len(posts)))
	return posts, nil
}
