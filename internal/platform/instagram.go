package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/pkg/config"
	"github.com/socialtrack/socialtrack/pkg/logging"
	"github.com/socialtrack/socialtrack/pkg/telemetry"
)

// instagramClient talks to the Instagram120 RapidAPI. Profile and post
// lookups are POST requests with JSON payloads; posts paginate through the
// page_info end_cursor (maxId).
type instagramClient struct {
	http   *resty.Client
	logger *zap.Logger
}

func newInstagramClient(cfg *config.PlatformConfig, timeout time.Duration) *instagramClient {
	return &instagramClient{
		http:   newRapidAPIClient(cfg, timeout).SetHeader("Content-Type", "application/json"),
		logger: logging.WithPlatform(models.PlatformInstagram),
	}
}

func (c *instagramClient) Platform() string { return models.PlatformInstagram }

type igCount struct {
	Count int64 `json:"count"`
}

type igProfileResponse struct {
	Result struct {
		ID                       interface{} `json:"id"`
		FullName                 string      `json:"full_name"`
		Biography                string      `json:"biography"`
		EdgeFollowedBy           igCount     `json:"edge_followed_by"`
		EdgeFollow               igCount     `json:"edge_follow"`
		EdgeOwnerToTimelineMedia igCount     `json:"edge_owner_to_timeline_media"`
	} `json:"result"`
}

func (c *instagramClient) FetchAccountInfo(ctx context.Context, username string) (*AccountInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "instagram.fetch_account_info")
	defer span.End()

	var out igProfileResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username}).
		SetResult(&out).
		Post("/api/instagram/profile")
	if err != nil {
		return nil, fmt.Errorf("instagram profile request failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	if resp.IsError() {
		return nil, apiError(models.PlatformInstagram, resp)
	}

	displayName := out.Result.FullName
	if displayName == "" {
		displayName = username
	}
	return &AccountInfo{
		AccountID:      fmt.Sprintf("%v", out.Result.ID),
		DisplayName:    displayName,
		FollowerCount:  out.Result.EdgeFollowedBy.Count,
		FollowingCount: out.Result.EdgeFollow.Count,
		PostCount:      out.Result.EdgeOwnerToTimelineMedia.Count,
		Bio:            out.Result.Biography,
	}, nil
}

type igPostsResponse struct {
	Result struct {
		Edges []struct {
			Node struct {
				PK      interface{} `json:"pk"`
				Code    string      `json:"code"`
				Caption *struct {
					Text string `json:"text"`
				} `json:"caption"`
				IsVideo        bool   `json:"is_video"`
				ProductType    string `json:"product_type"`
				TakenAt        int64  `json:"taken_at"`
				ViewCount      int64  `json:"view_count"`
				PlayCount      int64  `json:"play_count"`
				LikeCount      int64  `json:"like_count"`
				CommentCount   int64  `json:"comment_count"`
				ImageVersions2 struct {
					Candidates []struct {
						URL string `json:"url"`
					} `json:"candidates"`
				} `json:"image_versions2"`
			} `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool   `json:"has_next_page"`
			EndCursor   string `json:"end_cursor"`
		} `json:"page_info"`
	} `json:"result"`
}

func (c *instagramClient) FetchPosts(ctx context.Context, username string, limit int) ([]PostData, error) {
	ctx, span := telemetry.StartSpan(ctx, "instagram.fetch_posts")
	defer span.End()

	posts := make([]PostData, 0, limit)
	maxID := ""

	for len(posts) < limit {
		var out igPostsResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]string{"username": username, "maxId": maxID}).
			SetResult(&out).
			Post("/api/instagram/posts")
		if err != nil {
			return nil, fmt.Errorf("instagram posts request failed: %w", err)
		}
		if resp.IsError() {
			return nil, apiError(models.PlatformInstagram, resp)
		}

		edges := out.Result.Edges
		if len(edges) == 0 {
			break
		}

		for _, edge := range edges {
			if len(posts) >= limit {
				break
			}
			node := edge.Node

			postType := models.PostTypeImage
			if node.IsVideo {
				postType = models.PostTypeVideo
			}
			if node.ProductType == "clips" {
				postType = models.PostTypeReel
			}

			caption := ""
			if node.Caption != nil {
				caption = node.Caption.Text
			}

			var publishedAt *time.Time
			if node.TakenAt > 0 {
				t := time.Unix(node.TakenAt, 0).UTC()
				publishedAt = &t
			}

			thumbnail := ""
			if len(node.ImageVersions2.Candidates) > 0 {
				thumbnail = node.ImageVersions2.Candidates[0].URL
			}

			url := ""
			if node.Code != "" {
				url = fmt.Sprintf("https://www.instagram.com/p/%s/", node.Code)
			}

			views := node.ViewCount
			if views == 0 {
				views = node.PlayCount
			}

			posts = append(posts, PostData{
				PostID:       fmt.Sprintf("%v", node.PK),
				PostType:     postType,
				Caption:      caption,
				PublishedAt:  publishedAt,
				URL:          url,
				ThumbnailURL: thumbnail,
				Views:        views,
				Likes:        node.LikeCount,
				Comments:     node.CommentCount,
				Plays:        node.PlayCount,
			})
		}

		if !out.Result.PageInfo.HasNextPage || out.Result.PageInfo.EndCursor == "" {
			break
		}
		maxID = out.Result.PageInfo.EndCursor
	}

	c.logger.Debug("Fetched posts", zap.String("username", username), zap.Int("count", len(posts)))
	return posts, nil
}
