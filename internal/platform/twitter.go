package platform

import (
	"context"
	"encoding/json"
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

// twitterClient talks to the Twitter-API45 RapidAPI. The timeline endpoint
// returns a single page; there is no cursor to walk.
type twitterClient struct {
	http   *resty.Client
	logger *zap.Logger
}

func newTwitterClient(cfg *config.PlatformConfig, timeout time.Duration) *twitterClient {
	return &twitterClient{
		http:   newRapidAPIClient(cfg, timeout),
		logger: logging.WithPlatform(models.PlatformTwitter),
	}
}

func (c *twitterClient) Platform() string { return models.PlatformTwitter }

// flexInt tolerates counters arriving as numbers or strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some counters come back as floats.
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		n = int64(fl)
	}
	*f = flexInt(n)
	return nil
}

type twProfileResponse struct {
	RestID         string  `json:"rest_id"`
	IDStr          string  `json:"id_str"`
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Desc           string  `json:"desc"`
	Description    string  `json:"description"`
	SubCount       flexInt `json:"sub_count"`
	FollowersCount flexInt `json:"followers_count"`
	Friends        flexInt `json:"friends"`
	FriendsCount   flexInt `json:"friends_count"`
	StatusesCount  flexInt `json:"statuses_count"`
}

func (c *twitterClient) FetchAccountInfo(ctx context.Context, username string) (*AccountInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitter.fetch_account_info")
	defer span.End()

	username = strings.TrimPrefix(username, "@")

	var out twProfileResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("screenname", username).
		SetResult(&out).
		Get("/screenname.php")
	if err != nil {
		return nil, fmt.Errorf("twitter profile request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(models.PlatformTwitter, resp)
	}

	accountID := out.RestID
	if accountID == "" {
		accountID = out.IDStr
	}
	if accountID == "" {
		accountID = out.ID
	}
	if accountID == "" {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}

	followers := int64(out.SubCount)
	if followers == 0 {
		followers = int64(out.FollowersCount)
	}
	following := int64(out.Friends)
	if following == 0 {
		following = int64(out.FriendsCount)
	}

	bio := out.Desc
	if bio == "" {
		bio = out.Description
	}
	displayName := out.Name
	if displayName == "" {
		displayName = username
	}
	return &AccountInfo{
		AccountID:      accountID,
		DisplayName:    displayName,
		FollowerCount:  followers,
		FollowingCount: following,
		PostCount:      int64(out.StatusesCount),
		Bio:            bio,
	}, nil
}

type twTweet struct {
	TweetID   string  `json:"tweet_id"`
	IDStr     string  `json:"id_str"`
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	FullText  string  `json:"full_text"`
	CreatedAt string  `json:"created_at"`
	Views     flexInt `json:"views"`
	Favorites flexInt `json:"favorites"`
	Retweets  flexInt `json:"retweets"`
	Replies   flexInt `json:"replies"`
	Quotes    flexInt `json:"quotes"`
	Bookmarks flexInt `json:"bookmarks"`
}

type twTimelineResponse struct {
	Timeline []twTweet `json:"timeline"`
	Tweets   []twTweet `json:"tweets"`
}

// twitterTimeFormat is the classic tweet timestamp layout,
// e.g. "Wed Oct 10 20:19:24 +0000 2018".
const twitterTimeFormat = "Mon Jan 2 15:04:05 -0700 2006"

func (c *twitterClient) FetchPosts(ctx context.Context, username string, limit int) ([]PostData, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitter.fetch_posts")
	defer span.End()

	username = strings.TrimPrefix(username, "@")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("screenname", username).
		Get("/timeline.php")
	if err != nil {
		return nil, fmt.Errorf("twitter timeline request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(models.PlatformTwitter, resp)
	}

	// The endpoint answers with either an object holding a timeline array
	// or a bare array of tweets.
	var timeline []twTweet
	body := resp.Body()
	var out twTimelineResponse
	if err := json.Unmarshal(body, &out); err == nil {
		timeline = out.Timeline
		if len(timeline) == 0 {
			timeline = out.Tweets
		}
	}
	if len(timeline) == 0 {
		var list []twTweet
		if err := json.Unmarshal(body, &list); err == nil {
			timeline = list
		}
	}

	posts := make([]PostData, 0, limit)
	for _, tweet := range timeline {
		if len(posts) >= limit {
			break
		}

		tweetID := tweet.TweetID
		if tweetID == "" {
			tweetID = tweet.IDStr
		}
		if tweetID == "" {
			tweetID = tweet.ID
		}
		if tweetID == "" {
			continue
		}

		text := tweet.Text
		if text == "" {
			text = tweet.FullText
		}

		var publishedAt *time.Time
		if tweet.CreatedAt != "" {
			if t, err := time.Parse(twitterTimeFormat, tweet.CreatedAt); err == nil {
				t = t.UTC()
				publishedAt = &t
			}
		}

		posts = append(posts, PostData{
			PostID:      tweetID,
			PostType:    models.PostTypeTweet,
			Caption:     text,
			PublishedAt: publishedAt,
			URL:         fmt.Sprintf("https://x.com/%s/status/%s", username, tweetID),
			Views:       int64(tweet.Views),
			Likes:       int64(tweet.Favorites),
			Comments:    int64(tweet.Replies),
			// Retweets and quotes both redistribute the tweet.
			Shares: int64(tweet.Retweets) + int64(tweet.Quotes),
			Saves:  int64(tweet.Bookmarks),
			Plays:  int64(tweet.Views),
		})
	}

	c.logger.Debug("Fetched tweets", zap.String("username", username), zap.Int("count", len(posts)))
	return posts, nil
}
