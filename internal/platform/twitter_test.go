package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/socialtrack/socialtrack/internal/models"
	"github.com/socialtrack/socialtrack/pkg/logging"
)

func TestFlexInt_Unmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{name: "number", input: `123`, expected: 123},
		{name: "string number", input: `"456"`, expected: 456},
		{name: "empty string", input: `""`, expected: 0},
		{name: "null", input: `null`, expected: 0},
		{name: "float string", input: `"1500.0"`, expected: 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f flexInt
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.input, err)
			}
			if int64(f) != tt.expected {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.input, f, tt.expected)
			}
		})
	}
}

func TestTwitterTimeFormat(t *testing.T) {
	parsed, err := time.Parse(twitterTimeFormat, "Wed Oct 10 20:19:24 +0000 2018")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if parsed.UTC().Format(time.RFC3339) != "2018-10-10T20:19:24Z" {
		t.Errorf("Parse() = %v, want 2018-10-10T20:19:24Z", parsed.UTC())
	}
}

func newTestTwitterClient(serverURL string) *twitterClient {
	return &twitterClient{
		http:   resty.New().SetBaseURL(serverURL).SetTimeout(5 * time.Second),
		logger: logging.WithPlatform(models.PlatformTwitter),
	}
}

func TestTwitterFetchAccountInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/screenname.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("screenname"); got != "jack" {
			t.Errorf("screenname = %q, want jack", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"rest_id": "12",
			"name": "jack",
			"desc": "bluesky",
			"sub_count": "6500000",
			"friends": 4000,
			"statuses_count": 29000
		}`))
	}))
	defer server.Close()

	client := newTestTwitterClient(server.URL)
	info, err := client.FetchAccountInfo(context.Background(), "@jack")
	if err != nil {
		t.Fatalf("FetchAccountInfo() error: %v", err)
	}

	if info.AccountID != "12" {
		t.Errorf("AccountID = %q, want 12", info.AccountID)
	}
	if info.FollowerCount != 6500000 {
		t.Errorf("FollowerCount = %d, want 6500000", info.FollowerCount)
	}
	if info.FollowingCount != 4000 {
		t.Errorf("FollowingCount = %d, want 4000", info.FollowingCount)
	}
	if info.Bio != "bluesky" {
		t.Errorf("Bio = %q, want bluesky", info.Bio)
	}
}

func TestTwitterFetchAccountInfo_NoID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestTwitterClient(server.URL)
	_, err := client.FetchAccountInfo(context.Background(), "nobody")
	if err == nil {
		t.Fatal("FetchAccountInfo() expected error for empty profile")
	}
}

func TestTwitterFetchPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/timeline.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"timeline": [
				{
					"tweet_id": "100",
					"text": "hello",
					"created_at": "Wed Oct 10 20:19:24 +0000 2018",
					"views": "5000",
					"favorites": 10,
					"retweets": 3,
					"replies": 2,
					"quotes": 1,
					"bookmarks": 4
				},
				{
					"id_str": "101",
					"full_text": "second",
					"favorites": 7
				},
				{
					"text": "no id, skipped"
				}
			]
		}`))
	}))
	defer server.Close()

	client := newTestTwitterClient(server.URL)
	posts, err := client.FetchPosts(context.Background(), "jack", 20)
	if err != nil {
		t.Fatalf("FetchPosts() error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("FetchPosts() returned %d posts, want 2", len(posts))
	}

	first := posts[0]
	if first.PostID != "100" {
		t.Errorf("PostID = %q, want 100", first.PostID)
	}
	if first.PostType != models.PostTypeTweet {
		t.Errorf("PostType = %q, want tweet", first.PostType)
	}
	if first.Views != 5000 {
		t.Errorf("Views = %d, want 5000", first.Views)
	}
	// Retweets plus quotes.
	if first.Shares != 4 {
		t.Errorf("Shares = %d, want 4", first.Shares)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2018 {
		t.Errorf("PublishedAt = %v, want 2018 timestamp", first.PublishedAt)
	}

	if posts[1].PostID != "101" || posts[1].Caption != "second" {
		t.Errorf("second post = %+v, want id 101 caption second", posts[1])
	}
}

func TestTwitterFetchPosts_LimitApplied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"timeline": [
			{"tweet_id": "1"}, {"tweet_id": "2"}, {"tweet_id": "3"}
		]}`))
	}))
	defer server.Close()

	client := newTestTwitterClient(server.URL)
	posts, err := client.FetchPosts(context.Background(), "jack", 2)
	if err != nil {
		t.Fatalf("FetchPosts() error: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("FetchPosts() returned %d posts, want 2", len(posts))
	}
}
