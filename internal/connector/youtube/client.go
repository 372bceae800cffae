// Package youtube fetches video comments via the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/prodpulse/prodpulse/internal/models"
)

const platformName = "youtube"

// Suggest discovery window and caps.
const (
	maxSuggestions      = 20
	discoveryLookback   = 14 * 24 * time.Hour
	discoverySearchSize = 50
)

// ClientOptions configures the YouTube client.
type ClientOptions struct {
	// BaseURL is the Data API base (default: "https://www.googleapis.com/youtube/v3").
	BaseURL string
	// APIKey is the Data API key (required).
	APIKey string
	// RetryMax is the maximum number of HTTP retries (default: 3).
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds).
	Timeout time.Duration
	// RequestsPerMinute caps the request rate (default: 60).
	RequestsPerMinute int
	// VideosPerQuery caps how many videos are scanned per product hint (default: 5).
	VideosPerQuery int
	// CommentsPerVideo caps how many top-level comments are fetched per video (default: 50).
	CommentsPerVideo int
}

// Client fetches comments for videos matching a search query.
type Client struct {
	baseURL          string
	apiKey           string
	videosPerQuery   int
	commentsPerVideo int
	httpClient       *retryablehttp.Client
	limiter          *rate.Limiter
}

// NewClient creates a YouTube client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.googleapis.com/youtube/v3"
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = 60
	}

	if opts.VideosPerQuery == 0 {
		opts.VideosPerQuery = 5
	}

	if opts.CommentsPerVideo == 0 {
		opts.CommentsPerVideo = 50
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &Client{
		baseURL:          opts.BaseURL,
		apiKey:           opts.APIKey,
		videosPerQuery:   opts.VideosPerQuery,
		commentsPerVideo: opts.CommentsPerVideo,
		httpClient:       retryClient,
		limiter:          rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1),
	}
}

// Platform returns the platform tag recorded on fetched items.
func (c *Client) Platform() string {
	return platformName
}

// Fetch searches videos for each product hint and collects their top-level
// comments written since the given time.
func (c *Client) Fetch(ctx context.Context, since time.Time, productHints []string) ([]models.RawItem, error) {
	var items []models.RawItem

	for _, hint := range productHints {
		videoIDs, err := c.searchVideos(ctx, hint, since)
		if err != nil {
			return nil, fmt.Errorf("youtube search %q: %w", hint, err)
		}

		for _, videoID := range videoIDs {
			comments, err := c.listComments(ctx, videoID)
			if err != nil {
				return nil, fmt.Errorf("youtube comments for %s: %w", videoID, err)
			}

			for _, comment := range comments {
				if comment.PublishedAt.Before(since) {
					continue
				}

				author := comment.Author

				items = append(items, models.RawItem{
					Platform:  platformName,
					NativeID:  comment.ID,
					Text:      comment.Text,
					AuthorRef: &author,
					CreatedAt: comment.PublishedAt,
				})
			}
		}
	}

	return items, nil
}

// Suggest proposes channels whose recent videos mention the product, ranked
// by mention count weighted with channel reach.
func (c *Client) Suggest(ctx context.Context, productName string) ([]string, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", productName)
	params.Set("publishedAfter", time.Now().Add(-discoveryLookback).UTC().Format(time.RFC3339))
	params.Set("maxResults", fmt.Sprintf("%d", discoverySearchSize))
	params.Set("key", c.apiKey)

	var resp channelSearchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("youtube suggest %q: %w", productName, err)
	}

	type channelStats struct {
		title    string
		mentions int
		views    int64
		comments int64
	}

	byChannel := map[string]*channelStats{}

	var ids []string

	for _, item := range resp.Items {
		id := item.Snippet.ChannelID
		if id == "" {
			continue
		}

		stats := byChannel[id]
		if stats == nil {
			stats = &channelStats{title: item.Snippet.ChannelTitle}
			byChannel[id] = stats

			ids = append(ids, id)
		}

		stats.mentions++
	}

	if len(ids) > 0 {
		statsParams := url.Values{}
		statsParams.Set("part", "statistics")
		statsParams.Set("id", strings.Join(ids, ","))
		statsParams.Set("key", c.apiKey)

		var statsResp channelStatsResponse
		if err := c.get(ctx, "/channels", statsParams, &statsResp); err != nil {
			return nil, fmt.Errorf("youtube channel stats: %w", err)
		}

		for _, item := range statsResp.Items {
			if stats, ok := byChannel[item.ID]; ok {
				stats.views, _ = strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
				stats.comments, _ = strconv.ParseInt(item.Statistics.CommentCount, 10, 64)
			}
		}
	}

	type candidate struct {
		name  string
		score float64
	}

	candidates := make([]candidate, 0, len(byChannel))

	for id, stats := range byChannel {
		name := stats.title
		if name == "" {
			name = id
		}

		candidates = append(candidates, candidate{
			name:  name,
			score: float64(stats.mentions)*0.5 + float64(stats.views)*0.0001 + float64(stats.comments)*0.2,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}

		return candidates[i].name < candidates[j].name
	})

	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}

	names := make([]string, len(candidates))
	for i, cand := range candidates {
		names[i] = cand.name
	}

	return names, nil
}

type channelSearchResponse struct {
	Items []struct {
		Snippet struct {
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

type channelStatsResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type commentThreadsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextOriginal    string    `json:"textOriginal"`
					AuthorDisplay   string    `json:"authorDisplayName"`
					PublishedAtTime time.Time `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

type comment struct {
	ID          string
	Text        string
	Author      string
	PublishedAt time.Time
}

func (c *Client) searchVideos(ctx context.Context, query string, since time.Time) ([]string, error) {
	params := url.Values{}
	params.Set("part", "id")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("order", "date")
	params.Set("publishedAfter", since.UTC().Format(time.RFC3339))
	params.Set("maxResults", fmt.Sprintf("%d", c.videosPerQuery))
	params.Set("key", c.apiKey)

	var resp searchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}

	return ids, nil
}

func (c *Client) listComments(ctx context.Context, videoID string) ([]comment, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("order", "time")
	params.Set("textFormat", "plainText")
	params.Set("maxResults", fmt.Sprintf("%d", c.commentsPerVideo))
	params.Set("key", c.apiKey)

	var resp commentThreadsResponse
	if err := c.get(ctx, "/commentThreads", params, &resp); err != nil {
		return nil, err
	}

	comments := make([]comment, 0, len(resp.Items))

	for _, item := range resp.Items {
		snippet := item.Snippet.TopLevelComment.Snippet

		comments = append(comments, comment{
			ID:          item.ID,
			Text:        snippet.TextOriginal,
			Author:      snippet.AuthorDisplay,
			PublishedAt: snippet.PublishedAtTime,
		})
	}

	return comments, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
