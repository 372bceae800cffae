// Package reddit fetches posts from the public Reddit search API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/prodpulse/prodpulse/internal/models"
)

const platformName = "reddit"

// maxSuggestions caps how many candidate subreddits Suggest returns.
const maxSuggestions = 20

// ClientOptions configures the Reddit client.
type ClientOptions struct {
	// BaseURL is the Reddit API base (default: "https://www.reddit.com").
	BaseURL string
	// UserAgent identifies the client; Reddit throttles generic agents hard.
	UserAgent string
	// RetryMax is the maximum number of HTTP retries (default: 3).
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds).
	Timeout time.Duration
	// RequestsPerMinute caps the request rate (default: 60).
	RequestsPerMinute int
	// PageSize is the number of posts per search (default: 100, Reddit's max).
	PageSize int
}

// Client fetches posts from Reddit's public JSON API.
type Client struct {
	baseURL    string
	userAgent  string
	pageSize   int
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
}

// NewClient creates a Reddit client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.reddit.com"
	}

	if opts.UserAgent == "" {
		opts.UserAgent = "prodpulse/1.0"
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

	if opts.PageSize == 0 {
		opts.PageSize = 100
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &Client{
		baseURL:    opts.BaseURL,
		userAgent:  opts.UserAgent,
		pageSize:   opts.PageSize,
		httpClient: retryClient,
		limiter:    rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1),
	}
}

// Platform returns the platform tag recorded on fetched items.
func (c *Client) Platform() string {
	return platformName
}

// Fetch searches for posts mentioning any product hint since the given time.
func (c *Client) Fetch(ctx context.Context, since time.Time, productHints []string) ([]models.RawItem, error) {
	var items []models.RawItem

	for _, hint := range productHints {
		posts, err := c.search(ctx, hint)
		if err != nil {
			return nil, fmt.Errorf("reddit search %q: %w", hint, err)
		}

		for _, post := range posts {
			createdAt := time.Unix(int64(post.CreatedUTC), 0).UTC()
			if createdAt.Before(since) {
				continue
			}

			text := strings.TrimSpace(post.Title + "\n" + post.SelfText)
			author := post.Author

			items = append(items, models.RawItem{
				Platform:  platformName,
				NativeID:  post.Name,
				Text:      text,
				AuthorRef: &author,
				CreatedAt: createdAt,
			})
		}
	}

	return items, nil
}

// Suggest proposes subreddits worth watching for a product, ranked by how
// much recent search activity mentions it.
func (c *Client) Suggest(ctx context.Context, productName string) ([]string, error) {
	posts, err := c.search(ctx, productName)
	if err != nil {
		return nil, fmt.Errorf("reddit suggest %q: %w", productName, err)
	}

	type subredditStats struct {
		mentions int
		score    int
		comments int
	}

	bySubreddit := map[string]*subredditStats{}

	for _, post := range posts {
		if post.Subreddit == "" {
			continue
		}

		stats := bySubreddit[post.Subreddit]
		if stats == nil {
			stats = &subredditStats{}
			bySubreddit[post.Subreddit] = stats
		}

		stats.mentions++
		stats.score += post.Score
		stats.comments += post.NumComments
	}

	type candidate struct {
		name  string
		score float64
	}

	candidates := make([]candidate, 0, len(bySubreddit))

	for name, stats := range bySubreddit {
		avgScore := float64(stats.score) / float64(stats.mentions)
		candidates = append(candidates, candidate{
			name:  "r/" + name,
			score: float64(stats.mentions)*0.6 + avgScore*0.2 + float64(stats.comments)*0.2,
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

type searchListing struct {
	Data struct {
		Children []struct {
			Data post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

func (c *Client) search(ctx context.Context, query string) ([]post, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "new")
	params.Set("limit", fmt.Sprintf("%d", c.pageSize))

	reqURL := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search failed with status %d: %s", resp.StatusCode, string(body))
	}

	var listing searchListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode search listing: %w", err)
	}

	posts := make([]post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}

	return posts, nil
}
