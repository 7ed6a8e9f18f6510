// Package videosearch implements the outbound video review provider over a
// YouTube-compatible search API, with an HTML scrape fallback for providers
// that return result pages instead of JSON.
package videosearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/internal/domain/reviews"
	"github.com/apsara-ai/derma/pkg/logger"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// searchResponse is the JSON shape of a YouTube-compatible search API.
type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIKey sets the provider API key sent with each request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithLogger sets the logger used by the client.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// Client searches an external video provider for review content. It
// implements reviews.Provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
}

// New creates a Client against the given provider base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logger.Named("videosearch"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Search queries the provider for up to limit review videos. Rate-limit
// responses map to reviews.ErrRateLimited; other non-2xx statuses map to
// reviews.ErrProviderUnavailable. The caller decides whether failures are
// fatal; here they never are.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.Review, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video search: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("video search: %w", reviews.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("video search status %d: %w", resp.StatusCode, reviews.ErrProviderUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return c.parseHTML(body, limit)
	}
	return c.parseJSON(body, limit)
}

func (c *Client) parseJSON(body []byte, limit int) ([]model.Review, error) {
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	found := make([]model.Review, 0, len(sr.Items))
	for _, item := range sr.Items {
		if item.ID.VideoID == "" {
			continue
		}
		found = append(found, model.Review{
			Title:     item.Snippet.Title,
			URL:       "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Channel:   item.Snippet.ChannelTitle,
			Thumbnail: item.Snippet.Thumbnails.Medium.URL,
		})
		if len(found) == limit {
			break
		}
	}
	return found, nil
}

// parseHTML scrapes a provider results page for video links. Best effort:
// an unparseable page yields an empty result rather than an error.
func (c *Client) parseHTML(body []byte, limit int) ([]model.Review, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	found := make([]model.Review, 0, limit)
	doc.Find("a[href*='watch?v=']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title, _ = sel.Attr("title")
		}
		if title == "" {
			return true
		}
		if strings.HasPrefix(href, "/") {
			href = "https://www.youtube.com" + href
		}

		r := model.Review{Title: title, URL: href}
		if channel, ok := sel.Attr("data-channel"); ok {
			r.Channel = channel
		}
		if thumb, ok := sel.Attr("data-thumbnail"); ok {
			r.Thumbnail = thumb
		}
		found = append(found, r)
		return len(found) < limit
	})
	return found, nil
}
