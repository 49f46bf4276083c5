// Package content supplies the content.* template bindings from the
// magazine's article feed.
package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/luminapress/comms-engine/internal/pkg/httpretry"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
)

// Article is one feed item normalized into binding-friendly fields.
type Article struct {
	Title       string
	URL         string
	Author      string
	Summary     string
	ImageURL    string
	Categories  []string
	PublishedAt time.Time
}

// FeedSource fetches the article feed and exposes the latest article as the
// content.* namespace. Results are cached so repeated dispatch runs do not
// hammer the feed endpoint.
type FeedSource struct {
	url      string
	client   *httpretry.RetryClient
	parser   *gofeed.Parser
	cacheTTL time.Duration

	mu        sync.Mutex
	cached    []Article
	fetchedAt time.Time

	now func() time.Time
}

// NewFeedSource builds a feed source over a retrying HTTP client.
func NewFeedSource(url string, client *httpretry.RetryClient, cacheTTL time.Duration) *FeedSource {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &FeedSource{
		url:      url,
		client:   client,
		parser:   gofeed.NewParser(),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Latest returns the most recent articles, newest first, fetching the feed
// if the cache has expired.
func (f *FeedSource) Latest(ctx context.Context, n int) ([]Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached == nil || f.now().Sub(f.fetchedAt) > f.cacheTTL {
		articles, err := f.fetch(ctx)
		if err != nil {
			if f.cached == nil {
				return nil, err
			}
			// Stale cache beats no newsletter content.
			logger.Warn("feed refresh failed, serving cached articles", "url", f.url, "error", err.Error())
		} else {
			f.cached = articles
			f.fetchedAt = f.now()
		}
	}
	if n > len(f.cached) {
		n = len(f.cached)
	}
	return f.cached[:n], nil
}

// Bindings returns the content.* namespace for the latest article plus an
// articles list for templates that iterate.
func (f *FeedSource) Bindings(ctx context.Context) (map[string]interface{}, error) {
	articles, err := f.Latest(ctx, 10)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("feed %s has no items", f.url)
	}

	list := make([]map[string]interface{}, len(articles))
	for i, a := range articles {
		list[i] = articleBindings(a)
	}
	return map[string]interface{}{
		"content":  articleBindings(articles[0]),
		"articles": list,
	}, nil
}

func articleBindings(a Article) map[string]interface{} {
	return map[string]interface{}{
		"title":     a.Title,
		"url":       a.URL,
		"author":    a.Author,
		"summary":   a.Summary,
		"image_url": a.ImageURL,
		"published": a.PublishedAt.Format("January 2, 2006"),
	}
}

func (f *FeedSource) fetch(ctx context.Context) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		articles = append(articles, parseItem(item))
	}
	return articles, nil
}

func parseItem(item *gofeed.Item) Article {
	a := Article{
		Title:      item.Title,
		URL:        item.Link,
		Summary:    stripHTML(item.Description),
		Categories: item.Categories,
	}

	if item.PublishedParsed != nil {
		a.PublishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		a.PublishedAt = *item.UpdatedParsed
	}

	if len(item.Authors) > 0 {
		a.Author = item.Authors[0].Name
	} else if item.Author != nil {
		a.Author = item.Author.Name
	}

	if item.Image != nil {
		a.ImageURL = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") {
				a.ImageURL = enc.URL
				break
			}
		}
	}
	return a
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}
