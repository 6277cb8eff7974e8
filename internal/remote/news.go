package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/metrics"
)

// feed is the subset of the WordPress JSON API response we read.
type feed struct {
	Posts []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Date    string `json:"date"`
		Excerpt string `json:"excerpt"`
	} `json:"posts"`
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

var dateLayouts = []string{"2006-01-02 15:04:05", time.RFC3339}

// FetchNews downloads and decodes the news feed. Titles and excerpts are
// returned as plain text.
func (c *Client) FetchNews(ctx context.Context) (data.News, error) {
	body, err := c.get(ctx, c.newsURL, maxNewsBytes)
	if err != nil {
		metrics.RemoteFetchErrors.WithLabelValues("news").Inc()
		return nil, err
	}
	var f feed
	if err := json.Unmarshal(body, &f); err != nil {
		metrics.RemoteFetchErrors.WithLabelValues("news").Inc()
		return nil, fmt.Errorf("%w: news feed: %v", ErrBadResponse, err)
	}
	out := make(data.News, 0, len(f.Posts))
	for _, p := range f.Posts {
		title := StripHTML(p.Title)
		if title == "" {
			continue
		}
		out = append(out, data.NewsItem{
			Title:   title,
			URL:     p.URL,
			Date:    parseDate(p.Date),
			Excerpt: StripHTML(p.Excerpt),
		})
	}
	c.log.Debug("news fetched", "items", len(out))
	return out, nil
}

// StripHTML removes markup, decodes entities and collapses whitespace.
func StripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
