package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/quantcortex/tradepilot/internal/config"
)

const googleNewsVendorName = "google_news"

type googleRSS struct {
	XMLName xml.Name      `xml:"rss"`
	Channel googleChannel `xml:"channel"`
}

type googleChannel struct {
	Title string       `xml:"title"`
	Items []googleItem `xml:"item"`
}

type googleItem struct {
	Title       string       `xml:"title"`
	Link        string       `xml:"link"`
	Description string       `xml:"description"`
	PubDate     string       `xml:"pubDate"`
	Source      googleSource `xml:"source"`
}

type googleSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// GoogleNewsClient serves news through the Google News RSS feed. No
// credentials are required, which makes it the natural tail of a news
// fallback chain.
type GoogleNewsClient struct {
	client *resty.Client
	cache  *CacheManager
	retry  RetryConfig
}

// NewGoogleNewsClient creates a new Google News vendor.
func NewGoogleNewsClient(cfg *config.Config) *GoogleNewsClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "google_news")
	cache := NewCacheManager(cacheDir, 30*time.Minute, cfg.CacheEnabled) // 30 minute cache for news

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	return &GoogleNewsClient{
		client: client,
		cache:  cache,
		retry:  retryFromConfig(cfg),
	}
}

func (gn *GoogleNewsClient) Name() string {
	return googleNewsVendorName
}

// FetchNews gets articles matching the query within the date range.
func (gn *GoogleNewsClient) FetchNews(ctx context.Context, query string, start, end time.Time) (NewsPayload, error) {
	if strings.TrimSpace(query) == "" {
		return NewsPayload{}, NewAPIError(googleNewsVendorName, "empty query", nil)
	}

	cacheKey := map[string]interface{}{
		"query": query,
		"from":  start.Format("2006-01-02"),
		"to":    end.Format("2006-01-02"),
	}
	var cached NewsPayload
	if gn.cache.Get(googleNewsVendorName, "search", cacheKey, &cached) {
		return cached, nil
	}

	search := fmt.Sprintf("%s after:%s before:%s",
		query, start.Format("2006-01-02"), end.AddDate(0, 0, 1).Format("2006-01-02"))
	feedURL := "https://news.google.com/rss/search?q=" + url.QueryEscape(search) + "&hl=en-US&gl=US&ceid=US:en"

	var articles []NewsArticle
	err := WithRetry(ctx, gn.retry, func() error {
		resp, err := gn.client.R().SetContext(ctx).Get(feedURL)
		if err != nil {
			return NewAPIError(googleNewsVendorName, "fetch rss feed", err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
		case http.StatusTooManyRequests:
			return NewRateLimitError(googleNewsVendorName, "rate limit exceeded")
		default:
			return NewAPIError(googleNewsVendorName,
				fmt.Sprintf("unexpected status %d", resp.StatusCode()), nil)
		}

		var feed googleRSS
		if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
			return NewAPIError(googleNewsVendorName, "parse rss feed", err)
		}

		articles = make([]NewsArticle, 0, len(feed.Channel.Items))
		for _, item := range feed.Channel.Items {
			published, err := parseRSSDate(item.PubDate)
			if err != nil {
				continue
			}
			source := item.Source.Text
			if source == "" {
				source = googleNewsVendorName
			}
			articles = append(articles, NewsArticle{
				Title:       stripSourceSuffix(item.Title, source),
				Summary:     stripHTML(item.Description),
				URL:         item.Link,
				Source:      source,
				PublishedAt: published,
			})
		}
		return nil
	})
	if err != nil {
		return NewsPayload{}, err
	}

	payload := BuildNewsPayload(query, start, end, googleNewsVendorName, articles)
	gn.cache.Set(googleNewsVendorName, "search", cacheKey, payload)
	return payload, nil
}

func parseRSSDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse rss date: %s", value)
}

// stripHTML flattens an RSS description to plain text.
func stripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}

// stripSourceSuffix removes the " - Publisher" tail Google appends to
// headlines.
func stripSourceSuffix(title, source string) string {
	suffix := " - " + source
	if strings.HasSuffix(title, suffix) {
		return strings.TrimSuffix(title, suffix)
	}
	return title
}
