package decoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/japaniel/readerer/pkg/readerer"
)

// MaxArticleBytes limits the size of fetched HTML.
const MaxArticleBytes = 10 * 1024 * 1024 // 10 MB

// ArticleFormat is the Format name of fetched web articles.
const ArticleFormat = "Article"

// Fetcher imports web articles.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewFetcher returns a Fetcher with a 30 second timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: 30 * time.Second},
		MaxBytes: MaxArticleBytes,
	}
}

// FetchArticle downloads rawURL and extracts its main article text.
func (f *Fetcher) FetchArticle(ctx context.Context, rawURL string) (Document, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return Document{}, fmt.Errorf("%w: invalid url %q", ErrDecode, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("failed to create request: %w", err)
	}
	// Some sites block the default Go user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("%w: got status code %d", ErrDecode, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = MaxArticleBytes
	}
	if resp.ContentLength > limit {
		return Document{}, fmt.Errorf("%w: content-length %d exceeds limit of %d bytes", ErrDecode, resp.ContentLength, limit)
	}
	// Read one byte past the limit to tell a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Document{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return Document{}, fmt.Errorf("%w: response body exceeded maximum size limit of %d bytes", ErrDecode, limit)
	}

	// Sanitize Ruby tags (remove <rt>...</rt>) to prevent duplicate text
	body = readerer.SanitizeRuby(body)

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return Document{}, fmt.Errorf("%w: failed to extract article: %v", ErrDecode, err)
	}

	doc := Assemble(article.Title, ArticleFormat, []string{article.TextContent})
	doc.URL = rawURL
	return doc, nil
}
