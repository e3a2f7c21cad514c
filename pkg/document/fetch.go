package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultFetchLimit bounds the size of a fetched page.
const DefaultFetchLimit = 10 * 1024 * 1024

// Fetcher loads a chapter published as a web page.
type Fetcher struct {
	Client    *http.Client
	Segmenter Segmenter
	// MaxBytes rejects larger responses; zero means DefaultFetchLimit.
	MaxBytes int64
	// UserAgent overrides the browser-like default some sites require.
	UserAgent string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetch downloads rawURL, isolates the article and segments it.
func (f Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return nil, fmt.Errorf("document: invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("fetch %s: content length %d exceeds limit of %d bytes", rawURL, resp.ContentLength, limit)
	}
	// Read one byte past the limit to tell a full page from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("fetch %s: body exceeds limit of %d bytes", rawURL, limit)
	}

	decoded, err := Decode(body)
	if err != nil {
		return nil, err
	}
	title, text, err := extractHTML(decoded, pageURL)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = strings.TrimSuffix(pageURL.Host+pageURL.Path, "/")
	}

	doc := FileLoader{Segmenter: f.Segmenter}.FromText(title, text)
	doc.Path = rawURL
	doc.Format = "HTML"
	if len(doc.Segments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, rawURL)
	}
	return doc, nil
}
