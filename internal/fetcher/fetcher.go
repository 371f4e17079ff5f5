// Package fetcher retrieves web pages and extracts their text as markdown.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "crawlvec/1.0"
	DefaultMaxBytes  = 10 << 20
)

var (
	// ErrUnsupportedContentType is returned for responses that are not HTML or text.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrTooLarge is returned when a response body exceeds the configured limit.
	ErrTooLarge = errors.New("response body too large")
)

// Config controls the HTTP fetcher.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	// RateLimit is the sustained fetches per second across all requests.
	// Zero disables throttling.
	RateLimit float64
}

// HTTPFetcher fetches a single page over HTTP. It does not follow links;
// FetchRequest.MaxDepth is accepted and ignored.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *rate.Limiter
}

func New(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	f := &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
	}
	if cfg.RateLimit > 0 {
		burst := max(1, int(cfg.RateLimit))
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return f
}

// Fetch retrieves req.URL and extracts its title, markdown and plain text.
func (f *HTTPFetcher) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.Page, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, f.maxBytes)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	contentType := resp.Header.Get("Content-Type")
	switch mediaType(contentType) {
	case "text/html", "application/xhtml+xml", "":
		text, err := decodeBody(body, contentType)
		if err != nil {
			return nil, err
		}
		return ParseHTML(finalURL, text)
	case "text/plain", "text/markdown", "text/x-markdown":
		text, err := decodeBody(body, contentType)
		if err != nil {
			return nil, err
		}
		return &domain.Page{URL: finalURL, Markdown: text, CleanedHTML: text}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
}

// decodeBody converts body to UTF-8. A BOM wins over the Content-Type
// charset, which wins over a meta tag. Unlabelled bodies are read as UTF-8
// when valid and as windows-1252 otherwise.
func decodeBody(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(decoded), nil
}

// ParseHTML extracts the title, a markdown rendering and the visible text of
// an HTML document. pageURL resolves relative links.
func ParseHTML(pageURL, body string) (*domain.Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := extractTitle(doc)

	doc.Find(strings.Join(droppedElements, ",")).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	markdown := renderMarkdown(root, pageURL)
	cleaned := collapseWhitespace(root.Text())

	return &domain.Page{
		URL:         pageURL,
		Title:       title,
		Markdown:    markdown,
		CleanedHTML: cleaned,
	}, nil
}

var droppedElements = []string{
	"script", "style", "noscript", "template", "svg", "iframe", "canvas", "head",
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return collapseWhitespace(t)
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return collapseWhitespace(doc.Find("h1").First().Text())
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
