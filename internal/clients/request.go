package clients

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"
	"resty.dev/v3"

	logger "github.com/pwnholic/urltrack/internal"
)

var (
	ErrInvalidURL   = errors.New("invalid preview url")
	ErrPreviewFetch = errors.New("failed to fetch preview")
)

// maxPageBytes caps how much of a page is read when looking for metadata.
const maxPageBytes = 2 << 20

type clientRequest struct {
	Client   *resty.Client
	scraper  ScraperConfig
	sanitize *bluemonday.Policy
}

type HTTPClientOptions struct {
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	Timeout          time.Duration
	UserAgent        string
}

func DefaultHTTPClientOptions() *HTTPClientOptions {
	return &HTTPClientOptions{
		RetryCount:       2,
		RetryWaitTime:    time.Second,
		RetryMaxWaitTime: 3 * time.Second,
		Timeout:          10 * time.Second,
		UserAgent:        "Mozilla/5.0 (compatible; urltrack/1.0; +link-preview)",
	}
}

func NewClientRequest(t *HTTPClientOptions) *clientRequest {
	if t == nil {
		t = DefaultHTTPClientOptions()
	}
	client := resty.New().
		SetRetryCount(t.RetryCount).
		SetRetryWaitTime(t.RetryWaitTime).
		SetRetryMaxWaitTime(t.RetryMaxWaitTime).
		SetTimeout(t.Timeout).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	if t.UserAgent != "" {
		client.SetHeader("User-Agent", t.UserAgent)
	}

	return &clientRequest{
		Client:   client,
		scraper:  DefaultScraperConfig(),
		sanitize: bluemonday.StrictPolicy(),
	}
}

func (c *clientRequest) Close() {
	c.Client.Close()
}

func statusCode(resp *resty.Response) (bool, string) {
	switch resp.StatusCode() {
	case http.StatusTooManyRequests:
		return true, "IP blocked: Too Many Requests (429)"
	case http.StatusForbidden:
		return true, "IP blocked: Forbidden (403)"
	case http.StatusServiceUnavailable:
		return true, "IP blocked: Service Unavailable (503)"
	case http.StatusOK:
		return false, "Status OK"
	}
	return false, "IP not blocked"
}

// NormalizeURL trims the input, defaults the scheme to https and rejects
// anything that is not an absolute http(s) URL.
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: URL cannot be empty", ErrInvalidURL)
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return parsedURL.String(), nil
}

func completeURL(inputURL, defaultHost string) (string, error) {
	if inputURL == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.IsAbs() {
		return inputURL, nil
	}
	if defaultHost == "" {
		return "", fmt.Errorf("host needed for relative url %q", inputURL)
	}
	defaultURL, err := url.Parse(defaultHost)
	if err != nil {
		return "", fmt.Errorf("invalid default host: %v", err)
	}
	if defaultURL.Scheme == "" {
		defaultURL.Scheme = "https"
	}
	resultURL := defaultURL.ResolveReference(parsedURL)
	return resultURL.String(), nil
}

// FetchPreview downloads rawURL and extracts its link-card metadata.
func (c *clientRequest) FetchPreview(ctx context.Context, rawURL string) (*Preview, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	response, err := c.Client.R().SetContext(ctx).Get(target)
	if err != nil {
		logger.Error("Failed to fetch URL %s: %v", target, err)
		return nil, fmt.Errorf("%w: %v", ErrPreviewFetch, err)
	}
	defer response.Body.Close()

	isIPBlocked, reason := statusCode(response)
	if isIPBlocked {
		logger.Warn("BLOCKED: %s (%s)", reason, target)
	} else if response.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrPreviewFetch, target, response.StatusCode())
	}

	contentType := response.Header().Get("Content-Type")
	bodyReader, err := charset.NewReader(io.LimitReader(response.Body, maxPageBytes), contentType)
	if err != nil {
		logger.Error("Failed to create charset reader: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrPreviewFetch, err)
	}

	document, err := goquery.NewDocumentFromReader(bodyReader)
	if err != nil {
		logger.Error("Failed to parse HTML document: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrPreviewFetch, err)
	}

	preview := c.extract(document, target)
	preview.Blocked = isIPBlocked
	logger.Info("Fetched preview for %s: %q", target, preview.Title)
	return preview, nil
}

func (c *clientRequest) extract(document *goquery.Document, pageURL string) *Preview {
	preview := &Preview{
		URL:         pageURL,
		Title:       c.text(document, c.scraper.Title),
		Description: c.text(document, c.scraper.Description),
		SiteName:    c.text(document, c.scraper.SiteName),
		Image:       c.link(document, c.scraper.Image, pageURL),
		Logo:        c.link(document, c.scraper.Logo, pageURL),
	}

	if canonical := c.link(document, c.scraper.CanonicalURL, pageURL); canonical != "" {
		preview.URL = canonical
	}
	if preview.Logo == "" {
		preview.Logo, _ = completeURL("/favicon.ico", pageURL)
	}
	if preview.SiteName == "" {
		if u, err := url.Parse(pageURL); err == nil {
			preview.SiteName = u.Hostname()
		}
	}
	if preview.Title == "" {
		preview.Title = preview.URL
	}
	return preview
}

func (c *clientRequest) first(document *goquery.Document, selectors []Selector) string {
	for _, sel := range selectors {
		var value string
		document.Find(sel.Query).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if sel.Attr == "" {
				value = s.Text()
			} else {
				value, _ = s.Attr(sel.Attr)
			}
			value = strings.TrimSpace(value)
			return value == ""
		})
		if value != "" {
			return value
		}
	}
	return ""
}

// text strips any markup from scraped values and collapses whitespace.
func (c *clientRequest) text(document *goquery.Document, selectors []Selector) string {
	value := html.UnescapeString(c.sanitize.Sanitize(c.first(document, selectors)))
	return strings.Join(strings.Fields(value), " ")
}

func (c *clientRequest) link(document *goquery.Document, selectors []Selector, pageURL string) string {
	href := c.first(document, selectors)
	if href == "" {
		return ""
	}
	result, err := completeURL(href, pageURL)
	if err != nil {
		logger.Debug("Ignoring preview link %q: %v", href, err)
		return ""
	}
	if u, err := url.Parse(result); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return result
}
