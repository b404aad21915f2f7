package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const defaultMaxBody = 15 << 20

// ErrBodyTooLarge is returned when a response body exceeds the fetcher's limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// FetchResult is one completed GET. Non-2xx responses are returned as results
// (with no body) rather than errors so the caller can decide what they mean.
type FetchResult struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string // media type only, lowercased, parameters stripped
	Body        []byte
}

// OK reports whether the upstream answered 2xx.
func (r *FetchResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher downloads pages and images while presenting as a desktop browser.
// Many image hosts refuse obvious bot user agents.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBody   int64
}

// NewFetcher creates a fetcher. timeout applies to each Fetch call, body
// reading included.
func NewFetcher(userAgent string, timeout time.Duration, maxBody int64) *Fetcher {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Fetcher{
		// The default client follows up to 10 redirects.
		client:    &http.Client{},
		userAgent: userAgent,
		timeout:   timeout,
		maxBody:   maxBody,
	}
}

// Fetch performs a single GET. Transport failures (DNS, refused, timeout)
// come back as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	result := &FetchResult{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
	}
	if !result.OK() {
		return result, nil
	}

	// Read one byte past the limit so an exactly-at-limit body still passes.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > f.maxBody {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrBodyTooLarge)
	}

	result.Body = data
	return result, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		// Malformed parameters; keep whatever precedes them.
		mt, _, _ = strings.Cut(header, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
