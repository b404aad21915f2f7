package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// GoogleImageSearch queries Google Programmable Search in image mode and
// returns the first result.
type GoogleImageSearch struct {
	svc     *customsearch.Service
	cx      string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGoogleImageSearch creates a searcher for the given API key and engine id (cx).
// timeout bounds each search; zero means no limit beyond the caller's context.
func NewGoogleImageSearch(ctx context.Context, apiKey, cx string, timeout time.Duration, logger *zap.Logger, opts ...option.ClientOption) (*GoogleImageSearch, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating custom search service: %w", err)
	}
	return &GoogleImageSearch{svc: svc, cx: cx, timeout: timeout, logger: logger}, nil
}

func (g *GoogleImageSearch) Name() string { return "google_cse" }

func (g *GoogleImageSearch) SearchImage(ctx context.Context, query string) (*SearchResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.svc.Cse.List().
		Cx(g.cx).
		Q(query).
		SearchType("image").
		ImgType("photo").
		Num(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("custom search: %w", err)
	}

	result := &SearchResult{Query: query}
	if len(resp.Items) == 0 || resp.Items[0] == nil {
		g.logger.Info("image search returned no items", zap.String("query", query))
		return result, nil
	}

	result.URL, result.Field = firstImageURL(resp.Items[0])
	if result.URL == "" {
		g.logger.Warn("image search hit had no usable URL", zap.String("query", query))
	}
	return result, nil
}

// urlExtractor pulls one candidate URL out of a search hit.
type urlExtractor struct {
	field   string
	extract func(*customsearch.Result) string
}

// imageURLExtractors are tried in order; the first non-empty value wins.
var imageURLExtractors = []urlExtractor{
	{"link", func(r *customsearch.Result) string { return r.Link }},
	{"image.thumbnailLink", func(r *customsearch.Result) string {
		if r.Image == nil {
			return ""
		}
		return r.Image.ThumbnailLink
	}},
	{"pagemap.cse_image", func(r *customsearch.Result) string {
		// pagemap is free-form JSON, so a path lookup beats declaring structs for it.
		if len(r.Pagemap) == 0 {
			return ""
		}
		return gjson.GetBytes(r.Pagemap, "cse_image.0.src").String()
	}},
}

func firstImageURL(r *customsearch.Result) (url, field string) {
	for _, e := range imageURLExtractors {
		if u := strings.TrimSpace(e.extract(r)); u != "" {
			return u, e.field
		}
	}
	return "", ""
}
