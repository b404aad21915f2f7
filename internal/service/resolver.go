package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/model"
	"github.com/fleveque/menu-service/internal/provider"
)

// ResolveErrorKind classifies why an image could not be resolved.
type ResolveErrorKind string

const (
	KindInvalidInput     ResolveErrorKind = "invalid_input"
	KindUpstreamStatus   ResolveErrorKind = "upstream_status"
	KindUnsupportedMedia ResolveErrorKind = "unsupported_media"
	KindNotFound         ResolveErrorKind = "not_found"
	KindNetwork          ResolveErrorKind = "network"
	KindTooLarge         ResolveErrorKind = "too_large"
	KindInternal         ResolveErrorKind = "internal"
)

// ResolveError carries the HTTP status the proxy should answer with.
type ResolveError struct {
	Kind    ResolveErrorKind
	Status  int
	Message string
	Err     error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ResolveError) Unwrap() error { return e.Err }

func resolveErr(kind ResolveErrorKind, status int, err error, format string, args ...any) *ResolveError {
	return &ResolveError{Kind: kind, Status: status, Message: fmt.Sprintf(format, args...), Err: err}
}

// ImageResolver turns a URL into image bytes. If the URL serves HTML, the
// page's og:image (or twitter:image) is fetched instead. At most two fetches
// happen per call: the page, then the image it names.
type ImageResolver struct {
	fetcher *provider.Fetcher
	logger  *zap.Logger
}

func NewImageResolver(fetcher *provider.Fetcher, logger *zap.Logger) *ImageResolver {
	return &ImageResolver{fetcher: fetcher, logger: logger}
}

// Resolve returns the image behind rawURL. Errors are always *ResolveError.
func (r *ImageResolver) Resolve(ctx context.Context, rawURL string) (*model.ResolvedImage, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	// Hop 1: the URL we were given.
	page, err := r.fetch(ctx, target.String())
	if err != nil {
		return nil, err
	}
	if isImage(page.ContentType) {
		return resolved(page), nil
	}
	if !isHTML(page.ContentType) {
		return nil, unsupported(page.ContentType)
	}

	pageURL, err := url.Parse(page.URL)
	if err != nil {
		pageURL = target
	}

	imageURL, err := r.extractImageURL(page.Body, pageURL)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("resolved page to image",
		zap.String("page", page.URL),
		zap.String("image", imageURL),
	)

	// Hop 2: the image the page declared. Anything but an image is rejected;
	// HTML is never parsed a second time.
	img, err := r.fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	if !isImage(img.ContentType) {
		return nil, unsupported(img.ContentType)
	}
	return resolved(img), nil
}

func parseTarget(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, resolveErr(KindInvalidInput, http.StatusBadRequest, nil, "image_url is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, resolveErr(KindInvalidInput, http.StatusBadRequest, err, "invalid image_url")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, resolveErr(KindInvalidInput, http.StatusBadRequest, nil,
			"image_url must be an absolute http(s) URL: %s", rawURL)
	}
	return u, nil
}

// fetch runs one hop and maps transport and status failures to ResolveErrors.
func (r *ImageResolver) fetch(ctx context.Context, target string) (*provider.FetchResult, error) {
	res, err := r.fetcher.Fetch(ctx, target)
	if err != nil {
		if errors.Is(err, provider.ErrBodyTooLarge) {
			return nil, resolveErr(KindTooLarge, http.StatusBadGateway, err, "upstream response too large")
		}
		r.logger.Warn("proxy fetch failed", zap.String("url", target), zap.Error(err))
		return nil, resolveErr(KindNetwork, http.StatusBadGateway, err, "failed to fetch %s", target)
	}

	if !res.OK() {
		status := res.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return nil, resolveErr(KindUpstreamStatus, status, nil,
			"upstream returned status %d for %s", res.StatusCode, target)
	}
	return res, nil
}

// metaImageSelectors are tried in order; the first tag with non-empty content wins.
var metaImageSelectors = []string{
	`meta[property="og:image"]`,
	`meta[name="twitter:image"]`,
}

func (r *ImageResolver) extractImageURL(body []byte, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", resolveErr(KindInternal, http.StatusInternalServerError, err, "parsing page")
	}

	var found string
	for _, sel := range metaImageSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = strings.TrimSpace(s.AttrOr("content", ""))
			return found == ""
		})
		if found != "" {
			break
		}
	}
	if found == "" {
		return "", resolveErr(KindNotFound, http.StatusNotFound, nil,
			"no og:image or twitter:image found on %s", base)
	}

	ref, err := url.Parse(found)
	if err != nil {
		return "", resolveErr(KindNotFound, http.StatusNotFound, err, "page declares an invalid image URL")
	}
	// Relative and protocol-relative references take what they lack from the page URL.
	if ref.Scheme == "" || ref.Host == "" {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", resolveErr(KindNotFound, http.StatusNotFound, nil,
			"page declares a non-http image URL: %s", found)
	}
	return ref.String(), nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// isHTML matches by prefix, like isImage, so it does not depend on the
// fetcher having stripped parameters such as "; charset=utf-8".
func isHTML(contentType string) bool {
	return strings.HasPrefix(contentType, "text/html") || strings.HasPrefix(contentType, "application/xhtml+xml")
}

func unsupported(contentType string) *ResolveError {
	if contentType == "" {
		contentType = "unknown"
	}
	return resolveErr(KindUnsupportedMedia, http.StatusUnsupportedMediaType, nil,
		"unsupported content type: %s", contentType)
}

func resolved(res *provider.FetchResult) *model.ResolvedImage {
	return &model.ResolvedImage{
		ContentType: res.ContentType,
		Data:        res.Body,
		SourceURL:   res.URL,
	}
}
