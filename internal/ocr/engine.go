// Package ocr turns menu photos into raw text. Each engine wraps one OCR
// backend behind the same small interface so the menu service does not care
// which one is configured.
package ocr

import (
	"context"
	"errors"
	"time"
)

// Engine extracts the full text of an image. An image with no text yields
// an empty string and a nil error.
type Engine interface {
	DetectText(ctx context.Context, image []byte) (string, error)
	Name() string
}

// ErrNotConfigured is returned when the selected engine lacks credentials.
var ErrNotConfigured = errors.New("OCR provider not configured")

// Unconfigured stands in for an engine whose credentials are missing so the
// failure surfaces per request instead of at startup.
type Unconfigured struct {
	Engine string
}

func (u Unconfigured) Name() string { return u.Engine }

func (u Unconfigured) DetectText(context.Context, []byte) (string, error) {
	return "", ErrNotConfigured
}

// WithTimeout bounds every DetectText call on e. A non-positive d returns e unchanged.
func WithTimeout(e Engine, d time.Duration) Engine {
	if d <= 0 {
		return e
	}
	return timedEngine{Engine: e, timeout: d}
}

type timedEngine struct {
	Engine
	timeout time.Duration
}

func (t timedEngine) DetectText(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Engine.DetectText(ctx, image)
}
