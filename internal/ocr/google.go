package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// GoogleVision calls the Cloud Vision images:annotate endpoint with a single
// TEXT_DETECTION feature.
type GoogleVision struct {
	svc *vision.Service
}

// NewGoogleVision builds the engine with an API key. Extra options are appended
// so tests can redirect the endpoint.
func NewGoogleVision(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GoogleVision, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision service: %w", err)
	}
	return &GoogleVision{svc: svc}, nil
}

func (g *GoogleVision) Name() string { return "google" }

func (g *GoogleVision) DetectText(ctx context.Context, image []byte) (string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image: &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{
				{Type: "TEXT_DETECTION", MaxResults: 1},
			},
		}},
	}

	resp, err := g.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("vision annotate: %s (code %d)", r.Error.Message, r.Error.Code)
	}
	// The first annotation holds the whole detected block; the rest are words.
	if len(r.TextAnnotations) == 0 || r.TextAnnotations[0] == nil {
		return "", nil
	}
	return r.TextAnnotations[0].Description, nil
}
