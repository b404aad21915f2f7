package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs OCR locally through libtesseract. It needs no credentials,
// which makes it the offline option.
type Tesseract struct {
	languages []string
}

func NewTesseract(languages []string) *Tesseract {
	return &Tesseract{languages: languages}
}

func (t *Tesseract) Name() string { return "tesseract" }

// DetectText creates a client per call; gosseract clients are not safe for
// concurrent use.
func (t *Tesseract) DetectText(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(t.languages) > 0 {
		if err := client.SetLanguage(t.languages...); err != nil {
			return "", fmt.Errorf("setting tesseract languages: %w", err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("loading image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
