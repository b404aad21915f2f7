package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// rekognitionAPI is the one SDK method the engine needs. Tests supply a fake.
type rekognitionAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Rekognition uses AWS Rekognition DetectText. Credentials come from the
// default AWS chain (env, shared config, instance role).
type Rekognition struct {
	client rekognitionAPI
}

// NewRekognition loads the default AWS config for the region.
func NewRekognition(ctx context.Context, region string) (*Rekognition, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Rekognition{client: rekognition.NewFromConfig(cfg)}, nil
}

func (r *Rekognition) Name() string { return "rekognition" }

// DetectText joins LINE detections with newlines; WORD detections repeat
// the same text and are skipped.
func (r *Rekognition) DetectText(ctx context.Context, image []byte) (string, error) {
	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	})
	if err != nil {
		return "", fmt.Errorf("rekognition detect text: %w", err)
	}

	var lines []string
	for _, d := range out.TextDetections {
		if d.Type != types.TextTypesLine {
			continue
		}
		lines = append(lines, aws.ToString(d.DetectedText))
	}
	return strings.Join(lines, "\n"), nil
}
