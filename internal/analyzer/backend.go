package analyzer

import (
	"context"

	"go-plant-analyzer/pkg/models"
)

// Backend turns one image into one diagnosis. Implementations are selected by
// configuration, never by probing for a credential at call time.
type Backend interface {
	Analyze(ctx context.Context, img models.ImageInput) (*models.AnalysisResult, error)
	Name() string
}

// InlineImage is an image payload already encoded for transport.
type InlineImage struct {
	MIMEType string
	// Data is standard base64 without a data: prefix.
	Data string
}

// GenerateRequest is one outbound call to a multimodal model: ordered
// instruction segments followed by a single inline image.
type GenerateRequest struct {
	Instructions []string
	Image        InlineImage
}

// GenerativeClient is the provider seam. It returns the model's free text.
type GenerativeClient interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (string, error)
}

// Preparer may rewrite an image before it is encoded (e.g. downscale it).
type Preparer interface {
	Prepare(img models.ImageInput) models.ImageInput
}
