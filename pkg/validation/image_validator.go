package validation

import (
	"fmt"
	"strings"

	apperrors "go-plant-analyzer/internal/errors"
	"go-plant-analyzer/pkg/models"
)

// ImageValidator rejects payloads that cannot be a photo worth sending to a
// backend.
type ImageValidator struct {
	maxBytes int64
}

// NewImageValidator creates a validator; maxBytes <= 0 disables the size check.
func NewImageValidator(maxBytes int64) *ImageValidator {
	return &ImageValidator{maxBytes: maxBytes}
}

func (v *ImageValidator) ValidateImage(img models.ImageInput) error {
	if img.Empty() {
		return apperrors.NewValidationError("No image selected", nil)
	}
	if v.maxBytes > 0 && int64(len(img.Data)) > v.maxBytes {
		return apperrors.NewValidationError(
			fmt.Sprintf("Image exceeds %d bytes", v.maxBytes), nil)
	}
	// An unknown type is left to the backend; the model may still cope.
	if img.MIMEType != "" && !strings.HasPrefix(img.MIMEType, "image/") {
		return apperrors.NewValidationError(
			fmt.Sprintf("Unsupported media type %q", img.MIMEType), nil)
	}
	return nil
}
