package imageprep

import (
	"bytes"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"go-plant-analyzer/internal/logger"
	"go-plant-analyzer/pkg/models"
)

const defaultJPEGQuality = 85

// Downscaler fits oversized photos into a square bound and re-encodes them as
// JPEG. Payloads it cannot decode are returned unchanged, so the model still
// gets a chance to read them.
type Downscaler struct {
	maxDim  int
	quality int
}

// NewDownscaler returns nil when maxDim <= 0; a nil *Downscaler passes images
// through.
func NewDownscaler(maxDim int) *Downscaler {
	if maxDim <= 0 {
		return nil
	}
	return &Downscaler{maxDim: maxDim, quality: defaultJPEGQuality}
}

func (d *Downscaler) Prepare(img models.ImageInput) models.ImageInput {
	if d == nil || img.Empty() {
		return img
	}

	decoded, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		logger.WithFields(logrus.Fields{
			"source": img.Source,
			"mime":   img.MIMEType,
		}).WithError(err).Debug("Image not decodable, sending unchanged")
		return img
	}

	b := decoded.Bounds()
	if b.Dx() <= d.maxDim && b.Dy() <= d.maxDim {
		return img
	}

	resized := imaging.Fit(decoded, d.maxDim, d.maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(d.quality)); err != nil {
		logger.WithError(err).Warn("Failed to re-encode image, sending original")
		return img
	}

	logger.WithFields(logrus.Fields{
		"source":     img.Source,
		"from_w":     b.Dx(),
		"from_h":     b.Dy(),
		"to_w":       resized.Bounds().Dx(),
		"to_h":       resized.Bounds().Dy(),
		"from_bytes": len(img.Data),
		"to_bytes":   buf.Len(),
	}).Debug("Downscaled image")

	return models.ImageInput{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Source:   img.Source,
	}
}
