package analyzer

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	apperrors "go-plant-analyzer/internal/errors"
	"go-plant-analyzer/internal/logger"
	"go-plant-analyzer/pkg/models"
)

// LiveBackend sends the image to a hosted model and normalizes the reply.
// Each call is exactly one attempt.
type LiveBackend struct {
	name     string
	client   GenerativeClient
	preparer Preparer
}

// LiveOption configures a LiveBackend.
type LiveOption func(*LiveBackend)

// WithPreparer rewrites images before they are encoded.
func WithPreparer(p Preparer) LiveOption {
	return func(b *LiveBackend) { b.preparer = p }
}

// NewLiveBackend wraps a provider client. name labels logs and metrics.
func NewLiveBackend(name string, client GenerativeClient, opts ...LiveOption) *LiveBackend {
	b := &LiveBackend{name: name, client: client}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *LiveBackend) Name() string { return b.name }

func (b *LiveBackend) Analyze(ctx context.Context, img models.ImageInput) (*models.AnalysisResult, error) {
	if img.Empty() {
		return nil, apperrors.NewValidationError("image is empty", nil)
	}
	if b.preparer != nil {
		img = b.preparer.Prepare(img)
	}

	text, err := b.client.GenerateContent(ctx, BuildRequest(img))
	if err != nil {
		var appErr *apperrors.AppError
		switch {
		case errors.As(err, &appErr):
			return nil, appErr
		case errors.Is(err, context.DeadlineExceeded):
			return nil, apperrors.NewTimeoutError("analysis timed out", err)
		default:
			return nil, apperrors.NewUpstreamError(err)
		}
	}

	result, err := ParseReply(text)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"backend":    b.name,
			"reply_size": len(text),
		}).Error("Error parsing JSON response")
		return nil, err
	}
	return result, nil
}

// ParseReply converts model free text into a result:
//   - the first complete JSON object becomes the result, absent fields defaulted;
//   - text without any {...} gives DegradedResult carrying the raw text;
//   - {...} that does not decode is an unparseable error.
func ParseReply(text string) (*models.AnalysisResult, error) {
	obj, shaped := extractObject(text)
	if !shaped {
		logger.WithField("reply_size", len(text)).Warn("Model reply contained no JSON object")
		return DegradedResult(text), nil
	}
	if obj == "" {
		return nil, apperrors.NewUnparseableError(errors.New("no complete JSON object in reply"))
	}

	result, missing, err := normalize([]byte(obj))
	if err != nil {
		return nil, apperrors.NewUnparseableError(err)
	}
	if len(missing) > 0 {
		logger.WithField("missing_fields", missing).Debug("Defaulted absent result fields")
	}
	return result, nil
}
