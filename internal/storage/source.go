package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"go-plant-analyzer/pkg/models"
)

// SourceRouter sends blob URLs to the Azure fetcher when one is configured
// and everything else to plain HTTP.
type SourceRouter struct {
	http ImageFetcher
	blob ImageFetcher
}

// NewSourceRouter creates a router. blob may be nil.
func NewSourceRouter(httpFetcher, blobFetcher ImageFetcher) *SourceRouter {
	return &SourceRouter{http: httpFetcher, blob: blobFetcher}
}

func (r *SourceRouter) FetchImage(ctx context.Context, imageURL string) (models.ImageInput, error) {
	if r.blob != nil && IsBlobURL(imageURL) {
		return r.blob.FetchImage(ctx, imageURL)
	}
	return r.http.FetchImage(ctx, imageURL)
}

// FromMultipart reads an uploaded file into an ImageInput.
func FromMultipart(fh *multipart.FileHeader, maxBytes int64) (models.ImageInput, error) {
	f, err := fh.Open()
	if err != nil {
		return models.ImageInput{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f, maxBytes)
	if err != nil {
		return models.ImageInput{}, err
	}
	return models.ImageInput{
		Data:     data,
		MIMEType: DetectMIMEType(data, fh.Header.Get("Content-Type")),
		Source:   fh.Filename,
	}, nil
}

// DetectMIMEType keeps a specific declared type and sniffs the content when
// the declaration is missing or generic.
func DetectMIMEType(data []byte, declared string) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	switch declared {
	case "", "application/octet-stream", "binary/octet-stream":
		return mimetype.Detect(data).String()
	default:
		return declared
	}
}
