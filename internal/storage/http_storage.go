package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-plant-analyzer/pkg/models"
)

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (models.ImageInput, error)
}

// HTTPImageFetcher downloads images over HTTP(S). One attempt per call.
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPImageFetcher creates an HTTP image fetcher that refuses bodies
// larger than maxBytes.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) *HTTPImageFetcher {
	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		maxBytes: maxBytes,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (models.ImageInput, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return models.ImageInput{}, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "Go-Plant-Analyzer/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return models.ImageInput{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := "server"
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = "client"
		}
		return models.ImageInput{}, fmt.Errorf("%s error: status code %d", kind, resp.StatusCode)
	}

	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return models.ImageInput{}, err
	}
	return models.ImageInput{
		Data:     data,
		MIMEType: DetectMIMEType(data, resp.Header.Get("Content-Type")),
		Source:   imageURL,
	}, nil
}

// readLimited reads all of r, failing once more than maxBytes arrive.
// maxBytes <= 0 means no limit.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	return data, nil
}
