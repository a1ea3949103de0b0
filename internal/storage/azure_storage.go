package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"go-plant-analyzer/pkg/models"
)

const blobHostSuffix = ".blob.core.windows.net"

type azureStorage struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureStorage creates a fetcher for blobs in the given storage account,
// authenticated with the shared account key.
func NewAzureStorage(accountName, accountKey string, maxBytes int64) (ImageFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s%s/", accountName, blobHostSuffix),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &azureStorage{client: client, maxBytes: maxBytes}, nil
}

// FetchImage downloads https://<account>.blob.core.windows.net/<container>/<blob>.
func (s *azureStorage) FetchImage(ctx context.Context, blobURL string) (models.ImageInput, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return models.ImageInput{}, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return models.ImageInput{}, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	data, err := readLimited(body, s.maxBytes)
	if err != nil {
		return models.ImageInput{}, err
	}

	declared := ""
	if resp.ContentType != nil {
		declared = *resp.ContentType
	}
	return models.ImageInput{
		Data:     data,
		MIMEType: DetectMIMEType(data, declared),
		Source:   blobURL,
	}, nil
}

// ParseBlobURL splits a blob URL into container and blob name.
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	parsedURL, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	path := strings.TrimPrefix(parsedURL.Path, "/")
	container, blob, ok := strings.Cut(path, "/")
	if !ok || container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob URL: %q needs /<container>/<blob>", blobURL)
	}
	return container, blob, nil
}

// IsBlobURL reports whether u points at Azure Blob Storage.
func IsBlobURL(u string) bool {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsedURL.Hostname()), blobHostSuffix)
}
