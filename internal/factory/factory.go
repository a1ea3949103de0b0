package factory

import (
	"fmt"
	"net/http"
	"time"

	"go-plant-analyzer/internal/analyzer"
	"go-plant-analyzer/internal/config"
	"go-plant-analyzer/internal/gemini"
	"go-plant-analyzer/internal/imageprep"
	"go-plant-analyzer/internal/ollama"
	"go-plant-analyzer/internal/storage"
)

// StorageType represents different types of image sources
type StorageType string

const (
	// HTTPStorage for plain URL downloads
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// BackendFactory builds the configured analysis backend.
type BackendFactory interface {
	CreateBackend(cfg config.Backend) (analyzer.Backend, error)
}

// StorageFactory creates image sources
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
	// CreateRouter combines every configured source.
	CreateRouter() (*storage.SourceRouter, error)
}

type backendFactory struct {
	maxImageDimension int
	httpClient        *http.Client
}

// NewBackendFactory creates a backend factory. Live backends downscale
// images beyond maxImageDimension; 0 disables that.
func NewBackendFactory(maxImageDimension int, httpClient *http.Client) BackendFactory {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &backendFactory{maxImageDimension: maxImageDimension, httpClient: httpClient}
}

func (f *backendFactory) CreateBackend(cfg config.Backend) (analyzer.Backend, error) {
	switch cfg.Kind {
	case config.BackendMock:
		return analyzer.NewMockBackend(cfg.MockDelay), nil
	case config.BackendGemini:
		// An empty key is allowed here; every call then fails with
		// missing credential instead of silently using the mock.
		opts := []gemini.Option{gemini.WithHTTPClient(f.httpClient)}
		if cfg.GeminiBaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.GeminiBaseURL))
		}
		client := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, opts...)
		return analyzer.NewLiveBackend(string(config.BackendGemini), client, f.liveOptions()...), nil
	case config.BackendOllama:
		client, err := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, f.httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return analyzer.NewLiveBackend(string(config.BackendOllama), client, f.liveOptions()...), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %q", cfg.Kind)
	}
}

func (f *backendFactory) liveOptions() []analyzer.LiveOption {
	if d := imageprep.NewDownscaler(f.maxImageDimension); d != nil {
		return []analyzer.LiveOption{analyzer.WithPreparer(d)}
	}
	return nil
}

type storageFactory struct {
	fetchTimeout time.Duration
	maxBytes     int64
	azure        config.AzureConfig
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(fetchTimeout time.Duration, maxBytes int64, azure config.AzureConfig) StorageFactory {
	return &storageFactory{fetchTimeout: fetchTimeout, maxBytes: maxBytes, azure: azure}
}

func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(f.fetchTimeout, f.maxBytes), nil
	case AzureStorage:
		if !f.azure.Enabled() {
			return nil, fmt.Errorf("azure storage is not configured")
		}
		return storage.NewAzureStorage(f.azure.AccountName, f.azure.AccountKey, f.maxBytes)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

func (f *storageFactory) CreateRouter() (*storage.SourceRouter, error) {
	httpFetcher, err := f.CreateStorage(HTTPStorage)
	if err != nil {
		return nil, err
	}
	var blobFetcher storage.ImageFetcher
	if f.azure.Enabled() {
		if blobFetcher, err = f.CreateStorage(AzureStorage); err != nil {
			return nil, err
		}
	}
	return storage.NewSourceRouter(httpFetcher, blobFetcher), nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	BackendFactory BackendFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates both factories from the loaded configuration.
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		BackendFactory: NewBackendFactory(cfg.MaxImageDimension, nil),
		StorageFactory: NewStorageFactory(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize, cfg.Azure),
	}
}
