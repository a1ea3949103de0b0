package factory

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-plant-analyzer/internal/analyzer"
	"go-plant-analyzer/internal/config"
	apperrors "go-plant-analyzer/internal/errors"
	"go-plant-analyzer/pkg/models"
)

var leaf = models.ImageInput{Data: []byte("jpeg"), MIMEType: "image/jpeg"}

func TestCreateBackend_Mock(t *testing.T) {
	b, err := NewBackendFactory(0, nil).CreateBackend(config.Backend{Kind: config.BackendMock})
	require.NoError(t, err)
	assert.Equal(t, "mock", b.Name())

	result, err := b.Analyze(context.Background(), leaf)
	require.NoError(t, err)
	assert.Equal(t, analyzer.CanonicalResult(), result)
}

func TestCreateBackend_GeminiWithoutKeyFailsWithoutNetwork(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	b, err := NewBackendFactory(0, nil).CreateBackend(config.Backend{
		Kind:          config.BackendGemini,
		GeminiModel:   "gemini-1.5-flash",
		GeminiBaseURL: server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini", b.Name())

	_, err = b.Analyze(context.Background(), leaf)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMissingCredential))
	assert.Equal(t, 0, calls)
}

func TestCreateBackend_GeminiUsesBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"no structured data"}]}}]}`))
	}))
	defer server.Close()

	b, err := NewBackendFactory(64, nil).CreateBackend(config.Backend{
		Kind:          config.BackendGemini,
		GeminiAPIKey:  "k",
		GeminiModel:   "gemini-1.5-flash",
		GeminiBaseURL: server.URL,
	})
	require.NoError(t, err)

	result, err := b.Analyze(context.Background(), leaf)
	require.NoError(t, err)
	assert.Equal(t, "no structured data", result.RawResponse)
}

func TestCreateBackend_Ollama(t *testing.T) {
	b, err := NewBackendFactory(0, nil).CreateBackend(config.Backend{
		Kind:        config.BackendOllama,
		OllamaURL:   "http://localhost:11434",
		OllamaModel: "llava",
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama", b.Name())

	_, err = NewBackendFactory(0, nil).CreateBackend(config.Backend{Kind: config.BackendOllama, OllamaURL: "not a url"})
	assert.Error(t, err)
}

func TestCreateBackend_Unknown(t *testing.T) {
	_, err := NewBackendFactory(0, nil).CreateBackend(config.Backend{Kind: "openai"})
	assert.Error(t, err)
}

func TestStorageFactory(t *testing.T) {
	f := NewStorageFactory(time.Second, 1024, config.AzureConfig{})

	httpFetcher, err := f.CreateStorage(HTTPStorage)
	require.NoError(t, err)
	assert.NotNil(t, httpFetcher)

	_, err = f.CreateStorage(AzureStorage)
	assert.Error(t, err)

	_, err = f.CreateStorage("ftp")
	assert.Error(t, err)

	router, err := f.CreateRouter()
	require.NoError(t, err)
	assert.NotNil(t, router)
}

func TestStorageFactory_AzureConfigured(t *testing.T) {
	f := NewStorageFactory(time.Second, 1024, config.AzureConfig{
		AccountName: "plants",
		AccountKey:  base64.StdEncoding.EncodeToString([]byte("not-a-real-key")),
	})

	blob, err := f.CreateStorage(AzureStorage)
	require.NoError(t, err)
	assert.NotNil(t, blob)

	_, err = f.CreateRouter()
	assert.NoError(t, err)
}
