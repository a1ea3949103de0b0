package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"go-plant-analyzer/internal/analyzer"
)

// Client asks a local Ollama vision model (llava, minicpm-v, ...) to
// describe the plant. The Ollama server needs no credential.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates a client for the server at ollamaURL. Any path on the
// URL is ignored.
func NewClient(ollamaURL, model string, httpClient *http.Client) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs scheme and host", ollamaURL)
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	return &Client{client: api.NewClient(baseURL, httpClient), model: model}, nil
}

// GenerateContent sends one non-streaming chat turn with the image attached.
func (c *Client) GenerateContent(ctx context.Context, req analyzer.GenerateRequest) (string, error) {
	var images []api.ImageData
	if req.Image.Data != "" {
		imgBytes, err := base64.StdEncoding.DecodeString(req.Image.Data)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image: %w", err)
		}
		images = append(images, api.ImageData(imgBytes))
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: strings.Join(req.Instructions, "\n"),
				Images:  images,
			},
		},
		Stream: &stream,
	}

	var sb strings.Builder
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}

	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content, nil
}
