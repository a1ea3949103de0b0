package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-plant-analyzer/internal/analysis"
	"go-plant-analyzer/internal/analyzer"
	"go-plant-analyzer/internal/config"
	apperrors "go-plant-analyzer/internal/errors"
	"go-plant-analyzer/internal/metrics"
	"go-plant-analyzer/internal/observer"
	"go-plant-analyzer/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     5 * time.Second,
		ImageFetchTimeout:  time.Second,
		MaxRequestBodySize: 64 * 1024,
		AllowedOrigins:     []string{"http://localhost:3000"},
	}
}

type funcBackend struct {
	name string
	fn   func(ctx context.Context) (*models.AnalysisResult, error)
}

func (b funcBackend) Name() string { return b.name }

func (b funcBackend) Analyze(ctx context.Context, _ models.ImageInput) (*models.AnalysisResult, error) {
	return b.fn(ctx)
}

func failingBackend(err error) funcBackend {
	return funcBackend{name: "gemini", fn: func(context.Context) (*models.AnalysisResult, error) { return nil, err }}
}

type fakeFetcher struct {
	img models.ImageInput
	err error
	got string
}

func (f *fakeFetcher) FetchImage(_ context.Context, u string) (models.ImageInput, error) {
	f.got = u
	return f.img, f.err
}

type testServer struct {
	orch    *analysis.Orchestrator
	fetcher *fakeFetcher
	handler http.Handler
}

func newTestServer(t *testing.T, backend analyzer.Backend) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	orch := analysis.New(backend, analysis.WithObserver(observer.NewMetricsObserver(m)))
	t.Cleanup(orch.Close)

	fetcher := &fakeFetcher{img: models.ImageInput{Data: pngBytes(t), MIMEType: "image/png", Source: "remote"}}
	h := NewHandler(Dependencies{
		Orchestrator: orch,
		Sources:      fetcher,
		Gatherer:     reg,
	}, testConfig())
	return &testServer{orch: orch, fetcher: fetcher, handler: h}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "leaf.png")
	require.NoError(t, err)
	part.Write(data)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, "mock", body["backend"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")

	w := s.do(req)

	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}

func TestAnalyzeUpload_MockResult(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))

	w := s.do(uploadRequest(t, "/analyze", pngBytes(t)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, *analyzer.CanonicalResult(), result)
	assert.NotContains(t, w.Body.String(), "rawResponse")
}

func TestAnalyzeUpload_MissingFile(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))

	w := s.do(httptest.NewRequest(http.MethodPost, "/analyze", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "validation", resp.Type)
	assert.Equal(t, "image file is required", resp.Message)
}

func TestAnalyzeUpload_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))

	w := s.do(uploadRequest(t, "/analyze", make([]byte, 128*1024)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "validation", decodeError(t, w).Type)
}

func TestAnalyzeUpload_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		typ     string
		message string
	}{
		{"missing credential", apperrors.NewMissingCredentialError(), http.StatusServiceUnavailable, "missing_credential", "missing credential"},
		{"upstream", apperrors.NewUpstreamError(errors.New("API error (status 500): overloaded")), http.StatusBadGateway, "upstream", "API error (status 500): overloaded"},
		{"unparseable", apperrors.NewUnparseableError(errors.New("eof")), http.StatusUnprocessableEntity, "unparseable", "Failed to parse analysis results"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "analysis timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, failingBackend(tt.err))

			w := s.do(uploadRequest(t, "/analyze", pngBytes(t)))

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, http.StatusText(tt.status), resp.Error)
			assert.Equal(t, tt.typ, resp.Type)
			assert.Equal(t, tt.message, resp.Message)

			state := s.orch.State()
			assert.Equal(t, models.StatusFailed, state.Status)
			assert.Equal(t, "Failed to analyze image: "+tt.message, state.Error)
		})
	}
}

func TestSelectThenSubmit(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))

	w := s.do(uploadRequest(t, "/image", pngBytes(t)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var state models.RequestState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, models.StatusIdle, state.Status)
	assert.True(t, state.HasImage)

	w = s.do(httptest.NewRequest(http.MethodPost, "/analysis", nil))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.orch.Wait(ctx)
	require.NoError(t, err)

	w = s.do(httptest.NewRequest(http.MethodGet, "/analysis", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, models.StatusSucceeded, state.Status)
	assert.Equal(t, analyzer.CanonicalResult(), state.Result)
}

func TestSubmit_WithoutSelection(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))

	w := s.do(httptest.NewRequest(http.MethodPost, "/analysis", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No image selected", decodeError(t, w).Message)
}

func TestSubmit_BusyConflict(t *testing.T) {
	release := make(chan struct{})
	s := newTestServer(t, funcBackend{name: "mock", fn: func(ctx context.Context) (*models.AnalysisResult, error) {
		select {
		case <-release:
			return analyzer.CanonicalResult(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}})
	defer close(release)

	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "/image", pngBytes(t))).Code)
	require.Equal(t, http.StatusAccepted, s.do(httptest.NewRequest(http.MethodPost, "/analysis", nil)).Code)

	w := s.do(httptest.NewRequest(http.MethodPost, "/analysis", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "busy", decodeError(t, w).Type)

	w = s.do(uploadRequest(t, "/image", pngBytes(t)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAnalyzeURL(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))

	req := httptest.NewRequest(http.MethodPost, "/analyze/url", strings.NewReader(`{"url":"https://example.com/leaf.png"}`))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://example.com/leaf.png", s.fetcher.got)
}

func TestAnalyzeURL_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		fetch   error
		status  int
		typ     string
		message string
	}{
		{"missing url", `{}`, nil, http.StatusBadRequest, "validation", "url is required"},
		{"bad scheme", `{"url":"ftp://example.com/leaf.png"}`, nil, http.StatusBadRequest, "validation", "URL scheme not allowed"},
		{"fetch failure", `{"url":"https://example.com/leaf.png"}`, errors.New("client error: status code 404"), http.StatusBadGateway, "network", "Failed to fetch image: client error: status code 404"},
		{"fetch timeout", `{"url":"https://example.com/leaf.png"}`, context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "Image fetch timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, analyzer.NewMockBackend(0))
			s.fetcher.err = tt.fetch

			req := httptest.NewRequest(http.MethodPost, "/analyze/url", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := s.do(req)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.typ, resp.Type)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, models.StatusIdle, s.orch.State().Status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))
	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "/analyze", pngBytes(t))).Code)

	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `plant_analyzer_analyses_total{backend="mock",outcome="succeeded"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := s.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamState(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))
	server := httptest.NewServer(s.handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/analysis/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var state models.RequestState
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, models.StatusIdle, state.Status)
	assert.False(t, state.HasImage)

	_, err = s.orch.Run(context.Background(), models.ImageInput{Data: pngBytes(t), MIMEType: "image/png"})
	require.NoError(t, err)

	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, models.StatusInProgress, state.Status)
	assert.True(t, state.HasImage)
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, models.StatusSucceeded, state.Status)
	assert.Equal(t, analyzer.CanonicalResult(), state.Result)
}

func TestStreamState_RejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, analyzer.NewMockBackend(0))
	server := httptest.NewServer(s.handler)
	defer server.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/analysis/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
