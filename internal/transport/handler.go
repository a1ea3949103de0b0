package transport

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"go-plant-analyzer/internal/config"
	apperrors "go-plant-analyzer/internal/errors"
	"go-plant-analyzer/internal/logger"
	"go-plant-analyzer/internal/storage"
	"go-plant-analyzer/pkg/models"
	"go-plant-analyzer/pkg/validation"
)

const requestIDHeader = "X-Request-ID"

// Orchestrator is the request lifecycle the handlers drive.
type Orchestrator interface {
	Select(img models.ImageInput) error
	SubmitSelected() error
	Run(ctx context.Context, img models.ImageInput) (*models.AnalysisResult, error)
	State() models.RequestState
	Subscribe() (<-chan models.RequestState, func())
	Backend() string
}

// Dependencies are the collaborators NewHandler wires into routes.
type Dependencies struct {
	Orchestrator Orchestrator
	Sources      storage.ImageFetcher
	URLValidator *validation.URLValidator
	Gatherer     prometheus.Gatherer
}

type AnalyzeURLRequest struct {
	URL string `json:"url" binding:"required"`
}

type handler struct {
	orch         Orchestrator
	sources      storage.ImageFetcher
	urlValidator *validation.URLValidator
	cfg          *config.Config
}

func NewHandler(deps Dependencies, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		cors.New(corsConfig(cfg.AllowedOrigins)),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	h := &handler{
		orch:         deps.Orchestrator,
		sources:      deps.Sources,
		urlValidator: deps.URLValidator,
		cfg:          cfg,
	}
	if h.urlValidator == nil {
		h.urlValidator = validation.NewURLValidator()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.GET("/health", h.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.POST("/image", h.selectImage)
	r.POST("/analysis", h.submitSelected)
	r.GET("/analysis", h.currentState)
	r.GET("/analysis/stream", h.streamState)
	r.POST("/analyze", h.analyzeUpload)
	r.POST("/analyze/url", h.analyzeURL)

	return r
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"backend": h.orch.Backend(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id":  c.GetString("request_id"),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		})
		switch c.Request.URL.Path {
		case "/health", "/metrics":
			entry.Debug("Request handled")
		default:
			entry.Info("Request handled")
		}
	}
}

// respondError writes the AppError taxonomy as {error, type, message}.
func respondError(c *gin.Context, err error) {
	code := apperrors.GetStatusCode(err)

	fields := logrus.Fields{
		"request_id":  c.GetString("request_id"),
		"status_code": code,
		"type":        apperrors.TypeOf(err),
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
	}
	if code >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(fields).Error("Request failed")
	} else {
		logger.WithError(err).WithFields(fields).Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Type:    string(apperrors.TypeOf(err)),
		Message: apperrors.UserMessage(err),
	})
}

// bodyError turns a read failure on the request body into a client error.
func bodyError(err error, what string) *apperrors.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		appErr := apperrors.NewValidationError("Request body too large", err)
		appErr.StatusCode = http.StatusRequestEntityTooLarge
		return appErr
	}
	return apperrors.NewValidationError(what, err)
}
