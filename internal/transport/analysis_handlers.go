package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "go-plant-analyzer/internal/errors"
	"go-plant-analyzer/internal/logger"
	"go-plant-analyzer/internal/storage"
	"go-plant-analyzer/pkg/models"
)

// POST /image: replace the selection.
func (h *handler) selectImage(c *gin.Context) {
	img, err := h.readUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.orch.Select(img); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.orch.State())
}

// POST /analysis: analyze the selection in the background.
func (h *handler) submitSelected(c *gin.Context) {
	if err := h.orch.SubmitSelected(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.orch.State())
}

// GET /analysis
func (h *handler) currentState(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.State())
}

// POST /analyze: analyze an uploaded photo and wait for the result. The
// photo replaces the selection.
func (h *handler) analyzeUpload(c *gin.Context) {
	img, err := h.readUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}
	h.run(c, img)
}

// POST /analyze/url: fetch a photo and analyze it.
func (h *handler) analyzeURL(c *gin.Context) {
	var req AnalyzeURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bodyError(err, "url is required"))
		return
	}
	if err := h.urlValidator.ValidateImageURL(req.URL); err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.ImageFetchTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"url":        req.URL,
	}).Debug("Fetching image")

	img, err := h.sources.FetchImage(ctx, req.URL)
	if err != nil {
		var fetchErr *apperrors.AppError
		if errors.Is(err, context.DeadlineExceeded) {
			fetchErr = apperrors.NewTimeoutError("Image fetch timeout", err)
		} else {
			fetchErr = apperrors.NewNetworkError("Failed to fetch image: "+err.Error(), err)
		}
		respondError(c, fetchErr)
		return
	}
	h.run(c, img)
}

func (h *handler) run(c *gin.Context, img models.ImageInput) {
	result, err := h.orch.Run(c.Request.Context(), img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) readUpload(c *gin.Context) (models.ImageInput, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return models.ImageInput{}, bodyError(err, "image file is required")
	}
	img, err := storage.FromMultipart(fh, h.cfg.MaxRequestBodySize)
	if err != nil {
		return models.ImageInput{}, bodyError(err, "failed to read image")
	}
	return img, nil
}
