package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anime-shed/imgtool-go/internal/config"
	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/logger"
	"github.com/anime-shed/imgtool-go/internal/service"
	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

// Status exposes runtime state for /health and /metrics
type Status interface {
	OCRAvailable() bool
	Metrics() map[string]interface{}
}

type handler struct {
	svc    service.ImageService
	status Status
	cfg    *config.Config
}

func NewHandler(svc service.ImageService, status Status, cfg *config.Config) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// Add middleware
	r.Use(
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{svc: svc, status: status, cfg: cfg}

	// Configure routes
	r.GET("/health", h.healthCheck)
	r.GET("/metrics", h.metrics)
	r.GET("/preview", h.preview)
	r.POST("/resize", h.resize)
	r.POST("/convert", h.convert)
	r.POST("/batch", h.batch)
	r.POST("/batch/directory", h.batchDirectory)
	r.POST("/extract-text", h.extractText)

	return r
}

func (h *handler) resize(c *gin.Context) {
	var body models.ResizeBody
	if !bindJSON(c, &body) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.svc.Resize(ctx, body.ToRequest(h.cfg.ResizeDefaults()))
	if err != nil {
		respondError(c, "resize failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) convert(c *gin.Context) {
	var body models.ConvertBody
	if !bindJSON(c, &body) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.svc.Convert(ctx, body.ToRequest(h.cfg.DefaultQuality))
	if err != nil {
		respondError(c, "convert failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// batch answers 200 whenever the batch ran; per-item failures are in the outcome
func (h *handler) batch(c *gin.Context) {
	var body models.BatchBody
	if !bindJSON(c, &body) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	defaults := h.cfg.ResizeDefaults()
	reqs := make([]models.ResizeRequest, len(body.Items))
	for i, item := range body.Items {
		reqs[i] = item.ToRequest(defaults)
	}

	outcome, err := h.svc.Batch(ctx, reqs)
	if err != nil {
		respondError(c, "batch failed", err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *handler) batchDirectory(c *gin.Context) {
	var body models.DirectoryBatchBody
	if !bindJSON(c, &body) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	template := body.Options.ToRequest(h.cfg.ResizeDefaults())
	outcome, err := h.svc.BatchDirectory(ctx, body.Directory, body.OutputDir, body.Recursive, template)
	if err != nil {
		respondError(c, "batch failed", err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *handler) extractText(c *gin.Context) {
	var body models.TextBody
	if !bindJSON(c, &body) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.svc.ExtractText(ctx, body.ToRequest())
	if err != nil {
		respondError(c, "text extraction failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) preview(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		abortJSON(c, http.StatusBadRequest, models.ErrorResponse{
			Error:   http.StatusText(http.StatusBadRequest),
			Message: "query parameter 'path' is required",
		})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	data, err := h.svc.Preview(ctx, path)
	if err != nil {
		respondError(c, "preview failed", err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", data)
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "available",
		"version":       version,
		"ocr_available": h.status.OCRAvailable(),
		"time":          time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Metrics())
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

func bindJSON(c *gin.Context, body interface{}) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		}).Error("Invalid request format")

		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		abortJSON(c, code, models.ErrorResponse{
			Error:   http.StatusText(code),
			Kind:    "invalid_request",
			Message: "invalid request format: " + err.Error(),
		})
		return false
	}
	return true
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":             c.Request.Method,
			"path":               c.Request.URL.Path,
			"status":             c.Writer.Status(),
			"ip":                 c.ClientIP(),
			"processing_time_ms": time.Since(start).Milliseconds(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, "request processing failed", c.Errors.Last().Err)
		}
	}
}

func respondError(c *gin.Context, message string, err error) {
	code := apperrors.GetStatusCode(err)

	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"kind":        apperrors.KindOf(err),
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	abortJSON(c, code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Kind:    string(apperrors.KindOf(err)),
		Field:   apperrors.FieldOf(err),
		Message: message + ": " + err.Error(),
	})
}

func abortJSON(c *gin.Context, code int, body models.ErrorResponse) {
	c.AbortWithStatusJSON(code, body)
}
