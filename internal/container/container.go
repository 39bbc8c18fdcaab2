package container

import (
	"net/http"

	"github.com/anime-shed/imgtool-go/internal/batch"
	"github.com/anime-shed/imgtool-go/internal/codec"
	"github.com/anime-shed/imgtool-go/internal/config"
	"github.com/anime-shed/imgtool-go/internal/logger"
	"github.com/anime-shed/imgtool-go/internal/observer"
	"github.com/anime-shed/imgtool-go/internal/ocr"
	"github.com/anime-shed/imgtool-go/internal/pipeline"
	"github.com/anime-shed/imgtool-go/internal/preview"
	"github.com/anime-shed/imgtool-go/internal/service"
	"github.com/anime-shed/imgtool-go/internal/storage"
	"github.com/anime-shed/imgtool-go/internal/transport"
	"github.com/anime-shed/imgtool-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	engine       ocr.Engine
	metrics      *observer.MetricsObserver
	previews     *preview.Renderer
	imageService service.ImageService
	handler      http.Handler
}

// NewContainer builds the dependency graph for cfg
func NewContainer(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := storage.NewFileStorage()
	engine := ocr.NewTesseractEngine(ocr.Options{
		Language:    cfg.OCRLanguage,
		PageSegMode: ocr.PSMAuto,
	})
	transformer := pipeline.NewTransformer(store, codec.NewEncoderFactory(), engine)

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	orchestrator := batch.NewOrchestrator(transformer, cfg.Workers, events)
	previews := preview.NewRenderer(store, cfg.PreviewSize, cfg.PreviewCacheSize)
	paths := validation.NewPathValidatorWithOptions(validation.ImageExtensions, cfg.AllowedRoots)

	c := &Container{
		config:       cfg,
		engine:       engine,
		metrics:      metrics,
		previews:     previews,
		imageService: service.NewImageService(transformer, orchestrator, previews, paths, events),
	}
	c.handler = transport.NewHandler(c.imageService, c, cfg)
	return c, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the image service shared by the CLI and the handler
func (c *Container) Service() service.ImageService {
	return c.imageService
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// OCRAvailable reports whether text extraction was compiled in
func (c *Container) OCRAvailable() bool {
	return c.engine.Available()
}

// Metrics merges event counters with preview cache usage
func (c *Container) Metrics() map[string]interface{} {
	m := c.metrics.GetMetrics()
	m["preview_cache"] = c.previews.Stats()
	m["ocr_available"] = c.engine.Available()
	return m
}
