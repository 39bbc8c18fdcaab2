package service

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"time"

	"github.com/anime-shed/imgtool-go/internal/codec"
	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/observer"
	"github.com/anime-shed/imgtool-go/internal/pipeline"
	"github.com/anime-shed/imgtool-go/internal/storage"
	"github.com/anime-shed/imgtool-go/pkg/models"
	"github.com/anime-shed/imgtool-go/pkg/validation"
)

// ImageService is the front-end facing API shared by the CLI and the HTTP handler
type ImageService interface {
	Resize(ctx context.Context, req models.ResizeRequest) (*models.TransformResult, error)
	Convert(ctx context.Context, req models.ConvertRequest) (*models.TransformResult, error)
	Batch(ctx context.Context, reqs []models.ResizeRequest) (models.BatchOutcome, error)
	BatchDirectory(ctx context.Context, dir, outputDir string, recursive bool, template models.ResizeRequest) (models.BatchOutcome, error)
	ExtractText(ctx context.Context, req models.TextRequest) (*models.TransformResult, error)

	// Preview returns a PNG encoded preview of path
	Preview(ctx context.Context, path string) ([]byte, error)
}

// BatchRunner runs a list of resize requests
type BatchRunner interface {
	Run(ctx context.Context, reqs []models.ResizeRequest) models.BatchOutcome
}

// PreviewRenderer renders front-end previews
type PreviewRenderer interface {
	Render(ctx context.Context, path string) (*image.NRGBA, error)
}

type imageService struct {
	pipeline pipeline.Pipeline
	batch    BatchRunner
	preview  PreviewRenderer
	paths    *validation.PathValidator
	events   observer.Subject
}

// NewImageService creates the service; events may be nil
func NewImageService(
	p pipeline.Pipeline,
	batch BatchRunner,
	preview PreviewRenderer,
	paths *validation.PathValidator,
	events observer.Subject,
) ImageService {
	if paths == nil {
		paths = validation.NewPathValidator()
	}
	return &imageService{
		pipeline: p,
		batch:    batch,
		preview:  preview,
		paths:    paths,
		events:   events,
	}
}

func (s *imageService) Resize(ctx context.Context, req models.ResizeRequest) (*models.TransformResult, error) {
	if err := s.checkPaths(req.Source, req.Output); err != nil {
		return nil, err
	}
	return s.observe(ctx, req.Source, func() (*models.TransformResult, error) {
		return s.pipeline.Transform(ctx, req)
	})
}

func (s *imageService) Convert(ctx context.Context, req models.ConvertRequest) (*models.TransformResult, error) {
	if err := s.checkPaths(req.Source, req.Output); err != nil {
		return nil, err
	}
	return s.observe(ctx, req.Source, func() (*models.TransformResult, error) {
		return s.pipeline.Convert(ctx, req)
	})
}

// Batch runs every request. Items whose paths are outside the allowed
// directories are recorded as failures without being attempted.
func (s *imageService) Batch(ctx context.Context, reqs []models.ResizeRequest) (models.BatchOutcome, error) {
	runnable := make([]models.ResizeRequest, 0, len(reqs))
	indexes := make([]int, 0, len(reqs))
	rejected := make(map[int]error)
	for i, req := range reqs {
		if err := s.checkPaths(req.Source, req.Output); err != nil {
			rejected[i] = err
			continue
		}
		runnable = append(runnable, req)
		indexes = append(indexes, i)
	}

	outcome := s.batch.Run(ctx, runnable)
	if len(rejected) == 0 {
		return outcome, nil
	}

	items := make([]models.BatchItem, len(reqs))
	for j, item := range outcome.Items {
		item.Index = indexes[j]
		items[indexes[j]] = item
	}
	for i, err := range rejected {
		items[i] = models.BatchItem{
			Index:  i,
			Source: reqs[i].Source,
			Error: &models.ItemError{
				Kind:    string(apperrors.KindOf(err)),
				Message: err.Error(),
				Field:   apperrors.FieldOf(err),
			},
		}
	}
	outcome.Items = items
	outcome.Failed += len(rejected)
	return outcome, nil
}

// BatchDirectory resizes every image under dir into outputDir, keeping the
// layout of subdirectories when recursive
func (s *imageService) BatchDirectory(ctx context.Context, dir, outputDir string, recursive bool, template models.ResizeRequest) (models.BatchOutcome, error) {
	if err := s.paths.ValidateLocation(dir); err != nil {
		return models.BatchOutcome{}, err
	}
	if err := s.paths.ValidateOutputPath(outputDir); err != nil {
		return models.BatchOutcome{}, err
	}

	sources, err := storage.ListImages(dir, recursive, s.paths.IsImagePath)
	if err != nil {
		return models.BatchOutcome{}, err
	}

	reqs := make([]models.ResizeRequest, 0, len(sources))
	for _, src := range sources {
		req := template
		req.Source = src
		req.Output = ""
		if outputDir != "" {
			target := outputDir
			if rel, err := filepath.Rel(dir, filepath.Dir(src)); err == nil && rel != "." {
				target = filepath.Join(outputDir, rel)
			}
			req.Output = storage.DeriveOutputPath(src, req.Format, target)
		}
		reqs = append(reqs, req)
	}
	return s.batch.Run(ctx, reqs), nil
}

func (s *imageService) ExtractText(ctx context.Context, req models.TextRequest) (*models.TransformResult, error) {
	if err := s.paths.ValidateLocation(req.Source); err != nil {
		return nil, err
	}
	return s.observe(ctx, req.Source, func() (*models.TransformResult, error) {
		return s.pipeline.ExtractText(ctx, req)
	})
}

func (s *imageService) Preview(ctx context.Context, path string) ([]byte, error) {
	if err := s.paths.ValidateSourcePath(path); err != nil {
		return nil, err
	}
	img, err := s.preview.Render(ctx, path)
	if err != nil {
		return nil, err
	}

	enc, err := codec.NewEncoder(models.FormatPNG)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img, 0); err != nil {
		return nil, apperrors.NewInternalError("failed to encode preview", err)
	}
	return buf.Bytes(), nil
}

func (s *imageService) checkPaths(source, output string) error {
	if err := s.paths.ValidateLocation(source); err != nil {
		return err
	}
	return s.paths.ValidateOutputPath(output)
}

// observe publishes start and completion events around one call
func (s *imageService) observe(ctx context.Context, source string, call func() (*models.TransformResult, error)) (*models.TransformResult, error) {
	start := time.Now()
	s.publish(ctx, observer.Event{EventType: observer.TransformStarted, Source: source})

	result, err := call()

	event := observer.Event{
		EventType:      observer.TransformCompleted,
		Source:         source,
		ProcessingTime: time.Since(start),
		Success:        err == nil,
	}
	if err != nil {
		event.EventType = observer.TransformFailed
		event.ErrorKind = string(apperrors.KindOf(err))
		event.ErrorMessage = err.Error()
	} else {
		event.Output = result.OutputPath
	}
	s.publish(ctx, event)
	return result, err
}

func (s *imageService) publish(ctx context.Context, event observer.Event) {
	if s.events != nil {
		s.events.NotifyObservers(context.WithoutCancel(ctx), event)
	}
}
