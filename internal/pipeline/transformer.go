// Package pipeline turns one request into one output file: validate, decode,
// orient, resample, re-encode and write atomically.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/anime-shed/imgtool-go/internal/codec"
	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/geometry"
	"github.com/anime-shed/imgtool-go/internal/logger"
	"github.com/anime-shed/imgtool-go/internal/metadata"
	"github.com/anime-shed/imgtool-go/internal/ocr"
	"github.com/anime-shed/imgtool-go/internal/storage"
	"github.com/anime-shed/imgtool-go/pkg/models"
	"github.com/anime-shed/imgtool-go/pkg/validation"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Pipeline is the contract the batch orchestrator and the service depend on
type Pipeline interface {
	Transform(ctx context.Context, req models.ResizeRequest) (*models.TransformResult, error)
	Convert(ctx context.Context, req models.ConvertRequest) (*models.TransformResult, error)
	ExtractText(ctx context.Context, req models.TextRequest) (*models.TransformResult, error)
}

// Transformer implements Pipeline. It holds no per-request state.
type Transformer struct {
	store    storage.ImageStore
	encoders codec.EncoderFactory
	engine   ocr.Engine
}

// NewTransformer creates a pipeline over the given storage, encoders and OCR engine
func NewTransformer(store storage.ImageStore, encoders codec.EncoderFactory, engine ocr.Engine) *Transformer {
	return &Transformer{
		store:    store,
		encoders: encoders,
		engine:   engine,
	}
}

// job is the request-independent description shared by Transform and Convert
type job struct {
	source           string
	format           models.Format
	quality          int
	output           string
	overwrite        bool
	preserveMetadata bool
	ocr              bool
	ocrOnly          bool
	expectedText     string
	resolve          func(srcWidth, srcHeight int) (models.ResolvedGeometry, error)
}

// Transform resizes one image
func (t *Transformer) Transform(ctx context.Context, req models.ResizeRequest) (*models.TransformResult, error) {
	if err := validation.ValidateRequest(req); err != nil {
		return nil, err
	}
	target := geometry.TargetOf(req)
	return t.run(ctx, job{
		source:           req.Source,
		format:           req.Format,
		quality:          req.Quality,
		output:           req.Output,
		overwrite:        req.Overwrite,
		preserveMetadata: req.PreserveMetadata,
		ocr:              req.OCR || req.OCROnly,
		ocrOnly:          req.OCROnly,
		expectedText:     req.ExpectedText,
		resolve: func(w, h int) (models.ResolvedGeometry, error) {
			return geometry.Resolve(w, h, target)
		},
	})
}

// Convert re-encodes one image at its upright source size
func (t *Transformer) Convert(ctx context.Context, req models.ConvertRequest) (*models.TransformResult, error) {
	if err := validation.ValidateConvertRequest(req); err != nil {
		return nil, err
	}
	return t.run(ctx, job{
		source:           req.Source,
		format:           req.Format,
		quality:          req.Quality,
		output:           req.Output,
		overwrite:        req.Overwrite,
		preserveMetadata: req.PreserveMetadata,
		resolve: func(w, h int) (models.ResolvedGeometry, error) {
			return geometry.Identity(w, h), nil
		},
	})
}

// ExtractText runs OCR on one image, optionally after a pre-resize. Unlike
// Transform, an engine failure is the result of the call.
func (t *Transformer) ExtractText(ctx context.Context, req models.TextRequest) (*models.TransformResult, error) {
	start := time.Now()
	if err := validation.ValidateTextRequest(req); err != nil {
		return nil, err
	}

	h, err := t.load(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	img := h.img
	if req.Resizes() {
		srcW, srcH := h.size()
		geom, err := geometry.Resolve(srcW, srcH, geometry.TextTargetOf(req))
		if err != nil {
			return nil, err
		}
		img = resample(img, geom)
	}

	text, err := t.engine.Extract(ctx, img)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !apperrors.IsType(err, apperrors.ErrorTypeOCRUnavailable) {
			err = apperrors.NewOCRUnavailableError("text extraction failed", err)
		}
		return nil, err
	}

	score := ocr.Score(req.ExpectedText, text)
	b := img.Bounds()
	return &models.TransformResult{
		Source:         req.Source,
		Width:          b.Dx(),
		Height:         b.Dy(),
		ColorMode:      h.mode,
		OCR:            &score,
		Warnings:       h.warnings,
		ProcessingTime: time.Since(start),
	}, nil
}

func (t *Transformer) run(ctx context.Context, j job) (*models.TransformResult, error) {
	start := time.Now()

	encoder, err := t.encoders.CreateEncoder(j.format)
	if err != nil {
		return nil, err
	}

	outPath := ""
	if !j.ocrOnly {
		outPath = j.output
		if outPath == "" {
			outPath = storage.DeriveOutputPath(j.source, j.format, "")
		}
		if !j.overwrite {
			exists, err := t.store.Exists(outPath)
			if err != nil {
				return nil, apperrors.NewUnwritableOutputError(outPath, err)
			}
			if exists {
				return nil, apperrors.NewOutputExistsError(outPath)
			}
		}
	}

	h, err := t.load(ctx, j.source)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcW, srcH := h.size()
	geom, err := j.resolve(srcW, srcH)
	if err != nil {
		return nil, err
	}

	resized := resample(h.img, geom)
	pixels := codec.Conform(resized, h.mode, j.format)

	result := &models.TransformResult{
		Source:     j.source,
		OutputPath: outPath,
		Width:      geom.Width,
		Height:     geom.Height,
		Format:     j.format,
		ColorMode:  codec.ColorModeOf(pixels),
		Warnings:   h.warnings,
	}

	if j.ocr {
		text, err := t.engine.Extract(ctx, resized)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.OCR = &models.OCRResult{ExpectedText: j.expectedText, OCRError: err.Error()}
			result.Warnings = append(result.Warnings, fmt.Sprintf("text extraction failed: %v", err))
		} else {
			score := ocr.Score(j.expectedText, text)
			result.OCR = &score
		}
	}

	if j.ocrOnly {
		result.Format = ""
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, pixels, j.quality); err != nil {
		return nil, apperrors.NewUnwritableOutputError(outPath, fmt.Errorf("encode %s: %w", j.format, err))
	}
	data := buf.Bytes()

	if j.preserveMetadata && h.exif != nil {
		data, result.MetadataCarried, result.Warnings = carryMetadata(data, h.exif, j.format, result.Warnings)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.store.WriteAtomic(ctx, outPath, data, j.overwrite); err != nil {
		return nil, err
	}

	result.ProcessingTime = time.Since(start)
	logger.WithFields(logrus.Fields{
		"source":             j.source,
		"output":             outPath,
		"width":              geom.Width,
		"height":             geom.Height,
		"format":             j.format,
		"processing_time_ms": result.ProcessingTime.Milliseconds(),
	}).Debug("Transform written")
	return result, nil
}

// carryMetadata embeds the normalized EXIF block into JPEG output. Other
// formats drop it with a warning.
func carryMetadata(data []byte, block *metadata.Block, format models.Format, warnings []string) ([]byte, bool, []string) {
	if format != models.FormatJPEG {
		return data, false, append(warnings, fmt.Sprintf("metadata is not carried into %s output", format))
	}
	normalized, err := block.Normalized()
	if err != nil {
		return data, false, append(warnings, fmt.Sprintf("metadata dropped: %v", err))
	}
	withExif, err := metadata.Inject(data, normalized)
	if err != nil {
		return data, false, append(warnings, fmt.Sprintf("metadata dropped: %v", err))
	}
	return withExif, true, warnings
}

// resample scales img to geom with Lanczos; an unchanged size returns img as is
func resample(img image.Image, geom models.ResolvedGeometry) image.Image {
	b := img.Bounds()
	if b.Dx() == geom.Width && b.Dy() == geom.Height {
		return img
	}
	return imaging.Resize(img, geom.Width, geom.Height, imaging.Lanczos)
}
