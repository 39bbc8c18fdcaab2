//go:build ocr

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine wraps gosseract. A client is created per call, so the
// engine is safe for concurrent use.
type TesseractEngine struct {
	opts Options
}

// NewTesseractEngine creates an engine with the given options
func NewTesseractEngine(opts Options) Engine {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	return &TesseractEngine{opts: opts}
}

// Available reports that Tesseract support was compiled in
func (e *TesseractEngine) Available() bool {
	return true
}

// Extract encodes img to PNG in memory and recognizes it
func (e *TesseractEngine) Extract(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", apperrors.NewOCRUnavailableError("failed to prepare image for OCR", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.opts.Language); err != nil {
		return "", apperrors.NewOCRUnavailableError("failed to set OCR language", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(e.opts.PageSegMode)); err != nil {
		return "", apperrors.NewOCRUnavailableError("failed to set page segmentation mode", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", apperrors.NewOCRUnavailableError("failed to set image", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", apperrors.NewOCRUnavailableError(fmt.Sprintf("tesseract (%s) failed", e.opts.Language), err)
	}
	return strings.TrimSpace(text), nil
}
