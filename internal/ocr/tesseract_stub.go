//go:build !ocr

package ocr

import (
	"context"
	"errors"
	"image"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
)

// ErrOCRNotEnabled is returned when the binary was built without the ocr tag
var ErrOCRNotEnabled = errors.New("OCR support not enabled (build with -tags ocr)")

type unavailableEngine struct{}

// NewTesseractEngine returns an engine that always reports OCR as unavailable
func NewTesseractEngine(_ Options) Engine {
	return unavailableEngine{}
}

func (unavailableEngine) Available() bool {
	return false
}

func (unavailableEngine) Extract(_ context.Context, _ image.Image) (string, error) {
	return "", apperrors.NewOCRUnavailableError("text extraction is unavailable", ErrOCRNotEnabled)
}
