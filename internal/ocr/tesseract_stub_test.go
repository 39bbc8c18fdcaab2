//go:build !ocr

package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
)

func TestStubEngine_Unavailable(t *testing.T) {
	engine := NewTesseractEngine(DefaultOptions())
	if engine.Available() {
		t.Error("Expected stub engine to report unavailable")
	}

	_, err := engine.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	if !apperrors.IsType(err, apperrors.ErrorTypeOCRUnavailable) {
		t.Errorf("Expected ocr_unavailable, got %v", err)
	}
	if !errors.Is(err, ErrOCRNotEnabled) {
		t.Errorf("Expected ErrOCRNotEnabled in chain, got %v", err)
	}
}
