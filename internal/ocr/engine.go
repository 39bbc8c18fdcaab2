// Package ocr extracts text from decoded pixels and scores it against an
// expected transcript.
//
// The Tesseract engine requires the "ocr" build tag and a system Tesseract
// installation:
//
//	go build -tags ocr ./...
//
// Without the tag every engine call fails with an ocr_unavailable error.
package ocr

import (
	"context"
	"image"
)

// DefaultLanguage is used when no language is configured
const DefaultLanguage = "eng"

// PageSegMode controls how Tesseract analyzes the page layout
type PageSegMode int

const (
	PSMAuto        PageSegMode = 3
	PSMSingleBlock PageSegMode = 6
	PSMSparseText  PageSegMode = 11
)

// Engine runs text recognition on in-memory pixels
type Engine interface {
	Extract(ctx context.Context, img image.Image) (string, error)
	Available() bool
}

// Options configures the Tesseract engine
type Options struct {
	Language    string
	PageSegMode PageSegMode
}

// DefaultOptions returns English with automatic page segmentation
func DefaultOptions() Options {
	return Options{
		Language:    DefaultLanguage,
		PageSegMode: PSMAuto,
	}
}
