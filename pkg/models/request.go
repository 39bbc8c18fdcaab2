package models

import (
	"fmt"
	"strings"
)

// FitPolicy controls how a requested box is reconciled with the source aspect ratio
type FitPolicy string

const (
	FitContain FitPolicy = "contain"
	FitCover   FitPolicy = "cover"
	FitExact   FitPolicy = "exact"
)

// Format is an output encoding
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWEBP Format = "webp"
)

// ParseFit maps user input onto a fit policy
func ParseFit(s string) (FitPolicy, error) {
	switch FitPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case FitContain:
		return FitContain, nil
	case FitCover:
		return FitCover, nil
	case FitExact:
		return FitExact, nil
	default:
		return "", fmt.Errorf("unknown fit policy: %q", s)
	}
}

// ParseFormat maps user input, including file extensions, onto an output format
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWEBP, nil
	default:
		return "", fmt.Errorf("unknown output format: %q", s)
	}
}

// Valid reports whether f is one of the known fit policies
func (f FitPolicy) Valid() bool {
	return f == FitContain || f == FitCover || f == FitExact
}

// Extension returns the file extension written for the format, with the dot
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWEBP:
		return ".webp"
	default:
		return ""
	}
}

// IsLossy reports whether the encoder honours a quality setting
func (f Format) IsLossy() bool {
	return f == FormatJPEG || f == FormatWEBP
}

// ResizeRequest describes one resize job. It is a value type: the With*
// builders return modified copies.
type ResizeRequest struct {
	Source string

	// Target box; nil means "not given"
	Width  *int
	Height *int

	KeepAspect bool
	Fit        FitPolicy

	Format  Format
	Quality int

	// Output path; empty means derived from Source and Format
	Output    string
	Overwrite bool

	PreserveMetadata bool

	// OCR options
	OCR          bool
	OCROnly      bool
	ExpectedText string
}

// NewResizeRequest returns a request for source with default options
func NewResizeRequest(source string) ResizeRequest {
	return ResizeRequest{
		Source:           source,
		KeepAspect:       true,
		Fit:              FitContain,
		Format:           FormatJPEG,
		Quality:          90,
		PreserveMetadata: true,
	}
}

// WithWidth returns a request with the target width set
func (r ResizeRequest) WithWidth(w int) ResizeRequest {
	r.Width = &w
	return r
}

// WithHeight returns a request with the target height set
func (r ResizeRequest) WithHeight(h int) ResizeRequest {
	r.Height = &h
	return r
}

// WithSize sets both target dimensions
func (r ResizeRequest) WithSize(w, h int) ResizeRequest {
	return r.WithWidth(w).WithHeight(h)
}

func (r ResizeRequest) WithFit(fit FitPolicy) ResizeRequest {
	r.Fit = fit
	return r
}

func (r ResizeRequest) WithKeepAspect(keep bool) ResizeRequest {
	r.KeepAspect = keep
	return r
}

// WithFormat sets the output format and quality
func (r ResizeRequest) WithFormat(format Format, quality int) ResizeRequest {
	r.Format = format
	r.Quality = quality
	return r
}

// WithOutput sets an explicit destination
func (r ResizeRequest) WithOutput(path string, overwrite bool) ResizeRequest {
	r.Output = path
	r.Overwrite = overwrite
	return r
}

func (r ResizeRequest) WithPreserveMetadata(preserve bool) ResizeRequest {
	r.PreserveMetadata = preserve
	return r
}

// WithOCR enables text extraction on the resized pixels
func (r ResizeRequest) WithOCR(expectedText string) ResizeRequest {
	r.OCR = true
	r.ExpectedText = expectedText
	return r
}

// WithOCROnly runs text extraction without writing an output file
func (r ResizeRequest) WithOCROnly(expectedText string) ResizeRequest {
	r = r.WithOCR(expectedText)
	r.OCROnly = true
	return r
}

// ConvertRequest re-encodes a source at its original dimensions
type ConvertRequest struct {
	Source           string
	Format           Format
	Quality          int
	Output           string
	Overwrite        bool
	PreserveMetadata bool
}

// NewConvertRequest returns a conversion of source to format with default quality
func NewConvertRequest(source string, format Format) ConvertRequest {
	return ConvertRequest{
		Source:           source,
		Format:           format,
		Quality:          90,
		PreserveMetadata: true,
	}
}

// TextRequest extracts text from a source, optionally after a pre-resize
type TextRequest struct {
	Source       string
	Width        *int
	Height       *int
	KeepAspect   bool
	Fit          FitPolicy
	ExpectedText string
}

// NewTextRequest returns a text extraction request without pre-resize
func NewTextRequest(source string) TextRequest {
	return TextRequest{
		Source:     source,
		KeepAspect: true,
		Fit:        FitContain,
	}
}

// Resizes reports whether a pre-resize was requested
func (r TextRequest) Resizes() bool {
	return r.Width != nil || r.Height != nil
}

// IntPtr is a convenience for building optional dimensions
func IntPtr(v int) *int {
	return &v
}
