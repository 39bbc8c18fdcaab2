package models

import "time"

// ResolvedGeometry is the final pixel size and resampling filter for a job
type ResolvedGeometry struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Filter string `json:"filter"`
}

// FilterLanczos is used for both up- and downscaling
const FilterLanczos = "lanczos"

// ColorMode describes the channel layout of decoded pixels
type ColorMode string

const (
	ColorModeL    ColorMode = "L"
	ColorModeLA   ColorMode = "LA"
	ColorModeRGB  ColorMode = "RGB"
	ColorModeRGBA ColorMode = "RGBA"
)

// TransformResult describes a completed transform
type TransformResult struct {
	Source          string        `json:"source"`
	OutputPath      string        `json:"output_path,omitempty"`
	Width           int           `json:"width"`
	Height          int           `json:"height"`
	Format          Format        `json:"format"`
	ColorMode       ColorMode     `json:"color_mode"`
	OCR             *OCRResult    `json:"ocr,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
	MetadataCarried bool          `json:"metadata_carried"`
	ProcessingTime  time.Duration `json:"processing_time_ns"`
}

// OCRResult represents OCR analysis results
type OCRResult struct {
	ExtractedText string  `json:"extracted_text"`
	ExpectedText  string  `json:"expected_text,omitempty"`
	MatchScore    float64 `json:"match_score,omitempty"`

	// Error rates against the expected text
	WER      float64 `json:"word_error_rate,omitempty"`
	CER      float64 `json:"character_error_rate,omitempty"`
	OCRError string  `json:"ocr_error,omitempty"`
}

// ItemError is the recorded failure of one batch item
type ItemError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// BatchItem is the outcome of one request, at its input index
type BatchItem struct {
	Index  int              `json:"index"`
	Source string           `json:"source"`
	Result *TransformResult `json:"result,omitempty"`
	Error  *ItemError       `json:"error,omitempty"`
}

// Succeeded reports whether the item produced a result
func (i BatchItem) Succeeded() bool {
	return i.Error == nil && i.Result != nil
}

// BatchOutcome collects every item of a batch in input order
type BatchOutcome struct {
	BatchID   string        `json:"batch_id"`
	Items     []BatchItem   `json:"items"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}
