package models

// ResizeBody is the JSON form of a resize request accepted by the HTTP front-end
type ResizeBody struct {
	Source           string `json:"source" binding:"required"`
	Width            *int   `json:"width,omitempty"`
	Height           *int   `json:"height,omitempty"`
	KeepAspect       *bool  `json:"keep_aspect,omitempty"`
	Fit              string `json:"fit,omitempty"`
	Format           string `json:"format,omitempty"`
	Quality          *int   `json:"quality,omitempty"`
	Output           string `json:"output,omitempty"`
	Overwrite        bool   `json:"overwrite,omitempty"`
	PreserveMetadata *bool  `json:"preserve_metadata,omitempty"`
	OCR              bool   `json:"ocr,omitempty"`
	OCROnly          bool   `json:"ocr_only,omitempty"`
	ExpectedText     string `json:"expected_text,omitempty"`
}

// ToRequest applies the body over the given defaults. Unknown fit or format
// strings are kept verbatim so validation can report them.
func (b ResizeBody) ToRequest(defaults ResizeRequest) ResizeRequest {
	req := defaults
	req.Source = b.Source
	req.Width = b.Width
	req.Height = b.Height
	if b.KeepAspect != nil {
		req.KeepAspect = *b.KeepAspect
	}
	if b.Fit != "" {
		if fit, err := ParseFit(b.Fit); err == nil {
			req.Fit = fit
		} else {
			req.Fit = FitPolicy(b.Fit)
		}
	}
	if b.Format != "" {
		if format, err := ParseFormat(b.Format); err == nil {
			req.Format = format
		} else {
			req.Format = Format(b.Format)
		}
	}
	if b.Quality != nil {
		req.Quality = *b.Quality
	}
	req.Output = b.Output
	req.Overwrite = b.Overwrite
	if b.PreserveMetadata != nil {
		req.PreserveMetadata = *b.PreserveMetadata
	}
	req.OCR = b.OCR || b.OCROnly
	req.OCROnly = b.OCROnly
	req.ExpectedText = b.ExpectedText
	return req
}

// ConvertBody is the JSON form of a conversion request
type ConvertBody struct {
	Source           string `json:"source" binding:"required"`
	Format           string `json:"format" binding:"required"`
	Quality          *int   `json:"quality,omitempty"`
	Output           string `json:"output,omitempty"`
	Overwrite        bool   `json:"overwrite,omitempty"`
	PreserveMetadata *bool  `json:"preserve_metadata,omitempty"`
}

// ToRequest converts the body, filling unset options with the given defaults
func (b ConvertBody) ToRequest(defaultQuality int) ConvertRequest {
	format, err := ParseFormat(b.Format)
	if err != nil {
		format = Format(b.Format)
	}
	req := NewConvertRequest(b.Source, format)
	req.Quality = defaultQuality
	if b.Quality != nil {
		req.Quality = *b.Quality
	}
	req.Output = b.Output
	req.Overwrite = b.Overwrite
	if b.PreserveMetadata != nil {
		req.PreserveMetadata = *b.PreserveMetadata
	}
	return req
}

// BatchBody is a list of resize requests processed as one batch
type BatchBody struct {
	Items []ResizeBody `json:"items"`
}

// DirectoryBatchBody expands a directory into a batch
type DirectoryBatchBody struct {
	Directory string     `json:"directory" binding:"required"`
	OutputDir string     `json:"output_dir" binding:"required"`
	Recursive bool       `json:"recursive,omitempty"`
	Options   ResizeBody `json:"options" binding:"-"`
}

// TextBody is the JSON form of a text extraction request
type TextBody struct {
	Source       string `json:"source" binding:"required"`
	Width        *int   `json:"width,omitempty"`
	Height       *int   `json:"height,omitempty"`
	Fit          string `json:"fit,omitempty"`
	ExpectedText string `json:"expected_text,omitempty"`
}

// ToRequest converts the body into a text request
func (b TextBody) ToRequest() TextRequest {
	req := NewTextRequest(b.Source)
	req.Width = b.Width
	req.Height = b.Height
	if b.Fit != "" {
		if fit, err := ParseFit(b.Fit); err == nil {
			req.Fit = fit
		} else {
			req.Fit = FitPolicy(b.Fit)
		}
	}
	req.ExpectedText = b.ExpectedText
	return req
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}
