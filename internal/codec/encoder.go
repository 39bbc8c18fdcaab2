package codec

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Encoder writes pixels in one output format
type Encoder interface {
	Encode(w io.Writer, img image.Image, quality int) error
	Format() models.Format
}

type jpegEncoder struct{}

func (jpegEncoder) Encode(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

func (jpegEncoder) Format() models.Format { return models.FormatJPEG }

// pngEncoder is lossless; quality is accepted and ignored
type pngEncoder struct{}

func (pngEncoder) Encode(w io.Writer, img image.Image, _ int) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
}

func (pngEncoder) Format() models.Format { return models.FormatPNG }

type webpEncoder struct{}

func (webpEncoder) Encode(w io.Writer, img image.Image, quality int) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return fmt.Errorf("invalid webp options: %w", err)
	}
	return webp.Encode(w, img, options)
}

func (webpEncoder) Format() models.Format { return models.FormatWEBP }
