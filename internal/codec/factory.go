package codec

import (
	"fmt"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/pkg/models"
)

// EncoderFactory creates encoders by output format
type EncoderFactory interface {
	CreateEncoder(format models.Format) (Encoder, error)
}

type encoderFactory struct{}

// NewEncoderFactory creates the default encoder factory
func NewEncoderFactory() EncoderFactory {
	return &encoderFactory{}
}

// CreateEncoder returns the encoder for format
func (f *encoderFactory) CreateEncoder(format models.Format) (Encoder, error) {
	return NewEncoder(format)
}

// NewEncoder returns the encoder for format or an UnsupportedFormat error
func NewEncoder(format models.Format) (Encoder, error) {
	switch format {
	case models.FormatJPEG:
		return jpegEncoder{}, nil
	case models.FormatPNG:
		return pngEncoder{}, nil
	case models.FormatWEBP:
		return webpEncoder{}, nil
	default:
		return nil, apperrors.NewUnsupportedFormatError(string(format),
			fmt.Errorf("unsupported output format: %s", format))
	}
}
