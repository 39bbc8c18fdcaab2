// Package codec decodes sources by content and encodes results per output format.
package codec

import (
	"bytes"
	"fmt"
	"image"

	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the webp decoder with image.Decode
)

// Decoded is a source image with the format sniffed from its bytes
type Decoded struct {
	Image  image.Image
	Format string
	Mode   models.ColorMode
}

// Decode detects the format from content, not from the file extension
func Decode(data []byte) (*Decoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unrecognized image data: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", format, err)
	}

	return &Decoded{
		Image:  img,
		Format: format,
		Mode:   ColorModeOf(img),
	}, nil
}
