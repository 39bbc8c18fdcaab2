package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/anime-shed/imgtool-go/internal/codec"
	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/metadata"
	"github.com/anime-shed/imgtool-go/pkg/models"
)

// imageHandle is a decoded source owned by one pipeline invocation.
// Pixels are already upright.
type imageHandle struct {
	img      image.Image
	format   string
	mode     models.ColorMode
	exif     *metadata.Block
	warnings []string
}

func (h *imageHandle) size() (int, int) {
	b := h.img.Bounds()
	return b.Dx(), b.Dy()
}

// load reads and decodes path by content and applies the EXIF orientation
func (t *Transformer) load(ctx context.Context, path string) (*imageHandle, error) {
	data, err := t.store.Read(ctx, path)
	if err != nil {
		return nil, err
	}

	decoded, err := codec.Decode(data)
	if err != nil {
		return nil, apperrors.NewUnreadableImageError(path, err)
	}

	h := &imageHandle{
		img:    decoded.Image,
		format: decoded.Format,
		mode:   decoded.Mode,
	}

	block, err := metadata.Extract(data)
	if err != nil {
		h.warnings = append(h.warnings, fmt.Sprintf("ignoring unreadable metadata: %v", err))
	}
	if block != nil {
		h.exif = block
		h.img = metadata.Apply(h.img, block.Orientation)
	}
	return h, nil
}
