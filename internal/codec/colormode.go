package codec

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/disintegration/imaging"
)

// ColorModeOf classifies the channel layout of img
func ColorModeOf(img image.Image) models.ColorMode {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return models.ColorModeL
	case *image.YCbCr, *image.CMYK:
		return models.ColorModeRGB
	case *image.Paletted:
		if !m.Opaque() {
			return models.ColorModeRGBA
		}
		return models.ColorModeRGB
	}

	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		// png gray+alpha decodes to NRGBA
		if isGray(img) {
			return models.ColorModeLA
		}
		return models.ColorModeRGBA
	}
	return models.ColorModeRGB
}

// Conform converts resampled pixels back to the source color mode, as far
// as the output format allows. JPEG has no alpha, so alpha is flattened on white.
func Conform(img image.Image, mode models.ColorMode, format models.Format) image.Image {
	hasAlpha := mode == models.ColorModeLA || mode == models.ColorModeRGBA
	if hasAlpha && format == models.FormatJPEG {
		img = flatten(img)
	}

	switch mode {
	case models.ColorModeL:
		return toGray(img)
	case models.ColorModeLA:
		if format == models.FormatJPEG {
			return toGray(img)
		}
	}
	return img
}

func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// isGray reports whether every pixel has equal color channels
func isGray(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || g != bl {
				return false
			}
		}
	}
	return true
}
