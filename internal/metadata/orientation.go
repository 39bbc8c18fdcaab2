package metadata

import (
	"image"

	"github.com/disintegration/imaging"
)

// Apply transforms img so that it displays upright for the given EXIF
// orientation. Orientation 1 and unknown values return img unchanged.
func Apply(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// SwapsAxes reports whether the orientation exchanges width and height
func SwapsAxes(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}
