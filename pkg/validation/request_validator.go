package validation

import (
	"strings"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/pkg/models"
)

const (
	MinQuality = 1
	MaxQuality = 100
)

// ValidateDimensions checks a requested box against the fit policy.
// exact needs both dimensions; contain and cover need at least one.
func ValidateDimensions(width, height *int, fit models.FitPolicy) error {
	if width == nil && height == nil {
		return apperrors.NewInvalidGeometryError("at least one of width or height is required", "width", nil)
	}
	if fit == models.FitExact {
		if width == nil {
			return apperrors.NewInvalidGeometryError("exact fit requires a width", "width", nil)
		}
		if height == nil {
			return apperrors.NewInvalidGeometryError("exact fit requires a height", "height", nil)
		}
	}
	if width != nil && *width <= 0 {
		return apperrors.NewInvalidGeometryError("width must be greater than 0", "width", *width)
	}
	if height != nil && *height <= 0 {
		return apperrors.NewInvalidGeometryError("height must be greater than 0", "height", *height)
	}
	return nil
}

// ValidateQuality checks q is within [1, 100]
func ValidateQuality(q int) error {
	if q < MinQuality || q > MaxQuality {
		return apperrors.NewInvalidQualityError("quality must be between 1 and 100", q)
	}
	return nil
}

// ValidateFit rejects unknown fit policies
func ValidateFit(fit models.FitPolicy) error {
	if !fit.Valid() {
		return apperrors.NewInvalidGeometryError("unknown fit policy", "fit", string(fit))
	}
	return nil
}

// ValidateFormat rejects output formats that have no encoder
func ValidateFormat(format models.Format) error {
	if format.Extension() == "" {
		return apperrors.NewUnsupportedFormatError(string(format), nil)
	}
	return nil
}

func validateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return apperrors.NewUnreadableImageError(source, errEmptySource)
	}
	return nil
}

// ValidateRequest runs every check that does not need file I/O
func ValidateRequest(req models.ResizeRequest) error {
	if err := validateSource(req.Source); err != nil {
		return err
	}
	if err := ValidateFit(req.Fit); err != nil {
		return err
	}
	if err := ValidateDimensions(req.Width, req.Height, req.Fit); err != nil {
		return err
	}
	if err := ValidateQuality(req.Quality); err != nil {
		return err
	}
	return ValidateFormat(req.Format)
}

// ValidateConvertRequest checks a conversion, which has no geometry
func ValidateConvertRequest(req models.ConvertRequest) error {
	if err := validateSource(req.Source); err != nil {
		return err
	}
	if err := ValidateQuality(req.Quality); err != nil {
		return err
	}
	return ValidateFormat(req.Format)
}

// ValidateTextRequest checks a text extraction; geometry is only
// validated when a pre-resize was asked for
func ValidateTextRequest(req models.TextRequest) error {
	if err := validateSource(req.Source); err != nil {
		return err
	}
	if !req.Resizes() {
		return nil
	}
	if err := ValidateFit(req.Fit); err != nil {
		return err
	}
	return ValidateDimensions(req.Width, req.Height, req.Fit)
}
