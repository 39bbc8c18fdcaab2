// Package geometry resolves a requested target box against the real source
// dimensions under a fit policy.
package geometry

import (
	"image"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/pkg/models"
	"github.com/anime-shed/imgtool-go/pkg/validation"
)

// Target is the geometry part of a request
type Target struct {
	Width      *int
	Height     *int
	KeepAspect bool
	Fit        models.FitPolicy
}

// TargetOf extracts the geometry of a resize request
func TargetOf(req models.ResizeRequest) Target {
	return Target{Width: req.Width, Height: req.Height, KeepAspect: req.KeepAspect, Fit: req.Fit}
}

// TextTargetOf extracts the pre-resize geometry of a text request
func TextTargetOf(req models.TextRequest) Target {
	return Target{Width: req.Width, Height: req.Height, KeepAspect: req.KeepAspect, Fit: req.Fit}
}

// Resolve computes the final pixel size. Dimensions are validated again so
// the function is safe to call without going through the pipeline.
func Resolve(srcWidth, srcHeight int, t Target) (models.ResolvedGeometry, error) {
	if err := validation.ValidateFit(t.Fit); err != nil {
		return models.ResolvedGeometry{}, err
	}
	if err := validation.ValidateDimensions(t.Width, t.Height, t.Fit); err != nil {
		return models.ResolvedGeometry{}, err
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return models.ResolvedGeometry{}, apperrors.NewInvalidGeometryError(
			"source dimensions must be positive", "source", image.Pt(srcWidth, srcHeight).String())
	}

	strategy, err := StrategyFor(t.Fit)
	if err != nil {
		return models.ResolvedGeometry{}, apperrors.NewInvalidGeometryError(err.Error(), "fit", string(t.Fit))
	}

	out := strategy.Fit(image.Pt(srcWidth, srcHeight), t)
	return models.ResolvedGeometry{
		Width:  out.X,
		Height: out.Y,
		Filter: models.FilterLanczos,
	}, nil
}

// Identity is the geometry that keeps a source at its own size
func Identity(srcWidth, srcHeight int) models.ResolvedGeometry {
	return models.ResolvedGeometry{Width: srcWidth, Height: srcHeight, Filter: models.FilterLanczos}
}
