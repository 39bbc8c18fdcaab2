package geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/anime-shed/imgtool-go/pkg/models"
)

// FitStrategy maps a source size onto a target box
type FitStrategy interface {
	Fit(src image.Point, t Target) image.Point
	GetStrategyName() string
}

// ContainStrategy fits the source inside the box
type ContainStrategy struct{}

// Fit scales uniformly so the result never exceeds the box
func (ContainStrategy) Fit(src image.Point, t Target) image.Point {
	if !t.KeepAspect {
		return independentAxes(src, t)
	}
	if t.Width == nil || t.Height == nil {
		return deriveMissing(src, t)
	}
	w, h := *t.Width, *t.Height
	scale := math.Min(float64(w)/float64(src.X), float64(h)/float64(src.Y))
	out := scaled(src, scale)
	// rounding may overshoot the box by one pixel
	out.X = min(out.X, w)
	out.Y = min(out.Y, h)
	return out
}

func (ContainStrategy) GetStrategyName() string {
	return string(models.FitContain)
}

// CoverStrategy fills the box without cropping
type CoverStrategy struct{}

// Fit scales uniformly so the result is never smaller than the box
func (CoverStrategy) Fit(src image.Point, t Target) image.Point {
	if !t.KeepAspect {
		return independentAxes(src, t)
	}
	if t.Width == nil || t.Height == nil {
		return deriveMissing(src, t)
	}
	w, h := *t.Width, *t.Height
	scale := math.Max(float64(w)/float64(src.X), float64(h)/float64(src.Y))
	out := scaled(src, scale)
	out.X = max(out.X, w)
	out.Y = max(out.Y, h)
	return out
}

func (CoverStrategy) GetStrategyName() string {
	return string(models.FitCover)
}

// ExactStrategy returns the requested box verbatim
type ExactStrategy struct{}

// Fit ignores the aspect lock
func (ExactStrategy) Fit(_ image.Point, t Target) image.Point {
	return image.Pt(*t.Width, *t.Height)
}

func (ExactStrategy) GetStrategyName() string {
	return string(models.FitExact)
}

// StrategyFor returns the strategy implementing fit
func StrategyFor(fit models.FitPolicy) (FitStrategy, error) {
	switch fit {
	case models.FitContain:
		return ContainStrategy{}, nil
	case models.FitCover:
		return CoverStrategy{}, nil
	case models.FitExact:
		return ExactStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported fit policy: %s", fit)
	}
}

// independentAxes scales each given axis on its own; a missing axis keeps the source size
func independentAxes(src image.Point, t Target) image.Point {
	out := src
	if t.Width != nil {
		out.X = *t.Width
	}
	if t.Height != nil {
		out.Y = *t.Height
	}
	return out
}

// deriveMissing computes the absent dimension from the source ratio
func deriveMissing(src image.Point, t Target) image.Point {
	if t.Width != nil {
		w := *t.Width
		return image.Pt(w, roundMin1(float64(src.Y)*float64(w)/float64(src.X)))
	}
	h := *t.Height
	return image.Pt(roundMin1(float64(src.X)*float64(h)/float64(src.Y)), h)
}

func scaled(src image.Point, scale float64) image.Point {
	return image.Pt(roundMin1(float64(src.X)*scale), roundMin1(float64(src.Y)*scale))
}

func roundMin1(v float64) int {
	return max(1, int(math.Round(v)))
}
