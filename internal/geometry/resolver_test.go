package geometry

import (
	"math"
	"testing"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/pkg/models"
)

var p = models.IntPtr

func TestResolve_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		target       Target
		wantW, wantH int
	}{
		{"contain width only", 4000, 3000, Target{Width: p(1200), KeepAspect: true, Fit: models.FitContain}, 1200, 900},
		{"contain height only", 4000, 3000, Target{Height: p(300), KeepAspect: true, Fit: models.FitContain}, 400, 300},
		{"contain box landscape", 4000, 3000, Target{Width: p(500), Height: p(500), KeepAspect: true, Fit: models.FitContain}, 500, 375},
		{"contain box portrait", 3000, 4000, Target{Width: p(500), Height: p(500), KeepAspect: true, Fit: models.FitContain}, 375, 500},
		{"contain upscale", 100, 50, Target{Width: p(400), Height: p(400), KeepAspect: true, Fit: models.FitContain}, 400, 200},
		{"cover box", 4000, 3000, Target{Width: p(500), Height: p(500), KeepAspect: true, Fit: models.FitCover}, 667, 500},
		{"cover width only", 4000, 3000, Target{Width: p(1200), KeepAspect: true, Fit: models.FitCover}, 1200, 900},
		{"exact", 4000, 3000, Target{Width: p(500), Height: p(500), KeepAspect: true, Fit: models.FitExact}, 500, 500},
		{"exact ignores lock", 10, 10, Target{Width: p(7), Height: p(3), KeepAspect: false, Fit: models.FitExact}, 7, 3},
		{"stretch when unlocked", 4000, 3000, Target{Width: p(500), Height: p(500), KeepAspect: false, Fit: models.FitContain}, 500, 500},
		{"unlocked width keeps height", 4000, 3000, Target{Width: p(1200), KeepAspect: false, Fit: models.FitCover}, 1200, 3000},
		{"derived dimension min 1", 4000, 1, Target{Width: p(10), KeepAspect: true, Fit: models.FitContain}, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Resolve(tt.srcW, tt.srcH, tt.target)
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if g.Width != tt.wantW || g.Height != tt.wantH {
				t.Errorf("Resolve() = %dx%d, want %dx%d", g.Width, g.Height, tt.wantW, tt.wantH)
			}
			if g.Filter != models.FilterLanczos {
				t.Errorf("Expected lanczos filter, got %s", g.Filter)
			}
		})
	}
}

func TestResolve_ContainPreservesAspect(t *testing.T) {
	sources := [][2]int{{4000, 3000}, {1920, 1080}, {333, 777}, {1, 1000}, {1024, 1024}}
	boxes := [][2]int{{100, 100}, {1200, 300}, {50, 900}, {2000, 2000}}

	for _, src := range sources {
		for _, box := range boxes {
			g, err := Resolve(src[0], src[1], Target{Width: p(box[0]), Height: p(box[1]), KeepAspect: true, Fit: models.FitContain})
			if err != nil {
				t.Fatalf("Resolve(%v, %v) unexpected error: %v", src, box, err)
			}
			if g.Width > box[0] || g.Height > box[1] {
				t.Errorf("Resolve(%v, %v) = %dx%d exceeds the box", src, box, g.Width, g.Height)
			}
			if g.Width == 1 || g.Height == 1 {
				continue
			}
			// within one pixel along at least one axis
			dh := math.Abs(float64(g.Width)*float64(src[1])/float64(src[0]) - float64(g.Height))
			dw := math.Abs(float64(g.Height)*float64(src[0])/float64(src[1]) - float64(g.Width))
			if dh > 1 && dw > 1 {
				t.Errorf("Resolve(%v, %v) = %dx%d distorts the aspect ratio", src, box, g.Width, g.Height)
			}
		}
	}
}

func TestResolve_CoverNeverSmallerThanBox(t *testing.T) {
	sources := [][2]int{{4000, 3000}, {333, 777}, {50, 50}}
	for _, src := range sources {
		g, err := Resolve(src[0], src[1], Target{Width: p(640), Height: p(480), KeepAspect: true, Fit: models.FitCover})
		if err != nil {
			t.Fatalf("Resolve() unexpected error: %v", err)
		}
		if g.Width < 640 || g.Height < 480 {
			t.Errorf("cover of %v = %dx%d is smaller than 640x480", src, g.Width, g.Height)
		}
	}
}

func TestResolve_Idempotent(t *testing.T) {
	targets := []Target{
		{Width: p(1200), KeepAspect: true, Fit: models.FitContain},
		{Width: p(500), Height: p(500), KeepAspect: true, Fit: models.FitContain},
		{Width: p(500), Height: p(500), KeepAspect: true, Fit: models.FitCover},
		{Width: p(300), Height: p(200), Fit: models.FitExact},
		{Height: p(640), KeepAspect: false, Fit: models.FitContain},
	}

	for _, target := range targets {
		first, err := Resolve(4000, 3000, target)
		if err != nil {
			t.Fatalf("Resolve() unexpected error: %v", err)
		}
		second, err := Resolve(first.Width, first.Height, target)
		if err != nil {
			t.Fatalf("Resolve() unexpected error: %v", err)
		}
		if first != second {
			t.Errorf("Resolve is not idempotent for %+v: %+v then %+v", target, first, second)
		}
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		target     Target
	}{
		{"no dimensions", 100, 100, Target{KeepAspect: true, Fit: models.FitContain}},
		{"exact needs both", 100, 100, Target{Width: p(10), Fit: models.FitExact}},
		{"zero width", 100, 100, Target{Width: p(0), Fit: models.FitContain}},
		{"unknown fit", 100, 100, Target{Width: p(10), Fit: "fill"}},
		{"empty source", 0, 100, Target{Width: p(10), Fit: models.FitContain}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.srcW, tt.srcH, tt.target)
			if !apperrors.IsType(err, apperrors.ErrorTypeInvalidGeometry) {
				t.Errorf("Expected invalid_geometry, got %v", err)
			}
		})
	}
}

func TestStrategyFor(t *testing.T) {
	for _, fit := range []models.FitPolicy{models.FitContain, models.FitCover, models.FitExact} {
		s, err := StrategyFor(fit)
		if err != nil {
			t.Fatalf("StrategyFor(%s) unexpected error: %v", fit, err)
		}
		if s.GetStrategyName() != string(fit) {
			t.Errorf("Expected strategy name %s, got %s", fit, s.GetStrategyName())
		}
	}
	if _, err := StrategyFor("crop"); err == nil {
		t.Error("Expected error for unsupported fit")
	}
}
