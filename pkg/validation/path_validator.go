package validation

import (
	"errors"
	"path/filepath"
	"strings"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
)

var (
	errEmptySource  = errors.New("source path is empty")
	errOutsideRoots = errors.New("path is outside the allowed directories")
)

// PathValidator restricts which local files may be used as sources
type PathValidator struct {
	allowedExtensions []string
	allowedRoots      []string
}

// ImageExtensions are the source extensions accepted by default
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// NewPathValidator creates a validator accepting the usual raster extensions anywhere
func NewPathValidator() *PathValidator {
	return &PathValidator{
		allowedExtensions: ImageExtensions,
		allowedRoots:      []string{}, // empty means every directory is allowed
	}
}

// NewPathValidatorWithOptions creates a path validator with custom options
func NewPathValidatorWithOptions(extensions []string, roots []string) *PathValidator {
	return &PathValidator{
		allowedExtensions: extensions,
		allowedRoots:      roots,
	}
}

// ValidateSourcePath checks that path is a plausible image source
func (v *PathValidator) ValidateSourcePath(path string) error {
	if err := validateSource(path); err != nil {
		return err
	}

	if !v.IsImagePath(path) {
		return apperrors.NewUnreadableImageError(path, errors.New("file extension not allowed"))
	}

	if len(v.allowedRoots) > 0 && !v.isUnderAllowedRoot(path) {
		return apperrors.NewUnreadableImageError(path, errOutsideRoots)
	}

	return nil
}

// ValidateLocation checks only the allowed roots, so sources detected by
// content may carry any extension
func (v *PathValidator) ValidateLocation(path string) error {
	if path == "" || len(v.allowedRoots) == 0 || v.isUnderAllowedRoot(path) {
		return nil
	}
	return apperrors.NewUnreadableImageError(path, errOutsideRoots)
}

// ValidateOutputPath rejects destinations outside the allowed roots
func (v *PathValidator) ValidateOutputPath(path string) error {
	if path == "" || len(v.allowedRoots) == 0 || v.isUnderAllowedRoot(path) {
		return nil
	}
	return apperrors.NewUnwritableOutputError(path, errOutsideRoots)
}

// IsImagePath reports whether path carries one of the allowed extensions
func (v *PathValidator) IsImagePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range v.allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// isUnderAllowedRoot checks if the cleaned absolute path is inside one of the roots
func (v *PathValidator) isUnderAllowedRoot(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range v.allowedRoots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(rootAbs, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
