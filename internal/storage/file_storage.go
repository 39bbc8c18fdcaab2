package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/google/uuid"
)

// ImageStore reads sources and writes results
type ImageStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
	Exists(path string) (bool, error)
	WriteAtomic(ctx context.Context, path string, data []byte, overwrite bool) error
}

// FileStorage implements ImageStore on the local filesystem
type FileStorage struct {
	dirMode  fs.FileMode
	fileMode fs.FileMode
}

// NewFileStorage creates a local file store
func NewFileStorage() *FileStorage {
	return &FileStorage{
		dirMode:  0o755,
		fileMode: 0o644,
	}
}

// Read loads a source file; every failure is reported as an unreadable image
func (s *FileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewUnreadableImageError(path, err)
	}
	if info.IsDir() {
		return nil, apperrors.NewUnreadableImageError(path, errors.New("path is a directory"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewUnreadableImageError(path, err)
	}
	return data, nil
}

func (s *FileStorage) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Exists reports whether something is present at path
func (s *FileStorage) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// WriteAtomic writes data next to path and commits it in one step. Without
// overwrite the commit is a hard link, which fails if path appeared in the
// meantime; with overwrite it is a rename. The temp file never survives.
func (s *FileStorage) WriteAtomic(ctx context.Context, path string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return apperrors.NewUnwritableOutputError(path, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := s.writeSynced(tmp, data); err != nil {
		os.Remove(tmp)
		return apperrors.NewUnwritableOutputError(path, err)
	}
	defer os.Remove(tmp)

	if err := ctx.Err(); err != nil {
		return err
	}

	if overwrite {
		if err := os.Rename(tmp, path); err != nil {
			return apperrors.NewUnwritableOutputError(path, err)
		}
		syncDir(dir)
		return nil
	}

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return apperrors.NewOutputExistsError(path)
		}
		// filesystems without hard links still get a no-clobber create
		if err := s.createExclusive(path, data); err != nil {
			return err
		}
	}
	syncDir(dir)
	return nil
}

func (s *FileStorage) writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.fileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *FileStorage) createExclusive(path string, data []byte) error {
	if err := s.writeSynced(path, data); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return apperrors.NewOutputExistsError(path)
		}
		os.Remove(path)
		return apperrors.NewUnwritableOutputError(path, err)
	}
	return nil
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
}

// DeriveOutputPath places the output next to the source, or in outputDir
// when given, with the extension of format
func DeriveOutputPath(source string, format models.Format, outputDir string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, stem+format.Extension())
}

// ListImages returns the files under dir accepted by match, sorted by path.
// Hidden files, including our own temp files, are skipped.
func ListImages(dir string, recursive bool, match func(string) bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, apperrors.NewUnreadableImageError(dir, err)
	}
	if !info.IsDir() {
		return nil, apperrors.NewUnreadableImageError(dir, errors.New("not a directory"))
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if match(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewUnreadableImageError(dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
