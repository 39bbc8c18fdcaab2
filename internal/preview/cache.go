// Package preview renders fixed-size previews for the front-end and keeps
// the most recently used ones in memory. It sits outside the transform
// contract and never writes files.
package preview

import (
	"container/list"
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/anime-shed/imgtool-go/internal/codec"
	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/geometry"
	"github.com/anime-shed/imgtool-go/internal/metadata"
	"github.com/anime-shed/imgtool-go/internal/storage"
	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/disintegration/imaging"
)

const (
	DefaultSize     = 420
	DefaultCapacity = 32
)

// key identifies one version of a file
type key struct {
	path    string
	modTime int64
	size    int64
}

type entry struct {
	key key
	img *image.NRGBA
}

// Stats reports cache usage
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Renderer renders square previews and caches them LRU
type Renderer struct {
	store    storage.ImageStore
	size     int
	capacity int

	mu     sync.Mutex
	order  *list.List
	items  map[key]*list.Element
	hits   int64
	misses int64
}

// NewRenderer creates a renderer; non-positive size or capacity use the defaults
func NewRenderer(store storage.ImageStore, size, capacity int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Renderer{
		store:    store,
		size:     size,
		capacity: capacity,
		order:    list.New(),
		items:    make(map[key]*list.Element),
	}
}

// Render returns the preview of path: the upright image scaled down to fit
// the square, centered on opaque black. Images that already fit are not upscaled.
func (r *Renderer) Render(ctx context.Context, path string) (*image.NRGBA, error) {
	info, err := r.store.Stat(path)
	if err != nil {
		return nil, apperrors.NewUnreadableImageError(path, err)
	}
	k := key{path: path, modTime: info.ModTime().UnixNano(), size: info.Size()}

	if img, ok := r.lookup(k); ok {
		return img, nil
	}

	img, err := r.render(ctx, path)
	if err != nil {
		return nil, err
	}
	r.insert(k, img)
	return img, nil
}

func (r *Renderer) render(ctx context.Context, path string) (*image.NRGBA, error) {
	data, err := r.store.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	decoded, err := codec.Decode(data)
	if err != nil {
		return nil, apperrors.NewUnreadableImageError(path, err)
	}
	img := decoded.Image
	if block, _ := metadata.Extract(data); block != nil {
		img = metadata.Apply(img, block.Orientation)
	}

	b := img.Bounds()
	if b.Dx() > r.size || b.Dy() > r.size {
		geom, err := geometry.Resolve(b.Dx(), b.Dy(), geometry.Target{
			Width:      &r.size,
			Height:     &r.size,
			KeepAspect: true,
			Fit:        models.FitContain,
		})
		if err != nil {
			return nil, err
		}
		img = imaging.Resize(img, geom.Width, geom.Height, imaging.Lanczos)
	}

	canvas := imaging.New(r.size, r.size, color.Black)
	return imaging.PasteCenter(canvas, img), nil
}

func (r *Renderer) lookup(k key) (*image.NRGBA, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.items[k]; ok {
		r.order.MoveToFront(el)
		r.hits++
		return el.Value.(*entry).img, true
	}
	r.misses++
	return nil, false
}

func (r *Renderer) insert(k key, img *image.NRGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.items[k]; ok {
		r.order.MoveToFront(el)
		return
	}
	r.items[k] = r.order.PushFront(&entry{key: k, img: img})
	for r.order.Len() > r.capacity {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.items, oldest.Value.(*entry).key)
	}
}

// Stats returns a snapshot of cache usage
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Entries: r.order.Len(), Hits: r.hits, Misses: r.misses}
}
