// Package preview renders small JPEG previews for queued uploads and tracks
// their lifetime. Each Handle is owned by exactly one upload item and must be
// released when that item leaves the queue.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
)

// Handle references a rendered preview file.
type Handle struct {
	path     string
	owned    bool
	once     sync.Once
	released atomic.Bool
	err      error
}

// Path returns the file to display. For borrowed handles this is the source image.
func (h *Handle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// Owned reports whether Release deletes the file.
func (h *Handle) Owned() bool {
	return h != nil && h.owned
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h != nil && h.released.Load()
}

// Release frees the preview. Only the first call has any effect; later calls
// return the first call's result.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		h.released.Store(true)
		if !h.owned {
			return
		}
		if err := os.Remove(h.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.err = fmt.Errorf("remove preview %s: %w", h.path, err)
		}
	})
	return h.err
}

// Borrowed wraps a path the handle does not own; releasing it leaves the file alone.
func Borrowed(path string) *Handle {
	return &Handle{path: path}
}

// Generator writes previews into a directory.
type Generator struct {
	dir   string
	width int
}

// NewGenerator returns a Generator that scales images down to width pixels wide.
func NewGenerator(dir string, width int) *Generator {
	if width <= 0 {
		width = 320
	}
	return &Generator{dir: dir, width: width}
}

// Create renders a preview of src. When src cannot be decoded the returned
// handle borrows src itself and err explains why.
func (g *Generator) Create(ctx context.Context, src string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return Borrowed(src), err
	}
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return Borrowed(src), fmt.Errorf("decode %s: %w", src, err)
	}
	if img.Bounds().Dx() > g.width {
		img = imaging.Resize(img, g.width, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return Borrowed(src), fmt.Errorf("ensure preview dir: %w", err)
	}
	file, err := os.CreateTemp(g.dir, "preview-*.jpg")
	if err != nil {
		return Borrowed(src), fmt.Errorf("create preview file: %w", err)
	}
	path := file.Name()
	if err := imaging.Encode(file, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		file.Close()
		_ = os.Remove(path)
		return Borrowed(src), fmt.Errorf("encode preview: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return Borrowed(src), fmt.Errorf("close preview: %w", err)
	}
	return &Handle{path: path, owned: true}, nil
}
