package testsupport

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// WriteImage renders a small gradient image at path. The encoding follows the
// file extension (jpg, png, gif, tif, bmp).
func WriteImage(t testing.TB, path string, width, height int) {
	t.Helper()

	if width <= 0 {
		width = 16
	}
	if height <= 0 {
		height = 16
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := imaging.New(width, height, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 128, A: 255})
		}
	}
	if err := imaging.Save(image.Image(img), path); err != nil {
		t.Fatalf("save image %s: %v", path, err)
	}
}

// WriteText writes a non-image file, used to exercise intake filtering.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
