package imagesize

import (
	"fmt"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Dimensions decodes the image at path and returns its pixel size
func Dimensions(path string) (width, height int, err error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image %q: %w", path, err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// CellWidth divides the measured sheet width by the column count
func CellWidth(path string, columns int) (int, error) {
	if columns < 1 {
		return 0, fmt.Errorf("invalid column count %d", columns)
	}
	w, _, err := Dimensions(path)
	if err != nil {
		return 0, err
	}
	return w / columns, nil
}
