package warp

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// GridForImage returns the grid of an image's own pixel positions, rows = height
func GridForImage(img image.Image) *Grid {
	b := img.Bounds()
	return NewGrid(b.Dy(), b.Dx())
}

// Remap synthesizes the warped image by nearest-neighbour sampling src at every
// mapped source index. The mapping must cover exactly the image's bounds.
func Remap(src image.Image, m *MappingGrid) (*image.NRGBA, error) {
	b := src.Bounds()
	if m.Rows != b.Dy() || m.Cols != b.Dx() {
		return nil, fmt.Errorf("mapping is %dx%d but image is %dx%d", m.Rows, m.Cols, b.Dy(), b.Dx())
	}

	// Normalize to NRGBA with the origin at (0, 0) so Pix can be indexed directly
	in := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(in, in.Bounds(), src, b.Min, draw.Src)

	out := image.NewNRGBA(in.Bounds())
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			idx := m.Coords[r*m.Cols+c]
			so := in.PixOffset(idx.Col, idx.Row)
			do := out.PixOffset(c, r)
			copy(out.Pix[do:do+4], in.Pix[so:so+4])
		}
	}
	return out, nil
}
