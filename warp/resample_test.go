package warp

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridForImage(t *testing.T) {
	g := GridForImage(image.NewRGBA(image.Rect(5, 5, 12, 9)))
	assert.Equal(t, 4, g.Rows)
	assert.Equal(t, 7, g.Cols)
	assert.Equal(t, Point{3, 6}, g.At(3, 6))
}

func TestRemap_Identity(t *testing.T) {
	src := gradientImage(6, 4)
	m := &MappingGrid{Rows: 4, Cols: 6, Coords: make([]Index, 24)}
	for r := 0; r < 4; r++ {
		for c := 0; c < 6; c++ {
			m.Coords[r*6+c] = Index{r, c}
		}
	}

	out, err := Remap(src, m)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestRemap_SamplesMappedIndex(t *testing.T) {
	src := gradientImage(3, 2)
	m := &MappingGrid{Rows: 2, Cols: 3, Coords: []Index{
		{1, 2}, {1, 2}, {0, 0},
		{0, 1}, {1, 0}, {1, 1},
	}}

	out, err := Remap(src, m)
	require.NoError(t, err)
	assert.Equal(t, src.NRGBAAt(2, 1), out.NRGBAAt(0, 0))
	assert.Equal(t, src.NRGBAAt(2, 1), out.NRGBAAt(1, 0))
	assert.Equal(t, src.NRGBAAt(0, 0), out.NRGBAAt(2, 0))
	assert.Equal(t, src.NRGBAAt(1, 0), out.NRGBAAt(0, 1))
	assert.Equal(t, src.NRGBAAt(0, 1), out.NRGBAAt(1, 1))
}

func TestRemap_OffsetBoundsAndPalette(t *testing.T) {
	// a paletted image with a non-zero origin is normalized before sampling
	palette := color.Palette{color.Black, color.White}
	src := image.NewPaletted(image.Rect(10, 20, 12, 21), palette)
	src.SetColorIndex(11, 20, 1)

	m := &MappingGrid{Rows: 1, Cols: 2, Coords: []Index{{0, 1}, {0, 0}}}
	out, err := Remap(src, m)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 1), out.Bounds())
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.NRGBAAt(1, 0))
}

func TestRemap_DimensionMismatch(t *testing.T) {
	_, err := Remap(gradientImage(4, 4), &MappingGrid{Rows: 4, Cols: 3, Coords: make([]Index, 12)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping is 4x3 but image is 4x4")
}

func TestRemap_TranslationWarp(t *testing.T) {
	// moving content at (2,2) to (3,4) samples every destination pixel from (-1,-2) away
	src := gradientImage(10, 8)
	grid := GridForImage(src)
	m, err := NewDeformer(DefaultOptions()).Deform(context.Background(), grid,
		ControlPoints{P: []Point{{2, 2}}, Q: []Point{{3, 4}}}, Rigid)
	require.NoError(t, err)

	out, err := Remap(src, m)
	require.NoError(t, err)
	assert.Equal(t, src.NRGBAAt(2, 2), out.NRGBAAt(4, 3))
	assert.Equal(t, src.NRGBAAt(5, 6), out.NRGBAAt(7, 7))
	// rows above the shift replicate the top edge
	assert.Equal(t, src.NRGBAAt(0, 0), out.NRGBAAt(0, 0))
}
