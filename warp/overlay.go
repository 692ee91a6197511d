package warp

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayRenderer draws control point displacements over the image extent:
// a marker at each original point, a line to its target and a marker at the target.
type OverlayRenderer struct {
	Rows        int
	Cols        int
	Pairs       []ControlPointPair
	Padding     float64           // Padding around the image extent, in pixels
	GridSpacing float64           // Reference grid spacing in pixels; 0 disables the grid
	MarkerSize  float64           // Marker radius in pixels
	Resolution  canvas.Resolution // Resolution for PNG output
	FromColor   color.RGBA
	ToColor     color.RGBA
	Caption     string // Drawn in the top-left corner of PNG output
}

// NewOverlayRenderer creates an overlay renderer with default styling
func NewOverlayRenderer(rows, cols int, pairs []ControlPointPair) *OverlayRenderer {
	return &OverlayRenderer{
		Rows:        rows,
		Cols:        cols,
		Pairs:       pairs,
		Padding:     10,
		GridSpacing: 50,
		MarkerSize:  3,
		Resolution:  canvas.DPMM(1), // one output pixel per image pixel
		FromColor:   color.RGBA{R: 0, G: 102, B: 204, A: 255},
		ToColor:     color.RGBA{R: 204, G: 0, B: 0, A: 255},
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

func (r *OverlayRenderer) size() (float64, float64) {
	return float64(r.Cols) + 2*r.Padding, float64(r.Rows) + 2*r.Padding
}

// RenderToSVG writes the overlay as an SVG to the provided writer
func (r *OverlayRenderer) RenderToSVG(w io.Writer) error {
	width, height := r.size()
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the overlay as a PNG to the provided writer
func (r *OverlayRenderer) RenderToPNG(w io.Writer) error {
	width, height := r.size()
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)
	if r.Caption == "" {
		return png.Encode(w, rast)
	}

	img := image.NewRGBA(rast.Bounds())
	draw.Draw(img, img.Bounds(), rast, rast.Bounds().Min, draw.Src)
	drawCaption(img, 2, 11, r.Caption, color.RGBA{A: 255})
	return png.Encode(w, img)
}

// drawCaption renders text onto img with its baseline at (x, y)
func drawCaption(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// toCanvas converts image (row, col) to canvas coordinates, whose y axis points up
func (r *OverlayRenderer) toCanvas(p Point) (float64, float64) {
	return p.Col + r.Padding, float64(r.Rows) - p.Row + r.Padding
}

func (r *OverlayRenderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// Image extent
	frameStyle := canvas.DefaultStyle
	frameStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	frameStyle.Stroke = canvas.Paint{Color: canvas.Black}
	frameStyle.StrokeWidth = 1
	frame := canvas.Rectangle(float64(r.Cols), float64(r.Rows)).Translate(r.Padding, r.Padding)
	renderer.RenderPath(frame, frameStyle, canvas.Identity)

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: color.RGBA{R: 211, G: 211, B: 211, A: 255}}
		gridStyle.StrokeWidth = 0.5

		gridPath := &canvas.Path{}
		for c := r.GridSpacing; c < float64(r.Cols); c += r.GridSpacing {
			x0, y0 := r.toCanvas(Point{Row: 0, Col: c})
			x1, y1 := r.toCanvas(Point{Row: float64(r.Rows), Col: c})
			gridPath.MoveTo(x0, y0)
			gridPath.LineTo(x1, y1)
		}
		for row := r.GridSpacing; row < float64(r.Rows); row += r.GridSpacing {
			x0, y0 := r.toCanvas(Point{Row: row, Col: 0})
			x1, y1 := r.toCanvas(Point{Row: row, Col: float64(r.Cols)})
			gridPath.MoveTo(x0, y0)
			gridPath.LineTo(x1, y1)
		}
		renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
	}

	lineStyle := canvas.DefaultStyle
	lineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	lineStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	lineStyle.StrokeWidth = 1

	fromStyle := canvas.DefaultStyle
	fromStyle.Fill = canvas.Paint{Color: r.FromColor}
	fromStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

	toStyle := canvas.DefaultStyle
	toStyle.Fill = canvas.Paint{Color: r.ToColor}
	toStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

	for _, pair := range r.Pairs {
		fx, fy := r.toCanvas(pair.From)
		tx, ty := r.toCanvas(pair.To)

		line := &canvas.Path{}
		line.MoveTo(fx, fy)
		line.LineTo(tx, ty)
		renderer.RenderPath(line, lineStyle, canvas.Identity)

		renderer.RenderPath(canvas.Circle(r.MarkerSize).Translate(fx, fy), fromStyle, canvas.Identity)
		renderer.RenderPath(canvas.Circle(r.MarkerSize).Translate(tx, ty), toStyle, canvas.Identity)
	}
}
