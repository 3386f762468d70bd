package occupancy

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
)

// PathColor is the stroke color of a path drawn over a rendered map.
var PathColor = color.NRGBA{R: 30, G: 60, B: 220, A: 255}

// PixelOf returns the position of map frame point (x, y) in a rendering of geo that has been
// flipped so row 0 is the maximum-y edge and upscaled by scale pixels per cell.
func (geo Geometry) PixelOf(x, y float64, scale int) (px, py float64) {
	s := float64(max(scale, 1))
	px = (x - geo.OriginX) / geo.Resolution * s
	py = float64(geo.Height)*s - (y-geo.OriginY)/geo.Resolution*s
	return px, py
}

// DrawPath strokes path, given in the map frame, over img and marks its final point. img must
// be a rendering of geo at scale pixels per cell. Points need not lie on the map.
func DrawPath(img image.Image, geo Geometry, scale int, path []r2.Point) image.Image {
	if len(path) == 0 {
		return img
	}
	dc := gg.NewContextForImage(img)
	dc.SetColor(PathColor)
	dc.SetLineWidth(math.Max(1, float64(scale)/3))
	for i, p := range path {
		px, py := geo.PixelOf(p.X, p.Y, scale)
		if i == 0 {
			dc.MoveTo(px, py)
			continue
		}
		dc.LineTo(px, py)
	}
	dc.Stroke()

	last := path[len(path)-1]
	px, py := geo.PixelOf(last.X, last.Y, scale)
	dc.DrawCircle(px, py, math.Max(1.5, float64(scale)/2))
	dc.Fill()
	return dc.Image()
}
