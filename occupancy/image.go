package occupancy

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// UnknownIntensity is the gray level of unknown cells.
const UnknownIntensity uint8 = 50

// Heatmap colors.
var (
	FreeColor     = colorful.Color{R: 0.1, G: 0.7, B: 0.2}
	OccupiedColor = colorful.Color{R: 0.85, G: 0.1, B: 0.1}
	UnknownColor  = colorful.Color{R: 0.5, G: 0.5, B: 0.5}
)

// Intensity converts an exported cell value to a gray level: 255 for certainly free down
// to 0 for certainly occupied.
func Intensity(v int8) uint8 {
	if v < 0 || v > 100 {
		return UnknownIntensity
	}
	return uint8((100 - int(v)) * 255 / 100)
}

// Gray renders the snapshot as one pixel per cell. Image row 0 is the grid's maximum-y edge.
func (s Snapshot) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.Width, s.Height))
	for row := 0; row < s.Height; row++ {
		y := s.Height - 1 - row
		for col := 0; col < s.Width; col++ {
			img.Pix[y*img.Stride+col] = Intensity(s.At(col, row))
		}
	}
	return img
}

// HeatmapColor blends from FreeColor to OccupiedColor by occupancy.
func HeatmapColor(v int8) color.NRGBA {
	c := UnknownColor
	if v >= 0 && v <= 100 {
		c = FreeColor.BlendLab(OccupiedColor, float64(v)/100).Clamped()
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Heatmap renders the snapshot in color, oriented like Gray.
func (s Snapshot) Heatmap() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for row := 0; row < s.Height; row++ {
		for col := 0; col < s.Width; col++ {
			img.SetNRGBA(col, row, HeatmapColor(s.At(col, row)))
		}
	}
	return imaging.FlipV(img)
}

// Upscale enlarges img by an integer factor, keeping cell edges sharp.
func Upscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	bounds := img.Bounds()
	return imaging.Resize(img, bounds.Dx()*factor, bounds.Dy()*factor, imaging.NearestNeighbor)
}
