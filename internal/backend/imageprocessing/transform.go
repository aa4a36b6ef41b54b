package imageprocessing

import (
	"image"
	"math"
)

// Rect is a rectangle with fractional edges.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// RectFromPoint builds a rectangle centred on (x, y).
func RectFromPoint(x, y, width, height float64) Rect {
	return Rect{
		Left:   x - width/2,
		Top:    y - height/2,
		Right:  x + width/2,
		Bottom: y + height/2,
	}
}

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Bottom - r.Top }

func (r Rect) Centroid() (float64, float64) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

func (r Rect) translate(dx, dy float64) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// MoveToCover moves r, keeping its size, until it contains other on every
// side it can.
func (r Rect) MoveToCover(other Rect) Rect {
	if r.Left > other.Left {
		r = r.translate(other.Left-r.Left, 0)
	}
	if r.Right < other.Right {
		r = r.translate(other.Right-r.Right, 0)
	}
	if r.Top > other.Top {
		r = r.translate(0, other.Top-r.Top)
	}
	if r.Bottom < other.Bottom {
		r = r.translate(0, other.Bottom-r.Bottom)
	}
	return r
}

// MoveToClamp moves r, keeping its size, so it does not cross the edges of
// bounds.
func (r Rect) MoveToClamp(bounds Rect) Rect {
	if r.Left < bounds.Left {
		r = r.translate(bounds.Left-r.Left, 0)
	}
	if r.Right > bounds.Right {
		r = r.translate(bounds.Right-r.Right, 0)
	}
	if r.Top < bounds.Top {
		r = r.translate(0, bounds.Top-r.Top)
	}
	if r.Bottom > bounds.Bottom {
		r = r.translate(0, bounds.Bottom-r.Bottom)
	}
	return r
}

// Round snaps every edge to the nearest whole pixel.
func (r Rect) Round() Rect {
	return Rect{
		Left:   math.Round(r.Left),
		Top:    math.Round(r.Top),
		Right:  math.Round(r.Right),
		Bottom: math.Round(r.Bottom),
	}
}

func (r Rect) imageRect() image.Rectangle {
	rr := r.Round()
	return image.Rect(int(rr.Left), int(rr.Top), int(rr.Right), int(rr.Bottom))
}

// FocalPoint marks the area of an image that must survive cropping. X and Y
// are the centre of the area.
type FocalPoint struct {
	X, Y, Width, Height int
}

func (f FocalPoint) Rect() Rect {
	return RectFromPoint(float64(f.X), float64(f.Y), float64(f.Width), float64(f.Height))
}

// Transform describes the geometry of a rendition: the region of the source
// that is kept and the size it is scaled to.
type Transform struct {
	// Crop is in source pixel coordinates.
	Crop   Rect
	Width  int
	Height int
}

func NewTransform(width, height int) Transform {
	return Transform{
		Crop:   Rect{Right: float64(width), Bottom: float64(height)},
		Width:  width,
		Height: height,
	}
}

func (t Transform) scale() (float64, float64) {
	return t.Crop.Width() / float64(t.Width), t.Crop.Height() / float64(t.Height)
}

// CropTo keeps the region r, given in the current output coordinates.
func (t Transform) CropTo(r Rect) Transform {
	sx, sy := t.scale()
	return Transform{
		Crop: Rect{
			Left:   t.Crop.Left + r.Left*sx,
			Top:    t.Crop.Top + r.Top*sy,
			Right:  t.Crop.Left + r.Right*sx,
			Bottom: t.Crop.Top + r.Bottom*sy,
		},
		Width:  int(math.Round(r.Width())),
		Height: int(math.Round(r.Height())),
	}
}

// Resize changes the output size without changing the kept region.
func (t Transform) Resize(width, height int) Transform {
	t.Width = max(width, 1)
	t.Height = max(height, 1)
	return t
}

// ToOutput maps a rectangle in source coordinates into the current output
// coordinates.
func (t Transform) ToOutput(r Rect) Rect {
	sx, sy := t.scale()
	return Rect{
		Left:   (r.Left - t.Crop.Left) / sx,
		Top:    (r.Top - t.Crop.Top) / sy,
		Right:  (r.Right - t.Crop.Left) / sx,
		Bottom: (r.Bottom - t.Crop.Top) / sy,
	}
}
