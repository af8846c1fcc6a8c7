package pyramid

import (
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
)

// Region is an axis-aligned rectangle in base-image pixel coordinates,
// top-left origin. Extents stay in floating point until a read needs
// integer pixels; a zero-area region is valid and means "one pixel" to
// the stages that consume it.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// RegionFromBound converts a geometry envelope into a region.
func RegionFromBound(b orb.Bound) Region {
	return Region{
		X:      b.Min.X(),
		Y:      b.Min.Y(),
		Width:  b.Max.X() - b.Min.X(),
		Height: b.Max.Y() - b.Min.Y(),
	}
}

func (r Region) String() string {
	return fmt.Sprintf("%gx%g%+g%+g", r.Width, r.Height, r.X, r.Y)
}

// Right returns the x coordinate of the right edge.
func (r Region) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Region) Bottom() float64 { return r.Y + r.Height }

// Area returns the region area in square pixels.
func (r Region) Area() float64 { return r.Width * r.Height }

// Empty reports whether the region has no area.
func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Inflate scales both extents by factor around the region center.
// A factor of 1 is a no-op, factors below 1 shrink the region.
func (r Region) Inflate(factor float64) Region {
	w := r.Width * factor
	h := r.Height * factor
	return Region{
		X:      r.X + (r.Width-w)/2,
		Y:      r.Y + (r.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// Square extends the shorter extent to match the longer one, keeping
// the center. It never shrinks.
func (r Region) Square() Region {
	if r.Width == r.Height {
		return r
	}
	side := math.Max(r.Width, r.Height)
	return Region{
		X:      r.X + (r.Width-side)/2,
		Y:      r.Y + (r.Height-side)/2,
		Width:  side,
		Height: side,
	}
}

// Clip intersects the region with [0,0,width,height]. A region fully
// outside collapses to a zero-area region on the nearest edge.
func (r Region) Clip(width, height float64) Region {
	x0 := math.Min(math.Max(r.X, 0), width)
	y0 := math.Min(math.Max(r.Y, 0), height)
	x1 := math.Min(math.Max(r.Right(), 0), width)
	y1 := math.Min(math.Max(r.Bottom(), 0), height)
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Scale divides all coordinates by the tier downsample factor, mapping
// the region into that tier's coordinate space.
func (r Region) Scale(downsample float64) Region {
	return Region{
		X:      r.X / downsample,
		Y:      r.Y / downsample,
		Width:  r.Width / downsample,
		Height: r.Height / downsample,
	}
}

// IntRect rounds the region outward to whole pixels, at least 1x1,
// clamped to the given extent. The extent must be at least one pixel.
func (r Region) IntRect(width, height int) image.Rectangle {
	x0 := clampInt(int(math.Floor(r.X)), 0, width-1)
	y0 := clampInt(int(math.Floor(r.Y)), 0, height-1)
	x1 := clampInt(int(math.Ceil(r.Right())), x0+1, width)
	y1 := clampInt(int(math.Ceil(r.Bottom())), y0+1, height)
	return image.Rect(x0, y0, x1, y1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
