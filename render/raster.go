package render

import (
	"image"
	"image/draw"
)

// Raster is the composed pixel buffer the renderer paints on and the
// encoder serializes. Exactly one variant is populated, selected by
// bit depth and colorspace.
type Raster struct {
	Gray    *image.Gray
	Gray16  *image.Gray16
	Color   *image.NRGBA
	Color64 *image.NRGBA64
}

// NewRaster allocates a raster of the given geometry. Bits other than
// 16 mean 8.
func NewRaster(width, height, bits int, gray bool) *Raster {
	rect := image.Rect(0, 0, width, height)
	switch {
	case gray && bits == 16:
		return &Raster{Gray16: image.NewGray16(rect)}
	case gray:
		return &Raster{Gray: image.NewGray(rect)}
	case bits == 16:
		return &Raster{Color64: image.NewNRGBA64(rect)}
	default:
		return &Raster{Color: image.NewNRGBA(rect)}
	}
}

// Image returns the populated variant.
func (r *Raster) Image() image.Image {
	switch {
	case r.Gray != nil:
		return r.Gray
	case r.Gray16 != nil:
		return r.Gray16
	case r.Color64 != nil:
		return r.Color64
	default:
		return r.Color
	}
}

// Drawable returns the populated variant as a mutable image.
func (r *Raster) Drawable() draw.Image {
	switch {
	case r.Gray != nil:
		return r.Gray
	case r.Gray16 != nil:
		return r.Gray16
	case r.Color64 != nil:
		return r.Color64
	default:
		return r.Color
	}
}

// Bounds returns the pixel rectangle.
func (r *Raster) Bounds() image.Rectangle {
	return r.Image().Bounds()
}

// Bits returns the sample depth of the populated variant.
func (r *Raster) Bits() int {
	if r.Gray16 != nil || r.Color64 != nil {
		return 16
	}
	return 8
}

// IsGray reports whether the raster is single-band.
func (r *Raster) IsGray() bool {
	return r.Gray != nil || r.Gray16 != nil
}

// EnsureColor converts a single-band raster into its color counterpart
// at the same depth, so colored annotations can be painted over it.
func (r *Raster) EnsureColor() {
	switch {
	case r.Gray != nil:
		dst := image.NewNRGBA(r.Gray.Bounds())
		draw.Draw(dst, dst.Bounds(), r.Gray, r.Gray.Bounds().Min, draw.Src)
		r.Gray = nil
		r.Color = dst
	case r.Gray16 != nil:
		dst := image.NewNRGBA64(r.Gray16.Bounds())
		draw.Draw(dst, dst.Bounds(), r.Gray16, r.Gray16.Bounds().Min, draw.Src)
		r.Gray16 = nil
		r.Color64 = dst
	}
}
