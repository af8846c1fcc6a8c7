package render

import (
	"github.com/paulmach/orb"
	"github.com/wsiview/wsiview/pyramid"
	"golang.org/x/image/math/f64"
)

// Affine is a row-major 2x3 affine transform mapping image coordinates
// inside a region onto output raster coordinates.
type Affine f64.Aff3

// BuildAffine maps the region's top-left corner to the raster origin
// and its bottom-right corner to (width, height). A zero extent on
// either axis becomes a unit scale factor, so a degenerate region
// lands on a single pixel instead of dividing by zero.
func BuildAffine(region pyramid.Region, width, height int) Affine {
	sx, sy := 1.0, 1.0
	if region.Width > 0 {
		sx = float64(width) / region.Width
	}
	if region.Height > 0 {
		sy = float64(height) / region.Height
	}
	return Affine{
		sx, 0, -region.X * sx,
		0, sy, -region.Y * sy,
	}
}

// Apply transforms one coordinate pair.
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a[0]*x + a[1]*y + a[2], a[3]*x + a[4]*y + a[5]
}

// ApplyPoint transforms an orb point.
func (a Affine) ApplyPoint(p orb.Point) orb.Point {
	x, y := a.Apply(p.X(), p.Y())
	return orb.Point{x, y}
}

// ApplyGeometry transforms a whole geometry into raster space.
func (a Affine) ApplyGeometry(g orb.Geometry) orb.Geometry {
	switch v := g.(type) {
	case orb.Point:
		return a.ApplyPoint(v)
	case orb.LineString:
		out := make(orb.LineString, len(v))
		for i, p := range v {
			out[i] = a.ApplyPoint(p)
		}
		return out
	case orb.Polygon:
		return a.applyPolygon(v)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, poly := range v {
			out[i] = a.applyPolygon(poly)
		}
		return out
	}
	return g
}

func (a Affine) applyPolygon(poly orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		r := make(orb.Ring, len(ring))
		for j, p := range ring {
			r[j] = a.ApplyPoint(p)
		}
		out[i] = r
	}
	return out
}
