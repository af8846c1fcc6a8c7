// Package annotation holds the vector annotations a request paints over
// an image: their geometries, their per-annotation style and the
// envelope shared by the downstream region and rendering stages.
package annotation

import (
	"github.com/paulmach/orb"
)

// Annotation couples one geometry with its style. Geometry is one of
// orb.Point, orb.LineString, orb.Polygon or orb.MultiPolygon, stored
// top-left origin. Style fields a render mode ignores are nil.
type Annotation struct {
	Geometry    orb.Geometry
	FillColor   *Color
	StrokeColor *Color
	StrokeWidth float64
}

// IsPoint reports whether the annotation is a single point.
func (a Annotation) IsPoint() bool {
	_, ok := a.Geometry.(orb.Point)
	return ok
}

// Envelope returns the annotation's bounding rectangle. Point
// annotations expand to a square of side pointEnvelope centered on the
// point, so an isolated point still yields a usable region.
func (a Annotation) Envelope(pointEnvelope float64) orb.Bound {
	if p, ok := a.Geometry.(orb.Point); ok && pointEnvelope > 0 {
		half := pointEnvelope / 2
		return orb.Bound{
			Min: orb.Point{p.X() - half, p.Y() - half},
			Max: orb.Point{p.X() + half, p.Y() + half},
		}
	}
	return a.Geometry.Bound()
}

// Collection is an ordered set of annotations plus the derived envelope
// over all of them. The envelope is computed once and reused.
type Collection struct {
	Items []Annotation

	pointEnvelope float64
	envelope      *orb.Bound
}

// NewCollection builds a collection whose envelope derivation expands
// point annotations to squares of side pointEnvelope.
func NewCollection(items []Annotation, pointEnvelope float64) *Collection {
	return &Collection{Items: items, pointEnvelope: pointEnvelope}
}

// Len returns the number of annotations.
func (c *Collection) Len() int { return len(c.Items) }

// PointEnvelope returns the side length used for point expansion.
func (c *Collection) PointEnvelope() float64 { return c.pointEnvelope }

// Envelope returns the minimal bound enclosing every annotation, with
// point expansion applied. The zero bound is returned for an empty
// collection.
func (c *Collection) Envelope() orb.Bound {
	if c.envelope != nil {
		return *c.envelope
	}
	var b orb.Bound
	for i, a := range c.Items {
		e := a.Envelope(c.pointEnvelope)
		if i == 0 {
			b = e
		} else {
			b = b.Union(e)
		}
	}
	c.envelope = &b
	return b
}
