package render

import (
	"image"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"

	"github.com/wsiview/wsiview/annotation"
)

// crossArm is the half extent, in output pixels, of the cross marker
// drawn for point annotations.
const crossArm = 10

// RenderMask rasterizes the annotations alone: every geometry is
// filled with its fill color over a black background. Strokes never
// apply here and the result is always 8 bit, grayscale whenever every
// fill sits on the gray axis.
func RenderMask(c *annotation.Collection, af Affine, width, height int) *Raster {
	dc := gg.NewContext(width, height)
	dc.SetFillRule(gg.FillRuleEvenOdd)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	gray := true
	for _, a := range c.Items {
		fill := a.FillColor
		if fill == nil {
			fill = &annotation.White
		}
		if !fill.IsGray() {
			gray = false
		}
		dc.SetRGBA255(int(fill.R), int(fill.G), int(fill.B), 255)
		paintFill(dc, af.ApplyGeometry(a.Geometry))
	}

	img := dc.Image().(*image.RGBA)
	if gray {
		out := image.NewGray(img.Bounds())
		for i := range out.Pix {
			out.Pix[i] = img.Pix[4*i]
		}
		return &Raster{Gray: out}
	}
	return &Raster{Color: nrgbaView(img)}
}

// RenderCrop keeps the composed raster as visible content and pushes
// every pixel outside the annotations towards transparency.
// backgroundTransparency runs from 0 (background untouched) to 100
// (background fully erased).
func RenderCrop(r *Raster, c *annotation.Collection, af Affine, backgroundTransparency int) *Raster {
	if backgroundTransparency <= 0 {
		return r
	}
	if backgroundTransparency > 100 {
		backgroundTransparency = 100
	}

	b := r.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.SetFillRule(gg.FillRuleEvenOdd)
	dc.SetRGB(1, 1, 1)
	if c != nil {
		for _, a := range c.Items {
			paintFill(dc, af.ApplyGeometry(a.Geometry))
		}
	}
	cov := dc.Image().(*image.RGBA)

	// Alpha of a background pixel once the requested share of it is
	// erased; covered pixels keep full opacity, edge pixels blend.
	floor := uint32(255 * (100 - backgroundTransparency) / 100)

	r.EnsureColor()
	n := b.Dx() * b.Dy()
	if r.Color64 != nil {
		for i := 0; i < n; i++ {
			covA := uint32(cov.Pix[4*i+3])
			a16 := uint16((covA + (255-covA)*floor/255) * 257)
			r.Color64.Pix[8*i+6] = uint8(a16 >> 8)
			r.Color64.Pix[8*i+7] = uint8(a16)
		}
		return r
	}
	for i := 0; i < n; i++ {
		covA := uint32(cov.Pix[4*i+3])
		r.Color.Pix[4*i+3] = uint8(covA + (255-covA)*floor/255)
	}
	return r
}

// RenderDrawing strokes each annotation over the composed raster with
// its own stroke style, filling shapes that carry a fill color. Point
// annotations become a cross marker or the outline of their envelope.
// The result is always 8 bit.
func RenderDrawing(r *Raster, c *annotation.Collection, af Affine, pointCross bool, pointEnvelope float64) *Raster {
	if c == nil || c.Len() == 0 {
		return r
	}

	dc := gg.NewContextForImage(r.Image())
	dc.SetFillRule(gg.FillRuleEvenOdd)
	for _, a := range c.Items {
		g := af.ApplyGeometry(a.Geometry)
		if f := a.FillColor; f != nil {
			switch tg := g.(type) {
			case orb.Polygon:
				dc.SetRGBA255(int(f.R), int(f.G), int(f.B), int(f.A))
				tracePolygon(dc, tg)
				dc.Fill()
			case orb.MultiPolygon:
				dc.SetRGBA255(int(f.R), int(f.G), int(f.B), int(f.A))
				for _, p := range tg {
					tracePolygon(dc, p)
				}
				dc.Fill()
			}
		}
		if s := a.StrokeColor; s != nil && a.StrokeWidth > 0 {
			dc.SetRGBA255(int(s.R), int(s.G), int(s.B), int(s.A))
			dc.SetLineWidth(a.StrokeWidth)
			strokeGeometry(dc, g, af, pointCross, pointEnvelope)
		}
	}
	return &Raster{Color: nrgbaView(dc.Image().(*image.RGBA))}
}

// paintFill fills a geometry for mask or coverage purposes. Lines are
// traced one pixel wide and points cover a single pixel, so every
// geometry kind leaves a mark.
func paintFill(dc *gg.Context, g orb.Geometry) {
	switch tg := g.(type) {
	case orb.Point:
		dc.DrawRectangle(tg[0], tg[1], 1, 1)
		dc.Fill()
	case orb.LineString:
		tracePath(dc, tg)
		dc.SetLineWidth(1)
		dc.Stroke()
	case orb.Polygon:
		tracePolygon(dc, tg)
		dc.Fill()
	case orb.MultiPolygon:
		for _, p := range tg {
			tracePolygon(dc, p)
		}
		dc.Fill()
	}
}

func strokeGeometry(dc *gg.Context, g orb.Geometry, af Affine, pointCross bool, pointEnvelope float64) {
	switch tg := g.(type) {
	case orb.Point:
		if pointCross {
			dc.DrawLine(tg[0]-crossArm, tg[1], tg[0]+crossArm, tg[1])
			dc.DrawLine(tg[0], tg[1]-crossArm, tg[0], tg[1]+crossArm)
		} else {
			hw := pointEnvelope * af[0] / 2
			hh := pointEnvelope * af[4] / 2
			dc.DrawRectangle(tg[0]-hw, tg[1]-hh, 2*hw, 2*hh)
		}
		dc.Stroke()
	case orb.LineString:
		tracePath(dc, tg)
		dc.Stroke()
	case orb.Polygon:
		tracePolygon(dc, tg)
		dc.Stroke()
	case orb.MultiPolygon:
		for _, p := range tg {
			tracePolygon(dc, p)
		}
		dc.Stroke()
	}
}

func tracePath(dc *gg.Context, ls orb.LineString) {
	for i, pt := range ls {
		if i == 0 {
			dc.MoveTo(pt[0], pt[1])
			continue
		}
		dc.LineTo(pt[0], pt[1])
	}
}

func tracePolygon(dc *gg.Context, p orb.Polygon) {
	for _, ring := range p {
		dc.NewSubPath()
		for i, pt := range ring {
			if i == 0 {
				dc.MoveTo(pt[0], pt[1])
				continue
			}
			dc.LineTo(pt[0], pt[1])
		}
		dc.ClosePath()
	}
}

// nrgbaView reads a fully opaque RGBA image as NRGBA without copying;
// with alpha at 255 the premultiplied bytes are already the straight
// values.
func nrgbaView(img *image.RGBA) *image.NRGBA {
	return &image.NRGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
}
