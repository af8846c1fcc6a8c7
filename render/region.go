package render

import (
	"github.com/wsiview/wsiview/annotation"
	"github.com/wsiview/wsiview/pyramid"
)

// RegionOf derives the region of interest for a collection: the
// envelope of every annotation, scaled by the context factor around
// its center, optionally extended to a square, and clipped to the
// image extent. An empty collection selects the whole image, which is
// what crop and drawing requests without annotations render.
func RegionOf(c *annotation.Collection, contextFactor float64, trySquare bool, info pyramid.Info) pyramid.Region {
	if c == nil || c.Len() == 0 {
		return pyramid.Region{Width: float64(info.Width), Height: float64(info.Height)}
	}
	region := pyramid.RegionFromBound(c.Envelope())
	if contextFactor >= 0 && contextFactor != 1 {
		region = region.Inflate(contextFactor)
	}
	if trySquare {
		region = region.Square()
	}
	return region.Clip(float64(info.Width), float64(info.Height))
}
