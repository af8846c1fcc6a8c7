// Package pyramid describes multi-resolution images: their tier layout,
// the planes they carry along the channel, depth and time axes, and the
// regions of their coordinate space that a request can address.
package pyramid

import (
	"fmt"
	"math"
)

// Tier is one resolution of a pyramidal image. Level 0 is the full
// resolution; each deeper level halves the previous dimensions.
type Tier struct {
	Level      int
	Width      int
	Height     int
	Downsample float64
}

// Pyramid holds the ordered tiers of an image, base first.
type Pyramid struct {
	tiers []Tier
}

// New builds a dyadic pyramid from the base dimensions, halving (with
// ceiling) until both dimensions reach 1.
func New(width, height int) Pyramid {
	var tiers []Tier
	w, h := width, height
	for level := 0; ; level++ {
		tiers = append(tiers, Tier{
			Level:      level,
			Width:      w,
			Height:     h,
			Downsample: math.Pow(2, float64(level)),
		})
		if w <= 1 && h <= 1 {
			break
		}
		w = max(1, (w+1)/2)
		h = max(1, (h+1)/2)
	}
	return Pyramid{tiers: tiers}
}

// NewDepth builds a dyadic pyramid with exactly levels tiers, for images
// whose stored pyramid stops above 1x1.
func NewDepth(width, height, levels int) Pyramid {
	if levels < 1 {
		levels = 1
	}
	p := New(width, height)
	if levels < len(p.tiers) {
		p.tiers = p.tiers[:levels]
	}
	return p
}

// Levels returns the number of tiers.
func (p Pyramid) Levels() int { return len(p.tiers) }

// MaxLevel is the deepest (smallest) tier level.
func (p Pyramid) MaxLevel() int { return len(p.tiers) - 1 }

// MaxZoom is the highest zoom. Zoom orders tiers the other way around:
// zoom 0 is the smallest tier, MaxZoom the full resolution.
func (p Pyramid) MaxZoom() int { return len(p.tiers) - 1 }

// Base returns the full-resolution tier.
func (p Pyramid) Base() Tier { return p.tiers[0] }

// TierAt returns the tier at the given level.
func (p Pyramid) TierAt(level int) (Tier, error) {
	if level < 0 || level >= len(p.tiers) {
		return Tier{}, fmt.Errorf("no tier at level %d", level)
	}
	return p.tiers[level], nil
}

// TierAtZoom returns the tier at the given zoom.
func (p Pyramid) TierAtZoom(zoom int) (Tier, error) {
	return p.TierAt(len(p.tiers) - 1 - zoom)
}

// MostAppropriateTier returns the deepest tier whose downsample factor
// does not exceed the requested one, so that a window read never has to
// upsample stored pixels.
func (p Pyramid) MostAppropriateTier(downsample float64) Tier {
	best := p.tiers[0]
	for _, t := range p.tiers[1:] {
		if t.Downsample <= downsample {
			best = t
		}
	}
	return best
}

// Plane addresses a single 2D plane by channel, z-slice and timepoint.
type Plane struct {
	C int
	Z int
	T int
}

func (p Plane) String() string {
	return fmt.Sprintf("c%d-z%d-t%d", p.C, p.Z, p.T)
}

// Info carries the technical properties of an image: its base extent,
// the number of indices on each non-spatial axis, the native bit depth
// and the tier layout. Interleaved marks images whose stored planes
// carry all channels at once (RGB files), as opposed to one stored
// plane per channel.
type Info struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Channels    int     `json:"channels"`
	Depth       int     `json:"depth"`
	Duration    int     `json:"duration"`
	Bits        int     `json:"bits"`
	Interleaved bool    `json:"interleaved"`
	Pyramid     Pyramid `json:"-"`
}

// NativeMax is the largest sample value at the image's bit depth.
func (i Info) NativeMax() float64 {
	return math.Pow(2, float64(i.Bits)) - 1
}
