// Package render implements the annotation rendering pipeline: region
// derivation, output scale resolution, the affine into raster space,
// multidimensional composition and the three render modes, down to the
// encoded response bytes.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/wsiview/wsiview/pyramid"
)

// error messages
var zoomError = "`zoom` is out of the image range [0, %d]: %#v"
var levelError = "`level` is out of the image range [0, %d]: %#v"
var safetyError = "`%s` header expects SAFE_RESIZE or UNSAFE: %#v"

// InvalidZoomError reports a zoom outside the image pyramid.
type InvalidZoomError struct {
	Zoom    int
	MaxZoom int
}

func (e InvalidZoomError) Error() string {
	return fmt.Sprintf(zoomError, e.MaxZoom, e.Zoom)
}

// InvalidLevelError reports a level outside the image pyramid.
type InvalidLevelError struct {
	Level    int
	MaxLevel int
}

func (e InvalidLevelError) Error() string {
	return fmt.Sprintf(levelError, e.MaxLevel, e.Level)
}

// ScaleRequest carries the mutually exclusive scale fields of a
// request. Nil means absent; exactly one should be set, which the
// handler validates. Resolution applies a fixed precedence anyway:
// height, width, size, zoom, level.
type ScaleRequest struct {
	Size   *int
	Width  *int
	Height *int
	Zoom   *int
	Level  *int
}

// Fields lists the names of the set fields.
func (r ScaleRequest) Fields() []string {
	var set []string
	if r.Size != nil {
		set = append(set, "size")
	}
	if r.Width != nil {
		set = append(set, "width")
	}
	if r.Height != nil {
		set = append(set, "height")
	}
	if r.Zoom != nil {
		set = append(set, "zoom")
	}
	if r.Level != nil {
		set = append(set, "level")
	}
	return set
}

func (r ScaleRequest) String() string {
	return strings.Join(r.Fields(), ",")
}

// ResolveSize turns the requested scale into output pixel dimensions
// for the region. A single explicit axis keeps the region aspect; size
// constrains the longer region side; zoom and level pick the tier's
// downsample factor; nothing set means the natural region size. Zoom
// and level are checked against the pyramid whenever present, even
// when a higher-precedence field wins.
func ResolveSize(region pyramid.Region, p pyramid.Pyramid, req ScaleRequest) (int, int, error) {
	if req.Zoom != nil && (*req.Zoom < 0 || *req.Zoom > p.MaxZoom()) {
		return 0, 0, InvalidZoomError{Zoom: *req.Zoom, MaxZoom: p.MaxZoom()}
	}
	if req.Level != nil && (*req.Level < 0 || *req.Level > p.MaxLevel()) {
		return 0, 0, InvalidLevelError{Level: *req.Level, MaxLevel: p.MaxLevel()}
	}

	rw, rh := region.Width, region.Height
	switch {
	case req.Height != nil:
		h := *req.Height
		if rw <= 0 || rh <= 0 {
			return atLeastOne(h), atLeastOne(h), nil
		}
		return roundSize(float64(h) * rw / rh), atLeastOne(h), nil
	case req.Width != nil:
		w := *req.Width
		if rw <= 0 || rh <= 0 {
			return atLeastOne(w), atLeastOne(w), nil
		}
		return atLeastOne(w), roundSize(float64(w) * rh / rw), nil
	case req.Size != nil:
		s := *req.Size
		if rw <= 0 || rh <= 0 {
			return atLeastOne(s), atLeastOne(s), nil
		}
		if rw >= rh {
			return atLeastOne(s), roundSize(float64(s) * rh / rw), nil
		}
		return roundSize(float64(s) * rw / rh), atLeastOne(s), nil
	case req.Zoom != nil:
		tier, err := p.TierAtZoom(*req.Zoom)
		if err != nil {
			return 0, 0, InvalidZoomError{Zoom: *req.Zoom, MaxZoom: p.MaxZoom()}
		}
		return roundSize(rw / tier.Downsample), roundSize(rh / tier.Downsample), nil
	case req.Level != nil:
		tier, err := p.TierAt(*req.Level)
		if err != nil {
			return 0, 0, InvalidLevelError{Level: *req.Level, MaxLevel: p.MaxLevel()}
		}
		return roundSize(rw / tier.Downsample), roundSize(rh / tier.Downsample), nil
	}
	return roundSize(rw), roundSize(rh), nil
}

// SizeSafety selects whether the output safeguard may clamp a request.
type SizeSafety string

// Safety modes, from the X-Image-Size-Safety request header.
const (
	SafeResize SizeSafety = "SAFE_RESIZE"
	Unsafe     SizeSafety = "UNSAFE"
)

// ParseSizeSafety reads the header value, defaulting to safe resizing.
func ParseSizeSafety(s string) (SizeSafety, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return SafeResize, nil
	case string(SafeResize):
		return SafeResize, nil
	case string(Unsafe):
		return Unsafe, nil
	}
	return "", fmt.Errorf(safetyError, "X-Image-Size-Safety", s)
}

// SizeLimits is the output pixel budget. Zero fields are unlimited.
type SizeLimits struct {
	MaxWidth  int
	MaxHeight int
	MaxArea   int
}

// SafeSize clamps the requested output dimensions to the limits,
// shrinking proportionally until width, height and area all fit. The
// unsafe mode skips clamping. The returned flag reports whether the
// dimensions were changed.
func SafeSize(width, height int, limits SizeLimits, safety SizeSafety) (int, int, bool) {
	if safety == Unsafe {
		return width, height, false
	}
	ratio := 1.0
	if limits.MaxWidth > 0 && width > limits.MaxWidth {
		ratio = math.Min(ratio, float64(limits.MaxWidth)/float64(width))
	}
	if limits.MaxHeight > 0 && height > limits.MaxHeight {
		ratio = math.Min(ratio, float64(limits.MaxHeight)/float64(height))
	}
	if limits.MaxArea > 0 && width*height > limits.MaxArea {
		ratio = math.Min(ratio, math.Sqrt(float64(limits.MaxArea)/float64(width*height)))
	}
	if ratio >= 1 {
		return width, height, false
	}
	return atLeastOne(int(float64(width) * ratio)), atLeastOne(int(float64(height) * ratio)), true
}

func roundSize(v float64) int {
	return atLeastOne(int(math.Round(v)))
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
