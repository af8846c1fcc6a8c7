package render

import (
	"fmt"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// error messages
var colormapError = "`colormaps` names no colormap: %#v"

// UnknownColormapError reports a colormap name outside the registry.
type UnknownColormapError struct {
	Name string
}

func (e UnknownColormapError) Error() string {
	return fmt.Sprintf(colormapError, e.Name)
}

// Colormap turns a normalized sample into an RGB triple through a
// 256-entry lookup table.
type Colormap struct {
	name string
	gray bool
	lut  [256][3]float64
}

// colormapStops holds the anchor colors each named colormap is
// interpolated from.
var colormapStops = map[string][]string{
	"gray":    {"#000000", "#ffffff"},
	"red":     {"#000000", "#ff0000"},
	"green":   {"#000000", "#00ff00"},
	"blue":    {"#000000", "#0000ff"},
	"cyan":    {"#000000", "#00ffff"},
	"magenta": {"#000000", "#ff00ff"},
	"yellow":  {"#000000", "#ffff00"},
	"jet": {
		"#000080", "#0000ff", "#0080ff", "#00ffff", "#80ff80",
		"#ffff00", "#ff8000", "#ff0000", "#800000",
	},
	"viridis": {
		"#440154", "#472d7b", "#3b528b", "#2c728e", "#21918c",
		"#28ae80", "#5ec962", "#addc30", "#fde725",
	},
	"plasma": {
		"#0d0887", "#5302a3", "#8b0aa5", "#b83289", "#db5c68",
		"#f48849", "#febd2a", "#f0f921",
	},
	"inferno": {
		"#000004", "#320a5e", "#781c6d", "#bc3754", "#ed6925",
		"#fbb61a", "#fcffa4",
	},
	"magma": {
		"#000004", "#2c115f", "#721f81", "#b73779", "#f1605d",
		"#feb078", "#fcfdbf",
	},
}

// ColormapByName resolves a colormap. A leading "!" inverts the ramp,
// an empty name means none.
func ColormapByName(name string) (*Colormap, error) {
	if name == "" {
		return nil, nil
	}
	base := strings.TrimPrefix(name, "!")
	stops, ok := colormapStops[strings.ToLower(base)]
	if !ok {
		return nil, UnknownColormapError{Name: name}
	}
	cm := rampColormap(strings.ToLower(base), stops)
	if strings.HasPrefix(name, "!") {
		cm.invert()
	}
	return cm, nil
}

func rampColormap(name string, stops []string) *Colormap {
	anchors := make([]colorful.Color, len(stops))
	for i, s := range stops {
		anchors[i], _ = colorful.Hex(s)
	}
	cm := &Colormap{name: name, gray: true}
	last := float64(len(anchors) - 1)
	for i := range cm.lut {
		t := float64(i) / 255 * last
		lo := int(t)
		if lo >= len(anchors)-1 {
			lo = len(anchors) - 2
		}
		c := anchors[lo].BlendRgb(anchors[lo+1], t-float64(lo)).Clamped()
		cm.lut[i] = [3]float64{c.R, c.G, c.B}
		if !nearGray(cm.lut[i]) {
			cm.gray = false
		}
	}
	return cm
}

func (c *Colormap) invert() {
	for i, j := 0, len(c.lut)-1; i < j; i, j = i+1, j-1 {
		c.lut[i], c.lut[j] = c.lut[j], c.lut[i]
	}
}

// At looks up the RGB triple for a sample in [0,1].
func (c *Colormap) At(v float64) (float64, float64, float64) {
	e := c.lut[int(clamp01(v)*255+0.5)]
	return e[0], e[1], e[2]
}

// IsGray reports whether the ramp stays on the gray axis, in which
// case a grayscale rendition loses nothing.
func (c *Colormap) IsGray() bool {
	return c.gray
}

func (c *Colormap) String() string {
	return c.name
}

func nearGray(e [3]float64) bool {
	const eps = 1.0 / 255
	return e[0]-e[1] < eps && e[1]-e[0] < eps &&
		e[1]-e[2] < eps && e[2]-e[1] < eps
}
