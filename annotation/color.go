package annotation

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGBA style color. It implements image/color.Color
// so it can be handed to the rasterizer directly.
type Color struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// Common style colors.
var (
	White = Color{255, 255, 255, 255}
	Black = Color{0, 0, 0, 255}
	Red   = Color{255, 0, 0, 255}
	Green = Color{0, 255, 0, 255}
	Blue  = Color{0, 0, 255, 255}
)

var namedColors = map[string]Color{
	"white":   White,
	"black":   Black,
	"red":     Red,
	"green":   Green,
	"blue":    Blue,
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"orange":  {255, 165, 0, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
}

// RGBA implements color.Color with non-premultiplied semantics.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// IsGray reports whether the color is achromatic.
func (c Color) IsGray() bool {
	return c.R == c.G && c.G == c.B
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseColor accepts the color forms an annotation payload may carry: a
// hex string (#rgb, #rgba, #rrggbb, #rrggbbaa), an rgb()/rgba()
// functional notation, a named color, or a packed 0xRRGGBB integer.
func ParseColor(value interface{}) (*Color, error) {
	switch v := value.(type) {
	case string:
		return parseColorString(v)
	case float64: // JSON numbers
		return unpackColorInt(int64(v))
	case int:
		return unpackColorInt(int64(v))
	case int64:
		return unpackColorInt(v)
	default:
		return nil, fmt.Errorf("unsupported color value %#v", value)
	}
}

func parseColorString(s string) (*Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := namedColors[s]; ok {
		out := c
		return &out, nil
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}
	if strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba(") {
		return parseFunctional(s)
	}
	return nil, fmt.Errorf("unrecognized color %q", s)
}

func parseHex(s string) (*Color, error) {
	alpha := uint8(255)
	switch len(s) {
	case 5: // #rgba
		a, err := parseHexNibble(s[4])
		if err != nil {
			return nil, err
		}
		alpha = a
		s = s[:4]
	case 9: // #rrggbbaa
		var a uint8
		if _, err := fmt.Sscanf(s[7:], "%02x", &a); err != nil {
			return nil, fmt.Errorf("unrecognized color %q", s)
		}
		alpha = a
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("unrecognized color %q", s)
	}
	r, g, b := c.RGB255()
	return &Color{R: r, G: g, B: b, A: alpha}, nil
}

func parseHexNibble(b byte) (uint8, error) {
	var v uint8
	if _, err := fmt.Sscanf(string(b), "%1x", &v); err != nil {
		return 0, fmt.Errorf("unrecognized color digit %q", b)
	}
	return v * 17, nil
}

func parseFunctional(s string) (*Color, error) {
	var r, g, b int
	var a float64 = 1
	if strings.HasPrefix(s, "rgba(") {
		if _, err := fmt.Sscanf(s, "rgba(%d,%d,%d,%f)", &r, &g, &b, &a); err != nil {
			return nil, fmt.Errorf("unrecognized color %q", s)
		}
	} else {
		if _, err := fmt.Sscanf(s, "rgb(%d,%d,%d)", &r, &g, &b); err != nil {
			return nil, fmt.Errorf("unrecognized color %q", s)
		}
	}
	if r < 0 || r > 255 || g < 0 || g > 255 || b < 0 || b > 255 || a < 0 || a > 1 {
		return nil, fmt.Errorf("color %q out of range", s)
	}
	return &Color{R: uint8(r), G: uint8(g), B: uint8(b), A: uint8(a*255 + 0.5)}, nil
}

func unpackColorInt(v int64) (*Color, error) {
	if v < 0 || v > 0xffffff {
		return nil, fmt.Errorf("color integer %d out of range", v)
	}
	return &Color{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}
