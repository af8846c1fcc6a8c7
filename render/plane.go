package render

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// error messages
var filterError = "`filters` names no filter: %#v"

// UnknownFilterError reports a filter name outside the registry.
type UnknownFilterError struct {
	Name string
}

func (e UnknownFilterError) Error() string {
	return fmt.Sprintf(filterError, e.Name)
}

// plane is one channel of pixels as float64 samples in [0,1]. All
// per-channel point operations happen here before quantization.
type plane struct {
	w, h int
	pix  []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float64, w*h)}
}

// planeFromImage extracts one color component of an image into a
// normalized plane. Grayscale images ignore the component; color
// images yield their red, green or blue band.
func planeFromImage(img image.Image, component int) *plane {
	b := img.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			var v uint32
			switch component {
			case 1:
				v = g
			case 2:
				v = bl
			default:
				v = r
			}
			p.pix[i] = float64(v) / 65535
			i++
		}
	}
	return p
}

func (p *plane) at(x, y int) float64 {
	return p.pix[y*p.w+x]
}

// bounds returns the smallest and largest sample scaled to the source
// value domain.
func (p *plane) bounds(nativeMax float64) (float64, float64) {
	if len(p.pix) == 0 {
		return 0, nativeMax
	}
	return floats.Min(p.pix) * nativeMax, floats.Max(p.pix) * nativeMax
}

// rescale stretches the source-domain interval [min, max] over the
// full range, clamping values outside it.
func (p *plane) rescale(min, max, nativeMax float64) {
	if max <= min {
		return
	}
	span := max - min
	for i, v := range p.pix {
		p.pix[i] = clamp01((v*nativeMax - min) / span)
	}
}

// applyGamma brightens or darkens midtones with out = in^(1/gamma).
func (p *plane) applyGamma(gamma float64) {
	if gamma <= 0 || gamma == 1 {
		return
	}
	exp := 1 / gamma
	for i, v := range p.pix {
		p.pix[i] = math.Pow(v, exp)
	}
}

// filterByName resolves a per-channel filter. Supported: complement
// (inverts the plane), binary (threshold at half range) and otsu
// (threshold chosen by maximizing inter-class variance).
func filterByName(name string) (func(*plane), error) {
	switch name {
	case "complement":
		return (*plane).complement, nil
	case "binary":
		return func(p *plane) { p.threshold(0.5) }, nil
	case "otsu":
		return (*plane).otsu, nil
	}
	return nil, UnknownFilterError{Name: name}
}

func (p *plane) complement() {
	for i, v := range p.pix {
		p.pix[i] = 1 - v
	}
}

func (p *plane) threshold(t float64) {
	for i, v := range p.pix {
		if v >= t {
			p.pix[i] = 1
		} else {
			p.pix[i] = 0
		}
	}
}

// otsu thresholds the plane at the split minimizing intra-class
// variance over a 256-bin histogram.
func (p *plane) otsu() {
	var hist [256]float64
	for _, v := range p.pix {
		hist[int(clamp01(v)*255+0.5)]++
	}
	total := float64(len(p.pix))
	sum := 0.0
	for i, n := range hist {
		sum += float64(i) * n
	}

	var sumB, wB float64
	best, bestVar := 0, 0.0
	for i, n := range hist {
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * n
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = i
		}
	}
	p.threshold(float64(best) / 255)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
