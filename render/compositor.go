package render

import (
	"context"
	"fmt"
	"image"
	"strings"

	d "github.com/tj/go-debug"
	"golang.org/x/sync/errgroup"

	"github.com/wsiview/wsiview/pyramid"
	"github.com/wsiview/wsiview/source"
)

var debug = d.Debug("wsiview:render")

// error messages
var (
	indexError      = "`%s` index is out of the image range [0, %d): %#v"
	lengthError     = "`%s` expects one value or one per selected channel: got %d for %d channels"
	colorspaceError = "`colorspace` must be AUTO, GRAY or COLOR: %#v"
	bitsError       = "`bits` must be 8, 16 or AUTO: %#v"
)

// OutOfRangeIndexError reports a channel, z slice or timepoint index
// outside the image extent.
type OutOfRangeIndexError struct {
	Axis   string
	Index  int
	Extent int
}

func (e OutOfRangeIndexError) Error() string {
	return fmt.Sprintf(indexError, e.Axis, e.Extent, e.Index)
}

// ParameterError reports a composition parameter that cannot be
// honored regardless of the image content.
type ParameterError struct {
	Field   string
	Message string
}

func (e ParameterError) Error() string {
	return e.Message
}

// Colorspace selects the color model of the composed raster.
type Colorspace string

const (
	ColorspaceAuto  Colorspace = "AUTO"
	ColorspaceGray  Colorspace = "GRAY"
	ColorspaceColor Colorspace = "COLOR"
)

// ParseColorspace reads a colorspace name, defaulting to AUTO.
func ParseColorspace(s string) (Colorspace, error) {
	switch strings.ToUpper(s) {
	case "", "AUTO":
		return ColorspaceAuto, nil
	case "GRAY":
		return ColorspaceGray, nil
	case "COLOR":
		return ColorspaceColor, nil
	}
	return "", ParameterError{
		Field:   "colorspace",
		Message: fmt.Sprintf(colorspaceError, s),
	}
}

// IntensityBound is one end of a channel display range, either a
// fixed source-domain value or computed from the rendered window.
type IntensityBound struct {
	Auto  bool
	Value float64
}

// ComposeOptions selects and tunes the planes merged into a raster.
// Empty index selections mean every index of the axis. Per-channel
// slices hold one value for all selected channels or one per channel.
type ComposeOptions struct {
	Channels   []int
	ZSlices    []int
	Timepoints []int

	MinIntensities []IntensityBound
	MaxIntensities []IntensityBound
	Gammas         []float64
	Filters        []string
	Colormaps      []string

	Bits       int // 0 keeps the source bit depth
	Colorspace Colorspace

	ChannelReduction string
	ZReduction       string
	TReduction       string
}

// maxConcurrentReads caps the plane reads in flight for one
// composition.
const maxConcurrentReads = 4

// Compose reads every selected plane of the region at width x height,
// applies the per-channel pipeline (stack reduction, intensity
// rescale, gamma, filter, colormap) and merges the channels into a
// single raster.
func Compose(ctx context.Context, src source.Source, region pyramid.Region, width, height int, opts ComposeOptions) (*Raster, error) {
	info := src.Info()

	channels, err := resolveIndices(opts.Channels, info.Channels, "channels")
	if err != nil {
		return nil, err
	}
	zs, err := resolveIndices(opts.ZSlices, info.Depth, "z_slices")
	if err != nil {
		return nil, err
	}
	ts, err := resolveIndices(opts.Timepoints, info.Duration, "timepoints")
	if err != nil {
		return nil, err
	}

	cName := opts.ChannelReduction
	if cName == "" {
		cName = "ADD"
	}
	cReduce, err := ReducerByName("channel", cName)
	if err != nil {
		return nil, err
	}
	zs, zReduce, err := axisReducer("z", opts.ZReduction, zs)
	if err != nil {
		return nil, err
	}
	ts, tReduce, err := axisReducer("t", opts.TReduction, ts)
	if err != nil {
		return nil, err
	}

	n := len(channels)
	mins, err := broadcast(opts.MinIntensities, n, IntensityBound{}, "min_intensities")
	if err != nil {
		return nil, err
	}
	maxs, err := broadcast(opts.MaxIntensities, n, IntensityBound{Value: info.NativeMax()}, "max_intensities")
	if err != nil {
		return nil, err
	}
	gammas, err := broadcast(opts.Gammas, n, 1, "gammas")
	if err != nil {
		return nil, err
	}
	filterNames, err := broadcast(opts.Filters, n, "", "filters")
	if err != nil {
		return nil, err
	}
	colormapNames, err := broadcast(opts.Colormaps, n, "", "colormaps")
	if err != nil {
		return nil, err
	}

	filters := make([]func(*plane), n)
	for i, name := range filterNames {
		if name == "" {
			continue
		}
		if filters[i], err = filterByName(name); err != nil {
			return nil, err
		}
	}
	luts := make([]*Colormap, n)
	for i, name := range colormapNames {
		if luts[i], err = ColormapByName(name); err != nil {
			return nil, err
		}
	}

	bits := opts.Bits
	if bits == 0 {
		bits = info.Bits
	}
	if bits != 8 && bits != 16 {
		return nil, ParameterError{Field: "bits", Message: fmt.Sprintf(bitsError, bits)}
	}

	images, slots, err := readPlanes(ctx, src, region, width, height, channels, zs, ts, info.Interleaved)
	if err != nil {
		return nil, err
	}

	nativeMax := info.NativeMax()
	chans := make([]*plane, n)
	for i, c := range channels {
		component := 0
		if info.Interleaved {
			component = c
		}
		tStack := make([]*plane, 0, len(ts))
		for _, t := range ts {
			zStack := make([]*plane, 0, len(zs))
			for _, z := range zs {
				key := planeKey(c, z, t, info.Interleaved)
				zStack = append(zStack, planeFromImage(images[slots[key]], component))
			}
			tStack = append(tStack, reducePlanes(zStack, zReduce))
		}
		p := reducePlanes(tStack, tReduce)

		min, max := mins[i].Value, maxs[i].Value
		if mins[i].Auto || maxs[i].Auto {
			lo, hi := p.bounds(nativeMax)
			if mins[i].Auto {
				min = lo
			}
			if maxs[i].Auto {
				max = hi
			}
		}
		p.rescale(min, max, nativeMax)
		p.applyGamma(gammas[i])
		if filters[i] != nil {
			filters[i](p)
		}
		chans[i] = p
	}

	grayOut := opts.Colorspace == ColorspaceGray
	if opts.Colorspace == ColorspaceAuto || opts.Colorspace == "" {
		grayOut = true
		for _, lut := range luts {
			if lut != nil && !lut.IsGray() {
				grayOut = false
				break
			}
		}
	}

	return mergeChannels(chans, luts, cReduce, width, height, bits, grayOut), nil
}

// resolveIndices normalizes an axis selection, expanding the empty
// selection to the full extent.
func resolveIndices(sel []int, extent int, axis string) ([]int, error) {
	if len(sel) == 0 {
		all := make([]int, extent)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	for _, i := range sel {
		if i < 0 || i >= extent {
			return nil, OutOfRangeIndexError{Axis: axis, Index: i, Extent: extent}
		}
	}
	return sel, nil
}

// axisReducer resolves the z or t stacking mode. Without an explicit
// operator only the first selected index is rendered.
func axisReducer(axis, name string, sel []int) ([]int, Reducer, error) {
	if name == "" {
		if len(sel) > 1 {
			sel = sel[:1]
		}
		return sel, nil, nil
	}
	reduce, err := ReducerByName(axis, name)
	if err != nil {
		return nil, nil, err
	}
	return sel, reduce, nil
}

func broadcast[T any](vals []T, n int, def T, field string) ([]T, error) {
	switch len(vals) {
	case n:
		return vals, nil
	case 0:
		vals = []T{def}
		fallthrough
	case 1:
		out := make([]T, n)
		for i := range out {
			out[i] = vals[0]
		}
		return out, nil
	}
	return nil, ParameterError{
		Field:   field,
		Message: fmt.Sprintf(lengthError, field, len(vals), n),
	}
}

func planeKey(c, z, t int, interleaved bool) pyramid.Plane {
	if interleaved {
		c = 0
	}
	return pyramid.Plane{C: c, Z: z, T: t}
}

// readPlanes fetches every distinct plane the composition needs.
// Interleaved sources store all channels in one plane, so those are
// read once per (z, t) and split afterwards.
func readPlanes(ctx context.Context, src source.Source, region pyramid.Region, width, height int, channels, zs, ts []int, interleaved bool) ([]image.Image, map[pyramid.Plane]int, error) {
	slots := make(map[pyramid.Plane]int)
	var keys []pyramid.Plane
	for _, t := range ts {
		for _, z := range zs {
			for _, c := range channels {
				key := planeKey(c, z, t, interleaved)
				if _, ok := slots[key]; ok {
					continue
				}
				slots[key] = len(keys)
				keys = append(keys, key)
			}
		}
	}
	debug("compose %d plane reads for region %s at %dx%d", len(keys), region, width, height)

	images := make([]image.Image, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			img, err := src.ReadWindow(ctx, key, region, width, height)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return images, slots, nil
}

// mergeChannels folds the per-channel planes into the output raster,
// colormapping each channel before the fold.
func mergeChannels(chans []*plane, luts []*Colormap, reduce Reducer, width, height, bits int, gray bool) *Raster {
	out := NewRaster(width, height, bits, gray)

	plainGray := gray
	for _, lut := range luts {
		if lut != nil {
			plainGray = false
			break
		}
	}

	n := len(chans)
	sr := make([]float64, n)
	sg := make([]float64, n)
	sb := make([]float64, n)
	for i := 0; i < width*height; i++ {
		if plainGray {
			for j, p := range chans {
				sr[j] = p.pix[i]
			}
			writeGray(out, i, fold(sr, reduce))
			continue
		}
		for j, p := range chans {
			v := p.pix[i]
			if luts[j] != nil {
				sr[j], sg[j], sb[j] = luts[j].At(v)
			} else {
				sr[j], sg[j], sb[j] = v, v, v
			}
		}
		r := fold(sr, reduce)
		g := fold(sg, reduce)
		b := fold(sb, reduce)
		if gray {
			writeGray(out, i, luminance(r, g, b))
		} else {
			writeColor(out, i, r, g, b)
		}
	}
	return out
}

func fold(samples []float64, reduce Reducer) float64 {
	if len(samples) == 1 {
		return samples[0]
	}
	return reduce(samples)
}

// luminance follows the Rec. 709 weights used for grayscale
// conversion across the pipeline.
func luminance(r, g, b float64) float64 {
	return 0.2125*r + 0.7154*g + 0.0721*b
}

func writeGray(out *Raster, i int, v float64) {
	if out.Gray16 != nil {
		u := uint16(clamp01(v)*65535 + 0.5)
		out.Gray16.Pix[2*i] = uint8(u >> 8)
		out.Gray16.Pix[2*i+1] = uint8(u)
		return
	}
	out.Gray.Pix[i] = uint8(clamp01(v)*255 + 0.5)
}

func writeColor(out *Raster, i int, r, g, b float64) {
	if out.Color64 != nil {
		pix := out.Color64.Pix[8*i : 8*i+8]
		for k, v := range [3]float64{r, g, b} {
			u := uint16(clamp01(v)*65535 + 0.5)
			pix[2*k] = uint8(u >> 8)
			pix[2*k+1] = uint8(u)
		}
		pix[6], pix[7] = 0xff, 0xff
		return
	}
	pix := out.Color.Pix[4*i : 4*i+4]
	pix[0] = uint8(clamp01(r)*255 + 0.5)
	pix[1] = uint8(clamp01(g)*255 + 0.5)
	pix[2] = uint8(clamp01(b)*255 + 0.5)
	pix[3] = 0xff
}
