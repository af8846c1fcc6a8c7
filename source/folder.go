package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/wsiview/wsiview/cache"
	"github.com/wsiview/wsiview/pyramid"

	// Stored planes may be TIFF or BMP besides the stdlib formats.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "image/jpeg"
	_ "image/png"
)

// MetaFile is the sidecar describing a folder source.
const MetaFile = "wsiview.json"

var planeExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp"}

type folderMeta struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Channels int `json:"channels"`
	Depth    int `json:"depth"`
	Duration int `json:"duration"`
	Bits     int `json:"bits"`
	Levels   int `json:"levels"`
}

// Folder reads a directory of per-plane images: one file per channel,
// z-slice and timepoint under level_{L}/c{C}_z{Z}_t{T}.{ext}, described
// by a wsiview.json sidecar. Files are fetched through the byte cache.
type Folder struct {
	info pyramid.Info
	rel  string
	fc   *cache.FileCache
}

// OpenFolder opens a folder source at abs, addressed by the
// root-relative path rel.
func OpenFolder(abs, rel string, fc *cache.FileCache) (*Folder, error) {
	data, err := os.ReadFile(filepath.Join(abs, MetaFile))
	if err != nil {
		return nil, UnavailableError{Path: rel, Err: errors.Wrap(err, "metadata")}
	}
	var meta folderMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, UnavailableError{Path: rel, Err: errors.Wrap(err, "metadata")}
	}
	if meta.Width < 1 || meta.Height < 1 {
		return nil, UnavailableError{Path: rel, Err: errors.Errorf("bad dimensions %dx%d", meta.Width, meta.Height)}
	}
	if meta.Channels < 1 {
		meta.Channels = 1
	}
	if meta.Depth < 1 {
		meta.Depth = 1
	}
	if meta.Duration < 1 {
		meta.Duration = 1
	}
	if meta.Bits != 16 {
		meta.Bits = 8
	}

	var p pyramid.Pyramid
	if meta.Levels > 0 {
		p = pyramid.NewDepth(meta.Width, meta.Height, meta.Levels)
	} else {
		p = pyramid.New(meta.Width, meta.Height)
	}

	return &Folder{
		info: pyramid.Info{
			Width:    meta.Width,
			Height:   meta.Height,
			Channels: meta.Channels,
			Depth:    meta.Depth,
			Duration: meta.Duration,
			Bits:     meta.Bits,
			Pyramid:  p,
		},
		rel: rel,
		fc:  fc,
	}, nil
}

// Info implements Source.
func (f *Folder) Info() pyramid.Info { return f.info }

// Close implements Source.
func (f *Folder) Close() error { return nil }

// ReadWindow picks the deepest stored tier that still covers the
// requested scale, decodes the plane file and crops and scales the
// region out of it.
func (f *Folder) ReadWindow(ctx context.Context, plane pyramid.Plane, region pyramid.Region, width, height int) (image.Image, error) {
	return readWithContext(ctx, f.rel, func() (image.Image, error) {
		downsample := 1.0
		if !region.Empty() && width > 0 && height > 0 {
			downsample = math.Min(region.Width/float64(width), region.Height/float64(height))
		}
		tier := f.info.Pyramid.MostAppropriateTier(downsample)

		img, err := f.decodePlane(ctx, tier.Level, plane)
		if err != nil {
			return nil, err
		}
		scaled := region.Scale(tier.Downsample)
		rect := scaled.IntRect(tier.Width, tier.Height).Add(img.Bounds().Min)
		debug("window %s level %d rect %v -> %dx%d", plane, tier.Level, rect, width, height)
		return scaleCrop(img, rect, width, height), nil
	})
}

func (f *Folder) decodePlane(ctx context.Context, level int, plane pyramid.Plane) (image.Image, error) {
	base := path.Join(f.rel, fmt.Sprintf("level_%d", level), fmt.Sprintf("c%d_z%d_t%d", plane.C, plane.Z, plane.T))
	var lastErr error
	for _, ext := range planeExtensions {
		data, err := f.fc.Bytes(ctx, base+ext)
		if err != nil {
			lastErr = err
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, UnavailableError{Path: f.rel, Err: errors.Wrapf(err, "decode %s%s", base, ext)}
		}
		return img, nil
	}
	return nil, UnavailableError{Path: f.rel, Err: errors.Wrapf(lastErr, "plane %s at level %d", plane, level)}
}
