package source

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/wsiview/wsiview/pyramid"
)

// Memory is an in-memory source holding full-resolution planes. It
// backs unit tests; Delay simulates a slow store for timeout tests.
type Memory struct {
	info   pyramid.Info
	planes map[pyramid.Plane]image.Image

	Delay time.Duration
}

// NewMemory builds a memory source. Missing axes in info default to
// one index; the pyramid is derived from the base extent.
func NewMemory(info pyramid.Info, planes map[pyramid.Plane]image.Image) *Memory {
	if info.Channels < 1 {
		info.Channels = 1
	}
	if info.Depth < 1 {
		info.Depth = 1
	}
	if info.Duration < 1 {
		info.Duration = 1
	}
	if info.Bits != 16 {
		info.Bits = 8
	}
	if info.Pyramid.Levels() == 0 {
		info.Pyramid = pyramid.New(info.Width, info.Height)
	}
	return &Memory{info: info, planes: planes}
}

// Info implements Source.
func (m *Memory) Info() pyramid.Info { return m.info }

// Close implements Source.
func (m *Memory) Close() error { return nil }

// ReadWindow implements Source against the in-memory planes.
func (m *Memory) ReadWindow(ctx context.Context, plane pyramid.Plane, region pyramid.Region, width, height int) (image.Image, error) {
	return readWithContext(ctx, "memory", func() (image.Image, error) {
		if m.Delay > 0 {
			time.Sleep(m.Delay)
		}
		img, ok := m.planes[plane]
		if !ok {
			return nil, UnavailableError{Path: "memory", Err: errors.Errorf("no plane %s", plane)}
		}
		rect := region.IntRect(m.info.Width, m.info.Height).Add(img.Bounds().Min)
		return scaleCrop(img, rect, width, height), nil
	})
}
