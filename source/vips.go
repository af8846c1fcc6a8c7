package source

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/pkg/errors"
	"github.com/wsiview/wsiview/pyramid"
	"gopkg.in/h2non/bimg.v1"
)

// Vips serves single-file images through libvips. Stored planes are
// interleaved: one read carries every channel, and the z and time axes
// do not exist.
type Vips struct {
	info pyramid.Info
	rel  string
	buf  []byte
}

// OpenVips reads the file once and keeps the encoded buffer; libvips
// crops and scales from it per window.
func OpenVips(abs, rel string) (*Vips, error) {
	buf, err := bimg.Read(abs)
	if err != nil {
		return nil, UnavailableError{Path: rel, Err: errors.Wrap(err, "read")}
	}
	img := bimg.NewImage(buf)
	size, err := img.Size()
	if err != nil {
		return nil, UnavailableError{Path: rel, Err: errors.Wrap(err, "size")}
	}
	meta, err := bimg.Metadata(buf)
	if err != nil {
		return nil, UnavailableError{Path: rel, Err: errors.Wrap(err, "metadata")}
	}
	channels := meta.Channels
	if channels < 1 {
		channels = 3
	}
	if channels > 3 {
		// Alpha is dropped on read; channels are color components.
		channels = 3
	}
	return &Vips{
		info: pyramid.Info{
			Width:       size.Width,
			Height:      size.Height,
			Channels:    channels,
			Depth:       1,
			Duration:    1,
			Bits:        8,
			Interleaved: channels > 1,
			Pyramid:     pyramid.New(size.Width, size.Height),
		},
		rel: rel,
		buf: buf,
	}, nil
}

// Info implements Source.
func (v *Vips) Info() pyramid.Info { return v.info }

// Close implements Source.
func (v *Vips) Close() error {
	v.buf = nil
	return nil
}

// ReadWindow resizes the whole image so the region lands at the target
// scale, extracts the area and decodes the PNG that libvips hands
// back. bimg zooms before cropping, so the extract coordinates live in
// resized space.
func (v *Vips) ReadWindow(ctx context.Context, plane pyramid.Plane, region pyramid.Region, width, height int) (image.Image, error) {
	return readWithContext(ctx, v.rel, func() (image.Image, error) {
		rect := region.IntRect(v.info.Width, v.info.Height)

		rW := float64(rect.Dx()) / float64(width)
		rH := float64(rect.Dy()) / float64(height)

		options := bimg.Options{
			Width:      int(float64(v.info.Width) / rW),
			Height:     int(float64(v.info.Height) / rH),
			Left:       int(float64(rect.Min.X) / rW),
			Top:        int(float64(rect.Min.Y) / rH),
			AreaWidth:  width,
			AreaHeight: height,
			Type:       bimg.PNG,
		}

		out, err := bimg.NewImage(v.buf).Process(options)
		if err != nil {
			return nil, UnavailableError{Path: v.rel, Err: errors.Wrap(err, "process")}
		}
		img, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			return nil, UnavailableError{Path: v.rel, Err: errors.Wrap(err, "decode")}
		}
		return img, nil
	})
}
