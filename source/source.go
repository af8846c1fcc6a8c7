// Package source opens stored images and reads rectangular windows out
// of them at arbitrary resolutions. Two layouts are supported: a plain
// image file handled by libvips, and a directory of per-plane files for
// multidimensional images.
package source

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/wsiview/wsiview/cache"
	"github.com/wsiview/wsiview/pyramid"
	"golang.org/x/image/draw"

	d "github.com/tj/go-debug"
)

var debug = d.Debug("wsiview:source")

// UnavailableError reports a source that could not be opened or read:
// missing, unreadable, undecodable, or too slow for the caller's
// deadline.
type UnavailableError struct {
	Path string
	Err  error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("source `%s` is unavailable: %v", e.Path, e.Err)
}

func (e UnavailableError) Unwrap() error { return e.Err }

// NotFound reports whether the source path does not exist at all, as
// opposed to existing but failing to read.
func (e UnavailableError) NotFound() bool {
	return errors.Is(e.Err, os.ErrNotExist)
}

// Source is one stored image. Window reads return the region scaled to
// width x height pixels; implementations honor the context deadline and
// are safe for concurrent reads.
type Source interface {
	Info() pyramid.Info
	ReadWindow(ctx context.Context, plane pyramid.Plane, region pyramid.Region, width, height int) (image.Image, error)
	Close() error
}

// Open resolves a request path below the images root and opens it. A
// directory with a metadata file is a folder source; a plain file goes
// to libvips.
func Open(root, name string, fc *cache.FileCache) (Source, error) {
	clean, err := ScrubPath(name)
	if err != nil {
		return nil, UnavailableError{Path: name, Err: err}
	}
	abs := filepath.Join(root, filepath.FromSlash(clean))
	stat, err := os.Stat(abs)
	if err != nil {
		return nil, UnavailableError{Path: name, Err: errors.Wrap(err, "stat")}
	}
	debug("opening %s", abs)
	if stat.IsDir() {
		return OpenFolder(abs, clean, fc)
	}
	return OpenVips(abs, clean)
}

// ScrubPath unescapes a request path and strips any parent-directory
// escapes so it cannot leave the images root.
func ScrubPath(name string) (string, error) {
	clean, err := url.QueryUnescape(name)
	if err != nil {
		return "", errors.Wrap(err, "unescape")
	}
	clean = strings.Replace(clean, "../", "", -1)
	clean = strings.TrimPrefix(path.Clean("/"+clean), "/")
	if clean == "" || clean == "." {
		return "", errors.New("empty path")
	}
	return clean, nil
}

// readWithContext runs a window read and gives up when the context
// expires first. The read itself keeps running in its goroutine; the
// buffered channel lets it finish and be collected.
func readWithContext(ctx context.Context, name string, read func() (image.Image, error)) (image.Image, error) {
	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := read()
		ch <- result{img, err}
	}()
	select {
	case <-ctx.Done():
		return nil, UnavailableError{Path: name, Err: ctx.Err()}
	case r := <-ch:
		return r.img, r.err
	}
}

// scaleCrop extracts rect from src and scales it to width x height.
// The sample depth of the source is preserved for grayscale inputs.
func scaleCrop(src image.Image, rect image.Rectangle, width, height int) image.Image {
	var dst draw.Image
	switch src.(type) {
	case *image.Gray:
		dst = image.NewGray(image.Rect(0, 0, width, height))
	case *image.Gray16:
		dst = image.NewGray16(image.Rect(0, 0, width, height))
	case *image.NRGBA64, *image.RGBA64:
		dst = image.NewNRGBA64(image.Rect(0, 0, width, height))
	default:
		dst = image.NewNRGBA(image.Rect(0, 0, width, height))
	}
	if rect.Dx() == width && rect.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, rect, draw.Src, nil)
	return dst
}
