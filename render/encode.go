package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// error messages
var mimetypeError = "`extension` or `Accept` names no supported image encoding: %#v"

// UnsupportedMimetypeError reports an output encoding this server
// cannot produce.
type UnsupportedMimetypeError struct {
	Mimetype string
}

func (e UnsupportedMimetypeError) Error() string {
	return fmt.Sprintf(mimetypeError, e.Mimetype)
}

// Format is a negotiated output encoding.
type Format struct {
	Name string
	Mime string
}

var formats = map[string]Format{
	"png":  {"png", "image/png"},
	"jpg":  {"jpg", "image/jpeg"},
	"jpeg": {"jpg", "image/jpeg"},
	"tif":  {"tiff", "image/tiff"},
	"tiff": {"tiff", "image/tiff"},
	"bmp":  {"bmp", "image/bmp"},
}

// acceptOrder lists the encodings probed in the Accept header, most
// capable first.
var acceptOrder = []string{"png", "tiff", "jpg", "bmp"}

// NegotiateFormat resolves the output encoding from a URL extension
// like ".png", falling back to the Accept header and then to PNG.
func NegotiateFormat(extension, accept string) (Format, error) {
	if ext := strings.TrimPrefix(strings.ToLower(extension), "."); ext != "" {
		f, ok := formats[ext]
		if !ok {
			return Format{}, UnsupportedMimetypeError{Mimetype: extension}
		}
		return f, nil
	}
	for _, name := range acceptOrder {
		if strings.Contains(accept, formats[name].Mime) {
			return formats[name], nil
		}
	}
	if accept == "" || strings.Contains(accept, "*/*") || strings.Contains(accept, "image/*") {
		return formats["png"], nil
	}
	return Format{}, UnsupportedMimetypeError{Mimetype: accept}
}

// EncodeRaster serializes the raster in the negotiated format. PNG and
// TIFF keep 16 bit depth and transparency; JPEG and BMP flatten over
// black first.
func EncodeRaster(w io.Writer, r *Raster, f Format, jpegQuality int) error {
	img := r.Image()
	switch f.Name {
	case "png":
		return png.Encode(w, img)
	case "jpg":
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: jpegQuality})
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "bmp":
		return bmp.Encode(w, flatten(img))
	}
	return UnsupportedMimetypeError{Mimetype: f.Name}
}

// flatten composites an image over black, for encodings without an
// alpha channel.
func flatten(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return img
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}
