package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"golang.org/x/image/tiff"
)

var negotiateTests = []struct {
	name      string
	extension string
	accept    string
	want      string
}{
	{"extension", ".png", "", "png"},
	{"extension case", ".JPEG", "", "jpg"},
	{"extension beats accept", ".tiff", "image/png", "tiff"},
	{"accept", "", "image/jpeg", "jpg"},
	{"accept prefers png", "", "image/jpeg,image/png", "png"},
	{"wildcard", "", "*/*", "png"},
	{"no preference", "", "", "png"},
}

func TestNegotiateFormat(t *testing.T) {
	for _, tt := range negotiateTests {
		f, err := NegotiateFormat(tt.extension, tt.accept)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if f.Name != tt.want {
			t.Errorf("%s: got %v want %v", tt.name, f.Name, tt.want)
		}
	}
}

func TestNegotiateFormatUnsupported(t *testing.T) {
	_, err := NegotiateFormat(".webp", "")
	me, ok := err.(UnsupportedMimetypeError)
	if !ok {
		t.Fatalf("got %T (%v) want UnsupportedMimetypeError", err, err)
	}
	if me.Mimetype != ".webp" {
		t.Errorf("got %v want .webp", me.Mimetype)
	}

	if _, err := NegotiateFormat("", "application/json"); err == nil {
		t.Error("expected an error for a non-image Accept header")
	}
}

func TestEncodeRasterPNG(t *testing.T) {
	r := grayRaster(2, 2, 7)
	r.Gray.SetGray(1, 0, color.Gray{Y: 250})

	var buf bytes.Buffer
	if err := EncodeRaster(&buf, r, formats["png"], 90); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("got %T want *image.Gray", img)
	}
	if gray.GrayAt(0, 0).Y != 7 || gray.GrayAt(1, 0).Y != 250 {
		t.Errorf("pixels got %v want 7 and 250", gray.Pix)
	}
}

func TestEncodeRasterPNGKeeps16Bit(t *testing.T) {
	r := NewRaster(2, 2, 16, true)
	r.Gray16.SetGray16(0, 0, color.Gray16{Y: 40000})

	var buf bytes.Buffer
	if err := EncodeRaster(&buf, r, formats["png"], 90); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("got %T want *image.Gray16", img)
	}
	if got := gray.Gray16At(0, 0).Y; got != 40000 {
		t.Errorf("got %d want 40000", got)
	}
}

func TestEncodeRasterTIFF(t *testing.T) {
	r := grayRaster(3, 2, 9)

	var buf bytes.Buffer
	if err := EncodeRaster(&buf, r, formats["tiff"], 90); err != nil {
		t.Fatal(err)
	}
	img, err := tiff.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("bounds got %v want 3x2", b)
	}
	if r, g, b, _ := img.At(0, 0).RGBA(); r>>8 != 9 || g>>8 != 9 || b>>8 != 9 {
		t.Errorf("pixel got (%d,%d,%d) want gray 9", r>>8, g>>8, b>>8)
	}
}

func TestEncodeRasterJPEGFlattens(t *testing.T) {
	r := NewRaster(2, 2, 8, false)
	for i := 0; i < 4; i++ {
		// bright red, fully transparent: flattening must land on black
		r.Color.Pix[4*i] = 200
		r.Color.Pix[4*i+3] = 0
	}

	var buf bytes.Buffer
	if err := EncodeRaster(&buf, r, formats["jpg"], 90); err != nil {
		t.Fatal(err)
	}
	if b := buf.Bytes(); len(b) < 2 || b[0] != 0xff || b[1] != 0xd8 {
		t.Fatal("missing JPEG magic")
	}
	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if red, _, _, _ := img.At(0, 0).RGBA(); red>>8 > 40 {
		t.Errorf("red got %d want near 0", red>>8)
	}
}

func TestEncodeRasterBMP(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeRaster(&buf, grayRaster(2, 2, 3), formats["bmp"], 90); err != nil {
		t.Fatal(err)
	}
	if b := buf.Bytes(); len(b) < 2 || b[0] != 'B' || b[1] != 'M' {
		t.Error("missing BMP magic")
	}
}

func TestEncodeRasterUnsupported(t *testing.T) {
	err := EncodeRaster(io.Discard, grayRaster(1, 1, 0), Format{Name: "gif"}, 90)
	if _, ok := err.(UnsupportedMimetypeError); !ok {
		t.Errorf("got %T (%v) want UnsupportedMimetypeError", err, err)
	}
}
