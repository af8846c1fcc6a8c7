package wsiview

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFixture lays out a small folder image: one 8 bit gray plane of
// value 128 at 64x48.
func writeFixture(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, "slide")
	if err := os.MkdirAll(filepath.Join(dir, "level_0"), 0o755); err != nil {
		t.Fatal(err)
	}
	meta := `{"width": 64, "height": 48, "channels": 1, "bits": 8, "levels": 1}`
	if err := os.WriteFile(filepath.Join(dir, "wsiview.json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "level_0", "c0_z0_t0.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()
	config := DefaultConfig()
	config.Images = t.TempDir()
	writeFixture(t, config.Images)
	if mutate != nil {
		mutate(config)
	}
	ts := httptest.NewServer(NewServer(config))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

const squareAnnotation = `{"geometry": "POLYGON((10 10, 30 10, 30 30, 10 30, 10 10))"}`

func TestServerStatuses(t *testing.T) {
	ts := newTestServer(t, nil)

	var tests = []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"index", "GET", "/", "", http.StatusOK},
		{"info", "GET", "/image/slide/info", "", http.StatusOK},
		{"info missing", "GET", "/image/nope/info", "", http.StatusNotFound},
		{"mask", "POST", "/image/slide/annotation/mask.png",
			`{"annotations": [` + squareAnnotation + `]}`, http.StatusOK},
		{"mask missing image", "POST", "/image/nope/annotation/mask.png",
			`{"annotations": [` + squareAnnotation + `]}`, http.StatusNotFound},
		{"mask without annotations", "POST", "/image/slide/annotation/mask.png",
			`{}`, http.StatusBadRequest},
		{"bad geometry", "POST", "/image/slide/annotation/mask.png",
			`{"annotations": [{"geometry": "POLYGON(("}]}`, http.StatusBadRequest},
		{"crop", "POST", "/image/slide/annotation/crop.png",
			`{"annotations": [` + squareAnnotation + `]}`, http.StatusOK},
		{"crop whole image", "POST", "/image/slide/annotation/crop.png",
			`{}`, http.StatusOK},
		{"drawing", "POST", "/image/slide/annotation/drawing.png",
			`{"annotations": [` + squareAnnotation + `]}`, http.StatusOK},
		{"two scale fields", "POST", "/image/slide/annotation/drawing.png",
			`{"width": 10, "height": 10}`, http.StatusBadRequest},
		{"zoom out of range", "POST", "/image/slide/annotation/drawing.png",
			`{"zoom": 5}`, http.StatusBadRequest},
		{"unknown reduction", "POST", "/image/slide/annotation/crop.png",
			`{"z_reduction": "MEDIAN"}`, http.StatusBadRequest},
		{"channel out of range", "POST", "/image/slide/annotation/crop.png",
			`{"channels": 3}`, http.StatusBadRequest},
		{"bad extension", "POST", "/image/slide/annotation/mask.webp",
			`{"annotations": [` + squareAnnotation + `]}`, http.StatusBadRequest},
		{"bad transparency", "POST", "/image/slide/annotation/crop.png",
			`{"background_transparency": 200}`, http.StatusBadRequest},
	}

	for _, test := range tests {
		var resp *http.Response
		var err error
		if test.method == "GET" {
			resp, err = http.Get(ts.URL + test.path)
			if err != nil {
				t.Fatal(err)
			}
		} else {
			resp = post(t, ts.URL+test.path, test.body)
		}
		resp.Body.Close()

		if status := resp.StatusCode; status != test.status {
			t.Errorf("%s: handler returned wrong status code: got %#v want %#v",
				test.name, status, test.status)
		}
	}
}

func TestServerInfo(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/image/slide/info")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
		t.Errorf("info should be JSON: got %v", contentType)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "max-age=") {
		t.Errorf("info should be cacheable: got %v", cc)
	}

	var info InfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Width != 64 || info.Height != 48 {
		t.Errorf("image expected to be 64x48: got %v x %v", info.Width, info.Height)
	}
	if info.Bits != 8 || info.Channels != 1 {
		t.Errorf("image expected 1 channel at 8 bit: got %v at %v", info.Channels, info.Bits)
	}
	if len(info.Tiers) != 1 || info.Tiers[0].Downsample != 1 {
		t.Errorf("image expected a single tier: got %#v", info.Tiers)
	}
}

func decodeImage(t *testing.T, resp *http.Response) image.Image {
	t.Helper()
	defer resp.Body.Close()
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func rgba8(img image.Image, x, y int) (uint8, uint8, uint8, uint8) {
	r, g, b, a := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)
}

func TestServerMaskRendition(t *testing.T) {
	ts := newTestServer(t, nil)

	// the square sits in the middle of a doubled region, scaled to 32px
	resp := post(t, ts.URL+"/image/slide/annotation/mask.png", `{
		"annotations": [`+squareAnnotation+`],
		"context_factor": 2,
		"width": 32
	}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", resp.StatusCode)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "image/png" {
		t.Errorf("mask should be PNG: got %v", contentType)
	}
	if size := resp.Header.Get("X-Image-Effective-Size"); size != "32x32" {
		t.Errorf("effective size header: got %v want 32x32", size)
	}
	if size := resp.Header.Get("X-Image-Requested-Size"); size != "32x32" {
		t.Errorf("requested size header: got %v want 32x32", size)
	}

	img := decodeImage(t, resp)
	if r, _, _, _ := rgba8(img, 16, 16); r != 255 {
		t.Errorf("inside the annotation should be white: got %v", r)
	}
	if r, _, _, _ := rgba8(img, 2, 2); r != 0 {
		t.Errorf("outside the annotation should be black: got %v", r)
	}
}

func TestServerCropRendition(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/image/slide/annotation/crop.png", `{
		"annotations": [`+squareAnnotation+`],
		"context_factor": 2,
		"width": 32
	}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", resp.StatusCode)
	}
	img := decodeImage(t, resp)

	if r, _, _, a := rgba8(img, 16, 16); a != 255 || r != 128 {
		t.Errorf("inside the annotation should keep the pixels: got r=%v a=%v", r, a)
	}
	if _, _, _, a := rgba8(img, 2, 2); a != 0 {
		t.Errorf("outside the annotation should be transparent: got a=%v", a)
	}
}

func TestServerCropOpaqueBackground(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/image/slide/annotation/crop.png", `{
		"annotations": [`+squareAnnotation+`],
		"context_factor": 2,
		"width": 32,
		"background_transparency": 0
	}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", resp.StatusCode)
	}
	img := decodeImage(t, resp)

	if r, _, _, a := rgba8(img, 2, 2); a != 255 || r != 128 {
		t.Errorf("opaque background should keep every pixel: got r=%v a=%v", r, a)
	}
}

func TestServerDrawingRendition(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/image/slide/annotation/drawing.png", `{
		"annotations": [{
			"geometry": "POLYGON((10 10, 30 10, 30 30, 10 30, 10 10))",
			"stroke_color": "red",
			"stroke_width": 3
		}],
		"context_factor": 2,
		"width": 32
	}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", resp.StatusCode)
	}
	img := decodeImage(t, resp)

	// the square maps to (8,8)-(24,24) in the 32px output
	if r, g, _, _ := rgba8(img, 16, 8); r < 200 || g > 80 {
		t.Errorf("stroke should be red: got r=%v g=%v", r, g)
	}
	if r, g, b, _ := rgba8(img, 16, 16); r != 128 || g != 128 || b != 128 {
		t.Errorf("interior should keep the image: got %v %v %v", r, g, b)
	}
}

func TestServerSizeSafeguard(t *testing.T) {
	ts := newTestServer(t, func(config *Config) {
		config.MaxArea = 256
	})

	resp := post(t, ts.URL+"/image/slide/annotation/mask.png", `{
		"annotations": [`+squareAnnotation+`],
		"context_factor": 2,
		"width": 32
	}`)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", resp.StatusCode)
	}
	if size := resp.Header.Get("X-Image-Requested-Size"); size != "32x32" {
		t.Errorf("requested size header: got %v want 32x32", size)
	}
	if size := resp.Header.Get("X-Image-Effective-Size"); size != "16x16" {
		t.Errorf("effective size header: got %v want 16x16", size)
	}
}

func TestServerSizeSafeguardBypass(t *testing.T) {
	ts := newTestServer(t, func(config *Config) {
		config.MaxArea = 256
	})

	req, err := http.NewRequest("POST", ts.URL+"/image/slide/annotation/mask.png",
		strings.NewReader(`{"annotations": [`+squareAnnotation+`], "width": 32}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Image-Size-Safety", "UNSAFE")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", resp.StatusCode)
	}
	if size := resp.Header.Get("X-Image-Effective-Size"); size != "32x32" {
		t.Errorf("unsafe request should not be clamped: got %v", size)
	}
}

func TestServerExtensionless(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/image/slide/annotation/mask",
		`{"annotations": [`+squareAnnotation+`]}`)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", resp.StatusCode)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "image/png" {
		t.Errorf("extensionless requests should fall back to PNG: got %v", contentType)
	}
}

func TestServerBottomLeftOrigin(t *testing.T) {
	ts := newTestServer(t, nil)

	// bottom-left (10,10)-(30,30) lands at rows 18..38 from the top of
	// the 48px image
	resp := post(t, ts.URL+"/image/slide/annotation/mask.png", `{
		"annotations": [`+squareAnnotation+`],
		"origin": "LEFT_BOTTOM",
		"width": 20
	}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v", resp.StatusCode)
	}
	img := decodeImage(t, resp)
	if r, _, _, _ := rgba8(img, 10, 10); r != 255 {
		t.Errorf("flipped annotation center should be white: got %v", r)
	}
}

func TestServerIndex(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var index IndexResponse
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		t.Fatal(err)
	}
	if index.Service != "wsiview" || index.Version == "" {
		t.Errorf("index should describe the service: got %#v", index)
	}
	if len(index.Endpoints) == 0 {
		t.Error("index should list the endpoints")
	}
}

func TestServerMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics endpoint should answer: got %v", resp.StatusCode)
	}
}
