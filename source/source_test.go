package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wsiview/wsiview/cache"
	"github.com/wsiview/wsiview/pyramid"
)

var scrubTests = []struct {
	in   string
	want string
	ok   bool
}{
	{"slide.tif", "slide.tif", true},
	{"a/b/c.png", "a/b/c.png", true},
	{"../../etc/passwd", "etc/passwd", true},
	{"a%2Fb.png", "a/b.png", true},
	{"", "", false},
	{"%zz", "", false},
}

func TestScrubPath(t *testing.T) {
	for _, tt := range scrubTests {
		got, err := ScrubPath(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ScrubPath(%q) unexpected error %v", tt.in, err)
			continue
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("ScrubPath(%q) expected an error", tt.in)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ScrubPath(%q) got %q want %q", tt.in, got, tt.want)
		}
	}
}

// writeFolderFixture lays out a two-level folder source with a 4x4
// gradient base plane and a 2x2 deeper tier.
func writeFolderFixture(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, "stack")
	for _, sub := range []string{"level_0", "level_1"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatal(err)
		}
	}
	meta := []byte(`{"width": 4, "height": 4, "channels": 1, "bits": 8, "levels": 2}`)
	if err := os.WriteFile(filepath.Join(dir, MetaFile), meta, 0644); err != nil {
		t.Fatal(err)
	}

	base := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			base.SetGray(x, y, color.Gray{Y: uint8(16 * (y*4 + x))})
		}
	}
	writePNG(t, filepath.Join(dir, "level_0", "c0_z0_t0.png"), base)

	deep := image.NewGray(image.Rect(0, 0, 2, 2))
	deep.SetGray(0, 0, color.Gray{Y: 200})
	writePNG(t, filepath.Join(dir, "level_1", "c0_z0_t0.png"), deep)
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenFolder(t *testing.T) {
	root := t.TempDir()
	writeFolderFixture(t, root)
	fc := cache.New("source-test-open", 1<<20, root)

	src, err := Open(root, "stack", fc)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	info := src.Info()
	if info.Width != 4 || info.Height != 4 || info.Channels != 1 {
		t.Errorf("Info() got %+v", info)
	}
	if info.Pyramid.Levels() != 2 {
		t.Errorf("Levels() got %d want 2", info.Pyramid.Levels())
	}

	// Natural-size read of the full region hits the base tier.
	img, err := src.ReadWindow(context.Background(), pyramid.Plane{}, pyramid.Region{X: 0, Y: 0, Width: 4, Height: 4}, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds(); got.Dx() != 4 || got.Dy() != 4 {
		t.Fatalf("window bounds got %v want 4x4", got)
	}
	r, _, _, _ := img.At(1, 0).RGBA()
	if uint8(r>>8) != 16 {
		t.Errorf("pixel (1,0) got %d want 16", uint8(r>>8))
	}
}

func TestFolderTierSelection(t *testing.T) {
	root := t.TempDir()
	writeFolderFixture(t, root)
	fc := cache.New("source-test-tier", 1<<20, root)

	src, err := Open(root, "stack", fc)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	// A 2x downsampled read of the full region comes from level_1,
	// whose top-left pixel is 200.
	img, err := src.ReadWindow(context.Background(), pyramid.Plane{}, pyramid.Region{X: 0, Y: 0, Width: 4, Height: 4}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := img.At(0, 0).RGBA()
	if uint8(r>>8) != 200 {
		t.Errorf("downsampled pixel (0,0) got %d want 200 from level_1", uint8(r>>8))
	}
}

func TestFolderMissingPlane(t *testing.T) {
	root := t.TempDir()
	writeFolderFixture(t, root)
	fc := cache.New("source-test-missing", 1<<20, root)

	src, err := Open(root, "stack", fc)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	_, err = src.ReadWindow(context.Background(), pyramid.Plane{C: 3}, pyramid.Region{Width: 4, Height: 4}, 4, 4)
	if err == nil {
		t.Fatal("expected an error for a missing plane")
	}
	if _, ok := err.(UnavailableError); !ok {
		t.Errorf("got %T want UnavailableError", err)
	}
}

func TestOpenMissing(t *testing.T) {
	root := t.TempDir()
	_, err := Open(root, "nope.tif", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	ue, ok := err.(UnavailableError)
	if !ok {
		t.Fatalf("got %T want UnavailableError", err)
	}
	if !ue.NotFound() {
		t.Errorf("NotFound() got false want true: %v", ue)
	}
}

func TestMemoryReadWindowTimeout(t *testing.T) {
	base := image.NewGray(image.Rect(0, 0, 8, 8))
	src := NewMemory(pyramid.Info{Width: 8, Height: 8}, map[pyramid.Plane]image.Image{{}: base})
	src.Delay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := src.ReadWindow(ctx, pyramid.Plane{}, pyramid.Region{Width: 8, Height: 8}, 8, 8)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	ue, ok := err.(UnavailableError)
	if !ok {
		t.Fatalf("got %T want UnavailableError", err)
	}
	if ue.NotFound() {
		t.Error("a timeout is not a missing source")
	}
}

func TestMemoryReadWindowScales(t *testing.T) {
	base := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			base.SetGray(x, y, color.Gray{Y: 100})
		}
	}
	src := NewMemory(pyramid.Info{Width: 4, Height: 4}, map[pyramid.Plane]image.Image{{}: base})

	img, err := src.ReadWindow(context.Background(), pyramid.Plane{}, pyramid.Region{Width: 4, Height: 4}, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds(); got.Dx() != 8 || got.Dy() != 8 {
		t.Fatalf("bounds got %v want 8x8", got)
	}
	r, _, _, _ := img.At(4, 4).RGBA()
	if uint8(r>>8) != 100 {
		t.Errorf("scaled pixel got %d want 100", uint8(r>>8))
	}
}
