package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestDimensions(t *testing.T) {
	data := encodePNG(t, 640, 480)
	w, h, err := Dimensions(data)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 640 || h != 480 {
		t.Errorf("got %dx%d, want 640x480", w, h)
	}
}

func TestDimensionsRejectsGarbage(t *testing.T) {
	if _, _, err := Dimensions([]byte("not an image")); err == nil {
		t.Error("expected error for non-image input")
	}
}

func TestFitScalesDownPreservingAspect(t *testing.T) {
	data := encodePNG(t, 2000, 1000)
	out, err := Fit(data, 512, 512)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	w, h, err := Dimensions(out)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 512 || h != 256 {
		t.Errorf("got %dx%d, want 512x256", w, h)
	}
}

func TestFitNeverUpscales(t *testing.T) {
	data := encodePNG(t, 100, 80)
	out, err := Fit(data, 1024, 1024)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	w, h, err := Dimensions(out)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 100 || h != 80 {
		t.Errorf("got %dx%d, want original 100x80", w, h)
	}
}

func TestFitRejectsInvalidBounds(t *testing.T) {
	data := encodePNG(t, 10, 10)
	if _, err := Fit(data, 0, 100); err == nil {
		t.Error("expected error for zero bound")
	}
}

func TestConvertToJPEG(t *testing.T) {
	data := encodePNG(t, 32, 32)
	out, err := Convert(data, FormatJPEG)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q", format)
	}
	if cfg.Width != 32 || cfg.Height != 32 {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestConvertUnknownFormat(t *testing.T) {
	data := encodePNG(t, 8, 8)
	if _, err := Convert(data, Format("webp")); err == nil {
		t.Error("expected error for unsupported format")
	}
}
