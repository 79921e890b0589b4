package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"golang.org/x/image/draw"
)

// Format is an output encoding for Convert.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Dimensions returns the pixel size of an encoded image without
// decoding the full bitmap.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Fit scales the image down to fit within maxWidth x maxHeight while
// preserving aspect ratio. Images already inside the bounds are
// re-encoded unchanged in size; Fit never upscales. Output is PNG.
func Fit(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, fmt.Errorf("invalid bounds %dx%d", maxWidth, maxHeight)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	outW, outH := w, h
	if w > maxWidth || h > maxHeight {
		// Scale by the tighter dimension.
		scaleW := float64(maxWidth) / float64(w)
		scaleH := float64(maxHeight) / float64(h)
		scale := scaleW
		if scaleH < scale {
			scale = scaleH
		}
		outW = int(float64(w) * scale)
		outH = int(float64(h) * scale)
		if outW < 1 {
			outW = 1
		}
		if outH < 1 {
			outH = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Convert re-encodes the image in the requested format.
func Convert(data []byte, format Format) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, src)
	case FormatJPEG:
		err = jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90})
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
