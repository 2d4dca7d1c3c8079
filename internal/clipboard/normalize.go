package clipboard

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// RawImage is an RGBA pixel buffer as handed out by the OS clipboard
type RawImage struct {
	Pix    []byte
	Width  int
	Height int
}

// NormalizeImage encodes raw RGBA pixels as base64 PNG.
// A buffer whose length disagrees with its dimensions is rejected.
func NormalizeImage(raw RawImage) (Capture, error) {
	if raw.Width <= 0 || raw.Height <= 0 {
		return Capture{}, fmt.Errorf("%w: dimensions %dx%d", ErrMalformedImageBuffer, raw.Width, raw.Height)
	}
	if want := raw.Width * raw.Height * 4; len(raw.Pix) != want {
		return Capture{}, fmt.Errorf("%w: %d bytes for %dx%d, want %d",
			ErrMalformedImageBuffer, len(raw.Pix), raw.Width, raw.Height, want)
	}

	img := &image.RGBA{
		Pix:    raw.Pix,
		Stride: raw.Width * 4,
		Rect:   image.Rect(0, 0, raw.Width, raw.Height),
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Capture{}, fmt.Errorf("encode png: %w", err)
	}

	return NewImage(base64.StdEncoding.EncodeToString(buf.Bytes()), uint(raw.Width), uint(raw.Height)), nil
}
