package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mindmorass/spiegel/internal/clipboard"
)

// MaxPayloadSize limits a decoded clip blob
const MaxPayloadSize = 100 * 1024 * 1024 // 100 MB

var (
	ErrInvalidBlob     = errors.New("invalid clip blob")
	ErrPayloadTooLarge = errors.New("clip blob exceeds maximum size")
)

// blob is the JSON stored in the clip column
type blob struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Width   uint   `json:"width,omitempty"`
	Height  uint   `json:"height,omitempty"`
}

// EncodeCapture serializes a capture to its stored JSON form
func EncodeCapture(c clipboard.Capture) ([]byte, error) {
	var b blob
	switch c.Kind() {
	case clipboard.KindText:
		text, _ := c.Text()
		b = blob{Type: string(clipboard.KindText), Content: text}
	case clipboard.KindImage:
		img, _ := c.Image()
		b = blob{Type: string(clipboard.KindImage), Content: img.Data, Width: img.Width, Height: img.Height}
	default:
		return nil, fmt.Errorf("%w: empty capture", ErrInvalidBlob)
	}
	return json.Marshal(b)
}

// DecodeCapture parses the stored JSON form of a capture
func DecodeCapture(data []byte) (clipboard.Capture, error) {
	if len(data) > MaxPayloadSize {
		return clipboard.Capture{}, ErrPayloadTooLarge
	}

	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return clipboard.Capture{}, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}

	switch clipboard.Kind(b.Type) {
	case clipboard.KindText:
		return clipboard.NewText(b.Content), nil
	case clipboard.KindImage:
		if b.Width == 0 || b.Height == 0 {
			return clipboard.Capture{}, fmt.Errorf("%w: image without dimensions", ErrInvalidBlob)
		}
		return clipboard.NewImage(b.Content, b.Width, b.Height), nil
	default:
		return clipboard.Capture{}, fmt.Errorf("%w: unknown type %q", ErrInvalidBlob, b.Type)
	}
}
