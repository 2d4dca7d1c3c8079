package clipboard

import (
	"errors"
)

// Kind identifies which variant a Capture holds
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

var (
	// ErrClipboardUnavailable means no attempt produced a payload
	ErrClipboardUnavailable = errors.New("clipboard unavailable")

	// ErrMalformedImageBuffer means the pixel buffer does not match its dimensions
	ErrMalformedImageBuffer = errors.New("malformed image buffer")

	// ErrEmpty is returned by a Source that holds nothing of the requested format
	ErrEmpty = errors.New("clipboard holds no content of this format")
)

// Image is a PNG payload encoded as base64 text with its pixel dimensions
type Image struct {
	Data   string
	Width  uint
	Height uint
}

// Capture is one normalized clipboard read. Exactly one variant is populated;
// construct it with NewText or NewImage.
type Capture struct {
	kind  Kind
	text  string
	image Image
}

// NewText creates a text capture
func NewText(plain string) Capture {
	return Capture{kind: KindText, text: plain}
}

// NewImage creates an image capture from an already encoded payload.
// Use NormalizeImage to build one from raw pixels.
func NewImage(data string, width, height uint) Capture {
	return Capture{kind: KindImage, image: Image{Data: data, Width: width, Height: height}}
}

// Kind returns the populated variant
func (c Capture) Kind() Kind {
	return c.kind
}

// Text returns the plain text and true for text captures
func (c Capture) Text() (string, bool) {
	return c.text, c.kind == KindText
}

// Image returns the image payload and true for image captures
func (c Capture) Image() (Image, bool) {
	return c.image, c.kind == KindImage
}

// IsZero reports whether the capture was never constructed
func (c Capture) IsZero() bool {
	return c.kind == ""
}

// Size is the byte length of the text or of the encoded image payload
func (c Capture) Size() int {
	switch c.kind {
	case KindText:
		return len(c.text)
	case KindImage:
		return len(c.image.Data)
	default:
		return 0
	}
}
