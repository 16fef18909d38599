package tryon

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// DecodeFrame decodes a JPEG or PNG camera frame. Anything else, or a
// truncated payload, is reported as ErrMalformedFrame.
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s frame has no pixels", ErrMalformedFrame, format)
	}
	return img, nil
}
