package tryon

import (
	"fmt"
	"image/color"
	"strings"
)

// ParseHexColor parses a #RRGGBB or RRGGBB string into an opaque NRGBA.
// Anything else — short forms, alpha components, named colors — is rejected
// with ErrMalformedColor; the upstream recommendation engine only ever
// emits six-digit hex.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %q (want #RRGGBB or RRGGBB)", ErrMalformedColor, s)
	}

	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(hex[2*i])
		lo, ok2 := hexNibble(hex[2*i+1])
		if !ok1 || !ok2 {
			return color.NRGBA{}, fmt.Errorf("%w: %q (non-hex digit)", ErrMalformedColor, s)
		}
		rgb[i] = hi<<4 | lo
	}

	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}, nil
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// tintChannel multiplicatively scales one 8-bit channel by tint/255,
// rounding to nearest. Shading baked into the template survives because
// the scale preserves relative luminance.
func tintChannel(v, tint uint8) uint8 {
	return uint8((uint32(v)*uint32(tint) + 127) / 255)
}
