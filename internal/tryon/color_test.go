package tryon

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexColor(t *testing.T) {
	t.Parallel()

	t.Run("accepts hash prefix and bare hex", func(t *testing.T) {
		t.Parallel()
		want := color.NRGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xff}

		got, err := ParseHexColor("#3366cc")
		require.NoError(t, err)
		assert.Equal(t, want, got)

		got, err = ParseHexColor("3366CC")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("result is always opaque", func(t *testing.T) {
		t.Parallel()
		got, err := ParseHexColor("#000000")
		require.NoError(t, err)
		assert.Equal(t, uint8(0xff), got.A)
	})

	t.Run("rejects malformed strings", func(t *testing.T) {
		t.Parallel()
		for _, s := range []string{"", "#fff", "#12345", "#1234567", "red", "#gg0000", "#12 456"} {
			_, err := ParseHexColor(s)
			assert.ErrorIs(t, err, ErrMalformedColor, "input %q", s)
		}
	})
}

func TestParseGarment(t *testing.T) {
	t.Parallel()

	t.Run("accepts the closed enum", func(t *testing.T) {
		t.Parallel()
		for _, g := range Garments() {
			parsed, err := ParseGarment(string(g))
			require.NoError(t, err)
			assert.Equal(t, g, parsed)
			assert.True(t, parsed.Valid())
		}
	})

	t.Run("rejects everything else", func(t *testing.T) {
		t.Parallel()
		for _, s := range []string{"", "T-Shirt", "tshirt ", "sari", "TSHIRT"} {
			_, err := ParseGarment(s)
			assert.ErrorIs(t, err, ErrInvalidGarment, "input %q", s)
		}
	})

	t.Run("specs are sane", func(t *testing.T) {
		t.Parallel()
		for _, g := range Garments() {
			assert.Greater(t, g.AspectRatio(), 1.0, "garment %s", g)
			assert.GreaterOrEqual(t, g.HemFlare(), 1.0, "garment %s", g)
		}
		// The dress is the longest and most flared cut.
		assert.Equal(t, 2.4, GarmentDress.AspectRatio())
		assert.Equal(t, 1.5, GarmentDress.HemFlare())
	})
}
