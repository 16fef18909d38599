package tryon

import (
	"image"
	"image/color"
	"image/draw"
)

// SessionPhase is the freeze state machine's state. Exactly two states
// exist; the per-frame transition lives in Engine.ProcessFrame.
type SessionPhase string

const (
	// PhaseTracking means the current frame produced fresh geometry.
	PhaseTracking SessionPhase = "tracking"
	// PhaseFrozen means the garment reuses the last stable warp while the
	// background stays live.
	PhaseFrozen SessionPhase = "frozen"
)

// StableWarp is a successfully rendered garment overlay together with the
// geometry and inputs that produced it. Once a session owns one it is only
// ever replaced by a higher-than-threshold render, never cleared: the
// garment must not vanish after it has appeared.
type StableWarp struct {
	Overlay    *image.NRGBA // frame-sized, straight alpha
	Geometry   Geometry
	Garment    Garment
	Tint       color.NRGBA
	Confidence float64
	UnixNanos  int64
}

// Composite alpha-blends the overlay onto the background frame using the
// overlay's straight (non-premultiplied) alpha:
//
//	out = background*(1-a) + overlay*a
//
// The background is always the live frame, even when the overlay is frozen.
// Overlay regions outside the background are dropped; background regions
// outside the overlay pass through untouched.
func Composite(background image.Image, overlay *image.NRGBA) *image.NRGBA {
	bounds := background.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), background, bounds.Min, draw.Src)

	if overlay == nil {
		return out
	}

	ob := overlay.Bounds()
	for y := ob.Min.Y; y < ob.Max.Y; y++ {
		if y < 0 || y >= out.Rect.Max.Y {
			continue
		}
		for x := ob.Min.X; x < ob.Max.X; x++ {
			if x < 0 || x >= out.Rect.Max.X {
				continue
			}
			op := overlay.NRGBAAt(x, y)
			if op.A == 0 {
				continue
			}
			if op.A == 0xff {
				out.SetNRGBA(x, y, op)
				continue
			}
			bp := out.NRGBAAt(x, y)
			a := uint32(op.A)
			ia := 255 - a
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8((uint32(bp.R)*ia + uint32(op.R)*a + 127) / 255),
				G: uint8((uint32(bp.G)*ia + uint32(op.G)*a + 127) / 255),
				B: uint8((uint32(bp.B)*ia + uint32(op.B)*a + 127) / 255),
				A: 0xff,
			})
		}
	}

	return out
}
