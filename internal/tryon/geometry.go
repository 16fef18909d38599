package tryon

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/vastravista/tryon/internal/config"
)

// TargetQuad is the garment's destination quadrilateral in frame pixels:
// the shoulder line on top, the hem line on the bottom.
type TargetQuad struct {
	TopLeft     r2.Point // left shoulder
	TopRight    r2.Point // right shoulder
	BottomRight r2.Point // hem right
	BottomLeft  r2.Point // hem left
}

// Points returns the quad corners in top-left, top-right, bottom-right,
// bottom-left order.
func (q TargetQuad) Points() [4]r2.Point {
	return [4]r2.Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Geometry is the frame-scoped garment placement derived from a smoothed
// pose. It is a pure function of the pose and tuning: identical input
// reproduces identical geometry.
type Geometry struct {
	ShoulderDistance float64
	Midpoint         r2.Point
	RotationAngle    float64 // radians; 0 when the shoulder line is level
	DepthScale       float64 // clamped shoulder span relative to reference
	ChestAnchor      r2.Point
	GarmentWidth     float64
	GarmentHeight    float64
	Quad             TargetQuad
}

// ComputeGeometry derives garment placement from a smoothed pose. It has no
// internal state and performs no IO.
func ComputeGeometry(pose Pose, garment Garment, cfg *config.TuningConfig) (Geometry, error) {
	left, right, ok := pose.Shoulders()
	if !ok {
		return Geometry{}, fmt.Errorf("%w: missing shoulder landmarks", ErrDegenerateGeometry)
	}

	span := right.At.Sub(left.At)
	distance := span.Norm()
	if distance < 1e-6 {
		return Geometry{}, fmt.Errorf("%w: coincident shoulders at (%.1f, %.1f)", ErrDegenerateGeometry, left.At.X, left.At.Y)
	}

	// Shoulder tilt. Image coordinates have y increasing downward, so a
	// positive angle means the right shoulder sits lower in the frame.
	angle := math.Atan2(span.Y, span.X)

	depth := distance / cfg.GetReferenceShoulderPixels()
	depth = clamp(depth, cfg.GetDepthScaleMin(), cfg.GetDepthScaleMax())

	mid := left.At.Add(span.Mul(0.5))

	// Unit vectors along the shoulder line and down the rotated body axis.
	along := span.Mul(1 / distance)
	down := r2.Point{X: -along.Y, Y: along.X}

	chest := mid.Add(down.Mul(distance * cfg.GetChestDropFraction()))

	height := distance * garment.AspectRatio()
	width := distance * cfg.GetGarmentWidthFactor()

	hemCenter := mid.Add(down.Mul(height))
	hemHalf := along.Mul(distance * garment.HemFlare() / 2)

	return Geometry{
		ShoulderDistance: distance,
		Midpoint:         mid,
		RotationAngle:    angle,
		DepthScale:       depth,
		ChestAnchor:      chest,
		GarmentWidth:     width,
		GarmentHeight:    height,
		Quad: TargetQuad{
			TopLeft:     left.At,
			TopRight:    right.At,
			BottomRight: hemCenter.Add(hemHalf),
			BottomLeft:  hemCenter.Sub(hemHalf),
		},
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
