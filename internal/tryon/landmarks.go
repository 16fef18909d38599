// Package tryon implements the half-body AR try-on core: it turns noisy
// per-frame body-landmark detections into a stable, correctly scaled and
// rotated garment overlay composited onto the live frame, one frame at a
// time, per session.
//
// The landmark detector, garment template storage and color recommendation
// are external capabilities; they enter the package only through the
// Detector and TemplateStore interfaces and a validated hex color string.
package tryon

import (
	"github.com/golang/geo/r2"
)

// LandmarkName identifies an anatomical point in the half-body set.
type LandmarkName string

const (
	LeftShoulder  LandmarkName = "left_shoulder"
	RightShoulder LandmarkName = "right_shoulder"
	Nose          LandmarkName = "nose"
	LeftElbow     LandmarkName = "left_elbow"
	RightElbow    LandmarkName = "right_elbow"
)

// requiredLandmarks is the closed set a pose must carry to be usable.
// Elbows are optional (sleeve hints) and never gate usability.
var requiredLandmarks = []LandmarkName{LeftShoulder, RightShoulder, Nose}

// allLandmarks lists every landmark the stabilizer smooths.
var allLandmarks = []LandmarkName{LeftShoulder, RightShoulder, Nose, LeftElbow, RightElbow}

// Landmark is a named 2D point in frame pixels with detection confidence.
type Landmark struct {
	Name       LandmarkName
	At         r2.Point
	Confidence float64 // [0, 1]
}

// RawDetection is one frame's detector output: at most one half-body pose.
type RawDetection struct {
	Landmarks map[LandmarkName]Landmark
	UnixNanos int64
}

// Landmark returns the named landmark if the detection carries it.
func (d *RawDetection) Landmark(name LandmarkName) (Landmark, bool) {
	if d == nil {
		return Landmark{}, false
	}
	lm, ok := d.Landmarks[name]
	return lm, ok
}

// hasRequired reports whether every required landmark is present with
// confidence at or above floor.
func (d *RawDetection) hasRequired(floor float64) bool {
	for _, name := range requiredLandmarks {
		lm, ok := d.Landmark(name)
		if !ok || lm.Confidence < floor {
			return false
		}
	}
	return true
}

// minRequiredConfidence returns the minimum confidence across the required
// landmarks, or 0 if any is absent. The minimum (never the average) decides
// usability: one weak shoulder must not hide behind a confident nose.
func (d *RawDetection) minRequiredConfidence() float64 {
	min := 1.0
	for _, name := range requiredLandmarks {
		lm, ok := d.Landmark(name)
		if !ok {
			return 0
		}
		if lm.Confidence < min {
			min = lm.Confidence
		}
	}
	return min
}

// Pose is a smoothed half-body pose: the fixed landmark slots plus an
// aggregate confidence.
type Pose struct {
	Landmarks map[LandmarkName]Landmark
	UnixNanos int64
}

// Landmark returns the named landmark if the pose carries it.
func (p *Pose) Landmark(name LandmarkName) (Landmark, bool) {
	if p == nil {
		return Landmark{}, false
	}
	lm, ok := p.Landmarks[name]
	return lm, ok
}

// AggregateConfidence is the mean confidence of the required landmarks,
// or 0 if any required landmark is absent.
func (p *Pose) AggregateConfidence() float64 {
	var sum float64
	for _, name := range requiredLandmarks {
		lm, ok := p.Landmark(name)
		if !ok {
			return 0
		}
		sum += lm.Confidence
	}
	return sum / float64(len(requiredLandmarks))
}

// Shoulders returns the left and right shoulder landmarks. ok is false if
// either is missing.
func (p *Pose) Shoulders() (left, right Landmark, ok bool) {
	l, lok := p.Landmark(LeftShoulder)
	r, rok := p.Landmark(RightShoulder)
	return l, r, lok && rok
}
