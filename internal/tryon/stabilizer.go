package tryon

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"

	"github.com/vastravista/tryon/internal/config"
)

// poseHistory is a fixed-capacity ring buffer of raw detections. Oldest
// entries are overwritten; memory per session stays bounded.
type poseHistory struct {
	entries  []*RawDetection
	capacity int
	head     int // next write position
	size     int
}

func newPoseHistory(capacity int) *poseHistory {
	if capacity < 1 {
		capacity = 5
	}
	return &poseHistory{
		entries:  make([]*RawDetection, capacity),
		capacity: capacity,
	}
}

// add stores a detection, evicting the oldest if at capacity.
func (h *poseHistory) add(d *RawDetection) {
	h.entries[h.head] = d
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// all returns the stored detections oldest to newest.
func (h *poseHistory) all() []*RawDetection {
	if h.size == 0 {
		return nil
	}
	result := make([]*RawDetection, h.size)
	for i := 0; i < h.size; i++ {
		idx := (h.head - h.size + i + h.capacity) % h.capacity
		result[i] = h.entries[idx]
	}
	return result
}

func (h *poseHistory) len() int { return h.size }

func (h *poseHistory) clear() {
	for i := range h.entries {
		h.entries[i] = nil
	}
	h.head = 0
	h.size = 0
}

// Stabilizer damps per-frame landmark jitter with a recency-weighted
// average over a short rolling window. One Stabilizer belongs to exactly
// one session; it is not safe for concurrent use (the session mutex
// serializes access).
type Stabilizer struct {
	history       *poseHistory
	bias          float64 // exponent on the linear recency weights
	landmarkFloor float64
	poseFloor     float64
}

// NewStabilizer builds a stabilizer from tuning parameters.
func NewStabilizer(cfg *config.TuningConfig) *Stabilizer {
	return &Stabilizer{
		history:       newPoseHistory(cfg.GetSmoothingWindow()),
		bias:          cfg.GetSmoothingBias(),
		landmarkFloor: cfg.GetMinLandmarkConfidence(),
		poseFloor:     cfg.GetMinPoseConfidence(),
	}
}

// Observe ingests the current frame's raw detection (nil when the detector
// saw nobody) and returns the smoothed pose, its confidence, and whether it
// is usable for fresh geometry.
//
// Confidence is the minimum of the current frame's required-landmark
// confidences: history never hides a weak detection. Usability additionally
// requires every required landmark present in the current frame above the
// per-landmark floor — past frames alone cannot make an absent person
// reappear.
func (s *Stabilizer) Observe(raw *RawDetection) (Pose, float64, bool) {
	if raw != nil {
		s.history.add(raw)
	}

	pose := s.smooth()

	if raw == nil {
		return pose, 0, false
	}

	confidence := raw.minRequiredConfidence()
	usable := confidence >= s.poseFloor && raw.hasRequired(s.landmarkFloor)
	return pose, confidence, usable
}

// smooth computes the recency-weighted average of each landmark across the
// history. A landmark is averaged only over the frames that carried it; its
// reported confidence is taken from the newest frame that did.
func (s *Stabilizer) smooth() Pose {
	entries := s.history.all()
	pose := Pose{Landmarks: make(map[LandmarkName]Landmark, len(allLandmarks))}
	if len(entries) == 0 {
		return pose
	}
	pose.UnixNanos = entries[len(entries)-1].UnixNanos

	// Linear recency weights w_i = i+1 (oldest -> newest), raised to the
	// tunable bias exponent. Bias 1.0 keeps them linear.
	weights := make([]float64, len(entries))
	for i := range entries {
		weights[i] = math.Pow(float64(i+1), s.bias)
	}

	for _, name := range allLandmarks {
		var sum r2.Point
		used := make([]float64, 0, len(entries))
		var newest Landmark
		var seen bool
		for i, entry := range entries {
			lm, ok := entry.Landmark(name)
			if !ok {
				continue
			}
			sum = sum.Add(lm.At.Mul(weights[i]))
			used = append(used, weights[i])
			newest = lm
			seen = true
		}
		if !seen {
			continue
		}
		total := floats.Sum(used)
		pose.Landmarks[name] = Landmark{
			Name:       name,
			At:         sum.Mul(1 / total),
			Confidence: newest.Confidence,
		}
	}

	return pose
}

// Reset discards the rolling history, e.g. after session reuse.
func (s *Stabilizer) Reset() {
	s.history.clear()
}

// HistoryLen reports how many raw detections the window currently holds.
func (s *Stabilizer) HistoryLen() int {
	return s.history.len()
}
