package tryon

import (
	"context"
	"fmt"
	"image"
	"time"
)

// Detector is the external pose/landmark capability. Implementations return
// at most one half-body detection per frame; a frame with nobody in it
// yields (nil, nil). The core never implements or trains detection.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) (*RawDetection, error)
}

// detectWithTimeout invokes the detector under a hard deadline. The
// detector call is the one potentially slow step on the hot path; when it
// overruns, the frame is handed to the freeze/no-pose logic instead of
// being retried.
func detectWithTimeout(ctx context.Context, d Detector, frame image.Image, timeout time.Duration) (*RawDetection, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type detection struct {
		raw *RawDetection
		err error
	}
	ch := make(chan detection, 1)
	go func() {
		raw, err := d.Detect(ctx, frame)
		ch <- detection{raw, err}
	}()

	select {
	case res := <-ch:
		return res.raw, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s", ErrDetectorTimeout, timeout)
	}
}

// ScriptedDetector plays back a fixed sequence of detections. It backs the
// demo binary and tests; after the script runs out it repeats the final
// entry so long-running sessions keep a subject in frame.
type ScriptedDetector struct {
	Detections []*RawDetection
	Err        error
	Delay      time.Duration

	next int
}

// Detect returns the next scripted detection.
func (d *ScriptedDetector) Detect(ctx context.Context, frame image.Image) (*RawDetection, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if len(d.Detections) == 0 {
		return nil, nil
	}
	idx := d.next
	if idx >= len(d.Detections) {
		idx = len(d.Detections) - 1
	} else {
		d.next++
	}
	return d.Detections[idx], nil
}
