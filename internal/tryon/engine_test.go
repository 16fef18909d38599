package tryon

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastravista/tryon/internal/config"
)

// collectObserver records every FrameRecord it sees.
type collectObserver struct {
	mu      sync.Mutex
	records []FrameRecord
}

func (o *collectObserver) ObserveFrame(rec FrameRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
}

func (o *collectObserver) all() []FrameRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]FrameRecord, len(o.records))
	copy(out, o.records)
	return out
}

func testBackground() *image.NRGBA {
	return flatImage(480, 640, color.NRGBA{R: 80, G: 80, B: 90, A: 0xff})
}

// scriptFromConfidences builds one centered detection per confidence value.
func scriptFromConfidences(confs ...float64) *ScriptedDetector {
	detections := make([]*RawDetection, len(confs))
	for i, c := range confs {
		detections[i] = shoulderDetection(240, 210, 200, c)
	}
	return &ScriptedDetector{Detections: detections}
}

func newTestEngine(t *testing.T, d Detector, opts ...Option) *Engine {
	t.Helper()
	e := NewEngine(d, NewProceduralStore(), config.EmptyTuningConfig(), opts...)
	t.Cleanup(e.Close)
	return e
}

func TestProcessFrameValidation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, scriptFromConfidences(0.9))
	ctx := context.Background()
	bg := testBackground()

	t.Run("invalid garment", func(t *testing.T) {
		_, err := e.ProcessFrame(ctx, "s", bg, "sari", "#3366cc")
		assert.ErrorIs(t, err, ErrInvalidGarment)
	})

	t.Run("malformed color", func(t *testing.T) {
		_, err := e.ProcessFrame(ctx, "s", bg, "tshirt", "#12")
		assert.ErrorIs(t, err, ErrMalformedColor)
	})

	t.Run("nil frame", func(t *testing.T) {
		_, err := e.ProcessFrame(ctx, "s", nil, "tshirt", "#3366cc")
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("empty session id", func(t *testing.T) {
		_, err := e.ProcessFrame(ctx, "", bg, "tshirt", "#3366cc")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("validation failures never create sessions", func(t *testing.T) {
		assert.Zero(t, e.Sessions())
	})
}

func TestProcessFrameFirstPose(t *testing.T) {
	t.Parallel()

	t.Run("low confidence with no prior state fails the frame", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, scriptFromConfidences(0.3, 0.9))
		ctx := context.Background()

		_, err := e.ProcessFrame(ctx, "s", testBackground(), "tshirt", "#3366cc")
		assert.ErrorIs(t, err, ErrNoUsablePose)

		// The session survives the failed frame and tracks on the next.
		res, err := e.ProcessFrame(ctx, "s", testBackground(), "tshirt", "#3366cc")
		require.NoError(t, err)
		assert.False(t, res.Frozen)
		assert.Equal(t, PhaseTracking, res.Phase)
	})

	t.Run("good first frame tracks immediately", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, scriptFromConfidences(0.9))

		res, err := e.ProcessFrame(context.Background(), "s", testBackground(), "shirt", "#aa2244")
		require.NoError(t, err)
		assert.False(t, res.Frozen)
		assert.InDelta(t, 0.9, res.Confidence, 1e-9)
		require.NotNil(t, res.Image)
		assert.Equal(t, 480, res.Image.Bounds().Dx())
	})
}

func TestProcessFrameFreezeSequence(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, scriptFromConfidences(0.9, 0.9, 0.3, 0.3, 0.9))
	ctx := context.Background()
	bg := testBackground()

	wantFrozen := []bool{false, false, true, true, false}
	var outputs []*Result
	for i := range wantFrozen {
		res, err := e.ProcessFrame(ctx, "s", bg, "tshirt", "#3366cc")
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, wantFrozen[i], res.Frozen, "frame %d", i)
		outputs = append(outputs, res)
	}

	assert.Equal(t, PhaseTracking, outputs[1].Phase)
	assert.Equal(t, PhaseFrozen, outputs[2].Phase)
	assert.Equal(t, PhaseFrozen, outputs[3].Phase)
	assert.Equal(t, PhaseTracking, outputs[4].Phase)

	// Frozen frames reuse the stable warp bit for bit: same background,
	// same overlay, identical composite.
	assert.True(t, bytes.Equal(outputs[2].Image.Pix, outputs[3].Image.Pix),
		"frozen frames must render identically")

	sess, ok := e.registry.Get("s")
	require.True(t, ok)
	total, frozen := sess.Counters()
	assert.Equal(t, int64(5), total)
	assert.Equal(t, int64(2), frozen)
}

func TestProcessFrameTrackingIdempotence(t *testing.T) {
	t.Parallel()

	// The same detection on the same background, twice: the smoothed pose
	// is unchanged, so both tracking frames must render bit for bit alike.
	e := newTestEngine(t, scriptFromConfidences(0.9, 0.9))
	ctx := context.Background()
	bg := testBackground()

	first, err := e.ProcessFrame(ctx, "s", bg, "tshirt", "#3366cc")
	require.NoError(t, err)
	require.False(t, first.Frozen)

	second, err := e.ProcessFrame(ctx, "s", bg, "tshirt", "#3366cc")
	require.NoError(t, err)
	require.False(t, second.Frozen)

	assert.Equal(t, first.Confidence, second.Confidence)
	assert.True(t, bytes.Equal(first.Image.Pix, second.Image.Pix),
		"identical frame and pose must composite identically")
}

func TestProcessFrameConcreteScenario(t *testing.T) {
	t.Parallel()

	// Level shoulders at (100,200) and (300,200), t-shirt, #667eea.
	d := &ScriptedDetector{Detections: []*RawDetection{{
		Landmarks: map[LandmarkName]Landmark{
			LeftShoulder:  {Name: LeftShoulder, At: r2.Point{X: 100, Y: 200}, Confidence: 0.9},
			RightShoulder: {Name: RightShoulder, At: r2.Point{X: 300, Y: 200}, Confidence: 0.9},
			Nose:          {Name: Nose, At: r2.Point{X: 200, Y: 120}, Confidence: 0.9},
		},
	}}}
	e := newTestEngine(t, d)

	res, err := e.ProcessFrame(context.Background(), "s1", testBackground(), "tshirt", "#667eea")
	require.NoError(t, err)
	assert.False(t, res.Frozen)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)

	sess, ok := e.registry.Get("s1")
	require.True(t, ok)
	warp := sess.LastStableWarp()
	require.NotNil(t, warp)

	geom := warp.Geometry
	assert.InDelta(t, 200.0, geom.ShoulderDistance, 1e-9)
	assert.InDelta(t, 0.0, geom.RotationAngle, 1e-9)
	assert.InDelta(t, 200.0, geom.Midpoint.X, 1e-9)
	assert.InDelta(t, 200.0, geom.Midpoint.Y, 1e-9)
	assert.InDelta(t, 280.0, geom.GarmentWidth, 1e-9)
	assert.Equal(t, GarmentTShirt, warp.Garment)
	assert.Equal(t, color.NRGBA{R: 0x66, G: 0x7e, B: 0xea, A: 0xff}, warp.Tint)
}

func TestProcessFrameGarmentNeverVanishes(t *testing.T) {
	t.Parallel()

	// One usable frame, then the subject effectively disappears.
	detections := []*RawDetection{shoulderDetection(240, 210, 200, 0.9), nil}
	e := newTestEngine(t, &ScriptedDetector{Detections: detections})
	ctx := context.Background()
	bg := testBackground()

	res, err := e.ProcessFrame(ctx, "s", bg, "kurta", "#3366cc")
	require.NoError(t, err)
	require.False(t, res.Frozen)

	for i := 0; i < 10; i++ {
		res, err = e.ProcessFrame(ctx, "s", bg, "kurta", "#3366cc")
		require.NoError(t, err, "frame %d after subject left", i)
		assert.True(t, res.Frozen)
		require.NotNil(t, res.Image)
	}

	sess, ok := e.registry.Get("s")
	require.True(t, ok)
	assert.NotNil(t, sess.LastStableWarp(), "stable warp is never cleared once set")
}

func TestProcessFrameDetectorTimeout(t *testing.T) {
	t.Parallel()

	t.Run("timeout on a fresh session surfaces as no usable pose", func(t *testing.T) {
		t.Parallel()
		cfg := &config.TuningConfig{DetectorTimeout: strPtr("10ms")}
		e := NewEngine(&slowDetector{delay: 500 * time.Millisecond}, NewProceduralStore(), cfg)
		t.Cleanup(e.Close)

		_, err := e.ProcessFrame(context.Background(), "s", testBackground(), "tshirt", "#3366cc")
		assert.ErrorIs(t, err, ErrNoUsablePose)
	})
}

func TestProcessFrameSessionIsolation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, scriptFromConfidences(0.9, 0.3))
	ctx := context.Background()
	bg := testBackground()

	// Session A consumes the good detection; session B gets the weak one
	// and has no prior state of its own to freeze to.
	_, err := e.ProcessFrame(ctx, "a", bg, "tshirt", "#3366cc")
	require.NoError(t, err)

	_, err = e.ProcessFrame(ctx, "b", bg, "tshirt", "#3366cc")
	assert.ErrorIs(t, err, ErrNoUsablePose, "state must not leak between sessions")
}

func TestCloseSessionDiscardsState(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, scriptFromConfidences(0.9, 0.3))
	ctx := context.Background()
	bg := testBackground()

	_, err := e.ProcessFrame(ctx, "s", bg, "tshirt", "#3366cc")
	require.NoError(t, err)
	require.Equal(t, 1, e.Sessions())

	e.CloseSession("s")
	assert.Zero(t, e.Sessions())

	// A reopened session starts from scratch: the weak detection has no
	// stable warp to fall back on.
	_, err = e.ProcessFrame(ctx, "s", bg, "tshirt", "#3366cc")
	assert.ErrorIs(t, err, ErrNoUsablePose)
}

func TestNewSessionIDs(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, scriptFromConfidences(0.9))
	a := e.NewSession()
	b := e.NewSession()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestFrameObserver(t *testing.T) {
	t.Parallel()

	obs := &collectObserver{}
	e := newTestEngine(t, scriptFromConfidences(0.9, 0.3, 0.9), WithFrameObserver(obs))
	ctx := context.Background()
	bg := testBackground()

	for i := 0; i < 3; i++ {
		_, err := e.ProcessFrame(ctx, "s", bg, "dress", "#cc2266")
		require.NoError(t, err)
	}

	records := obs.all()
	require.Len(t, records, 3)
	assert.Equal(t, "s", records[0].SessionID)
	assert.Equal(t, GarmentDress, records[0].Garment)
	assert.True(t, records[0].Usable)
	assert.False(t, records[0].Frozen)
	assert.True(t, records[1].Frozen)
	assert.False(t, records[2].Frozen)
	for _, rec := range records {
		assert.Empty(t, rec.Error)
		assert.GreaterOrEqual(t, rec.LatencyNanos, int64(0))
	}
}
