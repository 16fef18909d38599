package tryon

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/vastravista/tryon/internal/config"
	"github.com/vastravista/tryon/internal/monitoring"
	"github.com/vastravista/tryon/internal/timeutil"
)

// Result is the per-frame output handed to the caller.
type Result struct {
	// Image is the live background with the garment composited on top.
	Image *image.NRGBA
	// Confidence is the stabilized pose confidence for this frame.
	Confidence float64
	// Frozen is true when the garment reused the last stable warp. Callers
	// render a UI warning from it without losing the overlay.
	Frozen bool
	// Phase is the freeze state machine's state after this frame.
	Phase SessionPhase
}

// FrameRecord is the per-frame diagnostics datum emitted to an observer.
type FrameRecord struct {
	SessionID    string
	UnixNanos    int64
	Garment      Garment
	Confidence   float64
	Usable       bool
	Frozen       bool
	LatencyNanos int64
	Error        string
}

// FrameObserver receives diagnostics off the hot path. Implementations
// must not block; the engine calls ObserveFrame synchronously.
type FrameObserver interface {
	ObserveFrame(rec FrameRecord)
}

// Engine is the per-frame try-on pipeline: detector -> stabilizer ->
// geometry -> warp -> freeze state machine -> compositor, with an explicit
// session registry for the mutable state in between.
type Engine struct {
	detector  Detector
	templates TemplateStore
	registry  *SessionRegistry
	cfg       *config.TuningConfig
	clock     timeutil.Clock
	observer  FrameObserver
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock replaces the engine clock; tests drive eviction with a
// FakeClock.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithFrameObserver attaches a diagnostics sink.
func WithFrameObserver(o FrameObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine wires the pipeline. The caller owns detector and template
// store lifetimes; Close stops the engine's own background work.
func NewEngine(detector Detector, templates TemplateStore, cfg *config.TuningConfig, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	e := &Engine{
		detector:  detector,
		templates: templates,
		cfg:       cfg,
		clock:     timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = NewSessionRegistry(cfg, e.clock)
	e.registry.StartEvictionLoop()
	return e
}

// Close stops the idle-eviction loop. In-flight frames finish normally.
func (e *Engine) Close() {
	e.registry.Stop()
}

// NewSession mints a fresh session id. Callers may also bring their own
// ids; the registry creates state on first ProcessFrame either way.
func (e *Engine) NewSession() string {
	return uuid.New().String()
}

// CloseSession discards the session's state immediately.
func (e *Engine) CloseSession(sessionID string) {
	e.registry.Close(sessionID)
}

// Sessions reports the number of live sessions.
func (e *Engine) Sessions() int {
	return e.registry.Len()
}

// ProcessFrame runs one frame of one session through the pipeline.
//
// Input validation (garment enum, color format, frame presence) happens
// before any detection or session mutation. Frames of the same session are
// serialized on the session mutex; frames of different sessions run in
// parallel. Every failure is frame-scoped: the session survives and the
// next frame starts clean.
func (e *Engine) ProcessFrame(ctx context.Context, sessionID string, frame image.Image, garment string, colorHex string) (*Result, error) {
	started := e.clock.Now()

	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrSessionNotFound)
	}
	g, err := ParseGarment(garment)
	if err != nil {
		return nil, err
	}
	tint, err := ParseHexColor(colorHex)
	if err != nil {
		return nil, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrMalformedFrame
	}

	tpl, err := e.templates.Template(g)
	if err != nil {
		return nil, err
	}

	sess, err := e.registry.Acquire(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	raw, detErr := detectWithTimeout(ctx, e.detector, frame, e.cfg.GetDetectorTimeout())
	if detErr != nil {
		// A slow or failing detector is not a frame error by itself: the
		// freeze path absorbs it when prior state exists.
		if errors.Is(detErr, ErrDetectorTimeout) {
			monitoring.Logf("session %s: detector timeout, falling back to frozen state", sessionID)
		} else {
			monitoring.Logf("session %s: detector error: %v", sessionID, detErr)
		}
		raw = nil
	}

	pose, confidence, usable := sess.stabilizer.Observe(raw)

	var overlay *image.NRGBA
	frozen := false

	if usable {
		geom, geomErr := ComputeGeometry(pose, g, e.cfg)
		if geomErr == nil {
			overlay, geomErr = WarpGarment(tpl, geom, tint, frame.Bounds().Dx(), frame.Bounds().Dy())
		}
		if geomErr != nil {
			monitoring.Logf("session %s: %v, treating frame as unusable", sessionID, geomErr)
			usable = false
		} else {
			sess.lastStablePose = &pose
			sess.lastStableWarp = &StableWarp{
				Overlay:    overlay,
				Geometry:   geom,
				Garment:    g,
				Tint:       tint,
				Confidence: pose.AggregateConfidence(),
				UnixNanos:  started.UnixNano(),
			}
			sess.phase = PhaseTracking
		}
	}

	if !usable {
		if sess.lastStableWarp == nil {
			// Nothing to freeze to: hard failure for this frame only.
			sess.lastUpdate = e.clock.Now()
			e.observe(sessionID, g, started, confidence, false, false, ErrNoUsablePose.Error())
			return nil, ErrNoUsablePose
		}
		overlay = sess.lastStableWarp.Overlay
		sess.phase = PhaseFrozen
		frozen = true
	}

	out := Composite(frame, overlay)

	sess.lastUpdate = e.clock.Now()
	sess.framesTotal++
	if frozen {
		sess.framesFrozen++
	}

	e.observe(sessionID, g, started, confidence, usable, frozen, "")

	return &Result{
		Image:      out,
		Confidence: confidence,
		Frozen:     frozen,
		Phase:      sess.phase,
	}, nil
}

func (e *Engine) observe(sessionID string, g Garment, started time.Time, confidence float64, usable, frozen bool, errText string) {
	if e.observer == nil {
		return
	}
	now := e.clock.Now()
	e.observer.ObserveFrame(FrameRecord{
		SessionID:    sessionID,
		UnixNanos:    started.UnixNano(),
		Garment:      g,
		Confidence:   confidence,
		Usable:       usable,
		Frozen:       frozen,
		LatencyNanos: now.UnixNano() - started.UnixNano(),
		Error:        errText,
	})
}
