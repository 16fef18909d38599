package tryon

import (
	"fmt"
	"sync"
	"time"

	"github.com/vastravista/tryon/internal/config"
	"github.com/vastravista/tryon/internal/monitoring"
	"github.com/vastravista/tryon/internal/timeutil"
)

// SessionState is the per-session mutable state: the rolling pose history
// (inside the stabilizer), the last stable pose and warp, and the freeze
// phase. All mutation happens under mu; frames of the same session are
// single-flight.
type SessionState struct {
	ID string

	mu         sync.Mutex
	stabilizer *Stabilizer

	lastStablePose *Pose
	lastStableWarp *StableWarp
	phase          SessionPhase

	createdAt  time.Time
	lastUpdate time.Time

	framesTotal  int64
	framesFrozen int64
}

// Phase returns the session's current freeze state.
func (s *SessionState) Phase() SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastStableWarp returns the current stable warp, or nil before the first
// usable frame.
func (s *SessionState) LastStableWarp() *StableWarp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStableWarp
}

// Counters reports total and frozen frame counts.
func (s *SessionState) Counters() (total, frozen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesTotal, s.framesFrozen
}

// SessionRegistry owns every live AR session: an explicit id -> state map
// with create/evict lifecycle. There is no package-level session state.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState

	cfg         *config.TuningConfig
	clock       timeutil.Clock
	idleTimeout time.Duration
	maxSessions int

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSessionRegistry creates an empty registry. Call StartEvictionLoop to
// enable idle-timeout teardown and Stop when done.
func NewSessionRegistry(cfg *config.TuningConfig, clock timeutil.Clock) *SessionRegistry {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SessionRegistry{
		sessions:    make(map[string]*SessionState),
		cfg:         cfg,
		clock:       clock,
		idleTimeout: cfg.GetSessionIdleTimeout(),
		maxSessions: cfg.GetMaxSessions(),
		stop:        make(chan struct{}),
	}
}

// Acquire returns the session for id, creating it on first use.
func (r *SessionRegistry) Acquire(id string) (*SessionState, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return sess, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		return sess, nil
	}
	if len(r.sessions) >= r.maxSessions {
		return nil, fmt.Errorf("%w: %d active", ErrSessionLimit, len(r.sessions))
	}

	now := r.clock.Now()
	sess = &SessionState{
		ID:         id,
		stabilizer: NewStabilizer(r.cfg),
		phase:      PhaseTracking,
		createdAt:  now,
		lastUpdate: now,
	}
	r.sessions[id] = sess
	return sess, nil
}

// Get returns the session for id without creating one.
func (r *SessionRegistry) Get(id string) (*SessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Close discards the session immediately. Closing an unknown id is a no-op.
func (r *SessionRegistry) Close(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		monitoring.Logf("session %s closed", id)
	}
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle discards sessions whose last frame is older than the idle
// timeout, returning how many were removed.
func (r *SessionRegistry) EvictIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted int
	for id, sess := range r.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastUpdate)
		sess.mu.Unlock()
		if idle >= r.idleTimeout {
			delete(r.sessions, id)
			evicted++
			monitoring.Logf("session %s evicted after %s idle", id, idle.Round(time.Second))
		}
	}
	return evicted
}

// StartEvictionLoop runs the idle sweep in the background until Stop.
func (r *SessionRegistry) StartEvictionLoop() {
	ticker := r.clock.NewTicker(r.cfg.GetEvictionSweepInterval())
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case now := <-ticker.C():
				r.EvictIdle(now)
			}
		}
	}()
}

// Stop halts the eviction loop. Safe to call more than once.
func (r *SessionRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}
