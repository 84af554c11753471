package nebulite

import (
	"sync"
	"time"
)

// TimeKeeper tracks the engine's virtual clock (spec.md C9): stoppable,
// steppable by a fixed delta for deterministic runs, or by measured
// wall-clock delta otherwise.
type TimeKeeper struct {
	mu       sync.Mutex
	t        float64
	running  bool
	lastReal time.Time
	clock    func() time.Time
}

// NewTimeKeeper creates a running TimeKeeper starting at t = 0.
func NewTimeKeeper() *TimeKeeper {
	return &TimeKeeper{running: true, lastReal: time.Now(), clock: time.Now}
}

// Update advances t. If fixedDt is non-nil, t advances by exactly *fixedDt
// regardless of running state (the deterministic path tests use); otherwise
// t advances by the measured wall-clock delta since the previous Update
// while running, or not at all while stopped. Returns (dt, t).
func (tk *TimeKeeper) Update(fixedDt *float64) (float64, float64) {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	now := tk.clock()
	var dt float64
	switch {
	case fixedDt != nil:
		dt = *fixedDt
		tk.t += dt
	case tk.running:
		dt = now.Sub(tk.lastReal).Seconds()
		tk.t += dt
	default:
		dt = 0
	}
	tk.lastReal = now
	return dt, tk.t
}

// Stop pauses the virtual clock without losing t.
func (tk *TimeKeeper) Stop() {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.running = false
}

// Start resumes the virtual clock; the wall-clock reference point is reset
// so the paused interval is not counted as elapsed dt.
func (tk *TimeKeeper) Start() {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	if !tk.running {
		tk.running = true
		tk.lastReal = tk.clock()
	}
}

// Running reports whether the clock is currently advancing on wall time.
func (tk *TimeKeeper) Running() bool {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.running
}

// T returns the current virtual time without advancing it.
func (tk *TimeKeeper) T() float64 {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.t
}

// ProjectedDt peeks at what the next wall-clock Update(nil) would yield,
// without advancing the clock.
func (tk *TimeKeeper) ProjectedDt() float64 {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	if !tk.running {
		return 0
	}
	return tk.clock().Sub(tk.lastReal).Seconds()
}
