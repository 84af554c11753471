package nebulite

import (
	"math/rand"
	"sync"
)

// FrameLoop drives the per-frame sequence of spec.md §4.8: advance the
// TimeKeeper and publish time/RNG state, poll input, apply forced
// overrides, update the environment, commit the dispatcher, and drain the
// three command queues.
type FrameLoop struct {
	TimeKeeper *TimeKeeper
	Global     *Document
	Env        *Environment
	Dispatcher *Dispatcher
	Commands   *CommandTree
	Poller     Poller

	mu           sync.Mutex
	forced       map[string]string
	keyState     map[string]bool
	frameCounter int64
	rollAccum    float64
	rnd          *rand.Rand
}

// NewFrameLoop wires a FrameLoop over the given components. poller may be
// nil for a headless run.
func NewFrameLoop(global *Document, env *Environment, disp *Dispatcher, commands *CommandTree, poller Poller) *FrameLoop {
	return &FrameLoop{
		TimeKeeper: NewTimeKeeper(),
		Global:     global,
		Env:        env,
		Dispatcher: disp,
		Commands:   commands,
		Poller:     poller,
		forced:     make(map[string]string),
		keyState:   make(map[string]bool),
		rnd:        rand.New(rand.NewSource(1)),
	}
}

// SetForced pins key to value every frame until ClearForced is called
// (spec.md §4.8 step 3 / scenario 6).
func (fl *FrameLoop) SetForced(key, value string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.forced[key] = value
}

// ClearForced removes a forced override.
func (fl *FrameLoop) ClearForced(key string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	delete(fl.forced, key)
}

// ClearAllForced removes every forced override.
func (fl *FrameLoop) ClearAllForced() {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.forced = make(map[string]string)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Step runs exactly one frame. fixedDt, if non-nil, drives the TimeKeeper
// deterministically (used by tests); pass nil for real-time wall-clock
// stepping.
func (fl *FrameLoop) Step(fixedDt *float64) {
	// 1. TimeKeeper + RNG streams.
	dt, t := fl.TimeKeeper.Update(fixedDt)
	fl.frameCounter++
	fl.Global.SetDouble("time.t", t)
	fl.Global.SetDouble("time.dt", dt)
	fl.Global.SetDouble("time.t_ms", t*1000)
	fl.Global.SetDouble("time.dt_ms", dt*1000)
	fl.Global.SetInt("time.frame", fl.frameCounter)

	r := fl.rnd.Float64()
	fl.Global.SetDouble("time.rand", r)
	fl.rollAccum += r
	fl.Global.SetDouble("time.rrand", fl.rollAccum)

	// 2. Poll input.
	if fl.Poller != nil {
		for _, ev := range fl.Poller.Poll() {
			name, ok := normalizeKeyName(ev.Name)
			if !ok {
				continue
			}
			prev := fl.keyState[name]
			fl.keyState[name] = ev.Pressed
			fl.Global.SetInt("input.keyboard.current."+name, boolToInt(ev.Pressed))

			delta := int64(0)
			switch {
			case ev.Pressed && !prev:
				delta = 1
			case !ev.Pressed && prev:
				delta = -1
			}
			fl.Global.SetInt("input.keyboard.delta."+name, delta)
		}
	}

	// 3. Forced overrides, applied after input polling so they win over
	// polled input. The environment update and queue drains below run
	// later in the frame and can still overwrite a forced key.
	fl.mu.Lock()
	forced := make(map[string]string, len(fl.forced))
	for k, v := range fl.forced {
		forced[k] = v
	}
	fl.mu.Unlock()
	for k, v := range forced {
		fl.Global.SetString(k, v)
	}

	// 4. Environment update (3x3 camera window).
	fl.Env.Update(fl.Dispatcher)

	// 5. Dispatcher commit.
	fl.Dispatcher.Commit()

	// 6. Drain command queues.
	ctx := &CommandContext{Self: fl.Global, Global: fl.Global}
	ctx.Queue = fl.Dispatcher.ScriptQueue
	fl.Dispatcher.ScriptQueue.Drain(fl.Commands, ctx)

	ctx.Queue = fl.Dispatcher.InternalQueue
	fl.Dispatcher.InternalQueue.Drain(fl.Commands, ctx)

	ctx.Queue = fl.Dispatcher.AlwaysQueue
	fl.Dispatcher.AlwaysQueue.Drain(fl.Commands, ctx)

	// 7. Render hand-off: out of core scope, no-op here.
}
