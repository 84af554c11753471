package nebulite

import "math"

// Environment owns the layered ObjectContainer and the camera tile that
// bounds each frame's update to a 3x3 neighborhood (spec.md C8, §4.7
// "Only objects within the 3x3 camera window update each frame... the
// engine's fundamental scale bound").
type Environment struct {
	container   *ObjectContainer
	resX, resY  float64
	cameraTileX int
	cameraTileY int
}

// NewEnvironment creates an Environment with the default batch cost goal
// and the given tile resolution.
func NewEnvironment(resX, resY float64) *Environment {
	return NewEnvironmentWithBatchGoal(resX, resY, defaultBatchCostGoal)
}

// NewEnvironmentWithBatchGoal creates an Environment with an explicit
// per-batch cost goal (spec.md §4.7 BATCH_COST_GOAL).
func NewEnvironmentWithBatchGoal(resX, resY float64, batchCostGoal int) *Environment {
	return &Environment{
		container: NewObjectContainer(batchCostGoal),
		resX:      resX,
		resY:      resY,
	}
}

// Append inserts obj at its current position.
func (env *Environment) Append(obj *RenderObject) {
	env.container.Append(obj, env.resX, env.resY)
}

// SetCamera recomputes the camera tile from a world-space focus point.
func (env *Environment) SetCamera(x, y float64) {
	env.cameraTileX = int(math.Floor(x / env.resX))
	env.cameraTileY = int(math.Floor(y / env.resY))
}

// Update runs one frame's object pass over the 3x3 camera window.
func (env *Environment) Update(disp *Dispatcher) {
	env.container.Update(env.cameraTileX, env.cameraTileY, env.resX, env.resY, disp)
}

// ReinsertAll rebuckets every tracked object at the current resolution.
func (env *Environment) ReinsertAll() {
	env.container.ReinsertAll(env.resX, env.resY)
}

// SetResolution changes the tile size and reinserts every object.
func (env *Environment) SetResolution(resX, resY float64) {
	env.resX, env.resY = resX, resY
	env.container.ReinsertAll(resX, resY)
}

// PurgeAt removes every object at the given world coordinate.
func (env *Environment) PurgeAt(x, y float64) {
	env.container.PurgeAt(x, y, env.resX, env.resY)
}

// ObjectCount sums object counts across every layer.
func (env *Environment) ObjectCount(excludeTopLayer bool) int {
	return env.container.ObjectCount(excludeTopLayer)
}
