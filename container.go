package nebulite

import "math"

// Layer is one of the small fixed set of render layers a RenderObject's
// "layer" field selects (spec.md §4.7).
type Layer int64

const (
	LayerBackground Layer = iota
	LayerGeneral
	LayerForeground
	LayerEffects
	LayerOverlay
)

func (l Layer) String() string {
	switch l {
	case LayerBackground:
		return "background"
	case LayerGeneral:
		return "general"
	case LayerForeground:
		return "foreground"
	case LayerEffects:
		return "effects"
	case LayerOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// defaultBatchCostGoal is BATCH_COST_GOAL from spec.md §4.7.
const defaultBatchCostGoal = 50000

type tileKey struct {
	tx, ty int
}

func tileFor(x, y, resX, resY float64) tileKey {
	return tileKey{tx: int(math.Floor(x / resX)), ty: int(math.Floor(y / resY))}
}

// objectBatch tracks a running estimated cost for a group of objects in
// one tile, kept under batchCostGoal except when a single object exceeds
// it alone (spec.md §4.7).
type objectBatch struct {
	objects       []*RenderObject
	estimatedCost int
}

// ObjectContainer maps (layer, tile) to a list of cost-bounded batches of
// RenderObjects (spec.md C8).
type ObjectContainer struct {
	batchCostGoal int
	layers        map[Layer]map[tileKey][]*objectBatch
}

// NewObjectContainer creates an empty container with the given per-batch
// cost goal (use defaultBatchCostGoal for the spec default).
func NewObjectContainer(batchCostGoal int) *ObjectContainer {
	return &ObjectContainer{
		batchCostGoal: batchCostGoal,
		layers:        make(map[Layer]map[tileKey][]*objectBatch),
	}
}

// Append inserts obj into the first batch with room at its current
// (layer, tile), or creates a new batch (spec.md §4.7, P6).
func (c *ObjectContainer) Append(obj *RenderObject, resX, resY float64) {
	layer := Layer(obj.Layer())
	tile := tileFor(obj.PosX(), obj.PosY(), resX, resY)
	cost := obj.EstimateCost()

	tiles, ok := c.layers[layer]
	if !ok {
		tiles = make(map[tileKey][]*objectBatch)
		c.layers[layer] = tiles
	}
	batches := tiles[tile]

	for _, b := range batches {
		if len(b.objects) == 0 || b.estimatedCost+cost <= c.batchCostGoal {
			b.objects = append(b.objects, obj)
			b.estimatedCost += cost
			return
		}
	}
	tiles[tile] = append(batches, &objectBatch{objects: []*RenderObject{obj}, estimatedCost: cost})
}

// Update iterates the 3x3 neighborhood of (cameraTileX, cameraTileY) across
// every layer, calling obj.Update(dispatcher) for each object found.
// Deleted objects are dropped; objects whose (layer, tile) changed as a
// result of Update are moved to their new bucket only after the sweep
// finishes, to avoid iterator invalidation (spec.md §4.7).
func (c *ObjectContainer) Update(cameraTileX, cameraTileY int, resX, resY float64, disp *Dispatcher) {
	var toMove []*RenderObject

	for layer, tiles := range c.layers {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				tile := tileKey{tx: cameraTileX + dx, ty: cameraTileY + dy}
				batches, ok := tiles[tile]
				if !ok {
					continue
				}
				for _, b := range batches {
					kept := b.objects[:0]
					cost := 0
					for _, obj := range b.objects {
						obj.Update(disp)
						if obj.DeleteFlag() {
							continue
						}
						newTile := tileFor(obj.PosX(), obj.PosY(), resX, resY)
						newLayer := Layer(obj.Layer())
						if newTile != tile || newLayer != layer {
							toMove = append(toMove, obj)
							continue
						}
						kept = append(kept, obj)
						cost += obj.EstimateCost()
					}
					b.objects = kept
					b.estimatedCost = cost
				}
			}
		}
	}

	for _, obj := range toMove {
		c.Append(obj, resX, resY)
	}
}

// ReinsertAll drains every bucket and re-appends every surviving object,
// used when the tile resolution changes (spec.md §4.7).
func (c *ObjectContainer) ReinsertAll(resX, resY float64) {
	var all []*RenderObject
	for _, tiles := range c.layers {
		for _, batches := range tiles {
			for _, b := range batches {
				all = append(all, b.objects...)
			}
		}
	}
	c.layers = make(map[Layer]map[tileKey][]*objectBatch)
	for _, obj := range all {
		c.Append(obj, resX, resY)
	}
}

// PurgeAt removes every object whose tile corresponds to world coordinate
// (x, y), across every layer. Idempotent: a second call on an already-empty
// tile is a no-op (spec.md P8).
func (c *ObjectContainer) PurgeAt(x, y, resX, resY float64) {
	tile := tileFor(x, y, resX, resY)
	for _, tiles := range c.layers {
		delete(tiles, tile)
	}
}

// ObjectCount sums batch sizes across every layer, optionally excluding
// LayerOverlay (the topmost layer).
func (c *ObjectContainer) ObjectCount(excludeTopLayer bool) int {
	total := 0
	for layer, tiles := range c.layers {
		if excludeTopLayer && layer == LayerOverlay {
			continue
		}
		for _, batches := range tiles {
			for _, b := range batches {
				total += len(b.objects)
			}
		}
	}
	return total
}
