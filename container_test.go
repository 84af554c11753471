package nebulite

import "testing"

func TestTileForFloorDivides(t *testing.T) {
	if got := tileFor(150, -10, 100, 100); got != (tileKey{tx: 1, ty: -1}) {
		t.Errorf("tileFor = %+v, want {1 -1}", got)
	}
}

func TestObjectContainerAppendAndObjectCount(t *testing.T) {
	c := NewObjectContainer(defaultBatchCostGoal)
	a := NewRenderObject()
	a.Document().SetDouble("posX", 0)
	a.Document().SetDouble("posY", 0)
	b := NewRenderObject()
	b.Document().SetDouble("posX", 10)
	b.Document().SetDouble("posY", 10)
	c.Append(a, 100, 100)
	c.Append(b, 100, 100)
	if got := c.ObjectCount(false); got != 2 {
		t.Errorf("ObjectCount = %d, want 2", got)
	}
}

func TestObjectContainerBatchCostBounding(t *testing.T) {
	c := NewObjectContainer(5)
	mk := func(cost int) *RenderObject {
		r := NewRenderObject()
		entries := ""
		for i := 0; i < cost; i++ {
			entries += "$"
		}
		e, err := ParseInvokeEntry([]byte(`{"topic": "", "logicalArg": "` + entries + `1", "exprs": []}`))
		if err != nil {
			t.Fatalf("ParseInvokeEntry: %v", err)
		}
		r.AddLocalEntry(e)
		return r
	}
	a := mk(3)
	b := mk(3)
	c.Append(a, 100, 100)
	c.Append(b, 100, 100)

	tiles := c.layers[LayerBackground][tileKey{0, 0}]
	if len(tiles) != 2 {
		t.Fatalf("expected a new batch once the cost goal would be exceeded, got %d batches", len(tiles))
	}
}

func TestObjectContainerUpdateDropsDeletedObjects(t *testing.T) {
	global := NewDocument()
	disp := NewDispatcherWithOptions(global, NewDocumentCache(CacheOptions{}), 1)
	defer disp.Close()

	c := NewObjectContainer(defaultBatchCostGoal)
	r := NewRenderObject()
	r.Document().SetBool("deleteFlag", true)
	c.Append(r, 100, 100)

	c.Update(0, 0, 100, 100, disp)
	if got := c.ObjectCount(false); got != 0 {
		t.Errorf("ObjectCount after update = %d, want 0 (deleted objects should be dropped)", got)
	}
}

func TestObjectContainerUpdateMigratesMovedObjects(t *testing.T) {
	global := NewDocument()
	disp := NewDispatcherWithOptions(global, NewDocumentCache(CacheOptions{}), 1)
	defer disp.Close()

	c := NewObjectContainer(defaultBatchCostGoal)
	r := NewRenderObject()
	r.Document().SetDouble("posX", 0)
	r.Document().SetDouble("posY", 0)
	e, err := ParseInvokeEntry([]byte(`{"topic": "", "logicalArg": "1", "exprs": ["self.posX = 250"]}`))
	if err != nil {
		t.Fatalf("ParseInvokeEntry: %v", err)
	}
	r.AddLocalEntry(e)
	c.Append(r, 100, 100)

	c.Update(0, 0, 100, 100, disp)

	if got := c.ObjectCount(false); got != 1 {
		t.Fatalf("ObjectCount = %d, want 1 (object should survive the move, not be lost)", got)
	}
	if tiles := c.layers[LayerBackground][tileKey{2, 0}]; len(tiles) == 0 {
		t.Errorf("expected the moved object to be reinserted at its new tile")
	}
}

func TestObjectContainerUpdateOnlySweepsCameraNeighborhood(t *testing.T) {
	global := NewDocument()
	disp := NewDispatcherWithOptions(global, NewDocumentCache(CacheOptions{}), 1)
	defer disp.Close()

	c := NewObjectContainer(defaultBatchCostGoal)
	far := NewRenderObject()
	far.Document().SetDouble("posX", 10000)
	far.Document().SetDouble("posY", 10000)
	e, err := ParseInvokeEntry([]byte(`{"topic": "", "logicalArg": "1", "exprs": ["self.touched = 1"]}`))
	if err != nil {
		t.Fatalf("ParseInvokeEntry: %v", err)
	}
	far.AddLocalEntry(e)
	c.Append(far, 100, 100)

	c.Update(0, 0, 100, 100, disp)
	if got := far.Document().GetInt("touched", 0); got != 0 {
		t.Errorf("touched = %v, want 0 (an object outside the 3x3 camera window must not update)", got)
	}
}

func TestObjectContainerPurgeAtIsIdempotent(t *testing.T) {
	c := NewObjectContainer(defaultBatchCostGoal)
	r := NewRenderObject()
	c.Append(r, 100, 100)
	c.PurgeAt(0, 0, 100, 100)
	if got := c.ObjectCount(false); got != 0 {
		t.Fatalf("ObjectCount = %d, want 0", got)
	}
	// Second purge on an already-empty tile must not panic or misbehave.
	c.PurgeAt(0, 0, 100, 100)
}

func TestObjectContainerObjectCountExcludesOverlay(t *testing.T) {
	c := NewObjectContainer(defaultBatchCostGoal)
	overlay := NewRenderObject()
	overlay.Document().SetInt("layer", int64(LayerOverlay))
	general := NewRenderObject()
	c.Append(overlay, 100, 100)
	c.Append(general, 100, 100)
	if got := c.ObjectCount(true); got != 1 {
		t.Errorf("ObjectCount(excludeTopLayer=true) = %d, want 1", got)
	}
	if got := c.ObjectCount(false); got != 2 {
		t.Errorf("ObjectCount(excludeTopLayer=false) = %d, want 2", got)
	}
}
