// Package nebulite implements the declarative interaction core of a
// data-driven 2D engine: a typed, cache-accelerated JSON document store, a
// mixed text/math expression engine, a topic-based invoke dispatcher, and a
// tile-partitioned object container driven by a per-frame loop.
//
// Game behavior is authored as JSON "Invoke Entries" — rules with a topic, a
// guard expression, a list of assignments, and command lists — that are
// parsed into compiled expression trees and evaluated every frame against
// pairs of objects.
//
// # Quick start
//
//	doc := nebulite.NewDocument()
//	doc.SetDouble("posX", 10)
//
//	entry, _ := nebulite.ParseInvokeEntry([]byte(`{
//	  "topic": "",
//	  "logicalArg": "1",
//	  "exprs": ["self.posX += 5"]
//	}`))
//
//	obj := nebulite.NewRenderObject()
//	obj.Document().SetDouble("posX", 10)
//	obj.AddLocalEntry(entry)
//
//	disp := nebulite.NewDispatcher(nebulite.NewDocument())
//	defer disp.Close()
//	obj.Update(disp)
//	disp.Commit()
//
// # Scope
//
// Rendering, audio, and input polling are treated as external collaborators:
// nebulite defines the [Poller] interface and the render-hand-off hook on
// [RenderObject] but does not implement SDL/Ebiten-style drawing itself.
//
// See SPEC_FULL.md in the module root for the full component breakdown.
package nebulite
