package nebulite

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

var objectIDCounter uint32

func nextObjectID() uint32 {
	return atomic.AddUint32(&objectIDCounter, 1)
}

// defaultCommandTree is the shared CommandTree used by RenderObjects
// created via NewRenderObject. Built once at package init with the core
// handler set (spec.md §4.6: "the exact command inventory is out of core
// scope" — this module registers only enough to exercise the mechanism).
var defaultCommandTree = func() *CommandTree {
	t := NewCommandTree()
	RegisterCoreCommands(t)
	return t
}()

// RenderObject is the per-instance document + rule set of spec.md C7: an
// owned Document, its parsed local/global Invoke Entries, its topic
// subscriptions, and the command sub-tree that lets JSON-authored commands
// read and mutate the owned document. Rendering fields (sprite/text) are
// out of core scope; onRenderHandoff is the sole extension point a host
// renderer hooks into, grounded in the teacher's Node type keeping
// rendering-only fields alongside pure behavior fields.
type RenderObject struct {
	id  uint32
	doc *Document

	tree *CommandTree

	local  []*InvokeEntry
	global []*InvokeEntry

	subscriptions []string
	rulesDirty    bool

	onRenderHandoff func(*RenderObject)
}

// NewRenderObject creates a RenderObject with a fresh Document and the
// shared default command tree.
func NewRenderObject() *RenderObject {
	return NewRenderObjectWithCommands(defaultCommandTree)
}

// NewRenderObjectWithCommands creates a RenderObject whose owned-document
// commands dispatch through tree instead of the package default.
func NewRenderObjectWithCommands(tree *CommandTree) *RenderObject {
	id := nextObjectID()
	doc := NewDocument()
	doc.SetInt("id", int64(id))
	return &RenderObject{
		id:            id,
		doc:           doc,
		tree:          tree,
		subscriptions: []string{"all"},
	}
}

// ID returns the object's identity, assigned on construction (spec.md §6:
// "assigned on append").
func (r *RenderObject) ID() uint32 { return r.id }

// Document returns the object's owned document.
func (r *RenderObject) Document() *Document { return r.doc }

func (r *RenderObject) PosX() float64    { return r.doc.GetDouble("posX", 0) }
func (r *RenderObject) PosY() float64    { return r.doc.GetDouble("posY", 0) }
func (r *RenderObject) Layer() int64     { return r.doc.GetInt("layer", 0) }
func (r *RenderObject) DeleteFlag() bool { return r.doc.GetBool("deleteFlag", false) }

// AddLocalEntry registers a programmatically-built Invoke Entry on this
// object, bypassing the JSON "invokes" array: an entry with topic "" becomes
// a local rule, any other entry a global rule broadcast under its topic.
// Compilation is deferred to the next Update call, matching entries parsed
// from JSON.
func (r *RenderObject) AddLocalEntry(e *InvokeEntry) {
	e.owner = r
	if e.IsLocal() {
		r.local = append(r.local, e)
	} else {
		r.global = append(r.global, e)
	}
}

// Deserialize loads serialOrLink into the owned document (spec.md §4.1/§6:
// a literal JSON string, a cache link, or a link followed by `|<command>`
// fragments routed through the owned command tree; a legacy `|key=value`
// fragment is rewritten to `set key value`). Marks the rules-dirty flag.
func (r *RenderObject) Deserialize(serialOrLink string, cache *DocumentCache, global *Document, queue *CommandQueue) error {
	parts := strings.Split(serialOrLink, "|")
	head := strings.TrimSpace(parts[0])

	var data []byte
	switch {
	case strings.HasPrefix(head, "{"):
		data = []byte(head)
	case cache != nil:
		s, ok := cache.GetDocString(head)
		if !ok {
			return fmt.Errorf("renderobject: could not resolve link %q", head)
		}
		data = []byte(s)
	default:
		return fmt.Errorf("renderobject: no cache configured to resolve link %q", head)
	}

	if err := r.doc.Deserialize(data); err != nil {
		return err
	}
	r.rulesDirty = true

	ctx := &CommandContext{Self: r.doc, Global: global, Queue: queue}
	for _, frag := range parts[1:] {
		frag = strings.TrimSpace(frag)
		if frag == "" {
			continue
		}
		if !strings.ContainsAny(frag, " \t") {
			if eq := strings.IndexByte(frag, '='); eq >= 0 {
				frag = "set " + frag[:eq] + " " + frag[eq+1:]
			}
		}
		r.tree.Dispatch(frag, ctx)
	}
	return nil
}

// EstimateCost sums, across every local and global guard and assignment
// value expression, the count of `$` sigils (spec.md §4.6) — a cheap proxy
// for per-frame arithmetic work, used to size ObjectContainer batches.
func (r *RenderObject) EstimateCost() int {
	total := 0
	for _, e := range r.local {
		total += e.estimateCost()
	}
	for _, e := range r.global {
		total += e.estimateCost()
	}
	return total
}

func (e *InvokeEntry) estimateCost() int {
	n := strings.Count(e.LogicalArg, "$")
	for _, expr := range e.Exprs {
		n += strings.Count(expr, "$")
	}
	return n
}

// reparseRules rebuilds r.local/r.global/r.subscriptions from the owned
// document's "invokes" and "invokeSubscriptions" members.
func (r *RenderObject) reparseRules(self, global *Document, cache *DocumentCache) {
	raw := r.doc.RawJSON()
	r.local = r.local[:0]
	r.global = r.global[:0]

	invokes := gjson.GetBytes(raw, "invokes")
	if invokes.IsArray() {
		for _, item := range invokes.Array() {
			entry, err := ParseInvokeEntry([]byte(item.Raw))
			if err != nil {
				log.Warnw("skipping malformed invoke entry", "error", err)
				continue
			}
			entry.owner = r
			ensureCompiled(entry, self, global, cache)
			if entry.IsLocal() {
				r.local = append(r.local, entry)
			} else {
				r.global = append(r.global, entry)
			}
		}
	}

	subs := gjson.GetBytes(raw, "invokeSubscriptions")
	if subs.IsArray() && len(subs.Array()) > 0 {
		r.subscriptions = r.subscriptions[:0]
		for _, s := range subs.Array() {
			r.subscriptions = append(r.subscriptions, s.String())
		}
	} else {
		r.subscriptions = []string{"all"}
	}
}

// Update runs this object's rule pass for one frame (spec.md §4.6): if
// rules-dirty, reparses "invokes"/"invokeSubscriptions"; evaluates local
// rules through the dispatcher's local-update path; broadcasts global
// rules; and subscribes to every listed topic. Rendering rect recomputation
// is a no-op extension point (onRenderHandoff), out of core scope.
func (r *RenderObject) Update(disp *Dispatcher) {
	if r.rulesDirty {
		r.reparseRules(r.doc, disp.global, disp.cache)
		r.rulesDirty = false
	}

	for _, e := range r.local {
		ensureCompiled(e, r.doc, disp.global, disp.cache)
		if e.compileFailed {
			continue
		}
		disp.RunLocal(e, r.doc)
	}

	for _, e := range r.global {
		ensureCompiled(e, r.doc, disp.global, disp.cache)
		if e.compileFailed {
			continue
		}
		disp.Broadcast(e)
	}

	for _, topic := range r.subscriptions {
		disp.Listen(r, topic)
	}

	if r.onRenderHandoff != nil {
		r.onRenderHandoff(r)
	}
}
