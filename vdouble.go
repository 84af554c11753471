package nebulite

// varContext tags which document triple member a VirtualDouble resolves
// against (spec.md §4.3/C4).
type varContext uint8

const (
	ctxSelf varContext = iota
	ctxOther
	ctxGlobal
	ctxResource
)

// VirtualDouble bridges an expression variable reference to a live document
// value (spec.md C4). self/global/resource are "remanent": their pointer is
// bound once, at parse time, directly into a stable document slot, so
// reading it is just a pointer dereference. other is not remanent — the
// same compiled Expression is evaluated against a different "other" object
// every pair, so its value must be refreshed from the current other
// document immediately before each evaluation.
type VirtualDouble struct {
	key     string
	context varContext

	// external points directly into a Document's stable-double slot (self,
	// global, resource). nil for context == ctxOther.
	external *float64

	// internal is the refreshable cache used for context == ctxOther.
	internal float64
}

// newRemanentVirtualDouble binds a VirtualDouble directly to doc's stable
// slot for key. Used for self/global/resource contexts.
func newRemanentVirtualDouble(ctx varContext, key string, doc *Document) *VirtualDouble {
	return &VirtualDouble{key: key, context: ctx, external: doc.StableDouble(key)}
}

// newOtherVirtualDouble creates an other-context VirtualDouble with no bound
// document yet; refresh must be called before each evaluation.
func newOtherVirtualDouble(key string) *VirtualDouble {
	return &VirtualDouble{key: key, context: ctxOther}
}

// refresh re-reads the current value from other into the internal cache.
// A no-op for remanent contexts, per spec.md §4.3 step 1.
func (v *VirtualDouble) refresh(other *Document) {
	if v.context != ctxOther {
		return
	}
	if other == nil {
		v.internal = 0
		return
	}
	v.internal = other.GetDouble(v.key, 0)
}

// ptr returns the pointer the arithmetic evaluator should read through.
func (v *VirtualDouble) ptr() *float64 {
	if v.external != nil {
		return v.external
	}
	return &v.internal
}
