package nebulite

import (
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// cacheEntry is the typed-cache slot for one leaf path: the last value set
// (or read through from the backing tree) plus lazily-materialized
// conversions to the other primitive types. A nil pointer means "not yet
// computed for this Kind", not "computed as zero".
type cacheEntry struct {
	value   Value
	boolC   *bool
	intC    *int64
	doubleC *float64
	stringC *string
}

// Document is a recursive, cached, typed key/value tree (spec.md C1). Every
// leaf has a typed conversion cache and a stable double-pointer view; both
// survive for the document's lifetime (I2).
//
// Concurrency: a single RWMutex approximates the reference's per-document
// recursive mutex (spec.md §5) — introspection and serialization take the
// read lock; writes and the get<T> family take the write lock (a get miss
// seeds the typed cache); and no exported method calls another exported
// method while holding the lock (avoiding the need for real recursion).
type Document struct {
	mu     sync.RWMutex
	raw    []byte
	typed  map[string]*cacheEntry
	stable map[string]*float64
}

// NewDocument creates an empty Document backed by `{}`.
func NewDocument() *Document {
	return &Document{
		raw:    []byte("{}"),
		typed:  make(map[string]*cacheEntry),
		stable: make(map[string]*float64),
	}
}

// --- get<T> family ---

func (d *Document) entryLocked(path string) (*cacheEntry, bool) {
	e, ok := d.typed[path]
	return e, ok
}

// lookupBacking resolves path against the raw backing tree, returning the
// Value and whether it was found. Caller must hold at least a read lock.
func (d *Document) lookupBacking(path string) (Value, bool) {
	res := gjson.GetBytes(d.raw, translatePath(path))
	if !res.Exists() {
		return Null, false
	}
	switch res.Type {
	case gjson.Null:
		return Null, true
	case gjson.True:
		return boolValue(true), true
	case gjson.False:
		return boolValue(false), true
	case gjson.Number:
		return doubleValue(res.Num), true
	case gjson.String:
		return stringValue(res.Str), true
	case gjson.JSON:
		if res.IsArray() {
			arr := make([]Value, 0, len(res.Array()))
			for _, el := range res.Array() {
				arr = append(arr, gjsonToValue(el))
			}
			return Value{Kind: KindArray, Arr: arr}, true
		}
		sub := NewDocument()
		sub.raw = []byte(res.Raw)
		return Value{Kind: KindDocument, Sub: sub}, true
	}
	return Null, false
}

func gjsonToValue(res gjson.Result) Value {
	switch res.Type {
	case gjson.Null:
		return Null
	case gjson.True:
		return boolValue(true)
	case gjson.False:
		return boolValue(false)
	case gjson.Number:
		return doubleValue(res.Num)
	case gjson.String:
		return stringValue(res.Str)
	default:
		if res.IsArray() {
			arr := make([]Value, 0, len(res.Array()))
			for _, el := range res.Array() {
				arr = append(arr, gjsonToValue(el))
			}
			return Value{Kind: KindArray, Arr: arr}
		}
		sub := NewDocument()
		sub.raw = []byte(res.Raw)
		return Value{Kind: KindDocument, Sub: sub}
	}
}

// GetBool returns the bool at path, converting per the spec.md §4.1
// conversion table, or def if path is missing.
func (d *Document) GetBool(path string, def bool) bool {
	return getConverted(d, path, def,
		func(e *cacheEntry) (bool, *bool) { return e.boolC != nil, derefOr(e.boolC, false) },
		func(e *cacheEntry, v bool) { e.boolC = &v },
		func(v Value, def bool) bool { return v.AsBool(def) },
	)
}

// GetInt returns the int64 at path, converting per the conversion table, or
// def if path is missing.
func (d *Document) GetInt(path string, def int64) int64 {
	return getConverted(d, path, def,
		func(e *cacheEntry) (bool, int64) { return e.intC != nil, derefOr(e.intC, 0) },
		func(e *cacheEntry, v int64) { e.intC = &v },
		func(v Value, def int64) int64 { return v.AsInt(def) },
	)
}

// GetDouble returns the float64 at path, converting per the conversion
// table, or def if path is missing.
func (d *Document) GetDouble(path string, def float64) float64 {
	return getConverted(d, path, def,
		func(e *cacheEntry) (bool, float64) { return e.doubleC != nil, derefOr(e.doubleC, 0) },
		func(e *cacheEntry, v float64) { e.doubleC = &v },
		func(v Value, def float64) float64 { return v.AsDouble(def) },
	)
}

// GetString returns the string at path, converting per the conversion
// table, or def if path is missing.
func (d *Document) GetString(path string, def string) string {
	return getConverted(d, path, def,
		func(e *cacheEntry) (bool, string) { return e.stringC != nil, derefOr(e.stringC, "") },
		func(e *cacheEntry, v string) { e.stringC = &v },
		func(v Value, def string) string { return v.AsString(def) },
	)
}

func derefOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// getConverted implements the shared get<T> shape: typed-cache hit with a
// memoized conversion, typed-cache hit needing a fresh conversion, or a
// backing-tree read that seeds the typed cache.
func getConverted[T any](
	d *Document, path string, def T,
	cached func(*cacheEntry) (bool, T),
	store func(*cacheEntry, T),
	convert func(Value, T) T,
) T {
	d.mu.Lock() // upgrade to exclusive: a miss seeds the cache
	defer d.mu.Unlock()

	e, ok := d.entryLocked(path)
	if ok {
		if hit, v := cached(e); hit {
			return v
		}
		v := convert(e.value, def)
		store(e, v)
		return v
	}

	val, found := d.lookupBacking(path)
	if !found {
		return def
	}
	e = &cacheEntry{value: val}
	d.typed[path] = e
	v := convert(val, def)
	store(e, v)
	return v
}

// --- set<T> family ---

// SetBool sets path to a bool value (typed-cache + stable-double only; see
// spec.md §4.1 — simple sets do not write through to the backing tree until
// Flush).
func (d *Document) SetBool(path string, v bool) { d.setSimple(path, boolValue(v)) }

// SetInt sets path to an int64 value.
func (d *Document) SetInt(path string, v int64) { d.setSimple(path, intValue(v)) }

// SetUint sets path to a uint64 value.
func (d *Document) SetUint(path string, v uint64) { d.setSimple(path, uintValue(v)) }

// SetDouble sets path to a float64 value.
func (d *Document) SetDouble(path string, v float64) { d.setSimple(path, doubleValue(v)) }

// SetString sets path to a string value.
func (d *Document) SetString(path string, v string) { d.setSimple(path, stringValue(v)) }

func (d *Document) setSimple(path string, v Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.typed[path] = &cacheEntry{value: v}
	if p, ok := d.stable[path]; ok {
		*p = v.AsDouble(0)
	}
}

// SetArray writes an array value through to the backing tree immediately
// (compound kinds are never cached, per spec.md §4.1).
func (d *Document) SetArray(path string, arr []Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.typed, path)
	raw, err := json.Marshal(valuesToAny(arr))
	if err != nil {
		return err
	}
	return d.writeRawLocked(path, raw)
}

func valuesToAny(arr []Value) []any {
	out := make([]any, len(arr))
	for i, v := range arr {
		out[i] = valueToAny(v)
	}
	return out
}

func valueToAny(v Value) any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.B
	case KindInt64:
		return v.I
	case KindUint64:
		return v.U
	case KindDouble:
		return v.D
	case KindString:
		return v.S
	case KindArray:
		return valuesToAny(v.Arr)
	case KindDocument:
		var m map[string]any
		_ = json.Unmarshal(v.Sub.raw, &m)
		return m
	default:
		return nil
	}
}

func (d *Document) writeRawLocked(path string, raw []byte) error {
	out, err := sjson.SetRawBytes(d.raw, translatePath(path), raw)
	if err != nil {
		return err
	}
	d.raw = out
	return nil
}

// SetSubdoc flushes both documents, then attaches a deep copy of child at
// path (spec.md §4.1 `set_subdoc`).
func (d *Document) SetSubdoc(path string, child *Document) error {
	child.Flush()
	d.Flush()
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.typed, path)
	cp := make([]byte, len(child.raw))
	copy(cp, child.raw)
	return d.writeRawLocked(path, cp)
}

// RemoveKey flushes, then removes path from the backing tree and its typed
// cache entry.
func (d *Document) RemoveKey(path string) {
	d.Flush()
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.typed, path)
	out, err := sjson.DeleteBytes(d.raw, translatePath(path))
	if err == nil {
		d.raw = out
	}
}

// --- atomic arithmetic ops ---

// SetAdd adds delta to the current double value at path (coerced per the
// conversion table), atomically with respect to other sets on this
// document (spec.md §5).
func (d *Document) SetAdd(path string, delta float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.readDoubleLocked(path)
	d.storeSimpleLocked(path, doubleValue(cur+delta))
}

// SetMultiply multiplies the current double value at path by factor,
// atomically with respect to other sets on this document.
func (d *Document) SetMultiply(path string, factor float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.readDoubleLocked(path)
	d.storeSimpleLocked(path, doubleValue(cur*factor))
}

// SetConcat appends s to the current string value at path, atomically with
// respect to other sets on this document.
func (d *Document) SetConcat(path string, s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.readStringLocked(path)
	d.storeSimpleLocked(path, stringValue(cur+s))
}

func (d *Document) readDoubleLocked(path string) float64 {
	if e, ok := d.entryLocked(path); ok {
		return e.value.AsDouble(0)
	}
	if v, ok := d.lookupBacking(path); ok {
		return v.AsDouble(0)
	}
	return 0
}

func (d *Document) readStringLocked(path string) string {
	if e, ok := d.entryLocked(path); ok {
		return e.value.AsString("")
	}
	if v, ok := d.lookupBacking(path); ok {
		return v.AsString("")
	}
	return ""
}

func (d *Document) storeSimpleLocked(path string, v Value) {
	d.typed[path] = &cacheEntry{value: v}
	if p, ok := d.stable[path]; ok {
		*p = v.AsDouble(0)
	}
}

// --- introspection ---

// MemberType reports the kind of member at path: "null", "value", "array",
// or "document".
func (d *Document) MemberType(path string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.entryLocked(path); ok {
		return kindLabel(e.value.Kind)
	}
	v, ok := d.lookupBacking(path)
	if !ok {
		return "null"
	}
	return kindLabel(v.Kind)
}

func kindLabel(k Kind) string {
	switch k {
	case KindArray:
		return "array"
	case KindDocument:
		return "document"
	case KindNull:
		return "null"
	default:
		return "value"
	}
}

// MemberSize returns the array length, 1 for a document or scalar value, or
// 0 if path is missing.
func (d *Document) MemberSize(path string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.entryLocked(path); ok {
		if e.value.Kind == KindArray {
			return len(e.value.Arr)
		}
		return 1
	}
	v, ok := d.lookupBacking(path)
	if !ok {
		return 0
	}
	if v.Kind == KindArray {
		return len(v.Arr)
	}
	return 1
}

// StableDouble returns a pointer to path's double-precision shadow value.
// The pointer is idempotent (repeated calls return the same address) and
// never dangles while the Document lives (spec.md I2).
func (d *Document) StableDouble(path string) *float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.stable[path]; ok {
		return p
	}
	seed := d.readDoubleLocked(path)
	p := new(float64)
	*p = seed
	d.stable[path] = p
	return p
}

// --- flush / serialize / clone ---

// Flush re-materializes the typed cache into the backing tree. Stable
// double pointers are not invalidated (spec.md I3).
func (d *Document) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, e := range d.typed {
		if !e.value.Kind.isSimple() {
			continue
		}
		raw, err := json.Marshal(valueToAny(e.value))
		if err != nil {
			continue
		}
		if out, err := sjson.SetRawBytes(d.raw, translatePath(path), raw); err == nil {
			d.raw = out
		}
	}
}

// Serialize flushes and returns the canonical (compact) JSON encoding.
func (d *Document) Serialize() string {
	d.Flush()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(pretty.Ugly(d.raw))
}

// SerializePretty flushes and returns an indented JSON encoding.
func (d *Document) SerializePretty() string {
	d.Flush()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(pretty.Pretty(d.raw))
}

// Deserialize replaces the document's contents with the parsed literal
// JSON in data. Comments are stripped first (spec.md: "canonical JSON
// encoding stripped of comments"). Link and `|command` resolution is
// layered on top by DocumentCache/RenderObject, which own the command
// dispatch tree this Document does not depend on.
func (d *Document) Deserialize(data []byte) error {
	stripped := stripJSONComments(data)
	if !json.Valid(stripped) {
		return errInvalidJSON
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = stripped
	d.typed = make(map[string]*cacheEntry)
	// Stable-double slots are NOT reset: I2 requires the pointer to survive
	// for the document's lifetime. Re-seed their contents from the new tree.
	for path, p := range d.stable {
		*p = d.readDoubleLocked(path)
	}
	return nil
}

// Clone deep-copies the backing tree and typed cache. The clone gets fresh
// stable-double slots: pointer stability (I2) is scoped to one Document
// instance, not shared across clones.
func (d *Document) Clone() *Document {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cp := &Document{
		raw:    append([]byte(nil), d.raw...),
		typed:  make(map[string]*cacheEntry, len(d.typed)),
		stable: make(map[string]*float64),
	}
	for k, v := range d.typed {
		ve := *v
		cp.typed[k] = &ve
	}
	return cp
}

// RawJSON returns the current (unflushed) backing tree bytes. Exported for
// DocumentCache and command-tree plumbing that need direct gjson access.
func (d *Document) RawJSON() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]byte(nil), d.raw...)
}
