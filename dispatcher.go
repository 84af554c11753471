package nebulite

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/panjf2000/ants/v2"
)

// defaultDispatcherWorkers is the "small worker pool" size from spec.md §5.
const defaultDispatcherWorkers = 4

type pairItem struct {
	entry *InvokeEntry
	other *RenderObject
}

// Dispatcher is the Invoke Dispatcher of spec.md C6: broadcast/listen
// against per-topic entry lists, data-parallel (entry, other) pair
// evaluation across a fixed ants.Pool, and the three-mutex resource model
// from §5 (entries_current, entries_next, pairs — here the per-worker pair
// buckets each carry their own mutex so contention is limited to list
// pushback, as specified).
type Dispatcher struct {
	currentMu      sync.RWMutex
	entriesCurrent map[string][]*InvokeEntry

	nextMu      sync.Mutex
	entriesNext map[string][]*InvokeEntry

	bucketMu []sync.Mutex
	pairs    [][]pairItem

	dedupeMu sync.Mutex
	seen     map[uint32]*roaring.Bitmap

	pool *ants.Pool

	global *Document
	cache  *DocumentCache

	ScriptQueue   *CommandQueue
	InternalQueue *CommandQueue
	AlwaysQueue   *CommandQueue
}

// NewDispatcher creates a Dispatcher bound to global with a default-sized
// worker pool and an internally-owned DocumentCache rooted at ".".
func NewDispatcher(global *Document) *Dispatcher {
	return NewDispatcherWithOptions(global, NewDocumentCache(CacheOptions{}), defaultDispatcherWorkers)
}

// NewDispatcherWithOptions creates a Dispatcher with an explicit resource
// cache and worker count.
func NewDispatcherWithOptions(global *Document, cache *DocumentCache, numWorkers int) *Dispatcher {
	if numWorkers < 1 {
		numWorkers = 1
	}
	pool, err := ants.NewPool(numWorkers)
	if err != nil {
		log.Warnw("ants pool creation failed, falling back to synchronous pair evaluation", "error", err)
		pool = nil
	}
	return &Dispatcher{
		entriesCurrent: make(map[string][]*InvokeEntry),
		entriesNext:    make(map[string][]*InvokeEntry),
		bucketMu:       make([]sync.Mutex, numWorkers),
		pairs:          make([][]pairItem, numWorkers),
		seen:           make(map[uint32]*roaring.Bitmap),
		pool:           pool,
		global:         global,
		cache:          cache,
		ScriptQueue:    NewCommandQueue(true),
		InternalQueue:  NewCommandQueue(true),
		AlwaysQueue:    NewCommandQueue(false),
	}
}

// Close releases the worker pool. Safe to call once per Dispatcher.
func (d *Dispatcher) Close() {
	if d.pool != nil {
		d.pool.Release()
	}
}

// Broadcast appends entry to entries_next[entry.Topic] (spec.md §4.5).
// Non-idempotent: call exactly once per frame per active global rule.
func (d *Dispatcher) Broadcast(entry *InvokeEntry) {
	d.nextMu.Lock()
	defer d.nextMu.Unlock()
	d.entriesNext[entry.Topic] = append(d.entriesNext[entry.Topic], entry)
}

// Listen forms (entry, obj) pairs for every entry currently visible under
// topic, pushing each into obj's worker bucket. The reserved "all" topic is
// special: a listener on "all" receives every broadcast regardless of the
// topic it was broadcast under (spec.md §4.5), not just entries literally
// tagged "all". An entry is paired with a given obj at most once per frame
// even if obj listens to both "all" and its own topic (spec.md §9 open
// question, resolved as additive-but-deduped-by-identity via a per-object
// roaring.Bitmap of already-paired entry IDs).
func (d *Dispatcher) Listen(obj *RenderObject, topic string) {
	d.currentMu.RLock()
	var entries []*InvokeEntry
	if topic == "all" {
		for _, list := range d.entriesCurrent {
			entries = append(entries, list...)
		}
	} else {
		entries = d.entriesCurrent[topic]
	}
	d.currentMu.RUnlock()

	bucket := int(obj.ID()) % len(d.pairs)

	d.dedupeMu.Lock()
	bm, ok := d.seen[obj.ID()]
	if !ok {
		bm = roaring.New()
		d.seen[obj.ID()] = bm
	}
	d.dedupeMu.Unlock()

	d.bucketMu[bucket].Lock()
	defer d.bucketMu[bucket].Unlock()

	for _, e := range entries {
		d.dedupeMu.Lock()
		dup := bm.Contains(e.ID)
		if !dup {
			bm.Add(e.ID)
		}
		d.dedupeMu.Unlock()
		if dup {
			continue
		}
		d.pairs[bucket] = append(d.pairs[bucket], pairItem{entry: e, other: obj})
	}
}

// Commit evaluates every queued pair (in parallel across the worker pool
// when available), swaps entries_next into entries_current, and resets the
// pair buckets and dedupe state for the next frame (spec.md §4.5 step 3-4;
// queue draining per §4.8 step 6 is the frame loop's responsibility, not
// this method's).
func (d *Dispatcher) Commit() {
	var wg sync.WaitGroup
	for i := range d.pairs {
		bucket := d.pairs[i]
		if len(bucket) == 0 {
			continue
		}
		wg.Add(1)
		task := func(items []pairItem) func() {
			return func() {
				defer wg.Done()
				d.evalBucket(items)
			}
		}(bucket)
		if d.pool != nil {
			if err := d.pool.Submit(task); err != nil {
				task()
			}
		} else {
			task()
		}
	}
	wg.Wait()

	d.nextMu.Lock()
	next := d.entriesNext
	d.entriesNext = make(map[string][]*InvokeEntry)
	d.nextMu.Unlock()

	d.currentMu.Lock()
	d.entriesCurrent = next
	d.currentMu.Unlock()

	for i := range d.pairs {
		d.pairs[i] = d.pairs[i][:0]
	}
	d.dedupeMu.Lock()
	d.seen = make(map[uint32]*roaring.Bitmap)
	d.dedupeMu.Unlock()
}

func (d *Dispatcher) evalBucket(items []pairItem) {
	for _, p := range items {
		d.runPair(p.entry, p.entry.owner.Document(), p.other.Document())
	}
}

// RunLocal evaluates entry as a local rule (other == self), the dispatcher
// path RenderObject.Update delegates to for topic-"" entries (spec.md
// §4.6). Sharing runPair with the broadcast/listen path is what makes P4
// (local equivalence) hold by construction.
func (d *Dispatcher) RunLocal(entry *InvokeEntry, self *Document) {
	d.runPair(entry, self, self)
}

func (d *Dispatcher) runPair(e *InvokeEntry, self, other *Document) {
	g := e.EvalGuard(other)
	if g != g {
		log.Warnw("NaN guard result, treating as false", "topic", e.Topic)
		return
	}
	if !guardTruthy(g) {
		return
	}
	e.Apply(self, other, d.global)
	d.queueFunctionCalls(e, self, other)
}

// queueFunctionCalls substitutes each functioncalls_* template against the
// current (self, other, global) triple and pushes the result onto the
// internal command queue (spec.md §4.5 step 3).
func (d *Dispatcher) queueFunctionCalls(e *InvokeEntry, self, other *Document) {
	substitute := func(tmpl string) string {
		pool := NewExpressionPool(self, d.global, d.cache)
		if err := pool.Parse(tmpl); err != nil {
			log.Warnw("function call template failed to compile", "template", tmpl, "error", err)
			return tmpl
		}
		return pool.Eval(other)
	}
	for _, c := range e.FunctioncallsSelf {
		d.InternalQueue.Push(substitute(c))
	}
	for _, c := range e.FunctioncallsOther {
		d.InternalQueue.Push(substitute(c))
	}
	for _, c := range e.FunctioncallsGlobal {
		d.InternalQueue.Push(substitute(c))
	}
}
