package nebulite

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/tidwall/gjson"
)

// defaultIdleTimeout is the default 5-minute eviction threshold. Idle time
// is measured on the cache's own clock, which is wall-clock time.Now; the
// engine's TimeKeeper (simulated time) is not consulted.
const defaultIdleTimeout = 5 * time.Minute

// missingDocSentinel is the process-lifetime zero sentinel returned by
// StableDouble for a document that could not be loaded (spec.md §4.2).
var missingDocSentinel = new(float64)

// ReadOnlyDoc is a lazily-loaded, never-mutated resource document (spec.md
// C2). It is held as a parsed gjson.Result tree — gjson's own Type enum is
// itself the tagged-sum representation the document layer wants, and
// because ReadOnlyDocs are never written, gjson's read-only API is a
// complete fit with no write-path to bridge.
type ReadOnlyDoc struct {
	result   gjson.Result
	lastUsed time.Time
	stable   map[string]*float64
}

// CacheOptions configures a DocumentCache.
type CacheOptions struct {
	// FS is the filesystem resource links are resolved against. Defaults to
	// an osfs rooted at the current directory.
	FS billy.Filesystem
	// IdleTimeout is the wall-clock idle threshold past which an inspected
	// entry is evicted. Defaults to 5 minutes.
	IdleTimeout time.Duration
	// Rand drives the single random eviction candidate picked per access.
	// Eviction is deliberately randomized (spec.md §3); tests that need a
	// deterministic run should supply a seeded *rand.Rand.
	Rand *rand.Rand
}

// DocumentCache is an LRU-like cache of ReadOnlyDocs keyed by filesystem
// link (spec.md C2). Missing documents never panic or return an error;
// callers always get the default they supplied.
type DocumentCache struct {
	mu          sync.Mutex
	docs        map[string]*ReadOnlyDoc
	fs          billy.Filesystem
	idleTimeout time.Duration
	rnd         *rand.Rand
	clock       func() time.Time
}

// NewDocumentCache creates a DocumentCache with the given options.
func NewDocumentCache(opts CacheOptions) *DocumentCache {
	fs := opts.FS
	if fs == nil {
		fs = osfs.New(".")
	}
	timeout := opts.IdleTimeout
	if timeout == 0 {
		timeout = defaultIdleTimeout
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &DocumentCache{
		docs:        make(map[string]*ReadOnlyDoc),
		fs:          fs,
		idleTimeout: timeout,
		rnd:         rnd,
		clock:       time.Now,
	}
}

// load returns the ReadOnlyDoc for link, loading it from the filesystem on
// first access. Every call probabilistically inspects and possibly evicts
// one random loaded entry (spec.md §3/§4.2).
func (c *DocumentCache) load(link string) (*ReadOnlyDoc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictOneLocked()

	if doc, ok := c.docs[link]; ok {
		doc.lastUsed = c.clock()
		return doc, true
	}

	f, err := c.fs.Open(link)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false
	}
	if !gjson.ValidBytes(data) {
		return nil, false
	}
	doc := &ReadOnlyDoc{result: gjson.ParseBytes(data), lastUsed: c.clock(), stable: make(map[string]*float64)}
	c.docs[link] = doc
	return doc, true
}

// evictOneLocked inspects a single random entry and evicts it if idle
// beyond c.idleTimeout. Caller must hold c.mu.
func (c *DocumentCache) evictOneLocked() {
	n := len(c.docs)
	if n == 0 {
		return
	}
	target := c.rnd.Intn(n)
	i := 0
	now := c.clock()
	for link, doc := range c.docs {
		if i == target {
			if now.Sub(doc.lastUsed) > c.idleTimeout {
				delete(c.docs, link)
			}
			return
		}
		i++
	}
}

func (c *DocumentCache) resolve(key string) (gjson.Result, string, bool) {
	link, inner := splitLeadingKey(key)
	doc, ok := c.load(link)
	if !ok {
		return gjson.Result{}, "", false
	}
	if inner == "" {
		return doc.result, "", true
	}
	return doc.result, translatePath(inner), true
}

// GetDouble returns the double at "<link>:<inner_path>", or def if the link
// or inner path cannot be resolved.
func (c *DocumentCache) GetDouble(key string, def float64) float64 {
	root, inner, ok := c.resolve(key)
	if !ok {
		return def
	}
	r := memberOf(root, inner)
	if !r.Exists() {
		return def
	}
	return r.Float()
}

// GetInt returns the int64 at key, or def.
func (c *DocumentCache) GetInt(key string, def int64) int64 {
	root, inner, ok := c.resolve(key)
	if !ok {
		return def
	}
	r := memberOf(root, inner)
	if !r.Exists() {
		return def
	}
	return r.Int()
}

// GetBool returns the bool at key, or def.
func (c *DocumentCache) GetBool(key string, def bool) bool {
	root, inner, ok := c.resolve(key)
	if !ok {
		return def
	}
	r := memberOf(root, inner)
	if !r.Exists() {
		return def
	}
	return r.Bool()
}

// GetString returns the string at key, or def.
func (c *DocumentCache) GetString(key string, def string) string {
	root, inner, ok := c.resolve(key)
	if !ok {
		return def
	}
	r := memberOf(root, inner)
	if !r.Exists() {
		return def
	}
	return r.String()
}

func memberOf(root gjson.Result, inner string) gjson.Result {
	if inner == "" {
		return root
	}
	return root.Get(inner)
}

// MemberType reports "null", "value", "array", or "document" for key.
func (c *DocumentCache) MemberType(key string) string {
	root, inner, ok := c.resolve(key)
	if !ok {
		return "null"
	}
	r := memberOf(root, inner)
	if !r.Exists() {
		return "null"
	}
	if r.IsArray() {
		return "array"
	}
	if r.IsObject() {
		return "document"
	}
	return "value"
}

// MemberSize returns the array length, 1 for a document/scalar, or 0 if
// key cannot be resolved.
func (c *DocumentCache) MemberSize(key string) int {
	root, inner, ok := c.resolve(key)
	if !ok {
		return 0
	}
	r := memberOf(root, inner)
	if !r.Exists() {
		return 0
	}
	if r.IsArray() {
		return len(r.Array())
	}
	return 1
}

// Serialize returns the raw JSON text at key, or "" if unresolved.
func (c *DocumentCache) Serialize(key string) string {
	root, inner, ok := c.resolve(key)
	if !ok {
		return ""
	}
	return memberOf(root, inner).Raw
}

// GetDocString returns the whole document's raw JSON text for link (no
// inner path applied), and whether link resolved.
func (c *DocumentCache) GetDocString(link string) (string, bool) {
	doc, ok := c.load(link)
	if !ok {
		return "", false
	}
	return doc.result.Raw, true
}

// StableDouble returns a pointer tracking the double value at key. If key
// cannot be resolved, the shared process-lifetime zero sentinel is
// returned (spec.md §4.2). The pointer is idempotent per (link, inner
// path) for as long as the underlying ReadOnlyDoc stays cached.
func (c *DocumentCache) StableDouble(key string) *float64 {
	link, inner := splitLeadingKey(key)
	doc, ok := c.load(link)
	if !ok {
		return missingDocSentinel
	}
	gpath := translatePath(inner)
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := doc.stable[gpath]; ok {
		return p
	}
	r := memberOf(doc.result, gpath)
	v := new(float64)
	if r.Exists() {
		*v = r.Float()
	}
	doc.stable[gpath] = v
	return v
}
