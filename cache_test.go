package nebulite

import (
	"math/rand"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
)

func newTestCache(t *testing.T) (*DocumentCache, func(name, content string)) {
	t.Helper()
	fs := memfs.New()
	write := func(name, content string) {
		f, err := fs.Create(name)
		if err != nil {
			t.Fatalf("fs.Create(%s): %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		f.Close()
	}
	c := NewDocumentCache(CacheOptions{FS: fs, Rand: rand.New(rand.NewSource(1))})
	return c, write
}

func TestDocumentCacheGet(t *testing.T) {
	c, write := newTestCache(t)
	write("npc.json", `{"hp": 10, "name": "goblin", "tags": ["a","b"]}`)

	if got := c.GetDouble("npc.json:hp", -1); got != 10 {
		t.Errorf("GetDouble = %v, want 10", got)
	}
	if got := c.GetString("npc.json:name", ""); got != "goblin" {
		t.Errorf("GetString = %q, want goblin", got)
	}
	if got := c.MemberType("npc.json:tags"); got != "array" {
		t.Errorf("MemberType(tags) = %q, want array", got)
	}
	if got := c.MemberSize("npc.json:tags"); got != 2 {
		t.Errorf("MemberSize(tags) = %d, want 2", got)
	}
}

func TestDocumentCacheWholeDocument(t *testing.T) {
	c, write := newTestCache(t)
	write("npc.json", `{"hp": 10}`)
	s, ok := c.GetDocString("npc.json")
	if !ok {
		t.Fatalf("GetDocString: not found")
	}
	if s != `{"hp": 10}` {
		t.Errorf("GetDocString = %q", s)
	}
}

func TestDocumentCacheMissingNeverPanics(t *testing.T) {
	c, _ := newTestCache(t)
	if got := c.GetDouble("missing.json:x", 9); got != 9 {
		t.Errorf("GetDouble(missing) = %v, want 9", got)
	}
	if got := c.MemberType("missing.json:x"); got != "null" {
		t.Errorf("MemberType(missing) = %q, want null", got)
	}
	if p := c.StableDouble("missing.json:x"); p != missingDocSentinel {
		t.Errorf("StableDouble(missing) did not return the shared sentinel")
	}
}

func TestDocumentCacheStableDoubleIdempotent(t *testing.T) {
	c, write := newTestCache(t)
	write("npc.json", `{"hp": 10}`)
	p1 := c.StableDouble("npc.json:hp")
	p2 := c.StableDouble("npc.json:hp")
	if p1 != p2 {
		t.Errorf("StableDouble returned different pointers for the same key")
	}
	if *p1 != 10 {
		t.Errorf("*p1 = %v, want 10", *p1)
	}
}

func TestDocumentCacheEvictsIdleEntry(t *testing.T) {
	c, write := newTestCache(t)
	write("a.json", `{"v":1}`)
	write("b.json", `{"v":2}`)

	start := time.Now()
	c.clock = func() time.Time { return start }
	c.GetDouble("a.json:v", 0) // load + seed lastUsed at `start`

	c.clock = func() time.Time { return start.Add(10 * time.Minute) }
	// Only one entry exists, so the random pick always lands on it. The
	// access goes to a different link, since reading a.json itself would
	// reload it right after the eviction.
	c.GetDouble("b.json:v", 0)

	c.mu.Lock()
	_, stillCached := c.docs["a.json"]
	c.mu.Unlock()
	if stillCached {
		t.Errorf("expected idle entry to be evicted after threshold")
	}
}
