package nebulite

import (
	"math/rand"
	"sync"
)

// poolSize is POOL_SIZE from spec.md §4.4: a compile-time constant sizing
// every ExpressionPool.
const poolSize = 8

// ExpressionPool holds poolSize identical pre-parsed Expressions, each
// guarded by its own mutex, so that data-parallel pair evaluation (spec.md
// §5) can evaluate the same compiled template from multiple worker
// goroutines concurrently: two workers only contend when they happen to
// pick the same slot.
type ExpressionPool struct {
	slots [poolSize]*Expression
	locks [poolSize]sync.Mutex
	rnd   *rand.Rand
	rndMu sync.Mutex
}

// NewExpressionPool allocates a pool of unparsed Expressions bound to the
// given remanent documents and resource cache.
func NewExpressionPool(self, global *Document, cache *DocumentCache) *ExpressionPool {
	p := &ExpressionPool{rnd: rand.New(rand.NewSource(rand.Int63()))}
	for i := range p.slots {
		p.slots[i] = NewExpression(self, global, cache)
	}
	return p
}

// Parse rebuilds every slot from source. Not thread-safe against concurrent
// Eval/EvalAsDouble calls, per spec.md §4.4.
func (p *ExpressionPool) Parse(source string) error {
	for i := range p.slots {
		if err := p.slots[i].Parse(source); err != nil {
			return err
		}
	}
	return nil
}

// ReturnableAsDouble reports the (shared, post-Parse) fast-path eligibility.
func (p *ExpressionPool) ReturnableAsDouble() bool {
	return p.slots[0].ReturnableAsDouble()
}

func (p *ExpressionPool) pickSlot() int {
	p.rndMu.Lock()
	defer p.rndMu.Unlock()
	return p.rnd.Intn(poolSize)
}

// Eval picks a random slot, locks it, and renders the template against
// other.
func (p *ExpressionPool) Eval(other *Document) string {
	i := p.pickSlot()
	p.locks[i].Lock()
	defer p.locks[i].Unlock()
	return p.slots[i].Eval(other)
}

// EvalAsDouble picks a random slot, locks it, and evaluates the fast
// numeric path against other.
func (p *ExpressionPool) EvalAsDouble(other *Document) float64 {
	i := p.pickSlot()
	p.locks[i].Lock()
	defer p.locks[i].Unlock()
	return p.slots[i].EvalAsDouble(other)
}
