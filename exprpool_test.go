package nebulite

import (
	"sync"
	"testing"
)

func TestExpressionPoolEvalMatchesSingleExpression(t *testing.T) {
	self := NewDocument()
	self.SetDouble("x", 4)
	p := NewExpressionPool(self, NewDocument(), nil)
	if err := p.Parse("$(self.x * 2)"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.ReturnableAsDouble() {
		t.Fatalf("expected ReturnableAsDouble")
	}
	if got := p.EvalAsDouble(nil); got != 8 {
		t.Errorf("EvalAsDouble = %v, want 8", got)
	}
}

func TestExpressionPoolReparseRebuildsAllSlots(t *testing.T) {
	self := NewDocument()
	self.SetDouble("x", 1)
	p := NewExpressionPool(self, NewDocument(), nil)
	if err := p.Parse("$(self.x)"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := p.Parse("literal"); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	for i := 0; i < poolSize*4; i++ {
		if got := p.Eval(nil); got != "literal" {
			t.Fatalf("Eval after reparse = %q, want %q (slot %d)", got, "literal", i)
		}
	}
}

func TestExpressionPoolConcurrentEvalIsSafe(t *testing.T) {
	self := NewDocument()
	self.SetDouble("x", 3)
	p := NewExpressionPool(self, NewDocument(), nil)
	if err := p.Parse("$(self.x * self.x)"); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := p.EvalAsDouble(nil); got != 9 {
				t.Errorf("EvalAsDouble = %v, want 9", got)
			}
		}()
	}
	wg.Wait()
}
