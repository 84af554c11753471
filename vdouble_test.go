package nebulite

import "testing"

func TestVirtualDoubleRemanentTracksDocument(t *testing.T) {
	doc := NewDocument()
	doc.SetDouble("hp", 10)
	vd := newRemanentVirtualDouble(ctxSelf, "hp", doc)
	if got := *vd.ptr(); got != 10 {
		t.Fatalf("ptr() = %v, want 10", got)
	}
	doc.SetDouble("hp", 42)
	if got := *vd.ptr(); got != 42 {
		t.Fatalf("ptr() after document mutation = %v, want 42 (remanent pointer should track the live slot)", got)
	}
}

func TestVirtualDoubleRemanentRefreshIsNoop(t *testing.T) {
	doc := NewDocument()
	doc.SetDouble("hp", 10)
	vd := newRemanentVirtualDouble(ctxGlobal, "hp", doc)
	other := NewDocument()
	other.SetDouble("hp", 999)
	vd.refresh(other)
	if got := *vd.ptr(); got != 10 {
		t.Fatalf("refresh mutated a remanent VirtualDouble: got %v, want 10", got)
	}
}

func TestVirtualDoubleOtherRequiresRefresh(t *testing.T) {
	vd := newOtherVirtualDouble("hp")
	if got := *vd.ptr(); got != 0 {
		t.Fatalf("unrefreshed other VirtualDouble = %v, want 0", got)
	}
	other := NewDocument()
	other.SetDouble("hp", 7)
	vd.refresh(other)
	if got := *vd.ptr(); got != 7 {
		t.Fatalf("ptr() after refresh = %v, want 7", got)
	}
}

func TestVirtualDoubleOtherRefreshWithNilDocument(t *testing.T) {
	vd := newOtherVirtualDouble("hp")
	vd.internal = 5
	vd.refresh(nil)
	if got := *vd.ptr(); got != 0 {
		t.Fatalf("refresh(nil) = %v, want 0", got)
	}
}

func TestVirtualDoubleOtherRefreshSwitchesBetweenDocuments(t *testing.T) {
	vd := newOtherVirtualDouble("hp")
	a := NewDocument()
	a.SetDouble("hp", 1)
	b := NewDocument()
	b.SetDouble("hp", 2)

	vd.refresh(a)
	if got := *vd.ptr(); got != 1 {
		t.Fatalf("refresh(a) = %v, want 1", got)
	}
	vd.refresh(b)
	if got := *vd.ptr(); got != 2 {
		t.Fatalf("refresh(b) = %v, want 2", got)
	}
}
