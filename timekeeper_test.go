package nebulite

import (
	"testing"
	"time"
)

func TestTimeKeeperFixedDtAlwaysAdvances(t *testing.T) {
	tk := NewTimeKeeper()
	tk.Stop()
	fixed := 0.5
	dt, tv := tk.Update(&fixed)
	if dt != 0.5 || tv != 0.5 {
		t.Errorf("dt=%v t=%v, want 0.5/0.5 (fixed-dt path advances even while stopped)", dt, tv)
	}
	dt, tv = tk.Update(&fixed)
	if dt != 0.5 || tv != 1.0 {
		t.Errorf("dt=%v t=%v, want 0.5/1.0", dt, tv)
	}
}

func TestTimeKeeperWallClockRespectsRunning(t *testing.T) {
	now := time.Unix(0, 0)
	tk := &TimeKeeper{running: true, lastReal: now, clock: func() time.Time { return now }}

	now = now.Add(2 * time.Second)
	dt, tv := tk.Update(nil)
	if dt != 2 || tv != 2 {
		t.Errorf("dt=%v t=%v, want 2/2", dt, tv)
	}

	tk.Stop()
	now = now.Add(5 * time.Second)
	dt, tv = tk.Update(nil)
	if dt != 0 || tv != 2 {
		t.Errorf("dt=%v t=%v, want 0/2 while stopped", dt, tv)
	}
}

func TestTimeKeeperStartResetsReferencePoint(t *testing.T) {
	now := time.Unix(0, 0)
	tk := &TimeKeeper{running: true, lastReal: now, clock: func() time.Time { return now }}
	tk.Stop()
	now = now.Add(10 * time.Second)
	tk.Start()
	now = now.Add(1 * time.Second)
	dt, _ := tk.Update(nil)
	if dt != 1 {
		t.Errorf("dt = %v, want 1 (Start should reset lastReal so paused time isn't counted)", dt)
	}
}

func TestTimeKeeperProjectedDtDoesNotAdvance(t *testing.T) {
	now := time.Unix(0, 0)
	tk := &TimeKeeper{running: true, lastReal: now, clock: func() time.Time { return now }}
	now = now.Add(3 * time.Second)
	if got := tk.ProjectedDt(); got != 3 {
		t.Errorf("ProjectedDt = %v, want 3", got)
	}
	if got := tk.T(); got != 0 {
		t.Errorf("T() = %v, want 0 (ProjectedDt must not advance the clock)", got)
	}
}

func TestTimeKeeperProjectedDtZeroWhenStopped(t *testing.T) {
	tk := NewTimeKeeper()
	tk.Stop()
	if got := tk.ProjectedDt(); got != 0 {
		t.Errorf("ProjectedDt while stopped = %v, want 0", got)
	}
}
