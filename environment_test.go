package nebulite

import "testing"

func TestEnvironmentSetCameraComputesTile(t *testing.T) {
	env := NewEnvironment(100, 100)
	env.SetCamera(250, -50)
	if env.cameraTileX != 2 || env.cameraTileY != -1 {
		t.Errorf("camera tile = (%d, %d), want (2, -1)", env.cameraTileX, env.cameraTileY)
	}
}

func TestEnvironmentAppendAndObjectCount(t *testing.T) {
	env := NewEnvironment(100, 100)
	env.Append(NewRenderObject())
	env.Append(NewRenderObject())
	if got := env.ObjectCount(false); got != 2 {
		t.Errorf("ObjectCount = %d, want 2", got)
	}
}

func TestEnvironmentSetResolutionReinsertsObjects(t *testing.T) {
	env := NewEnvironment(100, 100)
	r := NewRenderObject()
	r.Document().SetDouble("posX", 150)
	env.Append(r)
	env.SetResolution(50, 50)
	if got := env.ObjectCount(false); got != 1 {
		t.Errorf("ObjectCount after SetResolution = %d, want 1 (object should survive a resolution change)", got)
	}
}

func TestEnvironmentWithBatchGoalHonorsCustomGoal(t *testing.T) {
	env := NewEnvironmentWithBatchGoal(100, 100, 1)
	if env.container.batchCostGoal != 1 {
		t.Errorf("batchCostGoal = %d, want 1", env.container.batchCostGoal)
	}
}

func TestEnvironmentPurgeAt(t *testing.T) {
	env := NewEnvironment(100, 100)
	r := NewRenderObject()
	env.Append(r)
	env.PurgeAt(0, 0)
	if got := env.ObjectCount(false); got != 0 {
		t.Errorf("ObjectCount after PurgeAt = %d, want 0", got)
	}
}
