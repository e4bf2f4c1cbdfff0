package vrm

// GazeUpdater moves the eyes toward their target.
type GazeUpdater interface {
	Update()
}

// TimeAdvancer advances animation playback.
type TimeAdvancer interface {
	Update(delta float32)
}

// WeightApplier writes blend shape weights into the meshes.
type WeightApplier interface {
	Update()
}

// PhysicsIntegrator runs secondary motion after everything else moved.
type PhysicsIntegrator interface {
	LateUpdate(delta float32)
}

// Frame runs the per frame subsystems of an avatar in a fixed order:
// gaze, animation, blend shapes, physics. Each later stage sees the
// result of the earlier ones, so physics wins over animation on bones
// both of them write.
type Frame struct {
	Gaze    GazeUpdater
	Clock   TimeAdvancer
	Weights WeightApplier
	Physics PhysicsIntegrator
}

// Update runs one frame. Unset stages are skipped and a negative delta
// counts as zero.
func (f *Frame) Update(delta float32) {
	if delta < 0 {
		delta = 0
	}
	if f.Gaze != nil {
		f.Gaze.Update()
	}
	if f.Clock != nil {
		f.Clock.Update(delta)
	}
	if f.Weights != nil {
		f.Weights.Update()
	}
	if f.Physics != nil {
		f.Physics.LateUpdate(delta)
	}
}
