package vrm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls  []string
	deltas []float32
}

type fakeGaze struct{ r *recorder }

func (f fakeGaze) Update() { f.r.calls = append(f.r.calls, "gaze") }

type fakeClock struct{ r *recorder }

func (f fakeClock) Update(delta float32) {
	f.r.calls = append(f.r.calls, "clock")
	f.r.deltas = append(f.r.deltas, delta)
}

type fakeWeights struct{ r *recorder }

func (f fakeWeights) Update() { f.r.calls = append(f.r.calls, "weights") }

type fakePhysics struct{ r *recorder }

func (f fakePhysics) LateUpdate(delta float32) {
	f.r.calls = append(f.r.calls, "physics")
	f.r.deltas = append(f.r.deltas, delta)
}

func TestFrameOrder(t *testing.T) {
	r := &recorder{}
	f := Frame{
		Gaze:    fakeGaze{r},
		Clock:   fakeClock{r},
		Weights: fakeWeights{r},
		Physics: fakePhysics{r},
	}
	f.Update(0.25)
	assert.Equal(t, []string{"gaze", "clock", "weights", "physics"}, r.calls)
	assert.Equal(t, []float32{0.25, 0.25}, r.deltas)
}

func TestFrameSkipsMissingStages(t *testing.T) {
	r := &recorder{}
	f := Frame{Clock: fakeClock{r}, Physics: fakePhysics{r}}
	assert.NotPanics(t, func() { f.Update(0.1) })
	assert.Equal(t, []string{"clock", "physics"}, r.calls)

	var empty Frame
	assert.NotPanics(t, func() { empty.Update(1) })
}

func TestFrameClampsNegativeDelta(t *testing.T) {
	r := &recorder{}
	f := Frame{Clock: fakeClock{r}, Physics: fakePhysics{r}}
	f.Update(-0.5)
	assert.Equal(t, []float32{0, 0}, r.deltas)
}

func TestAvatarUpdatePhysicsRunsAfterAnimation(t *testing.T) {
	play := func(a *Avatar) {
		require.Len(t, a.Animations, 1)
		a.AnimationMixer.ClipAction(a.Animations[0]).Play()
	}

	t.Run("WithoutPhysics", func(t *testing.T) {
		a := newFixtureAvatar(t, noPhysics())
		defer a.Dispose()
		require.Nil(t, a.SpringBoneManager)
		play(a)
		a.Update(0.5)

		hair := a.Nodes()[nodeHair]
		assert.InDelta(t, 0.3826834, hair.Rotation[0], 1e-4)
		assert.InDelta(t, 0.9238795, hair.Rotation[3], 1e-4)
	})

	t.Run("WithPhysics", func(t *testing.T) {
		a := newFixtureAvatar(t, nil)
		defer a.Dispose()
		require.NotNil(t, a.SpringBoneManager)
		play(a)
		a.Update(0.5)

		// the animated swing is overwritten by the spring bone, which
		// has no reason to leave its rest direction
		hair := a.Nodes()[nodeHair]
		assert.InDelta(t, 0, hair.Rotation[0], 1e-3)
		assert.InDelta(t, 1, hair.Rotation[3], 1e-3)
	})
}

func TestAvatarUpdateAppliesBlendShapesAfterAnimation(t *testing.T) {
	a := newFixtureAvatar(t, noPhysics())
	defer a.Dispose()

	track := &Track{
		BlendShape: "Blink",
		Path:       PathBlendShape,
		Times:      []float32{0, 1},
		Values:     []float32{0, 1},
		Stride:     1,
	}
	clip := NewAnimationClip("blink", []*Track{track})
	action := a.AnimationMixer.ClipAction(clip)
	action.Loop = false
	action.Play()

	a.Update(0.5)

	face := a.Meshes(meshFace)
	require.Len(t, face, 1)
	// the proxy writes in the same frame the mixer set the value
	assert.InDelta(t, 0.5, face[0].MorphTargetInfluences[0], 1e-5)
}

func TestAvatarUpdateAfterDispose(t *testing.T) {
	a := newFixtureAvatar(t, nil)
	a.Dispose()
	assert.NotPanics(t, func() { a.Update(0.1) })
}
