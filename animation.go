package vrm

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
)

// TrackPath is the property a Track animates.
type TrackPath int

const (
	PathTranslation TrackPath = iota
	PathRotation
	PathScale
	// PathWeights drives the morph influences of every mesh on the node.
	PathWeights
	// PathBlendShape drives a blend shape group value of the proxy.
	PathBlendShape
)

func (p TrackPath) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	case PathWeights:
		return "weights"
	case PathBlendShape:
		return "blendShape"
	}
	return fmt.Sprintf("TrackPath(%d)", int(p))
}

type Interpolation int

const (
	InterpolateLinear Interpolation = iota
	InterpolateStep
)

// Track holds keyframes of one animated property. Values is laid out
// flat, Stride components per keyframe.
type Track struct {
	Node       *Node
	BlendShape string
	Path       TrackPath

	Interpolation Interpolation
	Times         []float32
	Values        []float32
	Stride        int
}

func (t *Track) Duration() float32 {
	if len(t.Times) == 0 {
		return 0
	}
	return t.Times[len(t.Times)-1]
}

// Sample evaluates the track at time into out, which must hold Stride
// values.
func (t *Track) Sample(time float32, out []float32) {
	n := len(t.Times)
	if n == 0 || t.Stride == 0 {
		return
	}
	if time <= t.Times[0] || n == 1 {
		copy(out, t.Values[:t.Stride])
		return
	}
	if time >= t.Times[n-1] {
		copy(out, t.Values[(n-1)*t.Stride:n*t.Stride])
		return
	}
	i := sort.Search(n, func(i int) bool { return t.Times[i] > time }) - 1
	a := t.Values[i*t.Stride : (i+1)*t.Stride]
	b := t.Values[(i+1)*t.Stride : (i+2)*t.Stride]
	if t.Interpolation == InterpolateStep {
		copy(out, a)
		return
	}
	span := t.Times[i+1] - t.Times[i]
	alpha := float32(0)
	if span > 0 {
		alpha = (time - t.Times[i]) / span
	}
	if t.Path == PathRotation && t.Stride == 4 {
		qa := quaternion.T{a[0], a[1], a[2], a[3]}
		qb := quaternion.T{b[0], b[1], b[2], b[3]}
		q := slerp(&qa, &qb, alpha)
		copy(out, q[:])
		return
	}
	for c := range out[:t.Stride] {
		out[c] = a[c] + (b[c]-a[c])*alpha
	}
}

// slerp interpolates along the shortest arc.
func slerp(a, b *quaternion.T, t float32) quaternion.T {
	bb := *b
	cos := a[0]*bb[0] + a[1]*bb[1] + a[2]*bb[2] + a[3]*bb[3]
	if cos < 0 {
		cos = -cos
		bb = quaternion.T{-bb[0], -bb[1], -bb[2], -bb[3]}
	}
	var ka, kb float32
	if cos > 0.9995 {
		ka, kb = 1-t, t
	} else {
		theta := math32.Acos(cos)
		sin := math32.Sin(theta)
		ka = math32.Sin((1-t)*theta) / sin
		kb = math32.Sin(t*theta) / sin
	}
	q := quaternion.T{
		a[0]*ka + bb[0]*kb,
		a[1]*ka + bb[1]*kb,
		a[2]*ka + bb[2]*kb,
		a[3]*ka + bb[3]*kb,
	}
	q.Normalize()
	return q
}

// AnimationClip is a named set of tracks.
type AnimationClip struct {
	Name     string
	Duration float32
	Tracks   []*Track
}

// NewAnimationClip computes the duration from the tracks.
func NewAnimationClip(name string, tracks []*Track) *AnimationClip {
	c := &AnimationClip{Name: name, Tracks: tracks}
	for _, t := range tracks {
		c.Duration = math32.Max(c.Duration, t.Duration())
	}
	return c
}

// AnimationAction plays one clip on a mixer.
type AnimationAction struct {
	Clip      *AnimationClip
	Loop      bool
	TimeScale float32
	Weight    float32

	time    float32
	playing bool
	scratch []float32
}

func (a *AnimationAction) Play() *AnimationAction {
	a.playing = true
	return a
}

func (a *AnimationAction) Stop() *AnimationAction {
	a.playing = false
	a.time = 0
	return a
}

func (a *AnimationAction) IsRunning() bool {
	return a.playing
}

func (a *AnimationAction) Time() float32 {
	return a.time
}

func (a *AnimationAction) SetTime(t float32) {
	a.time = t
}

func (a *AnimationAction) advance(delta float32) {
	a.time += delta * a.TimeScale
	d := a.Clip.Duration
	if d <= 0 {
		a.time = 0
		return
	}
	if a.Loop {
		a.time = math32.Mod(a.time, d)
		if a.time < 0 {
			a.time += d
		}
		return
	}
	if a.time >= d {
		a.time = d
		a.playing = false
	} else if a.time < 0 {
		a.time = 0
		a.playing = false
	}
}

// AnimationMixer advances actions and writes the sampled values onto
// nodes, mesh morph influences and blend shape groups.
type AnimationMixer struct {
	Proxy *BlendShapeProxy

	actions []*AnimationAction
}

func NewAnimationMixer(proxy *BlendShapeProxy) *AnimationMixer {
	return &AnimationMixer{Proxy: proxy}
}

// ClipAction returns the action of clip, creating a looping one with
// unit weight on first use.
func (m *AnimationMixer) ClipAction(clip *AnimationClip) *AnimationAction {
	for _, a := range m.actions {
		if a.Clip == clip {
			return a
		}
	}
	a := &AnimationAction{Clip: clip, Loop: true, TimeScale: 1, Weight: 1}
	m.actions = append(m.actions, a)
	return a
}

func (m *AnimationMixer) Actions() []*AnimationAction {
	return append([]*AnimationAction(nil), m.actions...)
}

// StopAll stops every action.
func (m *AnimationMixer) StopAll() {
	for _, a := range m.actions {
		a.Stop()
	}
}

// Update advances the playing actions by delta seconds and applies them
// in the order they were created.
func (m *AnimationMixer) Update(delta float32) {
	for _, a := range m.actions {
		if !a.playing || a.Clip == nil {
			continue
		}
		a.advance(delta)
		m.apply(a)
	}
}

func (m *AnimationMixer) apply(a *AnimationAction) {
	w := math32.Min(math32.Max(a.Weight, 0), 1)
	if w == 0 {
		return
	}
	for _, t := range a.Clip.Tracks {
		if cap(a.scratch) < t.Stride {
			a.scratch = make([]float32, t.Stride)
		}
		v := a.scratch[:t.Stride]
		t.Sample(a.time, v)
		switch t.Path {
		case PathTranslation:
			if t.Node != nil && t.Stride == 3 {
				t.Node.Position = lerpVec3(t.Node.Position, vec3.T{v[0], v[1], v[2]}, w)
			}
		case PathScale:
			if t.Node != nil && t.Stride == 3 {
				t.Node.Scale = lerpVec3(t.Node.Scale, vec3.T{v[0], v[1], v[2]}, w)
			}
		case PathRotation:
			if t.Node != nil && t.Stride == 4 {
				q := quaternion.T{v[0], v[1], v[2], v[3]}
				if w < 1 {
					q = slerp(&t.Node.Rotation, &q, w)
				}
				t.Node.Rotation = q
			}
		case PathWeights:
			if t.Node == nil {
				continue
			}
			for _, mesh := range t.Node.Meshes {
				for i := 0; i < len(v) && i < len(mesh.MorphTargetInfluences); i++ {
					cur := mesh.MorphTargetInfluences[i]
					mesh.MorphTargetInfluences[i] = cur + (v[i]-cur)*w
				}
			}
		case PathBlendShape:
			if m.Proxy == nil || len(v) == 0 {
				continue
			}
			if g := m.Proxy.Group(t.BlendShape); g != nil {
				g.SetValue(g.Value() + (v[0]-g.Value())*w)
			}
		}
	}
}

func lerpVec3(a, b vec3.T, t float32) vec3.T {
	return vec3.T{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
	}
}

// loadAnimations converts the glTF animations of doc. Channels that target
// missing nodes or use unreadable accessors are skipped.
func loadAnimations(doc *gltf.Document, nodes []*Node) ([]*AnimationClip, error) {
	clips := make([]*AnimationClip, 0, len(doc.Animations))
	for ai, anim := range doc.Animations {
		var tracks []*Track
		for ci, ch := range anim.Channels {
			if ch.Sampler == nil || int(*ch.Sampler) >= len(anim.Samplers) {
				continue
			}
			if ch.Target.Node == nil || int(*ch.Target.Node) >= len(nodes) {
				continue
			}
			track, err := loadTrack(doc, anim.Samplers[*ch.Sampler], ch.Target.Path, nodes[*ch.Target.Node])
			if err != nil {
				return nil, fmt.Errorf("animation %d channel %d: %w", ai, ci, err)
			}
			if track != nil {
				tracks = append(tracks, track)
			}
		}
		name := anim.Name
		if name == "" {
			name = fmt.Sprintf("animation_%d", ai)
		}
		clips = append(clips, NewAnimationClip(name, tracks))
	}
	return clips, nil
}

func loadTrack(doc *gltf.Document, s *gltf.AnimationSampler, path gltf.TRSProperty, node *Node) (*Track, error) {
	if s == nil || s.Input == nil || s.Output == nil {
		return nil, nil
	}
	times, _, err := readFloats(doc, *s.Input)
	if err != nil {
		return nil, err
	}
	values, comps, err := readFloats(doc, *s.Output)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, nil
	}
	t := &Track{Node: node, Times: times}
	switch path {
	case gltf.TRSTranslation:
		t.Path, t.Stride = PathTranslation, 3
	case gltf.TRSRotation:
		t.Path, t.Stride = PathRotation, 4
	case gltf.TRSScale:
		t.Path, t.Stride = PathScale, 3
	case gltf.TRSWeights:
		t.Path = PathWeights
		t.Stride = len(values) / len(times)
		comps = 1
	default:
		return nil, nil
	}
	if path != gltf.TRSWeights && comps != t.Stride {
		return nil, fmt.Errorf("%w: %s output has %d components", ErrAccessor, t.Path, comps)
	}
	switch s.Interpolation {
	case gltf.InterpolationStep:
		t.Interpolation = InterpolateStep
	case gltf.InterpolationCubicSpline:
		// keep the value knots, drop the tangents
		if path == gltf.TRSWeights {
			t.Stride /= 3
		}
		values = cubicSplineValues(values, t.Stride)
	}
	if t.Stride == 0 || len(values) < len(times)*t.Stride {
		return nil, fmt.Errorf("%w: %s output is shorter than its input", ErrAccessor, t.Path)
	}
	t.Values = values[:len(times)*t.Stride]
	return t, nil
}

// cubicSplineValues extracts the values from in-tangent, value,
// out-tangent triplets.
func cubicSplineValues(src []float32, stride int) []float32 {
	if stride == 0 {
		return nil
	}
	n := len(src) / (3 * stride)
	out := make([]float32, 0, n*stride)
	for k := 0; k < n; k++ {
		base := k*3*stride + stride
		out = append(out, src[base:base+stride]...)
	}
	return out
}
