package vrm

import (
	"encoding/json"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFirstPerson(t *testing.T) {
	a := newFixtureAvatar(t, noPhysics())
	defer a.Dispose()
	fp := a.FirstPerson
	nodes := a.Nodes()

	assert.Same(t, nodes[nodeHead], fp.Bone)
	// the Z axis of the offset is flipped
	assert.Equal(t, vec3.T{0, 0.06, -0.01}, fp.Offset)

	require.Len(t, fp.Annotations, 2)
	body := a.Meshes(meshBody)[0]
	face := a.Meshes(meshFace)[0]
	assert.Equal(t, FirstPersonThirdPersonOnly, fp.Flag(body))
	// unknown flags fall back to auto
	assert.Equal(t, FirstPersonAuto, fp.Flag(face))
	assert.Equal(t, FirstPersonAuto, fp.Flag(&Mesh{}))

	p := fp.WorldPosition()
	head := fixtureWorld(nodeHead)
	assert.InDelta(t, head[1]+0.06, p[1], 1e-5)
	assert.InDelta(t, head[2]-0.01, p[2], 1e-5)
}

func TestLoadFirstPersonFallbacks(t *testing.T) {
	head := NewNode("head")
	h := &Humanoid{handles: map[HumanBoneName]Joint{}}
	h.Set(Head, head)

	t.Run("NoDescription", func(t *testing.T) {
		fp := LoadFirstPerson(nil, h, nil, nil)
		assert.Same(t, head, fp.Bone)
		assert.Equal(t, vec3.T{0, 0.06, 0}, fp.Offset)
	})

	t.Run("BadBone", func(t *testing.T) {
		fp := LoadFirstPerson(&FirstPersonDesc{
			FirstPersonBone: 12,
			MeshAnnotations: []*MeshAnnotation{nil, {Mesh: 3, FirstPersonFlag: "Both"}},
		}, h, []*Node{NewNode("other")}, nil)
		assert.Same(t, head, fp.Bone)
		assert.Empty(t, fp.Annotations)
	})

	t.Run("NoBone", func(t *testing.T) {
		fp := &FirstPerson{Offset: vec3.T{1, 2, 3}}
		assert.Equal(t, vec3.T{1, 2, 3}, fp.WorldPosition())
	})
}

func TestParseFirstPersonFlag(t *testing.T) {
	for in, want := range map[string]FirstPersonFlag{
		"Auto":            FirstPersonAuto,
		"Both":            FirstPersonBoth,
		"ThirdPersonOnly": FirstPersonThirdPersonOnly,
		"FirstPersonOnly": FirstPersonFirstPersonOnly,
		"":                FirstPersonAuto,
		"both":            FirstPersonAuto,
	} {
		assert.Equal(t, want, parseFirstPersonFlag(in), in)
	}
}

func TestFirstPersonBoneDefaultsToHead(t *testing.T) {
	var desc FirstPersonDesc
	require.NoError(t, json.Unmarshal([]byte(`{"firstPersonBoneOffset": {"x": 0, "y": 0.1, "z": 0}}`), &desc))
	assert.Equal(t, -1, desc.FirstPersonBone)

	head := NewNode("head")
	h := &Humanoid{handles: map[HumanBoneName]Joint{}}
	h.Set(Head, head)
	fp := LoadFirstPerson(&desc, h, []*Node{NewNode("root"), head}, nil)
	assert.Same(t, head, fp.Bone)

	require.NoError(t, json.Unmarshal([]byte(`{"firstPersonBone": 0}`), &desc))
	assert.Equal(t, 0, desc.FirstPersonBone)
}
