package vrm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHumanoid(t *testing.T) {
	nodes := []*Node{NewNode("hips"), NewNode("spine"), nil}
	h := NewHumanoid(&HumanoidDesc{HumanBones: []*HumanBoneDesc{
		{Bone: "hips", Node: 0},
		{Bone: "spine", Node: 1},
		nil,
		{Bone: "chest", Node: 2},
		{Bone: "neck", Node: -1},
		{Bone: "wing", Node: 1},
		{Bone: "hips", Node: 1},
	}}, nodes)

	require.Equal(t, 2, h.Len())
	assert.Equal(t, []HumanBoneName{Hips, Spine}, h.Names())
	// a repeated name rebinds without a new handle
	assert.Same(t, nodes[1], h.Node(Hips))
	assert.Equal(t, Joint(0), h.Handle(Hips))
	assert.Equal(t, NoJoint, h.Handle(Chest))
	assert.Nil(t, h.Node(Chest))
	assert.Nil(t, h.NodeOf(NoJoint))
	assert.Equal(t, HumanBoneName(""), h.NameOf(Joint(9)))
	assert.Equal(t, Spine, h.NameOf(h.Handle(Spine)))

	m := h.Nodes()
	assert.Len(t, m, 2)
	assert.Same(t, nodes[1], m[Spine])
	assert.Equal(t, "Humanoid(2 bones: [hips spine])", h.String())
}

func TestNewHumanoidNil(t *testing.T) {
	h := NewHumanoid(nil, nil)
	assert.Zero(t, h.Len())
	assert.Len(t, h.MissingRequired(), len(RequiredHumanBones))
}

func TestIsHumanBoneName(t *testing.T) {
	assert.True(t, IsHumanBoneName("upperChest"))
	assert.True(t, IsHumanBoneName("rightLittleDistal"))
	assert.False(t, IsHumanBoneName("UpperChest"))
	assert.False(t, IsHumanBoneName("tail"))
	assert.Len(t, HumanBoneNames, 55)
}
