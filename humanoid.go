package vrm

import (
	"fmt"
	"sort"
)

// HumanBoneName is a slot of the VRM 0.x humanoid vocabulary.
type HumanBoneName string

const (
	Hips          HumanBoneName = "hips"
	LeftUpperLeg  HumanBoneName = "leftUpperLeg"
	RightUpperLeg HumanBoneName = "rightUpperLeg"
	LeftLowerLeg  HumanBoneName = "leftLowerLeg"
	RightLowerLeg HumanBoneName = "rightLowerLeg"
	LeftFoot      HumanBoneName = "leftFoot"
	RightFoot     HumanBoneName = "rightFoot"
	Spine         HumanBoneName = "spine"
	Chest         HumanBoneName = "chest"
	Neck          HumanBoneName = "neck"
	Head          HumanBoneName = "head"
	LeftShoulder  HumanBoneName = "leftShoulder"
	RightShoulder HumanBoneName = "rightShoulder"
	LeftUpperArm  HumanBoneName = "leftUpperArm"
	RightUpperArm HumanBoneName = "rightUpperArm"
	LeftLowerArm  HumanBoneName = "leftLowerArm"
	RightLowerArm HumanBoneName = "rightLowerArm"
	LeftHand      HumanBoneName = "leftHand"
	RightHand     HumanBoneName = "rightHand"
	LeftToes      HumanBoneName = "leftToes"
	RightToes     HumanBoneName = "rightToes"
	LeftEye       HumanBoneName = "leftEye"
	RightEye      HumanBoneName = "rightEye"
	Jaw           HumanBoneName = "jaw"
	UpperChest    HumanBoneName = "upperChest"

	LeftThumbProximal      HumanBoneName = "leftThumbProximal"
	LeftThumbIntermediate  HumanBoneName = "leftThumbIntermediate"
	LeftThumbDistal        HumanBoneName = "leftThumbDistal"
	LeftIndexProximal      HumanBoneName = "leftIndexProximal"
	LeftIndexIntermediate  HumanBoneName = "leftIndexIntermediate"
	LeftIndexDistal        HumanBoneName = "leftIndexDistal"
	LeftMiddleProximal     HumanBoneName = "leftMiddleProximal"
	LeftMiddleIntermediate HumanBoneName = "leftMiddleIntermediate"
	LeftMiddleDistal       HumanBoneName = "leftMiddleDistal"
	LeftRingProximal       HumanBoneName = "leftRingProximal"
	LeftRingIntermediate   HumanBoneName = "leftRingIntermediate"
	LeftRingDistal         HumanBoneName = "leftRingDistal"
	LeftLittleProximal     HumanBoneName = "leftLittleProximal"
	LeftLittleIntermediate HumanBoneName = "leftLittleIntermediate"
	LeftLittleDistal       HumanBoneName = "leftLittleDistal"

	RightThumbProximal      HumanBoneName = "rightThumbProximal"
	RightThumbIntermediate  HumanBoneName = "rightThumbIntermediate"
	RightThumbDistal        HumanBoneName = "rightThumbDistal"
	RightIndexProximal      HumanBoneName = "rightIndexProximal"
	RightIndexIntermediate  HumanBoneName = "rightIndexIntermediate"
	RightIndexDistal        HumanBoneName = "rightIndexDistal"
	RightMiddleProximal     HumanBoneName = "rightMiddleProximal"
	RightMiddleIntermediate HumanBoneName = "rightMiddleIntermediate"
	RightMiddleDistal       HumanBoneName = "rightMiddleDistal"
	RightRingProximal       HumanBoneName = "rightRingProximal"
	RightRingIntermediate   HumanBoneName = "rightRingIntermediate"
	RightRingDistal         HumanBoneName = "rightRingDistal"
	RightLittleProximal     HumanBoneName = "rightLittleProximal"
	RightLittleIntermediate HumanBoneName = "rightLittleIntermediate"
	RightLittleDistal       HumanBoneName = "rightLittleDistal"
)

// HumanBoneNames lists the whole vocabulary.
var HumanBoneNames = []HumanBoneName{
	Hips, LeftUpperLeg, RightUpperLeg, LeftLowerLeg, RightLowerLeg, LeftFoot, RightFoot,
	Spine, Chest, Neck, Head, LeftShoulder, RightShoulder,
	LeftUpperArm, RightUpperArm, LeftLowerArm, RightLowerArm, LeftHand, RightHand,
	LeftToes, RightToes, LeftEye, RightEye, Jaw,
	LeftThumbProximal, LeftThumbIntermediate, LeftThumbDistal,
	LeftIndexProximal, LeftIndexIntermediate, LeftIndexDistal,
	LeftMiddleProximal, LeftMiddleIntermediate, LeftMiddleDistal,
	LeftRingProximal, LeftRingIntermediate, LeftRingDistal,
	LeftLittleProximal, LeftLittleIntermediate, LeftLittleDistal,
	RightThumbProximal, RightThumbIntermediate, RightThumbDistal,
	RightIndexProximal, RightIndexIntermediate, RightIndexDistal,
	RightMiddleProximal, RightMiddleIntermediate, RightMiddleDistal,
	RightRingProximal, RightRingIntermediate, RightRingDistal,
	RightLittleProximal, RightLittleIntermediate, RightLittleDistal,
	UpperChest,
}

// RequiredHumanBones must be present in a conforming asset.
var RequiredHumanBones = []HumanBoneName{
	Hips, Spine, Chest, Neck, Head,
	LeftUpperArm, LeftLowerArm, LeftHand,
	RightUpperArm, RightLowerArm, RightHand,
	LeftUpperLeg, LeftLowerLeg, LeftFoot,
	RightUpperLeg, RightLowerLeg, RightFoot,
}

var humanBoneSet = func() map[HumanBoneName]bool {
	m := make(map[HumanBoneName]bool, len(HumanBoneNames))
	for _, n := range HumanBoneNames {
		m[n] = true
	}
	return m
}()

func IsHumanBoneName(name string) bool {
	return humanBoneSet[HumanBoneName(name)]
}

// Joint is a stable handle of a resolved human bone, valid for the
// lifetime of its Humanoid.
type Joint int

// NoJoint is returned for names that are not resolved.
const NoJoint Joint = -1

// Humanoid is the named joint map of an avatar. Names are resolved to
// handles once; every later lookup by handle is a slice index.
type Humanoid struct {
	names   []HumanBoneName
	nodes   []*Node
	handles map[HumanBoneName]Joint
}

// NewHumanoid resolves the human bone records against the node list.
// Unknown bone names, out of range nodes and duplicated names are skipped.
func NewHumanoid(desc *HumanoidDesc, nodes []*Node) *Humanoid {
	h := &Humanoid{handles: map[HumanBoneName]Joint{}}
	if desc == nil {
		return h
	}
	for _, b := range desc.HumanBones {
		if b == nil || !IsHumanBoneName(b.Bone) {
			continue
		}
		if b.Node < 0 || b.Node >= len(nodes) || nodes[b.Node] == nil {
			continue
		}
		h.Set(HumanBoneName(b.Bone), nodes[b.Node])
	}
	return h
}

// Set binds name to node. An already bound name keeps its handle.
func (h *Humanoid) Set(name HumanBoneName, node *Node) Joint {
	if j, ok := h.handles[name]; ok {
		h.nodes[j] = node
		return j
	}
	j := Joint(len(h.nodes))
	h.names = append(h.names, name)
	h.nodes = append(h.nodes, node)
	h.handles[name] = j
	return j
}

func (h *Humanoid) Len() int {
	return len(h.nodes)
}

func (h *Humanoid) Handle(name HumanBoneName) Joint {
	if j, ok := h.handles[name]; ok {
		return j
	}
	return NoJoint
}

func (h *Humanoid) Node(name HumanBoneName) *Node {
	return h.NodeOf(h.Handle(name))
}

func (h *Humanoid) NodeOf(j Joint) *Node {
	if j < 0 || int(j) >= len(h.nodes) {
		return nil
	}
	return h.nodes[j]
}

func (h *Humanoid) NameOf(j Joint) HumanBoneName {
	if j < 0 || int(j) >= len(h.names) {
		return ""
	}
	return h.names[j]
}

// Names returns the resolved names in handle order.
func (h *Humanoid) Names() []HumanBoneName {
	return append([]HumanBoneName(nil), h.names...)
}

// Nodes returns a name to node copy of the joint map.
func (h *Humanoid) Nodes() map[HumanBoneName]*Node {
	m := make(map[HumanBoneName]*Node, len(h.nodes))
	for i, n := range h.names {
		m[n] = h.nodes[i]
	}
	return m
}

// MissingRequired lists the required bones the asset does not define.
func (h *Humanoid) MissingRequired() []HumanBoneName {
	var missing []HumanBoneName
	for _, n := range RequiredHumanBones {
		if _, ok := h.handles[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

func (h *Humanoid) String() string {
	names := make([]string, len(h.names))
	for i, n := range h.names {
		names[i] = string(n)
	}
	sort.Strings(names)
	return fmt.Sprintf("Humanoid(%d bones: %v)", len(names), names)
}
