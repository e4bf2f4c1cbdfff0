package vrm

import (
	"github.com/flywave/go3d/mat4"
)

// ReduceBones rebinds every skinned mesh below root to a skeleton made of
// only the joints its vertices reference. It returns the number of meshes
// rebound. Call it once per asset at load time.
func ReduceBones(root *Node) int {
	n := 0
	root.Traverse(func(nd *Node) {
		for _, m := range nd.Meshes {
			if ReduceSkin(m) {
				n++
			}
		}
	})
	return n
}

// ReduceSkin compacts the joint indices of a skinned mesh in first seen
// order and binds the mesh to the matching compact skeleton with an
// identity bind matrix. Rigid meshes are left untouched and reported as
// false.
func ReduceSkin(m *Mesh) bool {
	if m == nil || !m.IsSkinned() || m.Geometry == nil {
		return false
	}
	// the geometry may be shared with other meshes bound to other skeletons
	geometry := m.Geometry.Clone()
	m.Geometry = geometry

	joints, bones, inverses := reduceJoints(geometry.Joints, m.Skeleton)
	geometry.Joints = joints
	m.Bind(&Skeleton{Bones: bones, BoneInverses: inverses}, mat4.Ident)
	return true
}

func reduceJoints(src [][4]uint16, skeleton *Skeleton) ([][4]uint16, []*Node, []mat4.T) {
	var (
		bones    []*Node
		inverses []mat4.T
	)
	indexMap := map[uint16]uint16{}
	joints := make([][4]uint16, len(src))
	for v := range src {
		for c := 0; c < 4; c++ {
			index := src[v][c]
			reduced, ok := indexMap[index]
			if !ok {
				reduced = uint16(len(bones))
				indexMap[index] = reduced
				bones = append(bones, boneAt(skeleton, int(index)))
				inverses = append(inverses, inverseAt(skeleton, int(index)))
			}
			joints[v][c] = reduced
		}
	}
	return joints, bones, inverses
}

func boneAt(s *Skeleton, i int) *Node {
	if i < len(s.Bones) {
		return s.Bones[i]
	}
	return nil
}

func inverseAt(s *Skeleton, i int) mat4.T {
	if i < len(s.BoneInverses) {
		return s.BoneInverses[i]
	}
	return mat4.Ident
}
