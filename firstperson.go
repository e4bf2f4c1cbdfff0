package vrm

import (
	"github.com/flywave/go3d/vec3"
)

// FirstPersonFlag tells in which views a mesh is drawn.
type FirstPersonFlag string

const (
	FirstPersonAuto            FirstPersonFlag = "Auto"
	FirstPersonBoth            FirstPersonFlag = "Both"
	FirstPersonThirdPersonOnly FirstPersonFlag = "ThirdPersonOnly"
	FirstPersonFirstPersonOnly FirstPersonFlag = "FirstPersonOnly"
)

func parseFirstPersonFlag(s string) FirstPersonFlag {
	switch f := FirstPersonFlag(s); f {
	case FirstPersonBoth, FirstPersonThirdPersonOnly, FirstPersonFirstPersonOnly:
		return f
	}
	return FirstPersonAuto
}

// MeshAnnotationInfo pairs the runtime meshes of a glTF mesh with their
// first person flag.
type MeshAnnotationInfo struct {
	Meshes []*Mesh
	Flag   FirstPersonFlag
}

// FirstPerson holds the viewpoint of the avatar and the per mesh view
// flags.
type FirstPerson struct {
	Bone        *Node
	Offset      vec3.T
	Annotations []MeshAnnotationInfo
}

// LoadFirstPerson reads the first person block. The head bone is the
// default viewpoint.
func LoadFirstPerson(desc *FirstPersonDesc, humanoid *Humanoid, nodes []*Node, meshes map[int][]*Mesh) *FirstPerson {
	fp := &FirstPerson{Offset: vec3.T{0, 0.06, 0}}
	if desc == nil {
		fp.Bone = humanoid.Node(Head)
		return fp
	}
	if desc.FirstPersonBone >= 0 && desc.FirstPersonBone < len(nodes) && nodes[desc.FirstPersonBone] != nil {
		fp.Bone = nodes[desc.FirstPersonBone]
	} else {
		fp.Bone = humanoid.Node(Head)
	}
	if o := desc.FirstPersonBoneOffset; o != nil {
		// stored in the Unity handedness
		fp.Offset = vec3.T{o.X, o.Y, -o.Z}
	}
	for _, a := range desc.MeshAnnotations {
		if a == nil {
			continue
		}
		targets := meshes[a.Mesh]
		if len(targets) == 0 {
			continue
		}
		fp.Annotations = append(fp.Annotations, MeshAnnotationInfo{
			Meshes: targets,
			Flag:   parseFirstPersonFlag(a.FirstPersonFlag),
		})
	}
	return fp
}

// WorldPosition returns the viewpoint in world space from the cached
// world matrix of the bone.
func (fp *FirstPerson) WorldPosition() vec3.T {
	if fp.Bone == nil {
		return fp.Offset
	}
	return fp.Bone.LocalToWorld(fp.Offset)
}

// Flag returns the view flag of m, Auto when it is not annotated.
func (fp *FirstPerson) Flag(m *Mesh) FirstPersonFlag {
	for _, a := range fp.Annotations {
		for _, am := range a.Meshes {
			if am == m {
				return a.Flag
			}
		}
	}
	return FirstPersonAuto
}
