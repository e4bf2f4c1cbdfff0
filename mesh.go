package vrm

import (
	"math"

	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// MorphTarget holds per vertex displacements of a blend shape.
type MorphTarget struct {
	Name      string   `json:"name,omitempty"`
	Positions []vec3.T `json:"positions,omitempty"`
	Normals   []vec3.T `json:"normals,omitempty"`
}

// Geometry is the vertex data of one mesh primitive.
type Geometry struct {
	Positions    []vec3.T       `json:"positions"`
	Normals      []vec3.T       `json:"normals,omitempty"`
	TexCoords    []vec2.T       `json:"texCoords,omitempty"`
	Indices      []uint32       `json:"indices,omitempty"`
	Joints       [][4]uint16    `json:"joints,omitempty"`
	Weights      [][4]float32   `json:"weights,omitempty"`
	MorphTargets []*MorphTarget `json:"morphTargets,omitempty"`

	disposed bool
}

// Clone returns a deep copy of g. Morph targets are shared, they are
// never written after load.
func (g *Geometry) Clone() *Geometry {
	c := &Geometry{
		Positions:    append([]vec3.T(nil), g.Positions...),
		Normals:      append([]vec3.T(nil), g.Normals...),
		TexCoords:    append([]vec2.T(nil), g.TexCoords...),
		Indices:      append([]uint32(nil), g.Indices...),
		Joints:       append([][4]uint16(nil), g.Joints...),
		Weights:      append([][4]float32(nil), g.Weights...),
		MorphTargets: append([]*MorphTarget(nil), g.MorphTargets...),
	}
	return c
}

func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

// Dispose drops the vertex buffers.
func (g *Geometry) Dispose() {
	if g.disposed {
		return
	}
	g.Positions = nil
	g.Normals = nil
	g.TexCoords = nil
	g.Indices = nil
	g.Joints = nil
	g.Weights = nil
	g.MorphTargets = nil
	g.disposed = true
}

func (g *Geometry) Disposed() bool {
	return g.disposed
}

func (g *Geometry) BoundingBox() dvec3.Box {
	if len(g.Positions) == 0 {
		return dvec3.Box{}
	}
	minX := math.MaxFloat64
	minY := math.MaxFloat64
	minZ := math.MaxFloat64
	maxX := -math.MaxFloat64
	maxY := -math.MaxFloat64
	maxZ := -math.MaxFloat64
	for i := range g.Positions {
		minX = math.Min(minX, float64(g.Positions[i][0]))
		minY = math.Min(minY, float64(g.Positions[i][1]))
		minZ = math.Min(minZ, float64(g.Positions[i][2]))

		maxX = math.Max(maxX, float64(g.Positions[i][0]))
		maxY = math.Max(maxY, float64(g.Positions[i][1]))
		maxZ = math.Max(maxZ, float64(g.Positions[i][2]))
	}
	return dvec3.Box{Min: dvec3.T{minX, minY, minZ}, Max: dvec3.T{maxX, maxY, maxZ}}
}

// ComputeNormals recomputes area weighted vertex normals from the
// triangle list. Non indexed geometry is treated as a triangle soup.
func (g *Geometry) ComputeNormals() {
	normals := make([]vec3.T, len(g.Positions))
	indices := g.Indices
	if len(indices) == 0 {
		indices = make([]uint32, len(g.Positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for i := 0; i+2 < len(indices); i += 3 {
		pt1 := g.Positions[indices[i]]
		pt2 := g.Positions[indices[i+1]]
		pt3 := g.Positions[indices[i+2]]

		sub1 := vec3.Sub(&pt3, &pt2)
		sub2 := vec3.Sub(&pt1, &pt2)

		cro := vec3.Cross(&sub1, &sub2)
		if cro.Length() == 0 {
			continue
		}
		normals[indices[i]].Add(&cro)
		normals[indices[i+1]].Add(&cro)
		normals[indices[i+2]].Add(&cro)
	}

	for i := range normals {
		if normals[i].Length() > 0 {
			normals[i].Normalize()
		}
	}
	g.Normals = normals
}

// Skeleton binds a list of joint nodes with their inverse bind matrices.
type Skeleton struct {
	Bones        []*Node
	BoneInverses []mat4.T
}

// NewSkeleton pairs bones with inverses. Missing inverses are identity.
func NewSkeleton(bones []*Node, inverses []mat4.T) *Skeleton {
	s := &Skeleton{Bones: bones, BoneInverses: make([]mat4.T, len(bones))}
	for i := range s.BoneInverses {
		if i < len(inverses) {
			s.BoneInverses[i] = inverses[i]
		} else {
			s.BoneInverses[i] = mat4.Ident
		}
	}
	return s
}

// BoneMatrix returns the joint matrix of bone i from the cached world
// matrices. Missing bones, from joints past the node list, yield the
// identity.
func (s *Skeleton) BoneMatrix(i int) mat4.T {
	if i < 0 || i >= len(s.Bones) || s.Bones[i] == nil {
		return mat4.Ident
	}
	w := s.Bones[i].WorldMatrix()
	return mulMat4(&w, &s.BoneInverses[i])
}

func (s *Skeleton) Dispose() {
	s.Bones = nil
	s.BoneInverses = nil
}

// Mesh is one drawable primitive attached to a node.
type Mesh struct {
	Name     string
	Geometry *Geometry
	Material *Material

	// Skeleton is nil for rigid meshes.
	Skeleton   *Skeleton
	BindMatrix mat4.T

	MorphTargetInfluences []float32
	FrustumCulled         bool

	// Source mesh and primitive index in the glTF document.
	SourceMesh      int
	SourcePrimitive int
}

func (m *Mesh) IsSkinned() bool {
	return m.Skeleton != nil
}

// Bind attaches s to m. The replaced skeleton is released.
func (m *Mesh) Bind(s *Skeleton, bindMatrix mat4.T) {
	if m.Skeleton != nil && m.Skeleton != s {
		m.Skeleton.Dispose()
	}
	m.Skeleton = s
	m.BindMatrix = bindMatrix
}

// SkinnedPosition blends vertex i over its joints using the cached world
// matrices of the skeleton.
func (m *Mesh) SkinnedPosition(i int) vec3.T {
	g := m.Geometry
	p := transformPoint(&m.BindMatrix, &g.Positions[i])
	if !m.IsSkinned() || i >= len(g.Joints) || i >= len(g.Weights) {
		return p
	}
	var out vec3.T
	for c := 0; c < 4; c++ {
		w := g.Weights[i][c]
		if w == 0 {
			continue
		}
		bm := m.Skeleton.BoneMatrix(int(g.Joints[i][c]))
		v := transformPoint(&bm, &p)
		v.Scale(w)
		out.Add(&v)
	}
	return out
}
