package vrm

import (
	"github.com/chewxy/math32"
	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
)

// Node is a transform node of the avatar scene graph.
// Joints, skinned meshes and helper nodes all live in the same graph.
type Node struct {
	Name string
	// Index of the node in the source glTF document, -1 for nodes
	// created at runtime.
	Index int

	Position vec3.T
	Rotation quaternion.T
	Scale    vec3.T

	Parent   *Node
	Children []*Node
	Meshes   []*Mesh

	world mat4.T
}

func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Index:    -1,
		Rotation: quaternion.Ident,
		Scale:    vec3.T{1, 1, 1},
		world:    mat4.Ident,
	}
}

// Add attaches child to n, detaching it from its previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.Parent != nil {
		child.Parent.Remove(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Remove detaches child from n. It reports whether child was found.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			copy(n.Children[i:], n.Children[i+1:])
			n.Children[len(n.Children)-1] = nil
			n.Children = n.Children[:len(n.Children)-1]
			child.Parent = nil
			return true
		}
	}
	return false
}

// Traverse calls fn for n and all of its descendants, parents first.
func (n *Node) Traverse(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Traverse(fn)
	}
}

// Find returns the first node below n (n included) with the given name.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Traverse(func(nd *Node) {
		if found == nil && nd.Name == name {
			found = nd
		}
	})
	return found
}

func (n *Node) LocalMatrix() mat4.T {
	return composeMatrix(&n.Position, &n.Rotation, &n.Scale)
}

// UpdateWorldMatrix recomputes the world matrices of n and its
// descendants from the cached world matrix of n's parent.
func (n *Node) UpdateWorldMatrix() {
	local := n.LocalMatrix()
	if n.Parent == nil {
		n.world = local
	} else {
		n.world = mulMat4(&n.Parent.world, &local)
	}
	for _, c := range n.Children {
		c.UpdateWorldMatrix()
	}
}

// UpdateWorldMatrixFromRoot walks up to the root first, so the result does
// not depend on stale parent matrices.
func (n *Node) UpdateWorldMatrixFromRoot() {
	var chain []*Node
	for p := n; p != nil; p = p.Parent {
		chain = append(chain, p)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		nd := chain[i]
		local := nd.LocalMatrix()
		if nd.Parent == nil {
			nd.world = local
		} else {
			nd.world = mulMat4(&nd.Parent.world, &local)
		}
	}
}

func (n *Node) WorldMatrix() mat4.T {
	return n.world
}

func (n *Node) WorldPosition() vec3.T {
	return vec3.T{n.world[3][0], n.world[3][1], n.world[3][2]}
}

// WorldRotation composes the local rotations from the root down to n.
func (n *Node) WorldRotation() quaternion.T {
	q := n.Rotation
	for p := n.Parent; p != nil; p = p.Parent {
		q = quaternion.Mul(&p.Rotation, &q)
	}
	return q
}

// LocalToWorld transforms a point from n's local space using the cached
// world matrix.
func (n *Node) LocalToWorld(p vec3.T) vec3.T {
	return transformPoint(&n.world, &p)
}

// composeMatrix expands the rotation from the quaternion components, so rot
// must be unit length. quaternion.T.RotatedVec3 normalizes its result and
// cannot carry the scale.
func composeMatrix(pos *vec3.T, rot *quaternion.T, scale *vec3.T) mat4.T {
	x, y, z, w := rot[0], rot[1], rot[2], rot[3]
	sx, sy, sz := scale[0], scale[1], scale[2]
	return mat4.T{
		vec4.T{(1 - 2*(y*y+z*z)) * sx, 2 * (x*y + z*w) * sx, 2 * (x*z - y*w) * sx, 0},
		vec4.T{2 * (x*y - z*w) * sy, (1 - 2*(x*x+z*z)) * sy, 2 * (y*z + x*w) * sy, 0},
		vec4.T{2 * (x*z + y*w) * sz, 2 * (y*z - x*w) * sz, (1 - 2*(x*x+y*y)) * sz, 0},
		vec4.T{pos[0], pos[1], pos[2], 1},
	}
}

// mulMat4 returns a*b for column major matrices.
func mulMat4(a, b *mat4.T) mat4.T {
	var m mat4.T
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			m[c][r] = a[0][r]*b[c][0] + a[1][r]*b[c][1] + a[2][r]*b[c][2] + a[3][r]*b[c][3]
		}
	}
	return m
}

func transformPoint(m *mat4.T, p *vec3.T) vec3.T {
	return vec3.T{
		m[0][0]*p[0] + m[1][0]*p[1] + m[2][0]*p[2] + m[3][0],
		m[0][1]*p[0] + m[1][1]*p[1] + m[2][1]*p[2] + m[3][1],
		m[0][2]*p[0] + m[1][2]*p[1] + m[2][2]*p[2] + m[3][2],
	}
}

func matrixFromArray(a [16]float32) mat4.T {
	return mat4.T{
		vec4.T{a[0], a[1], a[2], a[3]},
		vec4.T{a[4], a[5], a[6], a[7]},
		vec4.T{a[8], a[9], a[10], a[11]},
		vec4.T{a[12], a[13], a[14], a[15]},
	}
}

// decomposeMatrix splits a column major TRS matrix. Shear is dropped.
func decomposeMatrix(a [16]float32) (vec3.T, quaternion.T, vec3.T) {
	m := matrixFromArray(a)
	pos := vec3.T{m[3][0], m[3][1], m[3][2]}
	cols := [3]vec3.T{
		{m[0][0], m[0][1], m[0][2]},
		{m[1][0], m[1][1], m[1][2]},
		{m[2][0], m[2][1], m[2][2]},
	}
	scale := vec3.T{cols[0].Length(), cols[1].Length(), cols[2].Length()}
	for i := range cols {
		if scale[i] != 0 {
			cols[i].Scale(1 / scale[i])
		}
	}
	return pos, quatFromBasis(&cols), scale
}

func quatFromBasis(c *[3]vec3.T) quaternion.T {
	m00, m01, m02 := c[0][0], c[1][0], c[2][0]
	m10, m11, m12 := c[0][1], c[1][1], c[2][1]
	m20, m21, m22 := c[0][2], c[1][2], c[2][2]
	var q quaternion.T
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := 0.5 / math32.Sqrt(trace+1)
		q = quaternion.T{(m21 - m12) * s, (m02 - m20) * s, (m10 - m01) * s, 0.25 / s}
	case m00 > m11 && m00 > m22:
		s := 2 * math32.Sqrt(1+m00-m11-m22)
		q = quaternion.T{0.25 * s, (m01 + m10) / s, (m02 + m20) / s, (m21 - m12) / s}
	case m11 > m22:
		s := 2 * math32.Sqrt(1+m11-m00-m22)
		q = quaternion.T{(m01 + m10) / s, 0.25 * s, (m12 + m21) / s, (m02 - m20) / s}
	default:
		s := 2 * math32.Sqrt(1+m22-m00-m11)
		q = quaternion.T{(m02 + m20) / s, (m12 + m21) / s, 0.25 * s, (m10 - m01) / s}
	}
	q.Normalize()
	return q
}

// quatFromUnitVectors returns the shortest rotation taking unit vector from
// onto unit vector to.
func quatFromUnitVectors(from, to *vec3.T) quaternion.T {
	r := vec3.Dot(from, to) + 1
	var q quaternion.T
	if r < 1e-6 {
		if math32.Abs(from[0]) > math32.Abs(from[2]) {
			q = quaternion.T{-from[1], from[0], 0, 0}
		} else {
			q = quaternion.T{0, -from[2], from[1], 0}
		}
	} else {
		c := vec3.Cross(from, to)
		q = quaternion.T{c[0], c[1], c[2], r}
	}
	q.Normalize()
	return q
}

// quatFromEulerYX builds a rotation of yaw around Y followed by pitch
// around X, both in radians.
func quatFromEulerYX(pitch, yaw float32) quaternion.T {
	qy := quaternion.FromAxisAngle(&vec3.UnitY, yaw)
	qx := quaternion.FromAxisAngle(&vec3.UnitX, pitch)
	return quaternion.Mul(&qy, &qx)
}

// quatConjugate inverts a unit quaternion.
func quatConjugate(q quaternion.T) quaternion.T {
	return quaternion.T{-q[0], -q[1], -q[2], q[3]}
}

func normalizeRotation(r [4]float32) quaternion.T {
	if r == [4]float32{} {
		return quaternion.Ident
	}
	return quaternion.T(r)
}

// invertAffine inverts a matrix whose last row is (0, 0, 0, 1). Singular
// matrices yield the identity.
func invertAffine(m *mat4.T) mat4.T {
	a, b, c := m[0][0], m[1][0], m[2][0]
	d, e, f := m[0][1], m[1][1], m[2][1]
	g, h, i := m[0][2], m[1][2], m[2][2]

	A := e*i - f*h
	B := -(d*i - f*g)
	C := d*h - e*g
	det := a*A + b*B + c*C
	if det == 0 {
		return mat4.Ident
	}
	inv := 1 / det
	r := [3][3]float32{
		{A * inv, -(b*i - c*h) * inv, (b*f - c*e) * inv},
		{B * inv, (a*i - c*g) * inv, -(a*f - c*d) * inv},
		{C * inv, -(a*h - b*g) * inv, (a*e - b*d) * inv},
	}
	t := vec3.T{m[3][0], m[3][1], m[3][2]}
	return mat4.T{
		vec4.T{r[0][0], r[1][0], r[2][0], 0},
		vec4.T{r[0][1], r[1][1], r[2][1], 0},
		vec4.T{r[0][2], r[1][2], r[2][2], 0},
		vec4.T{
			-(r[0][0]*t[0] + r[0][1]*t[1] + r[0][2]*t[2]),
			-(r[1][0]*t[0] + r[1][1]*t[1] + r[1][2]*t[2]),
			-(r[2][0]*t[0] + r[2][1]*t[1] + r[2][2]*t[2]),
			1,
		},
	}
}
