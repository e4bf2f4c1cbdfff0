package vrm

import (
	"log/slog"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
)

// tail length of a bone without children, along its own position
const leafTailLength = 0.07

// SphereCollider is a sphere attached to a node, offset in node space.
type SphereCollider struct {
	Offset vec3.T
	Radius float32

	world vec3.T
}

// ColliderGroup is a set of colliders moving with one node.
type ColliderGroup struct {
	Node      *Node
	Colliders []*SphereCollider
}

func (g *ColliderGroup) update() {
	g.Node.UpdateWorldMatrixFromRoot()
	for _, c := range g.Colliders {
		c.world = g.Node.LocalToWorld(c.Offset)
	}
}

// SpringBoneSettings are the per group parameters of the integrator.
type SpringBoneSettings struct {
	Stiffness    float32
	GravityPower float32
	GravityDir   vec3.T
	DragForce    float32
	HitRadius    float32
}

// SpringBone swings one node with verlet integration of its tail.
type SpringBone struct {
	Node     *Node
	Settings SpringBoneSettings

	colliderGroups []*ColliderGroup

	initialLocalPosition vec3.T
	initialLocalRotation quaternion.T
	initialLocalScale    vec3.T
	localTail            vec3.T
	boneAxis             vec3.T
	length               float32

	currentTail vec3.T
	prevTail    vec3.T
}

// NewSpringBone snapshots node's current local transform as the initial
// state.
func NewSpringBone(node *Node, settings SpringBoneSettings, colliders []*ColliderGroup) *SpringBone {
	b := &SpringBone{
		Node:                 node,
		Settings:             settings,
		colliderGroups:       colliders,
		initialLocalPosition: node.Position,
		initialLocalRotation: node.Rotation,
		initialLocalScale:    node.Scale,
	}
	if len(node.Children) > 0 {
		b.localTail = node.Children[0].Position
	} else {
		b.localTail = node.Position
		if b.localTail.Length() > 0 {
			b.localTail.Normalize()
		}
		b.localTail.Scale(leafTailLength)
	}
	b.boneAxis = b.localTail
	if b.boneAxis.Length() > 0 {
		b.boneAxis.Normalize()
	}
	b.Reset()
	return b
}

// Reset puts the bone back to its initial rotation and restarts the tail.
func (b *SpringBone) Reset() {
	b.Node.Rotation = b.initialLocalRotation
	b.Node.UpdateWorldMatrixFromRoot()
	head := b.Node.WorldPosition()
	b.currentTail = b.Node.LocalToWorld(b.localTail)
	b.prevTail = b.currentTail
	d := vec3.Sub(&b.currentTail, &head)
	b.length = d.Length()
}

func (b *SpringBone) parentWorld() mat4.T {
	if b.Node.Parent == nil {
		return mat4.Ident
	}
	return b.Node.Parent.WorldMatrix()
}

func (b *SpringBone) parentWorldRotation() quaternion.T {
	if b.Node.Parent == nil {
		return quaternion.Ident
	}
	return b.Node.Parent.WorldRotation()
}

// update integrates one step. It expects the world matrices of the bone
// and its colliders to be current.
func (b *SpringBone) update(delta float32) {
	if delta <= 0 || b.length == 0 {
		return
	}
	head := b.Node.WorldPosition()
	s := b.Settings

	// inertia
	next := vec3.Sub(&b.currentTail, &b.prevTail)
	next.Scale(1 - s.DragForce)
	next.Add(&b.currentTail)

	// stiffness pulls the tail back to the rest direction
	parentRot := b.parentWorldRotation()
	rest := quaternion.Mul(&parentRot, &b.initialLocalRotation)
	// boneAxis is unit length; RotatedVec3 drops any other length
	stiff := rest.RotatedVec3(&b.boneAxis)
	stiff.Scale(s.Stiffness * delta)
	next.Add(&stiff)

	gravity := s.GravityDir
	gravity.Scale(s.GravityPower * delta)
	next.Add(&gravity)

	next = b.constrain(&head, &next)
	next = b.collide(&head, next)

	b.prevTail = b.currentTail
	b.currentTail = next

	// rotate the bone toward the new tail in its initial local frame
	parent := b.parentWorld()
	initial := composeMatrix(&b.initialLocalPosition, &b.initialLocalRotation, &b.initialLocalScale)
	frame := mulMat4(&parent, &initial)
	inv := invertAffine(&frame)
	to := transformPoint(&inv, &next)
	if to.Length() == 0 {
		return
	}
	to.Normalize()
	swing := quatFromUnitVectors(&b.boneAxis, &to)
	b.Node.Rotation = quaternion.Mul(&b.initialLocalRotation, &swing)
	b.Node.UpdateWorldMatrix()
}

// constrain keeps the tail at bone length from head.
func (b *SpringBone) constrain(head, tail *vec3.T) vec3.T {
	dir := vec3.Sub(tail, head)
	if dir.Length() == 0 {
		return *tail
	}
	dir.Normalize()
	dir.Scale(b.length)
	return vec3.Add(head, &dir)
}

func (b *SpringBone) collide(head *vec3.T, tail vec3.T) vec3.T {
	for _, g := range b.colliderGroups {
		for _, c := range g.Colliders {
			r := b.Settings.HitRadius + c.Radius
			d := vec3.Sub(&tail, &c.world)
			if d.Length() > r {
				continue
			}
			if d.Length() > 0 {
				d.Normalize()
			}
			d.Scale(r)
			pushed := vec3.Add(&c.world, &d)
			tail = b.constrain(head, &pushed)
		}
	}
	return tail
}

// SpringBoneManager owns the spring bones and collider groups of an avatar.
type SpringBoneManager struct {
	Bones          []*SpringBone
	ColliderGroups []*ColliderGroup
	// MaxDelta caps the step passed to the integrator, 0 disables the cap.
	MaxDelta float32
}

// LateUpdate integrates every bone. It runs after animation so the bones
// swing around the animated pose.
func (m *SpringBoneManager) LateUpdate(delta float32) {
	if delta <= 0 {
		return
	}
	if m.MaxDelta > 0 && delta > m.MaxDelta {
		delta = m.MaxDelta
	}
	for _, g := range m.ColliderGroups {
		g.update()
	}
	for _, b := range m.Bones {
		b.Node.UpdateWorldMatrixFromRoot()
		b.update(delta)
	}
}

// Reset restores the initial rotation of every bone.
func (m *SpringBoneManager) Reset() {
	for _, b := range m.Bones {
		b.Reset()
	}
}

// LoadSpringBoneManager builds the bones of every secondary animation
// group. Each root bone of a group brings all of its descendants.
func LoadSpringBoneManager(desc *SecondaryAnimation, nodes []*Node, logger *slog.Logger) *SpringBoneManager {
	m := &SpringBoneManager{}
	if desc == nil {
		return m
	}
	for gi, cg := range desc.ColliderGroups {
		if cg == nil || cg.Node < 0 || cg.Node >= len(nodes) || nodes[cg.Node] == nil {
			logger.Debug("collider group skipped", "group", gi)
			m.ColliderGroups = append(m.ColliderGroups, nil)
			continue
		}
		g := &ColliderGroup{Node: nodes[cg.Node]}
		for _, c := range cg.Colliders {
			if c == nil {
				continue
			}
			g.Colliders = append(g.Colliders, &SphereCollider{
				// offsets are stored in the Unity handedness
				Offset: vec3.T{c.Offset.X, c.Offset.Y, -c.Offset.Z},
				Radius: c.Radius,
			})
		}
		m.ColliderGroups = append(m.ColliderGroups, g)
	}

	for gi, bg := range desc.BoneGroups {
		if bg == nil {
			continue
		}
		settings := SpringBoneSettings{
			Stiffness:    bg.Stiffiness,
			GravityPower: bg.GravityPower,
			GravityDir:   vec3.T{0, -1, 0},
			DragForce:    bg.DragForce,
			HitRadius:    bg.HitRadius,
		}
		if bg.GravityDir != nil {
			settings.GravityDir = vec3.T{bg.GravityDir.X, bg.GravityDir.Y, bg.GravityDir.Z}
		}
		var colliders []*ColliderGroup
		for _, ci := range bg.ColliderGroups {
			if ci >= 0 && ci < len(m.ColliderGroups) && m.ColliderGroups[ci] != nil {
				colliders = append(colliders, m.ColliderGroups[ci])
			}
		}
		for _, bi := range bg.Bones {
			if bi < 0 || bi >= len(nodes) || nodes[bi] == nil {
				logger.Debug("spring bone skipped", "group", gi, "node", bi)
				continue
			}
			nodes[bi].Traverse(func(n *Node) {
				m.Bones = append(m.Bones, NewSpringBone(n, settings, colliders))
			})
		}
	}
	m.ColliderGroups = compactColliderGroups(m.ColliderGroups)
	return m
}

func compactColliderGroups(groups []*ColliderGroup) []*ColliderGroup {
	out := groups[:0]
	for _, g := range groups {
		if g != nil {
			out = append(out, g)
		}
	}
	return out
}
