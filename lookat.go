package vrm

import (
	"github.com/chewxy/math32"
	"github.com/flywave/go3d/vec3"
)

const (
	rad2deg = 180 / math32.Pi
	deg2rad = math32.Pi / 180
)

// CurveMapper maps an input angle in degrees to an output value over the
// configured ranges. The curve control points are kept for tooling, the
// mapping itself is linear.
type CurveMapper struct {
	Curve  []float32
	XRange float32
	YRange float32
}

func NewCurveMapper(desc *DegreeMapDesc, defaultX, defaultY float32) CurveMapper {
	c := CurveMapper{XRange: defaultX, YRange: defaultY}
	if desc == nil {
		return c
	}
	c.Curve = desc.Curve
	if desc.XRange > 0 {
		c.XRange = desc.XRange
	}
	c.YRange = desc.YRange
	return c
}

func (c CurveMapper) Map(src float32) float32 {
	if c.XRange <= 0 {
		return 0
	}
	clamped := math32.Min(math32.Max(src, 0), c.XRange)
	return c.YRange * clamped / c.XRange
}

// LookAtEuler is the gaze direction in radians: Pitch around X (positive
// looks up) and Yaw around Y (positive looks to the avatar's left).
type LookAtEuler struct {
	Pitch float32
	Yaw   float32
}

// LookAtApplyer turns a gaze direction into eye motion.
type LookAtApplyer interface {
	LookAt(e LookAtEuler)
}

// BoneApplyer rotates the eye bones.
type BoneApplyer struct {
	LeftEye  *Node
	RightEye *Node

	HorizontalInner CurveMapper
	HorizontalOuter CurveMapper
	VerticalDown    CurveMapper
	VerticalUp      CurveMapper
}

func (a *BoneApplyer) LookAt(e LookAtEuler) {
	pitch := e.Pitch * rad2deg
	yaw := e.Yaw * rad2deg

	var eyePitch float32
	if pitch < 0 {
		eyePitch = -a.VerticalDown.Map(-pitch)
	} else {
		eyePitch = a.VerticalUp.Map(pitch)
	}

	var leftYaw, rightYaw float32
	if yaw < 0 {
		leftYaw = -a.HorizontalInner.Map(-yaw)
		rightYaw = -a.HorizontalOuter.Map(-yaw)
	} else {
		leftYaw = a.HorizontalOuter.Map(yaw)
		rightYaw = a.HorizontalInner.Map(yaw)
	}

	if a.LeftEye != nil {
		a.LeftEye.Rotation = quatFromEulerYX(-eyePitch*deg2rad, leftYaw*deg2rad)
	}
	if a.RightEye != nil {
		a.RightEye.Rotation = quatFromEulerYX(-eyePitch*deg2rad, rightYaw*deg2rad)
	}
}

// BlendShapeApplyer drives the look presets of a blend shape proxy.
type BlendShapeApplyer struct {
	Proxy *BlendShapeProxy

	HorizontalOuter CurveMapper
	VerticalDown    CurveMapper
	VerticalUp      CurveMapper
}

func (a *BlendShapeApplyer) LookAt(e LookAtEuler) {
	pitch := e.Pitch * rad2deg
	yaw := e.Yaw * rad2deg

	if pitch < 0 {
		a.Proxy.SetValue(string(PresetLookUp), 0)
		a.Proxy.SetValue(string(PresetLookDown), a.VerticalDown.Map(-pitch))
	} else {
		a.Proxy.SetValue(string(PresetLookDown), 0)
		a.Proxy.SetValue(string(PresetLookUp), a.VerticalUp.Map(pitch))
	}

	if yaw < 0 {
		a.Proxy.SetValue(string(PresetLookLeft), 0)
		a.Proxy.SetValue(string(PresetLookRight), a.HorizontalOuter.Map(-yaw))
	} else {
		a.Proxy.SetValue(string(PresetLookRight), 0)
		a.Proxy.SetValue(string(PresetLookLeft), a.HorizontalOuter.Map(yaw))
	}
}

// NewLookAtApplyer picks the applyer named by lookAtTypeName. Assets
// without a first person block get a bone applyer.
func NewLookAtApplyer(desc *FirstPersonDesc, proxy *BlendShapeProxy, humanoid *Humanoid) LookAtApplyer {
	if desc == nil {
		desc = &FirstPersonDesc{}
	}
	if desc.LookAtTypeName == "BlendShape" {
		return &BlendShapeApplyer{
			Proxy:           proxy,
			HorizontalOuter: NewCurveMapper(desc.LookAtHorizontalOuter, 90, 1),
			VerticalDown:    NewCurveMapper(desc.LookAtVerticalDown, 90, 1),
			VerticalUp:      NewCurveMapper(desc.LookAtVerticalUp, 90, 1),
		}
	}
	return &BoneApplyer{
		LeftEye:         humanoid.Node(LeftEye),
		RightEye:        humanoid.Node(RightEye),
		HorizontalInner: NewCurveMapper(desc.LookAtHorizontalInner, 90, 10),
		HorizontalOuter: NewCurveMapper(desc.LookAtHorizontalOuter, 90, 10),
		VerticalDown:    NewCurveMapper(desc.LookAtVerticalDown, 90, 10),
		VerticalUp:      NewCurveMapper(desc.LookAtVerticalUp, 90, 10),
	}
}

// LookAtHead points the eyes of an avatar at a target. Update has no time
// input, it follows whatever target is set.
type LookAtHead struct {
	Head       *Node
	Applyer    LookAtApplyer
	AutoUpdate bool

	target     *vec3.T
	targetNode *Node
	euler      LookAtEuler
}

func NewLookAtHead(head *Node, applyer LookAtApplyer) *LookAtHead {
	return &LookAtHead{Head: head, Applyer: applyer, AutoUpdate: true}
}

// SetTarget looks at a fixed world position.
func (l *LookAtHead) SetTarget(p vec3.T) {
	l.target = &p
	l.targetNode = nil
}

// SetTargetNode follows a node of the host scene.
func (l *LookAtHead) SetTargetNode(n *Node) {
	l.targetNode = n
	l.target = nil
}

func (l *LookAtHead) ClearTarget() {
	l.target = nil
	l.targetNode = nil
}

func (l *LookAtHead) Euler() LookAtEuler {
	return l.euler
}

// LookAt applies a direction given directly.
func (l *LookAtHead) LookAt(e LookAtEuler) {
	l.euler = e
	if l.Applyer != nil {
		l.Applyer.LookAt(e)
	}
}

func (l *LookAtHead) Update() {
	if !l.AutoUpdate || l.Head == nil {
		return
	}
	var target vec3.T
	switch {
	case l.targetNode != nil:
		l.targetNode.UpdateWorldMatrixFromRoot()
		target = l.targetNode.WorldPosition()
	case l.target != nil:
		target = *l.target
	default:
		return
	}
	l.Head.UpdateWorldMatrixFromRoot()
	l.LookAt(l.calcEuler(target))
}

// calcEuler expresses the target direction in head space. The avatar faces
// -Z in its own space.
func (l *LookAtHead) calcEuler(target vec3.T) LookAtEuler {
	head := l.Head.WorldPosition()
	dir := vec3.Sub(&target, &head)
	if dir.Length() == 0 {
		return LookAtEuler{}
	}
	dir.Normalize()
	inv := quatConjugate(l.Head.WorldRotation())
	// RotatedVec3 returns a unit vector, dir is already normalized
	dir = inv.RotatedVec3(&dir)
	return LookAtEuler{
		Pitch: math32.Atan2(dir[1], math32.Sqrt(dir[0]*dir[0]+dir[2]*dir[2])),
		Yaw:   math32.Atan2(-dir[0], -dir[2]),
	}
}
