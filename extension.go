package vrm

import (
	"encoding/json"
	"fmt"

	"github.com/qmuntal/gltf"
)

// ExtensionName is the glTF extension key of VRM 0.x assets.
const ExtensionName = "VRM"

// Extension is the VRM 0.x extension block.
// https://github.com/vrm-c/vrm-specification/tree/master/specification/0.0
type Extension struct {
	ExporterVersion    string              `json:"exporterVersion,omitempty"`
	SpecVersion        string              `json:"specVersion,omitempty"`
	Meta               Meta                `json:"meta"`
	Humanoid           HumanoidDesc        `json:"humanoid"`
	FirstPerson        *FirstPersonDesc    `json:"firstPerson,omitempty"`
	BlendShapeMaster   *BlendShapeMaster   `json:"blendShapeMaster,omitempty"`
	SecondaryAnimation *SecondaryAnimation `json:"secondaryAnimation,omitempty"`
	MaterialProperties []*MaterialProperty `json:"materialProperties,omitempty"`
}

type Meta struct {
	Title   string `json:"title"`
	Version string `json:"version"`
	Author  string `json:"author"`
	Contact string `json:"contactInformation"`
	Texture *int   `json:"texture,omitempty"`

	AllowedUserName      string `json:"allowedUserName,omitempty"`
	ViolentUssageName    string `json:"violentUssageName,omitempty"`
	SexualUssageName     string `json:"sexualUssageName,omitempty"`
	CommercialUssageName string `json:"commercialUssageName,omitempty"`
	OtherPermissionURL   string `json:"otherPermissionUrl,omitempty"`

	LicenseName     string `json:"licenseName"`
	OtherLicenseURL string `json:"otherLicenseUrl"`
}

type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

type HumanoidDesc struct {
	HumanBones []*HumanBoneDesc `json:"humanBones"`
}

type HumanBoneDesc struct {
	Bone             string   `json:"bone"`
	Node             int      `json:"node"`
	UseDefaultValues bool     `json:"useDefaultValues"`
	Min              *Vector3 `json:"min,omitempty"`
	Max              *Vector3 `json:"max,omitempty"`
	Center           *Vector3 `json:"center,omitempty"`
	AxisLength       float32  `json:"axisLength,omitempty"`
}

// FirstPersonDesc describes the viewpoint. FirstPersonBone is -1 when the
// document leaves it out, so the head is used.
type FirstPersonDesc struct {
	FirstPersonBone       int               `json:"firstPersonBone"`
	FirstPersonBoneOffset *Vector3          `json:"firstPersonBoneOffset,omitempty"`
	MeshAnnotations       []*MeshAnnotation `json:"meshAnnotations,omitempty"`
	LookAtTypeName        string            `json:"lookAtTypeName,omitempty"`
	LookAtHorizontalInner *DegreeMapDesc    `json:"lookAtHorizontalInner,omitempty"`
	LookAtHorizontalOuter *DegreeMapDesc    `json:"lookAtHorizontalOuter,omitempty"`
	LookAtVerticalDown    *DegreeMapDesc    `json:"lookAtVerticalDown,omitempty"`
	LookAtVerticalUp      *DegreeMapDesc    `json:"lookAtVerticalUp,omitempty"`
}

func (d *FirstPersonDesc) UnmarshalJSON(data []byte) error {
	type plain FirstPersonDesc
	v := plain{FirstPersonBone: -1}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = FirstPersonDesc(v)
	return nil
}

type MeshAnnotation struct {
	Mesh            int    `json:"mesh"`
	FirstPersonFlag string `json:"firstPersonFlag"`
}

type DegreeMapDesc struct {
	Curve  []float32 `json:"curve,omitempty"`
	XRange float32   `json:"xRange"`
	YRange float32   `json:"yRange"`
}

type BlendShapeMaster struct {
	BlendShapeGroups []*BlendShapeGroupDesc `json:"blendShapeGroups"`
}

type BlendShapeGroupDesc struct {
	Name           string                     `json:"name"`
	PresetName     string                     `json:"presetName"`
	Binds          []*BlendShapeBind          `json:"binds,omitempty"`
	MaterialValues []*BlendShapeMaterialValue `json:"materialValues,omitempty"`
	IsBinary       bool                       `json:"isBinary,omitempty"`
}

type BlendShapeBind struct {
	Mesh   int     `json:"mesh"`
	Index  int     `json:"index"`
	Weight float32 `json:"weight"`
}

type BlendShapeMaterialValue struct {
	MaterialName string    `json:"materialName"`
	PropertyName string    `json:"propertyName"`
	TargetValue  []float32 `json:"targetValue"`
}

type SecondaryAnimation struct {
	BoneGroups     []*SpringBoneGroupDesc `json:"boneGroups,omitempty"`
	ColliderGroups []*ColliderGroupDesc   `json:"colliderGroups,omitempty"`
}

type SpringBoneGroupDesc struct {
	Comment        string   `json:"comment,omitempty"`
	Stiffiness     float32  `json:"stiffiness"`
	GravityPower   float32  `json:"gravityPower"`
	GravityDir     *Vector3 `json:"gravityDir,omitempty"`
	DragForce      float32  `json:"dragForce"`
	Center         int      `json:"center"`
	HitRadius      float32  `json:"hitRadius"`
	Bones          []int    `json:"bones"`
	ColliderGroups []int    `json:"colliderGroups,omitempty"`
}

type ColliderGroupDesc struct {
	Node      int             `json:"node"`
	Colliders []*ColliderDesc `json:"colliders"`
}

type ColliderDesc struct {
	Offset Vector3 `json:"offset"`
	Radius float32 `json:"radius"`
}

// ReadExtension extracts the VRM extension of doc. Unregistered glTF
// extensions are kept by the decoder as raw JSON, documents built in
// memory may hold the typed value or a generic map.
func ReadExtension(doc *gltf.Document) (*Extension, error) {
	if doc == nil || doc.Extensions == nil {
		return nil, ErrNotVRM
	}
	raw, ok := doc.Extensions[ExtensionName]
	if !ok || raw == nil {
		return nil, ErrNotVRM
	}
	switch v := raw.(type) {
	case *Extension:
		return v, nil
	case Extension:
		return &v, nil
	}
	var data []byte
	switch v := raw.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotVRM, err)
		}
	}
	ext := &Extension{}
	if err := json.Unmarshal(data, ext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotVRM, err)
	}
	return ext, nil
}
