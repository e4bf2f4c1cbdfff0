package vrm

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/require"
)

// Fixture node indices.
const (
	nodeArmature = iota
	nodeHips
	nodeSpine
	nodeChest
	nodeNeck
	nodeHead
	nodeLeftEye
	nodeRightEye
	nodeHair
	nodeHairTip
	nodeBody
	nodeFace
)

// Fixture mesh indices.
const (
	meshBody = iota
	meshFace
)

type fixtureNode struct {
	name     string
	pos      [3]float32
	children []uint32
}

var fixtureNodes = []fixtureNode{
	nodeArmature: {"Armature", [3]float32{0, 0, 0}, []uint32{nodeHips}},
	nodeHips:     {"Hips", [3]float32{0, 1, 0}, []uint32{nodeSpine}},
	nodeSpine:    {"Spine", [3]float32{0, 0.1, 0}, []uint32{nodeChest}},
	nodeChest:    {"Chest", [3]float32{0, 0.1, 0}, []uint32{nodeNeck}},
	nodeNeck:     {"Neck", [3]float32{0, 0.2, 0}, []uint32{nodeHead}},
	nodeHead:     {"Head", [3]float32{0, 0.1, 0}, []uint32{nodeLeftEye, nodeRightEye, nodeHair}},
	nodeLeftEye:  {"LeftEye", [3]float32{0.03, 0.05, -0.05}, nil},
	nodeRightEye: {"RightEye", [3]float32{-0.03, 0.05, -0.05}, nil},
	nodeHair:     {"Hair", [3]float32{0, 0.1, 0.05}, []uint32{nodeHairTip}},
	nodeHairTip:  {"HairTip", [3]float32{0, -0.1, 0}, nil},
	nodeBody:     {"Body", [3]float32{0, 0, 0}, nil},
	nodeFace:     {"Face", [3]float32{0, 0, 0}, nil},
}

// world position of every fixture node in its rest pose
func fixtureWorld(i int) vec3.T {
	var p vec3.T
	for {
		n := fixtureNodes[i]
		p = vec3.T{p[0] + n.pos[0], p[1] + n.pos[1], p[2] + n.pos[2]}
		parent := -1
		for pi, pn := range fixtureNodes {
			for _, c := range pn.children {
				if int(c) == i {
					parent = pi
				}
			}
		}
		if parent < 0 {
			return p
		}
		i = parent
	}
}

// fixtureJoints references skin joints 2, 5, 0 and 9 in first seen order.
var fixtureJoints = [][4]uint16{
	{2, 2, 2, 2},
	{5, 2, 0, 0},
	{9, 5, 2, 0},
}

var fixtureWeights = [][4]float32{
	{1, 0, 0, 0},
	{0.5, 0.5, 0, 0},
	{0.25, 0.25, 0.5, 0},
}

func fixtureExtension() *Extension {
	return &Extension{
		ExporterVersion: "go-vrm-test",
		SpecVersion:     "0.0",
		Meta: Meta{
			Title:       "Fixture",
			Version:     "1.0",
			Author:      "go-vrm",
			LicenseName: "CC0",
		},
		Humanoid: HumanoidDesc{HumanBones: []*HumanBoneDesc{
			{Bone: "hips", Node: nodeHips},
			{Bone: "spine", Node: nodeSpine},
			{Bone: "chest", Node: nodeChest},
			{Bone: "neck", Node: nodeNeck},
			{Bone: "head", Node: nodeHead},
			{Bone: "leftEye", Node: nodeLeftEye},
			{Bone: "rightEye", Node: nodeRightEye},
			{Bone: "tail", Node: nodeHair},
			{Bone: "jaw", Node: 99},
		}},
		FirstPerson: &FirstPersonDesc{
			FirstPersonBone:       nodeHead,
			FirstPersonBoneOffset: &Vector3{X: 0, Y: 0.06, Z: 0.01},
			MeshAnnotations: []*MeshAnnotation{
				{Mesh: meshBody, FirstPersonFlag: "ThirdPersonOnly"},
				{Mesh: meshFace, FirstPersonFlag: "bogus"},
			},
			LookAtTypeName:        "Bone",
			LookAtHorizontalInner: &DegreeMapDesc{XRange: 90, YRange: 8},
			LookAtHorizontalOuter: &DegreeMapDesc{XRange: 90, YRange: 12},
			LookAtVerticalDown:    &DegreeMapDesc{XRange: 90, YRange: 10},
			LookAtVerticalUp:      &DegreeMapDesc{XRange: 90, YRange: 10},
		},
		BlendShapeMaster: &BlendShapeMaster{BlendShapeGroups: []*BlendShapeGroupDesc{
			{Name: "Blink", PresetName: "blink", Binds: []*BlendShapeBind{{Mesh: meshFace, Index: 0, Weight: 100}}},
			{Name: "A", PresetName: "a", Binds: []*BlendShapeBind{{Mesh: meshFace, Index: 1, Weight: 50}}},
			{Name: "Wink", PresetName: "unknown", IsBinary: true, Binds: []*BlendShapeBind{{Mesh: meshFace, Index: 0, Weight: 100}}},
			{Name: "Ghost", PresetName: "unknown", Binds: []*BlendShapeBind{{Mesh: 42, Index: 0, Weight: 100}}},
		}},
		SecondaryAnimation: &SecondaryAnimation{
			BoneGroups: []*SpringBoneGroupDesc{{
				Stiffiness:     1,
				GravityPower:   0,
				DragForce:      0.4,
				HitRadius:      0.02,
				Center:         -1,
				Bones:          []int{nodeHair, 1234},
				ColliderGroups: []int{0},
			}},
			ColliderGroups: []*ColliderGroupDesc{{
				Node:      nodeHead,
				Colliders: []*ColliderDesc{{Offset: Vector3{X: 0, Y: 0, Z: -0.2}, Radius: 0.05}},
			}},
		},
		MaterialProperties: []*MaterialProperty{{
			Name:              "Skin",
			Shader:            "VRM/MToon",
			RenderQueue:       2000,
			FloatProperties:   map[string]float32{"_Cutoff": 0.5},
			VectorProperties:  map[string][]float32{"_Color": {1, 0.5, 0.5, 1}},
			TextureProperties: map[string]int{"_ShadeTexture": 0},
			KeywordMap:        map[string]bool{"_NORMALMAP": false},
			TagMap:            map[string]string{"RenderType": "Opaque"},
		}},
	}
}

func fixturePNG(t testing.TB) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFixtureAccessor(t testing.TB, doc *gltf.Document, target gltf.Target, data interface{}) uint32 {
	idx, err := writeAccessor(doc, target, data)
	require.NoError(t, err)
	return idx
}

// newFixtureDocument builds a small VRM document: a seven bone spine and
// head rig, a skinned body referencing four of the ten skin joints, a face
// with two morph targets, a hair spring bone chain, one textured material
// and a two channel animation.
func newFixtureDocument(t testing.TB) *gltf.Document {
	doc := &gltf.Document{}
	doc.Asset.Version = GLTFVersion
	doc.Asset.Generator = "go-vrm-test"

	for _, fn := range fixtureNodes {
		n := &gltf.Node{
			Name:        fn.name,
			Translation: fn.pos,
			Rotation:    [4]float32{0, 0, 0, 1},
			Scale:       [3]float32{1, 1, 1},
			Children:    fn.children,
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	doc.Scenes = []*gltf.Scene{{Name: "Scene", Nodes: []uint32{nodeArmature, nodeBody, nodeFace}}}
	doc.Scene = gltf.Index(0)

	// image and material
	pngData := fixturePNG(t)
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	doc.Buffers[0].Data = append(doc.Buffers[0].Data, pngData...)
	doc.Buffers[0].ByteLength = uint32(len(doc.Buffers[0].Data))
	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: 0,
		ByteLength: uint32(len(pngData)),
	})
	doc.Images = []*gltf.Image{{Name: "skin", MimeType: "image/png", BufferView: gltf.Index(0)}}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(0)}}
	doc.Materials = []*gltf.Material{{
		Name:        "Skin",
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
	}}

	// skinned body
	bodyPositions := []vec3.T{{0, 1.2, 0}, {0.1, 1.5, 0}, {0, 1.55, 0.05}}
	body := &gltf.Primitive{
		Attributes: map[string]uint32{
			"POSITION":  writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, bodyPositions),
			"JOINTS_0":  writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, fixtureJoints),
			"WEIGHTS_0": writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, fixtureWeights),
		},
		Indices:  gltf.Index(writeFixtureAccessor(t, doc, gltf.TargetElementArrayBuffer, []uint32{0, 1, 2})),
		Material: gltf.Index(0),
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: "Body", Primitives: []*gltf.Primitive{body}})

	joints := make([]uint32, 10)
	inverses := make([][16]float32, 10)
	for i := range joints {
		joints[i] = uint32(i)
		w := fixtureWorld(i)
		inverses[i] = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, -w[0], -w[1], -w[2], 1}
	}
	doc.Skins = []*gltf.Skin{{
		Name:                "Armature",
		Joints:              joints,
		InverseBindMatrices: gltf.Index(writeFixtureAccessor(t, doc, gltf.TargetNone, inverses)),
	}}
	doc.Nodes[nodeBody].Mesh = gltf.Index(meshBody)
	doc.Nodes[nodeBody].Skin = gltf.Index(0)

	// face with two morph targets
	facePositions := []vec3.T{{0, 1.5, -0.1}, {0.05, 1.5, -0.1}, {0, 1.55, -0.1}}
	face := &gltf.Primitive{
		Attributes: map[string]uint32{
			"POSITION":   writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, facePositions),
			"TEXCOORD_0": writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, [][2]float32{{0, 0}, {1, 0}, {0, 1}}),
		},
		Material: gltf.Index(0),
	}
	face.Targets = append(face.Targets,
		map[string]uint32{"POSITION": writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, []vec3.T{{0, -0.01, 0}, {0, -0.01, 0}, {0, 0, 0}})},
		map[string]uint32{"POSITION": writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, []vec3.T{{0, 0, 0}, {0, 0, 0}, {0, -0.02, 0}})},
	)
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: "Face", Primitives: []*gltf.Primitive{face}, Weights: []float32{0, 0}})
	doc.Nodes[nodeFace].Mesh = gltf.Index(meshFace)

	// animation: hair swings, head bobs in steps
	times := writeFixtureAccessor(t, doc, gltf.TargetNone, []float32{0, 1})
	hairRot := writeFixtureAccessor(t, doc, gltf.TargetNone, [][4]float32{{0, 0, 0, 1}, {0.7071068, 0, 0, 0.7071068}})
	headPos := writeFixtureAccessor(t, doc, gltf.TargetNone, [][3]float32{{0, 0.1, 0}, {0, 0.2, 0}})
	doc.Animations = []*gltf.Animation{{
		Name: "wave",
		Samplers: []*gltf.AnimationSampler{
			{Input: gltf.Index(times), Output: gltf.Index(hairRot), Interpolation: gltf.InterpolationLinear},
			{Input: gltf.Index(times), Output: gltf.Index(headPos), Interpolation: gltf.InterpolationStep},
		},
		Channels: []*gltf.Channel{
			{Sampler: gltf.Index(0), Target: gltf.ChannelTarget{Node: gltf.Index(nodeHair), Path: gltf.TRSRotation}},
			{Sampler: gltf.Index(1), Target: gltf.ChannelTarget{Node: gltf.Index(nodeHead), Path: gltf.TRSTranslation}},
		},
	}}

	doc.ExtensionsUsed = []string{ExtensionName}
	doc.Extensions = gltf.Extensions{ExtensionName: fixtureExtension()}
	return doc
}

// newFixtureAvatar loads the fixture document with cfg.
func newFixtureAvatar(t testing.TB, cfg *Config) *Avatar {
	a, err := FromDocument(newFixtureDocument(t), cfg)
	require.NoError(t, err)
	return a
}
