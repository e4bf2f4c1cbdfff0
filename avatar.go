package vrm

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/qmuntal/gltf"
)

// Avatar is a loaded VRM model ready to be posed and animated.
type Avatar struct {
	Scene *Node
	Meta  Meta

	Humanoid          *Humanoid
	BlendShapeProxy   *BlendShapeProxy
	FirstPerson       *FirstPerson
	LookAt            *LookAtHead
	AnimationMixer    *AnimationMixer
	SpringBoneManager *SpringBoneManager

	Animations []*AnimationClip
	Materials  []*Material
	Textures   []*Texture

	frame      Frame
	rest       *RestPose
	applicator poseApplicator

	doc      *gltf.Document
	nodes    []*Node
	meshes   map[int][]*Mesh
	logger   *slog.Logger
	disposed bool
}

// Load opens a .vrm (or .glb/.gltf) file and builds the avatar.
func Load(path string, cfg *Config) (*Avatar, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, cfg)
}

// Decode reads a binary or JSON glTF stream and builds the avatar.
// External buffers can not be resolved from a stream.
func Decode(r io.Reader, cfg *Config) (*Avatar, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, err
	}
	return FromDocument(doc, cfg)
}

// FromDocument builds an avatar from a decoded glTF document. Construction
// fails when the document carries no VRM extension, when no human bone
// resolves, or when the blend shape proxy can not be built.
func FromDocument(doc *gltf.Document, cfg *Config) (*Avatar, error) {
	cfg = cfg.withDefaults()
	logger := cfg.Logger

	ext, err := ReadExtension(doc)
	if err != nil {
		return nil, err
	}

	scene, err := loadScene(doc, ext, cfg)
	if err != nil {
		return nil, fmt.Errorf("vrm: load scene: %w", err)
	}

	a := &Avatar{
		Scene:      scene.root,
		Meta:       ext.Meta,
		Animations: scene.clips,
		Materials:  scene.materials,
		Textures:   scene.textures,
		doc:        doc,
		nodes:      scene.nodes,
		meshes:     scene.meshes,
		logger:     logger,
	}

	if cfg.ReduceBones {
		a.Scene.Traverse(func(n *Node) {
			for _, m := range n.Meshes {
				before := 0
				if m.Skeleton != nil {
					before = len(m.Skeleton.Bones)
				}
				if ReduceSkin(m) {
					logger.Debug("skin reduced", "mesh", m.Name, "before", before, "after", len(m.Skeleton.Bones))
				}
			}
		})
	}

	ctx := &BuildContext{
		Extension: ext,
		Nodes:     scene.nodes,
		Meshes:    scene.meshes,
		Logger:    logger,
	}
	parts := cfg.Parts

	a.Humanoid = parts.Humanoid(ctx)
	if a.Humanoid == nil || a.Humanoid.Len() == 0 {
		a.Dispose()
		return nil, ErrNoHumanBones
	}
	if missing := a.Humanoid.MissingRequired(); len(missing) > 0 {
		logger.Warn("required human bones missing", "bones", missing)
	}

	a.BlendShapeProxy = parts.BlendShapeProxy(ctx)
	if a.BlendShapeProxy == nil {
		a.Dispose()
		return nil, ErrNoBlendShape
	}

	a.FirstPerson = parts.FirstPerson(ctx, a.Humanoid)
	a.LookAt = parts.LookAt(ctx, a.Humanoid, a.BlendShapeProxy)
	if a.LookAt != nil {
		a.LookAt.AutoUpdate = cfg.LookAt.AutoUpdate
	}
	a.AnimationMixer = NewAnimationMixer(a.BlendShapeProxy)
	if cfg.SpringBone.Enabled {
		a.SpringBoneManager = parts.SpringBones(ctx)
		if a.SpringBoneManager != nil {
			a.SpringBoneManager.MaxDelta = cfg.SpringBone.MaxDelta
		}
	}

	a.rest = captureRestPose(a.Humanoid)
	a.applicator = poseApplicator{humanoid: a.Humanoid, rest: a.rest}

	a.frame = Frame{Clock: a.AnimationMixer, Weights: a.BlendShapeProxy}
	// typed nil subsystems must not end up in the frame interfaces
	if a.LookAt != nil {
		a.frame.Gaze = a.LookAt
	}
	if a.SpringBoneManager != nil {
		a.frame.Physics = a.SpringBoneManager
	}
	return a, nil
}

// Update advances the avatar by delta seconds: gaze, animation, blend
// shapes, then spring bones.
func (a *Avatar) Update(delta float32) {
	if a.disposed {
		return
	}
	a.frame.Update(delta)
	a.Scene.UpdateWorldMatrix()
}

// ApplyPose sets the human bones named in pose. Positions are offsets
// from the rest pose, rotations replace the local rotation. Names the
// rig does not have are ignored.
func (a *Avatar) ApplyPose(pose Pose) {
	if a.rest == nil {
		return
	}
	a.applicator.apply(pose)
	a.Scene.UpdateWorldMatrix()
}

// ApplyJoint sets a single human bone by handle. It reports whether the
// handle resolved.
func (a *Avatar) ApplyJoint(j Joint, t PoseTransform) bool {
	if a.rest == nil {
		return false
	}
	ok := a.applicator.applyJoint(j, t)
	if ok {
		a.Scene.UpdateWorldMatrix()
	}
	return ok
}

// ResetPose puts every human bone back to its rest transform.
func (a *Avatar) ResetPose() {
	if a.rest == nil {
		return
	}
	a.applicator.reset()
	a.Scene.UpdateWorldMatrix()
}

// Pose reads the current human bone transforms, positions relative to
// the rest pose.
func (a *Avatar) Pose() Pose {
	if a.rest == nil {
		return Pose{}
	}
	return a.applicator.current()
}

// RestPose returns a copy of the transforms captured at load time.
func (a *Avatar) RestPose() Pose {
	return a.rest.Pose()
}

// Nodes returns the scene nodes by glTF node index.
func (a *Avatar) Nodes() []*Node {
	return append([]*Node(nil), a.nodes...)
}

// Meshes returns the runtime meshes built from a glTF mesh.
func (a *Avatar) Meshes(gltfMesh int) []*Mesh {
	return append([]*Mesh(nil), a.meshes[gltfMesh]...)
}

// Dispose releases every resource of the scene and empties it. Calling it
// again does nothing.
func (a *Avatar) Dispose() {
	if a == nil || a.disposed {
		return
	}
	disposeScene(a.Scene)
	for _, t := range a.Textures {
		if t != nil {
			t.Dispose()
		}
	}
	a.disposed = true
}

func (a *Avatar) Disposed() bool {
	return a.disposed
}
