package vrm

import (
	"fmt"
	"log/slog"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
)

var identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// sceneLoader turns a glTF document into a scene graph.
type sceneLoader struct {
	doc    *gltf.Document
	cfg    *Config
	logger *slog.Logger

	textures  []*Texture
	materials []*Material
	nodes     []*Node
	// glTF mesh index to the meshes built from it, over all nodes
	meshes     map[int][]*Mesh
	geometries map[[2]int]*Geometry
}

type loadedScene struct {
	root      *Node
	nodes     []*Node
	meshes    map[int][]*Mesh
	materials []*Material
	textures  []*Texture
	clips     []*AnimationClip
}

func loadScene(doc *gltf.Document, ext *Extension, cfg *Config) (*loadedScene, error) {
	l := &sceneLoader{
		doc:        doc,
		cfg:        cfg,
		logger:     cfg.Logger,
		meshes:     map[int][]*Mesh{},
		geometries: map[[2]int]*Geometry{},
	}
	l.loadTextures()
	l.loadMaterials()
	if err := cfg.MaterialConverter.ConvertMaterials(ext, l.materials, l.textures); err != nil {
		return nil, fmt.Errorf("convert materials: %w", err)
	}
	l.loadNodes()
	if err := l.loadMeshes(); err != nil {
		return nil, err
	}
	root := l.buildRoot()
	root.UpdateWorldMatrix()

	clips, err := loadAnimations(doc, l.nodes)
	if err != nil {
		return nil, err
	}
	return &loadedScene{
		root:      root,
		nodes:     l.nodes,
		meshes:    l.meshes,
		materials: l.materials,
		textures:  l.textures,
		clips:     clips,
	}, nil
}

func (l *sceneLoader) loadTextures() {
	l.textures = make([]*Texture, len(l.doc.Textures))
	for i, t := range l.doc.Textures {
		if t == nil || t.Source == nil || int(*t.Source) >= len(l.doc.Images) {
			continue
		}
		img := l.doc.Images[*t.Source]
		data, err := l.imageData(img)
		if err != nil || data == nil {
			l.logger.Debug("texture skipped", "texture", i, "error", err)
			continue
		}
		tex, err := NewTexture(int32(i), img.Name, img.MimeType, data, l.cfg.Textures.Decode)
		if err != nil {
			l.logger.Debug("texture kept encoded", "texture", i, "error", err)
			tex, _ = NewTexture(int32(i), img.Name, img.MimeType, data, false)
		}
		l.textures[i] = tex
	}
}

func (l *sceneLoader) imageData(img *gltf.Image) ([]byte, error) {
	if img.BufferView != nil {
		if int(*img.BufferView) >= len(l.doc.BufferViews) {
			return nil, fmt.Errorf("%w: image buffer view out of range", ErrAccessor)
		}
		view := l.doc.BufferViews[*img.BufferView]
		if int(view.Buffer) >= len(l.doc.Buffers) {
			return nil, fmt.Errorf("%w: image buffer out of range", ErrAccessor)
		}
		buf := l.doc.Buffers[view.Buffer].Data
		end := int(view.ByteOffset + view.ByteLength)
		if end > len(buf) {
			return nil, fmt.Errorf("%w: image exceeds its buffer", ErrAccessor)
		}
		return buf[view.ByteOffset:end], nil
	}
	if img.IsEmbeddedResource() {
		return img.MarshalData()
	}
	return nil, nil
}

func (l *sceneLoader) loadMaterials() {
	l.materials = make([]*Material, len(l.doc.Materials))
	for i, mt := range l.doc.Materials {
		if mt == nil {
			mt = &gltf.Material{}
		}
		l.materials[i] = newMaterial(i, mt, l.textures)
	}
}

func (l *sceneLoader) loadNodes() {
	l.nodes = make([]*Node, len(l.doc.Nodes))
	for i, n := range l.doc.Nodes {
		node := NewNode(n.Name)
		node.Index = i
		if n.Matrix != [16]float32{} && n.Matrix != identityMatrix {
			node.Position, node.Rotation, node.Scale = decomposeMatrix(n.Matrix)
		} else {
			node.Position = vec3.T(n.Translation)
			node.Rotation = normalizeRotation(n.Rotation)
			if n.Scale != [3]float32{} {
				node.Scale = vec3.T(n.Scale)
			}
		}
		l.nodes[i] = node
	}
	for i, n := range l.doc.Nodes {
		for _, c := range n.Children {
			if int(c) < len(l.nodes) && int(c) != i {
				l.nodes[i].Add(l.nodes[c])
			}
		}
	}
}

// buildRoot attaches the nodes of the default scene under a new root.
// Without scenes every parentless node is attached.
func (l *sceneLoader) buildRoot() *Node {
	root := NewNode("VRM")
	var roots []uint32
	switch {
	case l.doc.Scene != nil && int(*l.doc.Scene) < len(l.doc.Scenes):
		roots = l.doc.Scenes[*l.doc.Scene].Nodes
	case len(l.doc.Scenes) > 0:
		roots = l.doc.Scenes[0].Nodes
	default:
		for i, n := range l.nodes {
			if n.Parent == nil {
				roots = append(roots, uint32(i))
			}
		}
	}
	for _, r := range roots {
		if int(r) < len(l.nodes) && l.nodes[r].Parent == nil {
			root.Add(l.nodes[r])
		}
	}
	return root
}

func (l *sceneLoader) loadMeshes() error {
	for ni, n := range l.doc.Nodes {
		if n.Mesh == nil {
			continue
		}
		mi := int(*n.Mesh)
		if mi >= len(l.doc.Meshes) {
			return fmt.Errorf("node %d: mesh %d out of range", ni, mi)
		}
		gm := l.doc.Meshes[mi]
		for pi, p := range gm.Primitives {
			geometry, err := l.geometry(mi, pi, p)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			mesh := &Mesh{
				Name:            gm.Name,
				Geometry:        geometry,
				BindMatrix:      mat4.Ident,
				FrustumCulled:   l.cfg.FrustumCulled,
				SourceMesh:      mi,
				SourcePrimitive: pi,
			}
			if p.Material != nil && int(*p.Material) < len(l.materials) {
				mesh.Material = l.materials[*p.Material]
			}
			mesh.MorphTargetInfluences = make([]float32, len(geometry.MorphTargets))
			weights := gm.Weights
			if len(n.Weights) > 0 {
				weights = n.Weights
			}
			copy(mesh.MorphTargetInfluences, weights)

			if n.Skin != nil {
				skeleton, err := l.skeleton(*n.Skin)
				if err != nil {
					return fmt.Errorf("node %d: %w", ni, err)
				}
				mesh.Bind(skeleton, mat4.Ident)
				mesh.FrustumCulled = false
			}
			l.nodes[ni].Meshes = append(l.nodes[ni].Meshes, mesh)
			l.meshes[mi] = append(l.meshes[mi], mesh)
		}
	}
	return nil
}

// geometry is shared by every node instancing the same primitive.
func (l *sceneLoader) geometry(mi, pi int, p *gltf.Primitive) (*Geometry, error) {
	key := [2]int{mi, pi}
	if g, ok := l.geometries[key]; ok {
		return g, nil
	}
	g := &Geometry{}
	var err error
	if idx, ok := p.Attributes["POSITION"]; ok {
		if g.Positions, err = readVec3s(l.doc, idx); err != nil {
			return nil, err
		}
	}
	if idx, ok := p.Attributes["NORMAL"]; ok {
		if g.Normals, err = readVec3s(l.doc, idx); err != nil {
			return nil, err
		}
	}
	if idx, ok := p.Attributes["TEXCOORD_0"]; ok {
		fs, comps, err := readFloats(l.doc, idx)
		if err != nil {
			return nil, err
		}
		if comps == 2 {
			g.TexCoords = make([]vec2.T, len(fs)/2)
			for i := range g.TexCoords {
				g.TexCoords[i] = vec2.T{fs[i*2], fs[i*2+1]}
			}
		}
	}
	if idx, ok := p.Attributes["JOINTS_0"]; ok {
		js, comps, err := readUints(l.doc, idx)
		if err != nil {
			return nil, err
		}
		if comps != 4 {
			return nil, fmt.Errorf("%w: JOINTS_0 is not VEC4", ErrAccessor)
		}
		g.Joints = make([][4]uint16, len(js)/4)
		for i := range g.Joints {
			for c := 0; c < 4; c++ {
				g.Joints[i][c] = uint16(js[i*4+c])
			}
		}
	}
	if idx, ok := p.Attributes["WEIGHTS_0"]; ok {
		ws, comps, err := readFloats(l.doc, idx)
		if err != nil {
			return nil, err
		}
		if comps != 4 {
			return nil, fmt.Errorf("%w: WEIGHTS_0 is not VEC4", ErrAccessor)
		}
		g.Weights = make([][4]float32, len(ws)/4)
		for i := range g.Weights {
			g.Weights[i] = [4]float32{ws[i*4], ws[i*4+1], ws[i*4+2], ws[i*4+3]}
		}
	}
	if p.Indices != nil {
		if g.Indices, _, err = readUints(l.doc, *p.Indices); err != nil {
			return nil, err
		}
	}
	for ti, target := range p.Targets {
		mt := &MorphTarget{Name: fmt.Sprintf("morph_%d", ti)}
		if idx, ok := target["POSITION"]; ok {
			if mt.Positions, err = readVec3s(l.doc, idx); err != nil {
				return nil, err
			}
		}
		if idx, ok := target["NORMAL"]; ok {
			if mt.Normals, err = readVec3s(l.doc, idx); err != nil {
				return nil, err
			}
		}
		g.MorphTargets = append(g.MorphTargets, mt)
	}
	if len(g.Normals) == 0 && len(g.Positions) > 0 {
		g.ComputeNormals()
	}
	l.geometries[key] = g
	return g, nil
}

// skeleton builds a new skeleton for every mesh, so rebinding one mesh
// never releases the skeleton of another.
func (l *sceneLoader) skeleton(si uint32) (*Skeleton, error) {
	if int(si) >= len(l.doc.Skins) {
		return nil, fmt.Errorf("skin %d out of range", si)
	}
	skin := l.doc.Skins[si]
	bones := make([]*Node, len(skin.Joints))
	for i, j := range skin.Joints {
		if int(j) < len(l.nodes) {
			bones[i] = l.nodes[j]
		}
	}
	var inverses []mat4.T
	if skin.InverseBindMatrices != nil {
		fs, comps, err := readFloats(l.doc, *skin.InverseBindMatrices)
		if err != nil {
			return nil, err
		}
		if comps != 16 {
			return nil, fmt.Errorf("%w: inverse bind matrices are not MAT4", ErrAccessor)
		}
		inverses = make([]mat4.T, len(fs)/16)
		for i := range inverses {
			var a [16]float32
			copy(a[:], fs[i*16:(i+1)*16])
			inverses[i] = matrixFromArray(a)
		}
	}
	return NewSkeleton(bones, inverses), nil
}
