package vrm

import (
	"github.com/qmuntal/gltf"
)

// MaterialProperty is the per material record of the VRM extension
// (MToon or fallback shader parameters).
type MaterialProperty struct {
	Name              string               `json:"name"`
	Shader            string               `json:"shader"`
	RenderQueue       int                  `json:"renderQueue"`
	FloatProperties   map[string]float32   `json:"floatProperties"`
	VectorProperties  map[string][]float32 `json:"vectorProperties"`
	TextureProperties map[string]int       `json:"textureProperties"`
	KeywordMap        map[string]bool      `json:"keywordMap"`
	TagMap            map[string]string    `json:"tagMap"`
}

// Material is the runtime material of a mesh.
type Material struct {
	Name        string     `json:"name"`
	Index       int        `json:"index"`
	BaseColor   [4]float32 `json:"baseColor"`
	DoubleSided bool       `json:"doubleSided"`

	// Textures referenced by the material, keyed by property name.
	Textures map[string]*Texture `json:"-"`

	// Shader parameters taken from the VRM material properties.
	Shader      string               `json:"shader,omitempty"`
	RenderQueue int                  `json:"renderQueue,omitempty"`
	Floats      map[string]float32   `json:"floats,omitempty"`
	Vectors     map[string][]float32 `json:"vectors,omitempty"`
	Keywords    map[string]bool      `json:"keywords,omitempty"`
	Tags        map[string]string    `json:"tags,omitempty"`

	disposed bool
}

func newMaterial(index int, mt *gltf.Material, textures []*Texture) *Material {
	m := &Material{
		Name:      mt.Name,
		Index:     index,
		BaseColor: [4]float32{1, 1, 1, 1},
		Textures:  map[string]*Texture{},
	}
	m.DoubleSided = mt.DoubleSided
	if pbr := mt.PBRMetallicRoughness; pbr != nil && pbr.BaseColorTexture != nil {
		if tex := textureAt(textures, int(pbr.BaseColorTexture.Index)); tex != nil {
			m.Textures["_MainTex"] = tex
		}
	}
	if mt.EmissiveTexture != nil {
		if tex := textureAt(textures, int(mt.EmissiveTexture.Index)); tex != nil {
			m.Textures["_EmissionMap"] = tex
		}
	}
	return m
}

func textureAt(textures []*Texture, i int) *Texture {
	if i < 0 || i >= len(textures) {
		return nil
	}
	return textures[i]
}

// Dispose releases the material and every texture it references.
func (m *Material) Dispose() {
	if m.disposed {
		return
	}
	for _, tex := range m.Textures {
		if tex != nil {
			tex.Dispose()
		}
	}
	m.disposed = true
}

func (m *Material) Disposed() bool {
	return m.disposed
}

// MaterialConverter turns loaded glTF materials into the shading model
// used by the host.
type MaterialConverter interface {
	ConvertMaterials(ext *Extension, materials []*Material, textures []*Texture) error
}

// MToonConverter copies the VRM material properties onto the materials
// with the same name.
type MToonConverter struct{}

func (MToonConverter) ConvertMaterials(ext *Extension, materials []*Material, textures []*Texture) error {
	props := map[string]*MaterialProperty{}
	for _, p := range ext.MaterialProperties {
		if p != nil {
			props[p.Name] = p
		}
	}
	for _, m := range materials {
		p, ok := props[m.Name]
		if !ok {
			continue
		}
		m.Shader = p.Shader
		m.RenderQueue = p.RenderQueue
		m.Floats = p.FloatProperties
		m.Vectors = p.VectorProperties
		m.Keywords = p.KeywordMap
		m.Tags = p.TagMap
		if c, ok := p.VectorProperties["_Color"]; ok && len(c) == 4 {
			m.BaseColor = [4]float32{c[0], c[1], c[2], c[3]}
		}
		for name, idx := range p.TextureProperties {
			if tex := textureAt(textures, idx); tex != nil {
				m.Textures[name] = tex
			}
		}
	}
	return nil
}
