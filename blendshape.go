package vrm

import (
	"log/slog"
	"strings"
)

// BlendShapePreset names the standard expressions of VRM 0.x.
type BlendShapePreset string

const (
	PresetUnknown   BlendShapePreset = "unknown"
	PresetNeutral   BlendShapePreset = "neutral"
	PresetA         BlendShapePreset = "a"
	PresetI         BlendShapePreset = "i"
	PresetU         BlendShapePreset = "u"
	PresetE         BlendShapePreset = "e"
	PresetO         BlendShapePreset = "o"
	PresetBlink     BlendShapePreset = "blink"
	PresetJoy       BlendShapePreset = "joy"
	PresetAngry     BlendShapePreset = "angry"
	PresetSorrow    BlendShapePreset = "sorrow"
	PresetFun       BlendShapePreset = "fun"
	PresetLookUp    BlendShapePreset = "lookup"
	PresetLookDown  BlendShapePreset = "lookdown"
	PresetLookLeft  BlendShapePreset = "lookleft"
	PresetLookRight BlendShapePreset = "lookright"
	PresetBlinkL    BlendShapePreset = "blink_l"
	PresetBlinkR    BlendShapePreset = "blink_r"
)

type blendShapeBind struct {
	meshes []*Mesh
	index  int
	weight float32
}

// BlendShapeGroup drives a set of morph targets with a single value.
type BlendShapeGroup struct {
	Name     string
	Preset   BlendShapePreset
	IsBinary bool

	binds []blendShapeBind
	value float32
}

func (g *BlendShapeGroup) Value() float32 {
	return g.value
}

func (g *BlendShapeGroup) SetValue(v float32) {
	g.value = v
}

func (g *BlendShapeGroup) appliedValue() float32 {
	if g.IsBinary {
		if g.value > 0.5 {
			return 1
		}
		return 0
	}
	return g.value
}

func (g *BlendShapeGroup) clearApplied() {
	for _, b := range g.binds {
		for _, m := range b.meshes {
			if b.index < len(m.MorphTargetInfluences) {
				m.MorphTargetInfluences[b.index] = 0
			}
		}
	}
}

func (g *BlendShapeGroup) apply() {
	v := g.appliedValue()
	for _, b := range g.binds {
		for _, m := range b.meshes {
			if b.index < len(m.MorphTargetInfluences) {
				m.MorphTargetInfluences[b.index] += v * b.weight
			}
		}
	}
}

// BlendShapeProxy owns the expression groups of an avatar and writes their
// values into mesh morph influences once per frame.
type BlendShapeProxy struct {
	groups  []*BlendShapeGroup
	names   map[string]*BlendShapeGroup
	presets map[BlendShapePreset]*BlendShapeGroup
}

func NewBlendShapeProxy() *BlendShapeProxy {
	return &BlendShapeProxy{
		names:   map[string]*BlendShapeGroup{},
		presets: map[BlendShapePreset]*BlendShapeGroup{},
	}
}

// LoadBlendShapeProxy builds the proxy from the blend shape master. meshes
// maps a glTF mesh index to every runtime mesh created from it.
func LoadBlendShapeProxy(master *BlendShapeMaster, meshes map[int][]*Mesh, logger *slog.Logger) *BlendShapeProxy {
	proxy := NewBlendShapeProxy()
	if master == nil {
		return proxy
	}
	for _, desc := range master.BlendShapeGroups {
		if desc == nil {
			continue
		}
		g := &BlendShapeGroup{
			Name:     desc.Name,
			Preset:   BlendShapePreset(strings.ToLower(desc.PresetName)),
			IsBinary: desc.IsBinary,
		}
		for _, b := range desc.Binds {
			if b == nil {
				continue
			}
			targets := meshes[b.Mesh]
			if len(targets) == 0 {
				logger.Debug("blend shape bind skipped", "group", desc.Name, "mesh", b.Mesh)
				continue
			}
			g.binds = append(g.binds, blendShapeBind{
				meshes: targets,
				index:  b.Index,
				// weights are authored in 0..100
				weight: b.Weight * 0.01,
			})
		}
		proxy.Register(g)
	}
	return proxy
}

// Register adds g. Presets other than unknown are also addressable by
// their preset name.
func (p *BlendShapeProxy) Register(g *BlendShapeGroup) {
	p.groups = append(p.groups, g)
	if g.Name != "" {
		p.names[g.Name] = g
	}
	if g.Preset != "" && g.Preset != PresetUnknown {
		p.presets[g.Preset] = g
	}
}

// Group finds a group by preset first, then by name.
func (p *BlendShapeProxy) Group(name string) *BlendShapeGroup {
	if g, ok := p.presets[BlendShapePreset(strings.ToLower(name))]; ok {
		return g
	}
	return p.names[name]
}

func (p *BlendShapeProxy) Groups() []*BlendShapeGroup {
	return append([]*BlendShapeGroup(nil), p.groups...)
}

// SetValue sets the weight of a group. Unknown names are ignored.
func (p *BlendShapeProxy) SetValue(name string, v float32) {
	if g := p.Group(name); g != nil {
		g.SetValue(v)
	}
}

// Value reports the weight of a group and whether it exists.
func (p *BlendShapeProxy) Value(name string) (float32, bool) {
	g := p.Group(name)
	if g == nil {
		return 0, false
	}
	return g.value, true
}

// Update clears every bound influence, then accumulates the current group
// values. Influences that no group binds are left as they are.
func (p *BlendShapeProxy) Update() {
	for _, g := range p.groups {
		g.clearApplied()
	}
	for _, g := range p.groups {
		g.apply()
	}
}
