package vrm

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LookAtConfig struct {
	AutoUpdate bool `toml:"auto_update"`
}

type SpringBoneConfig struct {
	Enabled bool `toml:"enabled"`
	// MaxDelta caps the step of the integrator in seconds, 0 disables it.
	MaxDelta float32 `toml:"max_delta"`
}

type TexturesConfig struct {
	Decode bool `toml:"decode"`
}

// Config controls how an avatar is built.
type Config struct {
	ReduceBones   bool             `toml:"reduce_bones"`
	FrustumCulled bool             `toml:"frustum_culled"`
	LookAt        LookAtConfig     `toml:"look_at"`
	SpringBone    SpringBoneConfig `toml:"spring_bone"`
	Textures      TexturesConfig   `toml:"textures"`

	MaterialConverter MaterialConverter `toml:"-"`
	Parts             PartsBuilder      `toml:"-"`
	Logger            *slog.Logger      `toml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		ReduceBones: true,
		LookAt:      LookAtConfig{AutoUpdate: true},
		SpringBone:  SpringBoneConfig{Enabled: true},
		Textures:    TexturesConfig{Decode: true},
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// withDefaults fills the strategy handles left unset.
func (c *Config) withDefaults() *Config {
	if c == nil {
		c = DefaultConfig()
	}
	out := *c
	if out.MaterialConverter == nil {
		out.MaterialConverter = MToonConverter{}
	}
	if out.Parts == nil {
		out.Parts = DefaultParts{}
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.SpringBone.MaxDelta < 0 {
		out.SpringBone.MaxDelta = 0
	}
	return &out
}

// BuildContext is what the parts builder sees of an asset under
// construction.
type BuildContext struct {
	Extension *Extension
	Nodes     []*Node
	// Meshes maps a glTF mesh index to the runtime meshes built from it.
	Meshes map[int][]*Mesh
	Logger *slog.Logger
}

// PartsBuilder builds the VRM subsystems of an avatar. Hosts replace it
// to customize or drop subsystems; a nil result disables the subsystem,
// except for the humanoid and the blend shape proxy which are required.
type PartsBuilder interface {
	Humanoid(ctx *BuildContext) *Humanoid
	BlendShapeProxy(ctx *BuildContext) *BlendShapeProxy
	FirstPerson(ctx *BuildContext, humanoid *Humanoid) *FirstPerson
	LookAt(ctx *BuildContext, humanoid *Humanoid, proxy *BlendShapeProxy) *LookAtHead
	SpringBones(ctx *BuildContext) *SpringBoneManager
}

// DefaultParts builds every subsystem from the extension records.
type DefaultParts struct{}

func (DefaultParts) Humanoid(ctx *BuildContext) *Humanoid {
	return NewHumanoid(&ctx.Extension.Humanoid, ctx.Nodes)
}

func (DefaultParts) BlendShapeProxy(ctx *BuildContext) *BlendShapeProxy {
	return LoadBlendShapeProxy(ctx.Extension.BlendShapeMaster, ctx.Meshes, ctx.Logger)
}

func (DefaultParts) FirstPerson(ctx *BuildContext, humanoid *Humanoid) *FirstPerson {
	return LoadFirstPerson(ctx.Extension.FirstPerson, humanoid, ctx.Nodes, ctx.Meshes)
}

func (DefaultParts) LookAt(ctx *BuildContext, humanoid *Humanoid, proxy *BlendShapeProxy) *LookAtHead {
	head := humanoid.Node(Head)
	if head == nil {
		return nil
	}
	return NewLookAtHead(head, NewLookAtApplyer(ctx.Extension.FirstPerson, proxy, humanoid))
}

func (DefaultParts) SpringBones(ctx *BuildContext) *SpringBoneManager {
	return LoadSpringBoneManager(ctx.Extension.SecondaryAnimation, ctx.Nodes, ctx.Logger)
}
