package vrm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// PoseTransform is the requested state of one joint. Position is a
// translation relative to the rest pose, Rotation is an absolute local
// rotation quaternion (x, y, z, w).
type PoseTransform struct {
	Position *[3]float32 `json:"position,omitempty" yaml:"position,omitempty" toml:"position,omitempty"`
	Rotation *[4]float32 `json:"rotation,omitempty" yaml:"rotation,omitempty" toml:"rotation,omitempty"`
}

// Pose maps human bone names to joint states.
type Pose map[HumanBoneName]PoseTransform

// Clone returns a deep copy of p.
func (p Pose) Clone() Pose {
	if p == nil {
		return nil
	}
	out := make(Pose, len(p))
	for k, v := range p {
		out[k] = v.clone()
	}
	return out
}

func (t PoseTransform) clone() PoseTransform {
	var c PoseTransform
	if t.Position != nil {
		v := *t.Position
		c.Position = &v
	}
	if t.Rotation != nil {
		v := *t.Rotation
		c.Rotation = &v
	}
	return c
}

// PoseFromFile reads a pose from a .json, .yaml/.yml or .toml file.
func PoseFromFile(path string) (Pose, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pose Pose
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &pose)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &pose)
	case ".toml":
		err = toml.Unmarshal(data, &pose)
	default:
		return nil, fmt.Errorf("pose: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("pose: decode %s: %w", path, err)
	}
	return pose, nil
}

type restState struct {
	position vec3.T
	rotation quaternion.T
}

// RestPose is the snapshot of every human bone's local transform taken
// right after the rig was assembled. It is never modified afterwards.
type RestPose struct {
	states []restState
	pose   Pose
}

func captureRestPose(h *Humanoid) *RestPose {
	r := &RestPose{states: make([]restState, h.Len()), pose: Pose{}}
	for j := Joint(0); int(j) < h.Len(); j++ {
		node := h.NodeOf(j)
		r.states[j] = restState{position: node.Position, rotation: node.Rotation}
		pos := [3]float32(node.Position)
		rot := [4]float32(node.Rotation)
		r.pose[h.NameOf(j)] = PoseTransform{Position: &pos, Rotation: &rot}
	}
	return r
}

func (r *RestPose) state(j Joint) (restState, bool) {
	if r == nil || j < 0 || int(j) >= len(r.states) {
		return restState{}, false
	}
	return r.states[j], true
}

// Pose returns a copy of the snapshot with absolute local positions.
func (r *RestPose) Pose() Pose {
	if r == nil {
		return Pose{}
	}
	return r.pose.Clone()
}

// poseApplicator writes poses onto the human bones.
type poseApplicator struct {
	humanoid *Humanoid
	rest     *RestPose
}

func (a *poseApplicator) apply(pose Pose) {
	for name, t := range pose {
		a.applyJoint(a.humanoid.Handle(name), t)
	}
}

func (a *poseApplicator) applyJoint(j Joint, t PoseTransform) bool {
	node := a.humanoid.NodeOf(j)
	if node == nil {
		return false
	}
	rest, ok := a.rest.state(j)
	if !ok {
		return false
	}
	if t.Position != nil {
		node.Position = vec3.T{
			rest.position[0] + t.Position[0],
			rest.position[1] + t.Position[1],
			rest.position[2] + t.Position[2],
		}
	}
	if t.Rotation != nil {
		node.Rotation = quaternion.T(*t.Rotation)
	}
	return true
}

func (a *poseApplicator) reset() {
	for j := range a.rest.states {
		if node := a.humanoid.NodeOf(Joint(j)); node != nil {
			node.Position = a.rest.states[j].position
			node.Rotation = a.rest.states[j].rotation
		}
	}
}

// current reads the live pose, positions expressed relative to rest.
func (a *poseApplicator) current() Pose {
	pose := Pose{}
	for j := range a.rest.states {
		node := a.humanoid.NodeOf(Joint(j))
		if node == nil {
			continue
		}
		rest := a.rest.states[j]
		pos := [3]float32{
			node.Position[0] - rest.position[0],
			node.Position[1] - rest.position[1],
			node.Position[2] - rest.position[2],
		}
		rot := [4]float32(node.Rotation)
		pose[a.humanoid.NameOf(Joint(j))] = PoseTransform{Position: &pos, Rotation: &rot}
	}
	return pose
}
