package vrm

import "errors"

var (
	ErrNotVRM       = errors.New("vrm: not a VRM file")
	ErrNoHumanBones = errors.New("vrm: no human bones found")
	ErrNoBlendShape = errors.New("vrm: failed to create blend shapes")
	ErrAccessor     = errors.New("vrm: invalid accessor")
)
