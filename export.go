package vrm

import (
	"errors"
	"io"

	"github.com/qmuntal/gltf"
)

var errDisposed = errors.New("vrm: avatar disposed")

// Document returns a copy of the source document carrying the current local
// transforms and morph weights. Nodes are copied, buffers and every other
// record are shared with the source, which is left untouched. Skins keep
// their original joint lists; the reduced skeletons are a runtime binding
// only.
func (a *Avatar) Document() (*gltf.Document, error) {
	if a.disposed {
		return nil, errDisposed
	}
	src := *a.doc
	doc := &src
	doc.Nodes = make([]*gltf.Node, len(a.doc.Nodes))
	for i, n := range a.doc.Nodes {
		if n != nil {
			c := *n
			doc.Nodes[i] = &c
		}
	}
	if doc.Asset.Version == "" {
		doc.Asset.Version = GLTFVersion
	}
	for i, n := range a.nodes {
		if i >= len(doc.Nodes) || n == nil {
			continue
		}
		dn := doc.Nodes[i]
		if dn == nil {
			continue
		}
		dn.Matrix = identityMatrix
		dn.Translation = [3]float32(n.Position)
		dn.Rotation = [4]float32(n.Rotation)
		dn.Scale = [3]float32(n.Scale)
		if weights := morphWeights(n); weights != nil {
			dn.Weights = weights
		}
	}
	return doc, nil
}

// morphWeights returns the influences of the first morphed mesh on n. All
// primitives of a glTF mesh share their weights.
func morphWeights(n *Node) []float32 {
	for _, m := range n.Meshes {
		if len(m.MorphTargetInfluences) > 0 {
			return append([]float32(nil), m.MorphTargetInfluences...)
		}
	}
	return nil
}

// WriteGLB encodes the posed avatar as binary glTF padded to 4 bytes.
func (a *Avatar) WriteGLB(w io.Writer) error {
	doc, err := a.Document()
	if err != nil {
		return err
	}
	return EncodeGLB(w, doc, 4)
}
