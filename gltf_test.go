package vrm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcPadding(t *testing.T) {
	tests := []struct {
		offset, unit, want int
	}{
		{0, 4, 0},
		{1, 4, 3},
		{4, 4, 0},
		{6, 4, 2},
		{7, 8, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calcPadding(tt.offset, tt.unit), "offset %d unit %d", tt.offset, tt.unit)
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n < len(p) {
		return w.n, errors.New("short write")
	}
	return len(p), nil
}

func TestBufferWriterCounts(t *testing.T) {
	var buf bytes.Buffer
	w := &bufferWriter{writer: &buf}
	_, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = w.Write([]byte("de"))
	require.NoError(t, err)
	assert.Equal(t, 5, w.size)

	fw := &bufferWriter{writer: &failingWriter{n: 1}}
	_, err = fw.Write([]byte("xyz"))
	assert.Error(t, err)
	assert.Equal(t, 1, fw.size)
}

func TestWriteReadAccessor(t *testing.T) {
	doc := &gltf.Document{}

	positions := []vec3.T{{1, 2, 3}, {-1, 0, 4}}
	pi := writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, positions)
	gotPositions, err := readVec3s(doc, pi)
	require.NoError(t, err)
	assert.Equal(t, positions, gotPositions)
	assert.Equal(t, []float32{-1, 0, 3}, doc.Accessors[pi].Min)
	assert.Equal(t, []float32{1, 2, 4}, doc.Accessors[pi].Max)

	joints := [][4]uint16{{1, 2, 3, 4}, {5, 6, 7, 8}}
	ji := writeFixtureAccessor(t, doc, gltf.TargetArrayBuffer, joints)
	gotJoints, comps, err := readUints(doc, ji)
	require.NoError(t, err)
	assert.Equal(t, 4, comps)
	assert.Equal(t, []uint32{1, 2, 3, 4, 5, 6, 7, 8}, gotJoints)

	// a three byte scalar forces padding before the next write
	doc.Buffers[0].Data = append(doc.Buffers[0].Data, 1, 2, 3)
	mi := writeFixtureAccessor(t, doc, gltf.TargetNone, [][16]float32{identityMatrix})
	assert.Zero(t, doc.BufferViews[*doc.Accessors[mi].BufferView].ByteOffset%4)
	gotMatrix, comps, err := readFloats(doc, mi)
	require.NoError(t, err)
	assert.Equal(t, 16, comps)
	assert.Equal(t, identityMatrix[:], gotMatrix)

	_, err = writeAccessor(doc, gltf.TargetNone, []string{"x"})
	assert.ErrorIs(t, err, ErrAccessor)
}

func TestReadAccessorErrors(t *testing.T) {
	doc := &gltf.Document{}
	fi := writeFixtureAccessor(t, doc, gltf.TargetNone, []float32{1, 2, 3})

	_, _, err := readFloats(doc, 42)
	assert.ErrorIs(t, err, ErrAccessor)

	_, err = readVec3s(doc, fi)
	assert.ErrorIs(t, err, ErrAccessor)

	_, _, err = readUints(doc, fi)
	assert.ErrorIs(t, err, ErrAccessor)

	doc.Accessors[fi].Count = 100
	_, _, err = readFloats(doc, fi)
	assert.ErrorIs(t, err, ErrAccessor)
}

func TestReadNormalizedAndStrided(t *testing.T) {
	doc := &gltf.Document{
		Buffers: []*gltf.Buffer{{Data: []byte{255, 0, 9, 9, 128, 255, 9, 9}, ByteLength: 8}},
		BufferViews: []*gltf.BufferView{{
			Buffer:     0,
			ByteLength: 8,
			ByteStride: 4,
		}},
		Accessors: []*gltf.Accessor{{
			BufferView:    gltf.Index(0),
			ComponentType: gltf.ComponentUbyte,
			Type:          gltf.AccessorVec2,
			Count:         2,
			Normalized:    true,
		}},
	}
	fs, comps, err := readFloats(doc, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, comps)
	require.Len(t, fs, 4)
	assert.InDelta(t, 1, fs[0], 1e-6)
	assert.InDelta(t, 0, fs[1], 1e-6)
	assert.InDelta(t, 128.0/255, fs[2], 1e-6)
	assert.InDelta(t, 1, fs[3], 1e-6)

	// accessors without a buffer view read as zeros
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorScalar,
		Count:         3,
	})
	zeros, _, err := readFloats(doc, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, zeros)
}

func TestEncodeGLBPadding(t *testing.T) {
	doc := &gltf.Document{}
	doc.Asset.Version = GLTFVersion
	writeFixtureAccessor(t, doc, gltf.TargetNone, []float32{1})

	for _, unit := range []int{0, 4, 16} {
		var buf bytes.Buffer
		require.NoError(t, EncodeGLB(&buf, doc, unit))
		assert.Equal(t, []byte("glTF"), buf.Bytes()[:4])
		if unit > 0 {
			assert.Zero(t, buf.Len()%unit, "unit %d", unit)
		}
	}
}
