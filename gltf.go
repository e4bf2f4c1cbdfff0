package vrm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
)

const (
	// GLTFVersion is the glTF version written by the exporter.
	GLTFVersion = "2.0"

	// PaddingChar pads GLB output to the requested alignment.
	PaddingChar = 0x20
)

func componentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 0
}

func componentSize(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	case gltf.ComponentUint, gltf.ComponentFloat:
		return 4
	}
	return 0
}

// accessorData returns the element bytes of an accessor along with the
// element stride and the component layout. Accessors without a buffer
// view read as zeros.
func accessorData(doc *gltf.Document, index uint32) (*gltf.Accessor, []byte, int, error) {
	if int(index) >= len(doc.Accessors) {
		return nil, nil, 0, fmt.Errorf("%w: index %d out of range", ErrAccessor, index)
	}
	acc := doc.Accessors[index]
	comps := componentCount(acc.Type)
	size := componentSize(acc.ComponentType)
	if comps == 0 || size == 0 {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d has unknown layout", ErrAccessor, index)
	}
	elem := comps * size
	if acc.BufferView == nil {
		return acc, make([]byte, elem*int(acc.Count)), elem, nil
	}
	if int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d buffer view out of range", ErrAccessor, index)
	}
	view := doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d buffer out of range", ErrAccessor, index)
	}
	buf := doc.Buffers[view.Buffer]
	stride := elem
	if view.ByteStride != 0 {
		stride = int(view.ByteStride)
	}
	start := int(view.ByteOffset) + int(acc.ByteOffset)
	end := start
	if acc.Count > 0 {
		end = start + stride*(int(acc.Count)-1) + elem
	}
	if end > len(buf.Data) || end > int(view.ByteOffset+view.ByteLength) {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d exceeds its buffer", ErrAccessor, index)
	}
	data := buf.Data[start:end]
	if stride == elem {
		return acc, data, elem, nil
	}
	packed := make([]byte, 0, elem*int(acc.Count))
	for i := 0; i < int(acc.Count); i++ {
		packed = append(packed, data[i*stride:i*stride+elem]...)
	}
	return acc, packed, elem, nil
}

// readFloats reads an accessor as float32 components, normalizing
// integer components when the accessor is marked normalized.
func readFloats(doc *gltf.Document, index uint32) ([]float32, int, error) {
	acc, data, _, err := accessorData(doc, index)
	if err != nil {
		return nil, 0, err
	}
	comps := componentCount(acc.Type)
	n := int(acc.Count) * comps
	out := make([]float32, n)
	rd := bytes.NewReader(data)
	switch acc.ComponentType {
	case gltf.ComponentFloat:
		err = binary.Read(rd, binary.LittleEndian, out)
	case gltf.ComponentUbyte:
		raw := make([]uint8, n)
		err = binary.Read(rd, binary.LittleEndian, raw)
		for i, v := range raw {
			out[i] = normalizedOrRaw(float32(v), 255, acc.Normalized)
		}
	case gltf.ComponentByte:
		raw := make([]int8, n)
		err = binary.Read(rd, binary.LittleEndian, raw)
		for i, v := range raw {
			out[i] = normalizedOrRaw(float32(v), 127, acc.Normalized)
		}
	case gltf.ComponentUshort:
		raw := make([]uint16, n)
		err = binary.Read(rd, binary.LittleEndian, raw)
		for i, v := range raw {
			out[i] = normalizedOrRaw(float32(v), 65535, acc.Normalized)
		}
	case gltf.ComponentShort:
		raw := make([]int16, n)
		err = binary.Read(rd, binary.LittleEndian, raw)
		for i, v := range raw {
			out[i] = normalizedOrRaw(float32(v), 32767, acc.Normalized)
		}
	case gltf.ComponentUint:
		raw := make([]uint32, n)
		err = binary.Read(rd, binary.LittleEndian, raw)
		for i, v := range raw {
			out[i] = float32(v)
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: accessor %d: %v", ErrAccessor, index, err)
	}
	return out, comps, nil
}

func normalizedOrRaw(v, max float32, normalized bool) float32 {
	if !normalized {
		return v
	}
	return float32(math.Max(float64(v/max), -1))
}

// readUints reads an unsigned integer accessor (indices, joints).
func readUints(doc *gltf.Document, index uint32) ([]uint32, int, error) {
	acc, data, _, err := accessorData(doc, index)
	if err != nil {
		return nil, 0, err
	}
	comps := componentCount(acc.Type)
	n := int(acc.Count) * comps
	out := make([]uint32, n)
	rd := bytes.NewReader(data)
	switch acc.ComponentType {
	case gltf.ComponentUbyte:
		raw := make([]uint8, n)
		err = binary.Read(rd, binary.LittleEndian, raw)
		for i, v := range raw {
			out[i] = uint32(v)
		}
	case gltf.ComponentUshort:
		raw := make([]uint16, n)
		err = binary.Read(rd, binary.LittleEndian, raw)
		for i, v := range raw {
			out[i] = uint32(v)
		}
	case gltf.ComponentUint:
		err = binary.Read(rd, binary.LittleEndian, out)
	default:
		return nil, 0, fmt.Errorf("%w: accessor %d is not unsigned", ErrAccessor, index)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: accessor %d: %v", ErrAccessor, index, err)
	}
	return out, comps, nil
}

func readVec3s(doc *gltf.Document, index uint32) ([]vec3.T, error) {
	fs, comps, err := readFloats(doc, index)
	if err != nil {
		return nil, err
	}
	if comps != 3 {
		return nil, fmt.Errorf("%w: accessor %d is not VEC3", ErrAccessor, index)
	}
	out := make([]vec3.T, len(fs)/3)
	for i := range out {
		out[i] = vec3.T{fs[i*3], fs[i*3+1], fs[i*3+2]}
	}
	return out, nil
}

// writeAccessor appends data to the first buffer of doc and returns the
// index of a new accessor describing it. Supported element types are
// float32, uint32, [2]float32, vec3.T, [3]float32, [4]float32, [4]uint16
// and [16]float32.
func writeAccessor(doc *gltf.Document, target gltf.Target, data interface{}) (uint32, error) {
	var (
		ct    gltf.ComponentType
		at    gltf.AccessorType
		count int
	)
	switch v := data.(type) {
	case []float32:
		ct, at, count = gltf.ComponentFloat, gltf.AccessorScalar, len(v)
	case []uint32:
		ct, at, count = gltf.ComponentUint, gltf.AccessorScalar, len(v)
	case [][2]float32:
		ct, at, count = gltf.ComponentFloat, gltf.AccessorVec2, len(v)
	case []vec3.T:
		ct, at, count = gltf.ComponentFloat, gltf.AccessorVec3, len(v)
	case [][3]float32:
		ct, at, count = gltf.ComponentFloat, gltf.AccessorVec3, len(v)
	case [][4]float32:
		ct, at, count = gltf.ComponentFloat, gltf.AccessorVec4, len(v)
	case [][4]uint16:
		ct, at, count = gltf.ComponentUshort, gltf.AccessorVec4, len(v)
	case [][16]float32:
		ct, at, count = gltf.ComponentFloat, gltf.AccessorMat4, len(v)
	default:
		return 0, fmt.Errorf("%w: unsupported data %T", ErrAccessor, data)
	}

	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	}
	buffer := doc.Buffers[0]
	if pad := calcPadding(len(buffer.Data), 4); pad > 0 {
		buffer.Data = append(buffer.Data, make([]byte, pad)...)
	}
	bf := bytes.NewBuffer(nil)
	if err := binary.Write(bf, binary.LittleEndian, data); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAccessor, err)
	}
	offset := len(buffer.Data)
	buffer.Data = append(buffer.Data, bf.Bytes()...)
	buffer.ByteLength = uint32(len(buffer.Data))

	view := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(offset),
		ByteLength: uint32(bf.Len()),
		Target:     target,
	}
	doc.BufferViews = append(doc.BufferViews, view)
	viewIndex := uint32(len(doc.BufferViews) - 1)

	acc := &gltf.Accessor{
		BufferView:    &viewIndex,
		ComponentType: ct,
		Type:          at,
		Count:         uint32(count),
	}
	if v, ok := data.([]vec3.T); ok && len(v) > 0 {
		acc.Min, acc.Max = vec3Bounds(v)
	}
	doc.Accessors = append(doc.Accessors, acc)
	return uint32(len(doc.Accessors) - 1), nil
}

func vec3Bounds(v []vec3.T) ([]float32, []float32) {
	min := []float32{v[0][0], v[0][1], v[0][2]}
	max := []float32{v[0][0], v[0][1], v[0][2]}
	for _, p := range v[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	return min, max
}

// calcPadding returns the number of bytes needed to align offset to unit.
func calcPadding(offset, unit int) int {
	padding := offset % unit
	if padding != 0 {
		padding = unit - padding
	}
	return padding
}

// bufferWriter counts the bytes written through it.
type bufferWriter struct {
	writer io.Writer
	size   int
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	n, err := w.writer.Write(p)
	w.size += n
	return n, err
}

// EncodeGLB writes doc as binary glTF padded to paddingUnit bytes.
func EncodeGLB(w io.Writer, doc *gltf.Document, paddingUnit int) error {
	writer := &bufferWriter{writer: w}

	encoder := gltf.NewEncoder(writer)
	encoder.AsBinary = true

	if err := encoder.Encode(doc); err != nil {
		return err
	}
	if paddingUnit <= 0 {
		return nil
	}

	padding := calcPadding(writer.size, paddingUnit)
	if padding == 0 {
		return nil
	}
	_, err := writer.Write(bytes.Repeat([]byte{PaddingChar}, padding))
	return err
}
