package model

import (
	"github.com/Faultbox/mdlcore/pkg/math"
)

// VertexBuffer is an append-only interleaved float buffer.
// Each record holds a position followed by a normal, a texture coordinate
// and an RGBA color when the format has them.
type VertexBuffer struct {
	format VertexFormat
	Type   PrimitiveType
	Data   []float32
}

// NewVertexBuffer creates an empty buffer. The format is fixed for the
// lifetime of the buffer.
func NewVertexBuffer(format VertexFormat, typ PrimitiveType) *VertexBuffer {
	return &VertexBuffer{format: format, Type: typ}
}

// Format returns the vertex format the buffer was created with.
func (b *VertexBuffer) Format() VertexFormat {
	return b.format
}

// Stride returns the number of floats per vertex record.
func (b *VertexBuffer) Stride() int {
	return b.format.Stride()
}

// Add appends one vertex. Channels absent from the format are ignored.
// Color is packed as 0xRRGGBBAA.
func (b *VertexBuffer) Add(position, normal math.Vec3, uv math.Vec2, color uint32) {
	b.Data = append(b.Data, position.X, position.Y, position.Z)
	if b.format.HasNormal {
		b.Data = append(b.Data, normal.X, normal.Y, normal.Z)
	}
	if b.format.HasTexCoord {
		b.Data = append(b.Data, uv.X, uv.Y)
	}
	if b.format.HasColor {
		c := UnpackColor(color)
		b.Data = append(b.Data, c[:]...)
	}
}

// Count returns the number of vertices in the buffer.
func (b *VertexBuffer) Count() int {
	return len(b.Data) / b.Stride()
}

// Vertex decodes the vertex at index i.
func (b *VertexBuffer) Vertex(i int) Vertex {
	rec := b.Data[i*b.Stride() : (i+1)*b.Stride()]

	var v Vertex
	copy(v.Position[:], rec[:3])
	rec = rec[3:]
	if b.format.HasNormal {
		copy(v.Normal[:], rec[:3])
		rec = rec[3:]
	}
	if b.format.HasTexCoord {
		copy(v.TexCoord[:], rec[:2])
		rec = rec[2:]
	}
	if b.format.HasColor {
		copy(v.Color[:], rec[:4])
	}
	return v
}

// Bounds returns the bounding box of all vertex positions, and false for an
// empty buffer.
func (b *VertexBuffer) Bounds() (Bounds, bool) {
	if b.Count() == 0 {
		return Bounds{}, false
	}

	bounds := Bounds{
		Min: [3]float32{1e10, 1e10, 1e10},
		Max: [3]float32{-1e10, -1e10, -1e10},
	}
	stride := b.Stride()
	for i := 0; i+2 < len(b.Data); i += stride {
		updateBounds(&bounds, [3]float32{b.Data[i], b.Data[i+1], b.Data[i+2]})
	}
	return bounds, true
}

// UnpackColor splits a 0xRRGGBBAA color into normalized RGBA components.
func UnpackColor(color uint32) [4]float32 {
	return [4]float32{
		float32((color>>24)&0xFF) / 255,
		float32((color>>16)&0xFF) / 255,
		float32((color>>8)&0xFF) / 255,
		float32(color&0xFF) / 255,
	}
}

// NewMesh creates an empty mesh with an unbound texture slot.
func NewMesh() *Mesh {
	return &Mesh{
		Texture: TextureSlot{TextureID: InvalidHandle, BumpMapID: InvalidHandle},
	}
}

// AddBuffer appends a new empty vertex buffer to the mesh and returns it.
func (m *Mesh) AddBuffer(format VertexFormat, typ PrimitiveType) *VertexBuffer {
	vb := NewVertexBuffer(format, typ)
	m.Buffers = append(m.Buffers, vb)
	return vb
}

// VertexCount returns the total vertex count across all buffers.
func (m *Mesh) VertexCount() int {
	total := 0
	for _, vb := range m.Buffers {
		total += vb.Count()
	}
	return total
}

// Bounds returns the bounding box of every buffer in the mesh, and false
// when the mesh holds no vertices.
func (m *Mesh) Bounds() (Bounds, bool) {
	var (
		bounds Bounds
		found  bool
	)
	for _, vb := range m.Buffers {
		b, ok := vb.Bounds()
		if !ok {
			continue
		}
		if !found {
			bounds, found = b, true
			continue
		}
		updateBounds(&bounds, b.Min)
		updateBounds(&bounds, b.Max)
	}
	return bounds, found
}

func updateBounds(b *Bounds, p [3]float32) {
	if p[0] < b.Min[0] {
		b.Min[0] = p[0]
	}
	if p[1] < b.Min[1] {
		b.Min[1] = p[1]
	}
	if p[2] < b.Min[2] {
		b.Min[2] = p[2]
	}
	if p[0] > b.Max[0] {
		b.Max[0] = p[0]
	}
	if p[1] > b.Max[1] {
		b.Max[1] = p[1]
	}
	if p[2] > b.Max[2] {
		b.Max[2] = p[2]
	}
}
