// Package model provides the vertex buffer and mesh data model shared by
// loaded and procedural geometry, MDL model population and animation index
// selection.
package model

import (
	"github.com/Faultbox/mdlcore/pkg/formats"
)

// PrimitiveType is the topology of a vertex buffer.
type PrimitiveType int

const (
	Triangles PrimitiveType = iota
	TriangleStrip
	TriangleFan
)

// String returns the topology name.
func (p PrimitiveType) String() string {
	switch p {
	case Triangles:
		return "triangles"
	case TriangleStrip:
		return "triangle-strip"
	case TriangleFan:
		return "triangle-fan"
	default:
		return "unknown"
	}
}

// VertexFormat selects the optional channels of a vertex record.
// Position is always present.
type VertexFormat struct {
	HasNormal   bool
	HasTexCoord bool
	HasColor    bool
}

// Stride returns the number of floats per vertex record.
func (f VertexFormat) Stride() int {
	stride := 3
	if f.HasNormal {
		stride += 3
	}
	if f.HasTexCoord {
		stride += 2
	}
	if f.HasColor {
		stride += 4
	}
	return stride
}

// Vertex is one decoded vertex record. Channels absent from the buffer
// format are left zero.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
	Color    [4]float32
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// InvalidHandle marks a texture slot that has not been bound by a renderer.
const InvalidHandle = ^uint32(0)

// TextureSlot holds the opaque texture handles a renderer writes into a mesh.
type TextureSlot struct {
	TextureID uint32
	BumpMapID uint32
}

// Mesh is one or more vertex buffers sharing a texture slot.
type Mesh struct {
	Buffers []*VertexBuffer
	Texture TextureSlot
	// Time is the display duration relative to the previous mesh of the
	// same model, zero for static meshes.
	Time float64
}

// Model is an ordered list of meshes.
type Model struct {
	Meshes []*Mesh
	Time   float64
}

// Texture is a decompressed 24-bit RGB skin image.
type Texture struct {
	Width  int
	Height int
	Pixels []byte // Width*Height*3 bytes, row-major RGB
	// Time is the display duration relative to the previous texture.
	Time float64
}

// Animation is a named contiguous range of model indices.
type Animation struct {
	Name  string
	Start int
	End   int // Inclusive
}

// Len returns the number of frames in the animation, zero when End < Start.
func (a Animation) Len() int {
	if a.End < a.Start {
		return 0
	}
	return a.End - a.Start + 1
}

// MDLModel is a fully populated MDL asset.
type MDLModel struct {
	Header     formats.MDLHeader
	Models     []*Model // One per frame group
	Textures   []*Texture
	Animations []Animation
}

// GetMesh returns the mesh at meshIndex of the model at modelIndex.
// A model holding a single mesh returns it for any meshIndex.
// Returns nil when either index is out of range.
func (m *MDLModel) GetMesh(modelIndex, meshIndex int) *Mesh {
	if m == nil || modelIndex < 0 || modelIndex >= len(m.Models) {
		return nil
	}

	model := m.Models[modelIndex]
	if model == nil {
		return nil
	}

	switch n := len(model.Meshes); {
	case n == 0:
		return nil
	case n == 1:
		return model.Meshes[0]
	case meshIndex < 0 || meshIndex >= n:
		return nil
	default:
		return model.Meshes[meshIndex]
	}
}

// FindAnimation returns the index of the first animation with the given name.
func (m *MDLModel) FindAnimation(name string) (int, bool) {
	for i, a := range m.Animations {
		if a.Name == name {
			return i, true
		}
	}
	return -1, false
}
