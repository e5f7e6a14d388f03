// Package shape builds procedural meshes: flat surfaces, boxes, spheres,
// cylinders, disks, rings and spirals.
//
// Every generator takes the vertex format of the buffers it creates and
// fails only when the format is missing. Zero sizes or segment counts are
// accepted and produce degenerate geometry.
package shape

import (
	"github.com/Faultbox/mdlcore/internal/engine/model"
	"github.com/Faultbox/mdlcore/pkg/math"
)

// ErrNoVertexFormat is returned when a generator is called without a vertex format.
var ErrNoVertexFormat = model.ErrNoVertexFormat

var (
	frontNormal = math.Vec3{Z: -1}
	upNormal    = math.Vec3{Z: 1}
)

// newMesh creates a mesh and validates the format every generator requires.
func newMesh(format *model.VertexFormat) (*model.Mesh, error) {
	if format == nil {
		return nil, ErrNoVertexFormat
	}
	return model.NewMesh(), nil
}

// Surface builds a width x height quad centered on the origin in the XY
// plane, facing -Z, as a single triangle strip.
func Surface(width, height float32, format *model.VertexFormat, color uint32) (*model.Mesh, error) {
	mesh, err := newMesh(format)
	if err != nil {
		return nil, err
	}

	// 0 selects the negative half, 1 the positive one.
	template := [4][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}

	vb := mesh.AddBuffer(*format, model.TriangleStrip)
	for _, t := range template {
		position := math.Vec3{X: -width / 2, Y: -height / 2}
		uv := math.Vec2{}
		if t[0] == 1 {
			position.X = width / 2
			uv.X = 1
		}
		if t[1] == 1 {
			position.Y = height / 2
			uv.Y = 1
		}
		vb.Add(position, frontNormal, uv, color)
	}

	return mesh, nil
}

// boxFace lists the corners, normal and first texture coordinate of one box face.
type boxFace struct {
	corners  [4]int
	normal   int
	texCoord int
}

// Faces in buffer order: -X, +Z, +X, -Z, +Y, -Y.
var boxFaces = [6]boxFace{
	{corners: [4]int{1, 0, 3, 2}, normal: 0, texCoord: 4},
	{corners: [4]int{3, 2, 7, 6}, normal: 5, texCoord: 8},
	{corners: [4]int{7, 6, 5, 4}, normal: 1, texCoord: 12},
	{corners: [4]int{5, 4, 1, 0}, normal: 4, texCoord: 16},
	{corners: [4]int{1, 3, 5, 7}, normal: 3, texCoord: 0},
	{corners: [4]int{2, 0, 6, 4}, normal: 2, texCoord: 20},
}

var boxNormals = [6]math.Vec3{
	{X: -1}, {X: 1},
	{Y: -1}, {Y: 1},
	{Z: -1}, {Z: 1},
}

// boxTexCoords returns the 24 box texture coordinates. With repeat set every
// face maps the whole texture, otherwise faces share a 3x2 atlas laid over
// the top two thirds of the texture.
func boxTexCoords(repeat bool) [24]math.Vec2 {
	var tc [24]math.Vec2

	if repeat {
		quad := [4]math.Vec2{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 1}}
		for i := range tc {
			tc[i] = quad[i%4]
		}
		return tc
	}

	const o = float32(1.0 / 3.0)
	// Column and row of the atlas cell used by each group of 4 coordinates.
	cells := [6][2]float32{{0, 0}, {1, 0}, {2, 0}, {0, 1}, {1, 1}, {2, 1}}
	for i, cell := range cells {
		x0, x1 := cell[0]*o, (cell[0]+1)*o
		y0, y1 := cell[1]*o, (cell[1]+1)*o
		if cell[0] == 2 {
			x1 = 1
		}
		tc[i*4+0] = math.Vec2{X: x0, Y: y1}
		tc[i*4+1] = math.Vec2{X: x0, Y: y0}
		tc[i*4+2] = math.Vec2{X: x1, Y: y1}
		tc[i*4+3] = math.Vec2{X: x1, Y: y0}
	}
	return tc
}

// Box builds a width x height x depth box centered on the origin as six
// independent 4-vertex triangle strips.
func Box(width, height, depth float32, repeatTexOnEachFace bool, format *model.VertexFormat, color uint32) (*model.Mesh, error) {
	mesh, err := newMesh(format)
	if err != nil {
		return nil, err
	}

	halfX, halfY, halfZ := width/2, height/2, depth/2

	// Corner i is left for i < 4, front for (i/2) even, bottom for i even.
	var corners [8]math.Vec3
	for i := range corners {
		corners[i] = math.Vec3{X: -halfX, Y: -halfY, Z: -halfZ}
		if i/4 != 0 {
			corners[i].X = halfX
		}
		if (i/2)%2 != 0 {
			corners[i].Z = halfZ
		}
		if i%2 != 0 {
			corners[i].Y = halfY
		}
	}

	texCoords := boxTexCoords(repeatTexOnEachFace)

	for _, face := range boxFaces {
		vb := mesh.AddBuffer(*format, model.TriangleStrip)
		for k, c := range face.corners {
			vb.Add(corners[c], boxNormals[face.normal], texCoords[face.texCoord+k], color)
		}
	}

	return mesh, nil
}
