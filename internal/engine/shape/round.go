package shape

import (
	gomath "math"

	"github.com/Faultbox/mdlcore/internal/engine/model"
	"github.com/Faultbox/mdlcore/pkg/math"
)

func sincos(angle float32) (sin, cos float32) {
	s, c := gomath.Sincos(float64(angle))
	return float32(s), float32(c)
}

// Sphere builds a sphere centered on the origin. Each of the slices
// latitude bands is a triangle strip sweeping stacks+1 longitude steps.
// Normals are positions divided by radius.
func Sphere(radius float32, slices, stacks int, format *model.VertexFormat, color uint32) (*model.Mesh, error) {
	mesh, err := newMesh(format)
	if err != nil {
		return nil, err
	}

	majorStep := float32(gomath.Pi) / float32(slices)
	minorStep := float32(2*gomath.Pi) / float32(stacks)

	for i := 0; i < slices; i++ {
		vb := mesh.AddBuffer(*format, model.TriangleStrip)

		a := float32(i) * majorStep
		b := a + majorStep
		sinA, cosA := sincos(a)
		sinB, cosB := sincos(b)
		r0, z0 := radius*sinA, radius*cosA
		r1, z1 := radius*sinB, radius*cosB

		for j := 0; j <= stacks; j++ {
			y, x := sincos(float32(j) * minorStep)
			u := float32(j) / float32(stacks)

			p0 := math.Vec3{X: x * r0, Y: y * r0, Z: z0}
			vb.Add(p0, p0.Scale(1/radius), math.Vec2{X: u, Y: float32(i) / float32(slices)}, color)

			p1 := math.Vec3{X: x * r1, Y: y * r1, Z: z1}
			vb.Add(p1, p1.Scale(1/radius), math.Vec2{X: u, Y: float32(i+1) / float32(slices)}, color)
		}
	}

	return mesh, nil
}

// CylinderUMapping returns the horizontal texture coordinate of rim step i
// out of faces.
type CylinderUMapping func(i, faces int) float32

// LegacyCylinderU maps step i to 1/i. Step 0 maps to +Inf. This is the
// historical mapping that existing rendered output depends on.
func LegacyCylinderU(i, faces int) float32 {
	return 1 / float32(i)
}

// LinearCylinderU wraps the texture once around the cylinder.
func LinearCylinderU(i, faces int) float32 {
	if faces == 0 {
		return 0
	}
	return float32(i) / float32(faces)
}

// Cylinder builds an open cylinder around the Y axis using LegacyCylinderU.
func Cylinder(radius, height float32, faces int, format *model.VertexFormat, color uint32) (*model.Mesh, error) {
	return CylinderWithMapping(radius, height, faces, LegacyCylinderU, format, color)
}

// CylinderWithMapping builds an open cylinder of the given height centered on
// the origin around the Y axis. The single triangle strip alternates bottom
// and top rim vertices over faces+1 steps so the seam closes.
func CylinderWithMapping(radius, height float32, faces int, mapU CylinderUMapping, format *model.VertexFormat, color uint32) (*model.Mesh, error) {
	mesh, err := newMesh(format)
	if err != nil {
		return nil, err
	}
	if mapU == nil {
		mapU = LegacyCylinderU
	}

	step := float32(2*gomath.Pi) / float32(faces)
	vb := mesh.AddBuffer(*format, model.TriangleStrip)

	for i := 0; i < faces+1; i++ {
		sin, cos := sincos(step * float32(i))
		normal := math.Vec3{X: cos, Z: sin}
		u := mapU(i, faces)

		vb.Add(math.Vec3{X: radius * cos, Y: -height / 2, Z: radius * sin}, normal, math.Vec2{X: u, Y: 0}, color)
		vb.Add(math.Vec3{X: radius * cos, Y: height / 2, Z: radius * sin}, normal, math.Vec2{X: u, Y: 1}, color)
	}

	return mesh, nil
}

// Disk builds a flat disk in the XY plane facing +Z as a triangle fan: the
// center followed by slices+1 rim vertices.
func Disk(centerX, centerY, radius float32, slices int, format *model.VertexFormat, color uint32) (*model.Mesh, error) {
	mesh, err := newMesh(format)
	if err != nil {
		return nil, err
	}

	step := float32(2*gomath.Pi) / float32(slices)
	vb := mesh.AddBuffer(*format, model.TriangleFan)

	vb.Add(math.Vec3{X: centerX, Y: centerY}, upNormal, math.Vec2{X: 0.5, Y: 0.5}, color)
	for i := 1; i <= slices+1; i++ {
		sin, cos := sincos(step * float32(i-1))
		vb.Add(math.Vec3{X: centerX + radius*cos, Y: centerY + radius*sin},
			upNormal,
			math.Vec2{X: 0.5 + cos*0.5, Y: 0.5 + sin*0.5},
			color)
	}

	return mesh, nil
}

// sweepU returns the texture coordinate of step i out of slices, pinned to
// exactly 0 and 1 at both ends.
func sweepU(i, slices int) float32 {
	switch i {
	case 0:
		return 0
	case slices:
		return 1
	default:
		return float32(i) / float32(slices)
	}
}

// Ring builds a flat ring in the XY plane facing +Z as a triangle strip
// alternating inner and outer rim vertices over slices+1 steps. Inner
// vertices use minColor and outer vertices maxColor.
func Ring(centerX, centerY, minRadius, maxRadius float32, slices int, format *model.VertexFormat, minColor, maxColor uint32) (*model.Mesh, error) {
	mesh, err := newMesh(format)
	if err != nil {
		return nil, err
	}

	step := float32(2*gomath.Pi) / float32(slices)
	vb := mesh.AddBuffer(*format, model.TriangleStrip)

	for i := 0; i <= slices; i++ {
		sin, cos := sincos(step * float32(i))
		u := sweepU(i, slices)

		vb.Add(math.Vec3{X: centerX + minRadius*cos, Y: centerY - minRadius*sin}, upNormal, math.Vec2{X: u, Y: 0}, minColor)
		vb.Add(math.Vec3{X: centerX + maxRadius*cos, Y: centerY - maxRadius*sin}, upNormal, math.Vec2{X: u, Y: 1}, maxColor)
	}

	return mesh, nil
}

// SpiralOptions describes a spiral ribbon.
type SpiralOptions struct {
	CenterX, CenterY     float32
	MinRadius, MaxRadius float32
	// Per-step growth of the inner and outer radius.
	DeltaMin, DeltaMax float32
	// Per-step descent along Z.
	DeltaZ   float32
	Slices   int // Steps per turn
	Stacks   int // Number of turns, one strip each
	MinColor uint32
	MaxColor uint32
}

// Spiral builds a descending spiral ribbon as one triangle strip per turn.
// Radii and depth advance once per step and are moved back by one step at
// the end of each turn so consecutive turns share their boundary vertices.
func Spiral(format *model.VertexFormat, opts SpiralOptions) (*model.Mesh, error) {
	mesh, err := newMesh(format)
	if err != nil {
		return nil, err
	}

	step := float32(2*gomath.Pi) / float32(opts.Slices)
	minRadius, maxRadius := opts.MinRadius, opts.MaxRadius
	var z float32

	for i := 0; i < opts.Stacks; i++ {
		vb := mesh.AddBuffer(*format, model.TriangleStrip)

		for j := 0; j <= opts.Slices; j++ {
			sin, cos := sincos(step * float32(j))
			inner := math.Vec3{X: opts.CenterX + minRadius*cos, Y: opts.CenterY + minRadius*sin}
			outer := math.Vec3{X: opts.CenterX + maxRadius*cos, Y: opts.CenterY + maxRadius*sin}

			minRadius += opts.DeltaMin
			maxRadius += opts.DeltaMax
			z -= opts.DeltaZ
			inner.Z, outer.Z = z, z

			u := sweepU(j, opts.Slices)
			vb.Add(inner, upNormal, math.Vec2{X: u, Y: 0}, opts.MinColor)
			vb.Add(outer, upNormal, math.Vec2{X: u, Y: 1}, opts.MaxColor)
		}

		minRadius -= opts.DeltaMin
		maxRadius -= opts.DeltaMax
		z += opts.DeltaZ
	}

	return mesh, nil
}
