package model

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/mdlcore/internal/logger"
	"github.com/Faultbox/mdlcore/pkg/formats"
	"github.com/Faultbox/mdlcore/pkg/math"
)

// Population errors.
var (
	ErrNilMDL                = errors.New("no MDL data to populate")
	ErrNoVertexFormat        = errors.New("no vertex format")
	ErrNormalIndexOutOfRange = errors.New("MDL normal index out of range")
)

// DegenerateTextureSize is the largest indexed skin image treated as missing.
const DegenerateTextureSize = 16

// fallbackTextureSize is the edge length of the flat texture that replaces a
// degenerate skin.
const fallbackTextureSize = 4

// OpaqueWhite is the vertex color forced when a skin falls back to a flat color.
const OpaqueWhite uint32 = 0xFFFFFFFF

// LoadOptions contains options for MDL model population.
type LoadOptions struct {
	// Format selects the vertex channels of every built buffer. Required.
	Format *VertexFormat
	// Palette is a custom 256-entry RGB palette, used only when it is
	// exactly formats.MDLPaletteSize bytes long.
	Palette []byte
	// Color is the vertex color and the fill color of degenerate skins,
	// packed as 0xRRGGBBAA.
	Color uint32
}

// LoadMDL parses MDL bytes and populates a model from them.
func LoadMDL(data []byte, opts LoadOptions) (*MDLModel, error) {
	if opts.Format == nil {
		return nil, ErrNoVertexFormat
	}

	mdl, err := formats.ParseMDL(data)
	if err != nil {
		return nil, err
	}
	return BuildMDL(mdl, opts)
}

// LoadMDLFile reads and populates an MDL file from disk.
func LoadMDLFile(path string, opts LoadOptions) (*MDLModel, error) {
	if opts.Format == nil {
		return nil, ErrNoVertexFormat
	}

	mdl, err := formats.ParseMDLFile(path)
	if err != nil {
		return nil, err
	}
	return BuildMDL(mdl, opts)
}

// BuildMDL turns parsed MDL records into meshes, textures and an animation
// table. Each frame group becomes one Model and each of its sub-frames one
// single-buffer triangle-list Mesh.
func BuildMDL(mdl *formats.MDL, opts LoadOptions) (*MDLModel, error) {
	if mdl == nil {
		return nil, ErrNilMDL
	}
	if opts.Format == nil {
		return nil, ErrNoVertexFormat
	}

	log := logger.Named("mdl")

	palette, custom := ResolvePalette(opts.Palette)
	if !custom && len(opts.Palette) > 0 {
		log.Warn("custom palette ignored", zap.Int("size", len(opts.Palette)),
			zap.Int("want", formats.MDLPaletteSize))
	}

	result := &MDLModel{Header: mdl.Header}
	color := opts.Color

	width, height := int(mdl.Header.SkinWidth), int(mdl.Header.SkinHeight)
	for s, skin := range mdl.Skins {
		times := skin.Times()
		lastKnownTime := 0.0
		for i, img := range skin.Images() {
			tex, forceWhite := ExtractTexture(img, width, height, palette, opts.Color)
			if forceWhite {
				log.Warn("degenerate skin replaced by flat color",
					zap.Int("skin", s), zap.Int("image", i), zap.Int("size", len(img)))
				color = OpaqueWhite
			}
			if i < len(times) {
				tex.Time = float64(times[i]) - lastKnownTime
				lastKnownTime = float64(times[i])
			}
			result.Textures = append(result.Textures, tex)
		}
	}

	names := make([]string, len(mdl.FrameGroups))
	result.Models = make([]*Model, 0, len(mdl.FrameGroups))
	for i, group := range mdl.FrameGroups {
		model, err := buildFrameModel(&mdl.Header, group, mdl.Polygons, mdl.TexCoords, *opts.Format, color)
		if err != nil {
			return nil, fmt.Errorf("frame group %d: %w", i, err)
		}
		result.Models = append(result.Models, model)

		// An empty group continues the animation it follows.
		switch {
		case len(group.Frames()) > 0:
			names[i] = mdl.GetFrameGroupName(i)
		case i > 0:
			names[i] = names[i-1]
		}
	}
	result.Animations = DetectAnimations(names)

	log.Debug("populated MDL",
		zap.Int("models", len(result.Models)),
		zap.Int("textures", len(result.Textures)),
		zap.Int("animations", len(result.Animations)),
		zap.Int("polygons", len(mdl.Polygons)))

	return result, nil
}

// buildFrameModel decompresses every sub-frame of a frame group into its
// own mesh. Sub-frame times become durations relative to the previous one.
func buildFrameModel(h *formats.MDLHeader, group formats.MDLFrameGroup, polygons []formats.MDLPolygon,
	texCoords []formats.MDLTexCoord, format VertexFormat, color uint32) (*Model, error) {
	frames := group.Frames()
	times := group.Times()

	model := &Model{Meshes: make([]*Mesh, 0, len(frames))}
	lastKnownTime := 0.0

	for i := range frames {
		frame := &frames[i]

		mesh := NewMesh()
		if i < len(times) {
			mesh.Time = float64(times[i]) - lastKnownTime
			lastKnownTime = float64(times[i])
		}

		vb := mesh.AddBuffer(format, Triangles)
		vb.Data = make([]float32, 0, len(polygons)*3*format.Stride())

		for p, poly := range polygons {
			for _, idx := range poly.VertexIndex {
				if int(idx) >= len(frame.Vertices) || int(idx) >= len(texCoords) {
					return nil, fmt.Errorf("%w: polygon %d references vertex %d", formats.ErrInvalidMDLPolygon, p, idx)
				}

				src := frame.Vertices[idx]
				normal, err := VertexNormal(src)
				if err != nil {
					return nil, fmt.Errorf("frame %q: %w", frame.Name, err)
				}

				vb.Add(DecompressVertex(h, src), normal, TexCoordUV(h, texCoords[idx], poly.FacesFront != 0), color)
			}
		}

		model.Meshes = append(model.Meshes, mesh)
	}

	return model, nil
}

// DecompressVertex maps a compressed vertex to model space:
// scale*compressed + translate per axis.
func DecompressVertex(h *formats.MDLHeader, v formats.MDLVertex) math.Vec3 {
	return math.Vec3{
		X: h.Scale[0]*float32(v.Position[0]) + h.Translate[0],
		Y: h.Scale[1]*float32(v.Position[1]) + h.Translate[1],
		Z: h.Scale[2]*float32(v.Position[2]) + h.Translate[2],
	}
}

// VertexNormal looks up the precomputed normal of a compressed vertex.
func VertexNormal(v formats.MDLVertex) (math.Vec3, error) {
	n, ok := formats.MDLNormal(int(v.NormalIndex))
	if !ok {
		return math.Vec3{}, fmt.Errorf("%w: %d", ErrNormalIndexOutOfRange, v.NormalIndex)
	}
	return math.Vec3FromArray(n), nil
}

// TexCoordUV converts a skin pixel coordinate to normalized UV. On-seam
// coordinates of back-facing polygons are moved to the back half of the skin.
func TexCoordUV(h *formats.MDLHeader, tc formats.MDLTexCoord, facesFront bool) math.Vec2 {
	u := float32(tc.U)
	v := float32(tc.V)

	if !facesFront && tc.OnSeam != 0 {
		u += float32(h.SkinWidth) * 0.5
	}

	return math.Vec2{
		X: (u + 0.5) / float32(h.SkinWidth),
		Y: (v + 0.5) / float32(h.SkinHeight),
	}
}

// ResolvePalette returns the custom palette when it has the exact palette
// length, or the built-in palette otherwise. The flag reports which one.
func ResolvePalette(custom []byte) ([]byte, bool) {
	if len(custom) == formats.MDLPaletteSize {
		return custom, true
	}
	def := formats.MDLDefaultPalette()
	return def[:], false
}

// DecompressTexture expands a palette-indexed image to 24-bit RGB.
// The palette must hold 256 RGB triplets.
func DecompressTexture(indexed []byte, palette []byte) []byte {
	pixels := make([]byte, len(indexed)*3)
	for i, idx := range indexed {
		copy(pixels[i*3:i*3+3], palette[int(idx)*3:int(idx)*3+3])
	}
	return pixels
}

// FallbackTexture returns a flat 4x4 RGB texture of the given 0xRRGGBBAA color.
func FallbackTexture(color uint32) *Texture {
	pixels := make([]byte, fallbackTextureSize*fallbackTextureSize*3)
	for i := 0; i < len(pixels); i += 3 {
		pixels[i] = byte(color >> 24)
		pixels[i+1] = byte(color >> 16)
		pixels[i+2] = byte(color >> 8)
	}
	return &Texture{Width: fallbackTextureSize, Height: fallbackTextureSize, Pixels: pixels}
}

// ExtractTexture decompresses one skin image. Images of at most
// DegenerateTextureSize bytes are replaced by a flat texture of the given
// color, and forceWhite reports that vertex colors should become OpaqueWhite.
func ExtractTexture(indexed []byte, width, height int, palette []byte, color uint32) (tex *Texture, forceWhite bool) {
	if len(indexed) <= DegenerateTextureSize {
		return FallbackTexture(color), true
	}
	return &Texture{
		Width:  width,
		Height: height,
		Pixels: DecompressTexture(indexed, palette),
	}, false
}

// StripFrameNumber removes the trailing decimal digits of a frame name.
func StripFrameNumber(name string) string {
	return strings.TrimRight(name, "0123456789")
}

// DetectAnimations groups consecutive frame names that share the same name
// once their trailing digits are removed. The resulting ranges partition
// [0, len(names)) in order.
func DetectAnimations(names []string) []Animation {
	var anims []Animation
	for i, name := range names {
		base := StripFrameNumber(name)
		if n := len(anims); n > 0 && anims[n-1].Name == base {
			anims[n-1].End = i
			continue
		}
		anims = append(anims, Animation{Name: base, Start: i, End: i})
	}
	return anims
}
