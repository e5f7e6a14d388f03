// MDL (alias model) format parser: header, skins, texture coordinates,
// polygons and compressed vertex frames.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"

	"github.com/Faultbox/mdlcore/pkg/encoding"
)

// MDL format constants.
const (
	MDLMagic         uint32 = 'I' | 'D'<<8 | 'P'<<16 | 'O'<<24 // "IDPO"
	MDLVersion       uint32 = 6
	MDLFrameNameSize        = 16

	mdlHeaderSize   = 84
	mdlTexCoordSize = 12
	mdlPolygonSize  = 16
	mdlVertexSize   = 4
)

// MDL format errors.
var (
	ErrInvalidMDLMagic       = errors.New("invalid MDL magic: expected 'IDPO'")
	ErrUnsupportedMDLVersion = errors.New("unsupported MDL version")
	ErrTruncatedMDLData      = errors.New("truncated MDL data")
	ErrInvalidMDLPolygon     = errors.New("invalid MDL polygon vertex index")
	ErrInvalidMDLSkinSize    = errors.New("MDL skin image size does not match header")
	ErrInvalidMDLFrameSize   = errors.New("MDL frame vertex count does not match header")
	ErrInvalidMDLTime        = errors.New("invalid MDL group time table")
)

// MDLHeader is the fixed 84-byte header at the start of every MDL file.
type MDLHeader struct {
	ID             uint32
	Version        uint32
	Scale          [3]float32 // Per-axis decompression scale
	Translate      [3]float32 // Per-axis decompression offset
	BoundingRadius float32
	EyePosition    [3]float32
	SkinCount      uint32
	SkinWidth      uint32
	SkinHeight     uint32
	VertexCount    uint32
	PolygonCount   uint32
	FrameCount     uint32
	SyncType       uint32
	Flags          uint32
	Size           float32
}

// SwapBytes reverses the byte order of every field in place.
// Applying it twice restores the original header.
func (h *MDLHeader) SwapBytes() {
	h.ID = bits.ReverseBytes32(h.ID)
	h.Version = bits.ReverseBytes32(h.Version)
	swapFloats(h.Scale[:])
	swapFloats(h.Translate[:])
	h.BoundingRadius = swapFloat(h.BoundingRadius)
	swapFloats(h.EyePosition[:])
	h.SkinCount = bits.ReverseBytes32(h.SkinCount)
	h.SkinWidth = bits.ReverseBytes32(h.SkinWidth)
	h.SkinHeight = bits.ReverseBytes32(h.SkinHeight)
	h.VertexCount = bits.ReverseBytes32(h.VertexCount)
	h.PolygonCount = bits.ReverseBytes32(h.PolygonCount)
	h.FrameCount = bits.ReverseBytes32(h.FrameCount)
	h.SyncType = bits.ReverseBytes32(h.SyncType)
	h.Flags = bits.ReverseBytes32(h.Flags)
	h.Size = swapFloat(h.Size)
}

// SkinSize returns the byte length of one indexed skin image.
func (h *MDLHeader) SkinSize() uint64 {
	return uint64(h.SkinWidth) * uint64(h.SkinHeight)
}

// MDLVertex is a compressed vertex: one byte per axis plus a normal table index.
// Single-byte fields are the same in every byte order.
type MDLVertex struct {
	Position    [3]uint8
	NormalIndex uint8
}

// MDLTexCoord is a skin-space texture coordinate for one model vertex.
type MDLTexCoord struct {
	OnSeam uint32 // Non-zero when the vertex lies on the front/back seam
	U, V   int32  // Skin pixel coordinates
}

// SwapBytes reverses the byte order of every field in place.
func (tc *MDLTexCoord) SwapBytes() {
	tc.OnSeam = bits.ReverseBytes32(tc.OnSeam)
	tc.U = int32(bits.ReverseBytes32(uint32(tc.U)))
	tc.V = int32(bits.ReverseBytes32(uint32(tc.V)))
}

// MDLPolygon is one triangle of the model.
type MDLPolygon struct {
	FacesFront  uint32 // Zero for back-facing triangles
	VertexIndex [3]uint32
}

// SwapBytes reverses the byte order of every field in place.
func (p *MDLPolygon) SwapBytes() {
	p.FacesFront = bits.ReverseBytes32(p.FacesFront)
	for i := range p.VertexIndex {
		p.VertexIndex[i] = bits.ReverseBytes32(p.VertexIndex[i])
	}
}

// MDLFrame is one compressed snapshot of all model vertices.
type MDLFrame struct {
	Min      MDLVertex // Bounding box
	Max      MDLVertex
	Name     string
	Vertices []MDLVertex // One per header vertex
}

// MDLSkin is either an MDLSingleSkin or an MDLSkinGroup.
type MDLSkin interface {
	// Images returns the palette-indexed images, SkinWidth*SkinHeight bytes each.
	Images() [][]byte
	// Times returns cumulative display times, or nil for a single image.
	Times() []float32
	isMDLSkin()
}

// MDLSingleSkin is a skin made of one image.
type MDLSingleSkin struct {
	Data []byte
}

func (s *MDLSingleSkin) Images() [][]byte { return [][]byte{s.Data} }
func (s *MDLSingleSkin) Times() []float32 { return nil }
func (s *MDLSingleSkin) isMDLSkin()       {}

// MDLSkinGroup is a timed sequence of skin images.
type MDLSkinGroup struct {
	Timestamps []float32
	Data       [][]byte
}

func (s *MDLSkinGroup) Images() [][]byte { return s.Data }
func (s *MDLSkinGroup) Times() []float32 { return s.Timestamps }
func (s *MDLSkinGroup) isMDLSkin()       {}

// MDLFrameGroup is either an MDLSingleFrame or an MDLFrameSet.
type MDLFrameGroup interface {
	// Frames returns the sub-frames of the group.
	Frames() []MDLFrame
	// Times returns cumulative sub-frame display times, or nil for a single frame.
	Times() []float32
	// Bounds returns the bounding box of the whole group.
	Bounds() (min, max MDLVertex)
	isMDLFrameGroup()
}

// MDLSingleFrame is a frame slot holding exactly one frame.
type MDLSingleFrame struct {
	Frame MDLFrame
}

func (f *MDLSingleFrame) Frames() []MDLFrame { return []MDLFrame{f.Frame} }
func (f *MDLSingleFrame) Times() []float32   { return nil }
func (f *MDLSingleFrame) Bounds() (min, max MDLVertex) {
	return f.Frame.Min, f.Frame.Max
}
func (f *MDLSingleFrame) isMDLFrameGroup() {}

// MDLFrameSet is a frame slot holding a timed group of sub-frames.
type MDLFrameSet struct {
	Min, Max   MDLVertex
	Timestamps []float32
	List       []MDLFrame
}

func (f *MDLFrameSet) Frames() []MDLFrame { return f.List }
func (f *MDLFrameSet) Times() []float32   { return f.Timestamps }
func (f *MDLFrameSet) Bounds() (min, max MDLVertex) {
	return f.Min, f.Max
}
func (f *MDLFrameSet) isMDLFrameGroup() {}

// MDL represents a parsed MDL file.
type MDL struct {
	Header      MDLHeader
	ByteOrder   binary.ByteOrder // Order the file was stored in
	Skins       []MDLSkin
	TexCoords   []MDLTexCoord // One per vertex
	Polygons    []MDLPolygon
	FrameGroups []MDLFrameGroup // One per header frame
}

// mdlReader reads fixed-order records and turns every short read into
// ErrTruncatedMDLData.
type mdlReader struct {
	r     *bytes.Reader
	order binary.ByteOrder
}

func (m *mdlReader) read(what string, v any) error {
	if err := binary.Read(m.r, m.order, v); err != nil {
		return fmt.Errorf("%w: reading %s", ErrTruncatedMDLData, what)
	}
	return nil
}

// need fails when fewer than n bytes remain, so counts from a corrupt header
// never drive large allocations.
func (m *mdlReader) need(what string, n uint64) error {
	if n > uint64(m.r.Len()) {
		return fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncatedMDLData, what, n, m.r.Len())
	}
	return nil
}

func (m *mdlReader) bytes(what string, n uint64) ([]byte, error) {
	if err := m.need(what, n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(m.r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading %s", ErrTruncatedMDLData, what)
	}
	return buf, nil
}

// ParseMDL parses MDL data from a byte slice.
// Files written in big-endian order are detected from the magic and read
// with every multi-byte field swapped.
func ParseMDL(data []byte) (*MDL, error) {
	if len(data) < mdlHeaderSize {
		return nil, ErrTruncatedMDLData
	}

	mr := &mdlReader{r: bytes.NewReader(data), order: binary.LittleEndian}

	var header MDLHeader
	if err := mr.read("header", &header); err != nil {
		return nil, err
	}
	if header.ID == bits.ReverseBytes32(MDLMagic) {
		header.SwapBytes()
		mr.order = binary.BigEndian
	}

	if header.ID != MDLMagic {
		return nil, ErrInvalidMDLMagic
	}
	if header.Version != MDLVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMDLVersion, header.Version)
	}

	mdl := &MDL{
		Header:    header,
		ByteOrder: mr.order,
	}

	// Skins
	mdl.Skins = make([]MDLSkin, 0, min(uint64(header.SkinCount), uint64(mr.r.Len()/4)))
	for i := uint32(0); i < header.SkinCount; i++ {
		skin, err := mr.readSkin(&header)
		if err != nil {
			return nil, fmt.Errorf("parsing skin %d: %w", i, err)
		}
		mdl.Skins = append(mdl.Skins, skin)
	}

	// Texture coordinates
	if err := mr.need("texture coordinates", uint64(header.VertexCount)*mdlTexCoordSize); err != nil {
		return nil, err
	}
	mdl.TexCoords = make([]MDLTexCoord, header.VertexCount)
	if err := mr.read("texture coordinates", mdl.TexCoords); err != nil {
		return nil, err
	}

	// Polygons
	if err := mr.need("polygons", uint64(header.PolygonCount)*mdlPolygonSize); err != nil {
		return nil, err
	}
	mdl.Polygons = make([]MDLPolygon, header.PolygonCount)
	if err := mr.read("polygons", mdl.Polygons); err != nil {
		return nil, err
	}
	for i, p := range mdl.Polygons {
		for _, idx := range p.VertexIndex {
			if idx >= header.VertexCount {
				return nil, fmt.Errorf("%w: polygon %d references vertex %d of %d",
					ErrInvalidMDLPolygon, i, idx, header.VertexCount)
			}
		}
	}

	// Frame groups
	mdl.FrameGroups = make([]MDLFrameGroup, 0, min(uint64(header.FrameCount), uint64(mr.r.Len()/4)))
	for i := uint32(0); i < header.FrameCount; i++ {
		group, err := mr.readFrameGroup(&header)
		if err != nil {
			return nil, fmt.Errorf("parsing frame group %d: %w", i, err)
		}
		mdl.FrameGroups = append(mdl.FrameGroups, group)
	}

	return mdl, nil
}

// readSkin reads one skin record, selected by its leading group flag.
func (m *mdlReader) readSkin(h *MDLHeader) (MDLSkin, error) {
	var group uint32
	if err := m.read("skin group flag", &group); err != nil {
		return nil, err
	}

	if group == 0 {
		data, err := m.bytes("skin image", h.SkinSize())
		if err != nil {
			return nil, err
		}
		return &MDLSingleSkin{Data: data}, nil
	}

	var count uint32
	if err := m.read("skin count", &count); err != nil {
		return nil, err
	}

	skin := &MDLSkinGroup{}
	if count == 0 {
		return skin, nil
	}

	if err := m.need("skin time table", uint64(count)*4); err != nil {
		return nil, err
	}
	skin.Timestamps = make([]float32, count)
	if err := m.read("skin time table", skin.Timestamps); err != nil {
		return nil, err
	}
	if err := checkTimes(skin.Timestamps); err != nil {
		return nil, fmt.Errorf("skin: %w", err)
	}

	skin.Data = make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		data, err := m.bytes("skin image", h.SkinSize())
		if err != nil {
			return nil, err
		}
		skin.Data = append(skin.Data, data)
	}
	return skin, nil
}

// checkTimes verifies that a group time table is finite and strictly
// increasing from zero. Each entry is the end time of one image or sub-frame.
func checkTimes(times []float32) error {
	var prev float32
	for i, t := range times {
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) || t <= prev {
			return fmt.Errorf("%w: time %d is %v after %v", ErrInvalidMDLTime, i, t, prev)
		}
		prev = t
	}
	return nil
}

// readFrameGroup reads one frame slot, selected by its leading type flag.
func (m *mdlReader) readFrameGroup(h *MDLHeader) (MDLFrameGroup, error) {
	var kind uint32
	if err := m.read("frame group type", &kind); err != nil {
		return nil, err
	}

	if kind == 0 {
		frame, err := m.readFrame(h)
		if err != nil {
			return nil, err
		}
		return &MDLSingleFrame{Frame: frame}, nil
	}

	var count uint32
	if err := m.read("frame group count", &count); err != nil {
		return nil, err
	}

	set := &MDLFrameSet{}
	if err := m.read("frame group bounds", &set.Min); err != nil {
		return nil, err
	}
	if err := m.read("frame group bounds", &set.Max); err != nil {
		return nil, err
	}

	if err := m.need("frame time table", uint64(count)*4); err != nil {
		return nil, err
	}
	set.Timestamps = make([]float32, count)
	if err := m.read("frame time table", set.Timestamps); err != nil {
		return nil, err
	}
	if err := checkTimes(set.Timestamps); err != nil {
		return nil, fmt.Errorf("frame group: %w", err)
	}

	set.List = make([]MDLFrame, 0, count)
	for i := uint32(0); i < count; i++ {
		frame, err := m.readFrame(h)
		if err != nil {
			return nil, fmt.Errorf("sub-frame %d: %w", i, err)
		}
		set.List = append(set.List, frame)
	}
	return set, nil
}

// readFrame reads a bounding box, a name and one compressed vertex per model vertex.
func (m *mdlReader) readFrame(h *MDLHeader) (MDLFrame, error) {
	var frame MDLFrame
	if err := m.read("frame bounds", &frame.Min); err != nil {
		return frame, err
	}
	if err := m.read("frame bounds", &frame.Max); err != nil {
		return frame, err
	}

	var name [MDLFrameNameSize]byte
	if err := m.read("frame name", &name); err != nil {
		return frame, err
	}
	frame.Name = encoding.FixedStringToUTF8(name[:])

	raw, err := m.bytes("frame vertices", uint64(h.VertexCount)*mdlVertexSize)
	if err != nil {
		return frame, err
	}
	frame.Vertices = make([]MDLVertex, h.VertexCount)
	for i := range frame.Vertices {
		b := raw[i*mdlVertexSize:]
		frame.Vertices[i] = MDLVertex{
			Position:    [3]uint8{b[0], b[1], b[2]},
			NormalIndex: b[3],
		}
	}
	return frame, nil
}

// ParseMDLFile parses an MDL file from disk.
func ParseMDLFile(path string) (*MDL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MDL file: %w", err)
	}
	return ParseMDL(data)
}

// GetTotalFrameCount returns the number of sub-frames across all frame groups.
func (m *MDL) GetTotalFrameCount() int {
	total := 0
	for _, g := range m.FrameGroups {
		total += len(g.Frames())
	}
	return total
}

// GetTotalImageCount returns the number of skin images across all skins.
func (m *MDL) GetTotalImageCount() int {
	total := 0
	for _, s := range m.Skins {
		total += len(s.Images())
	}
	return total
}

// GetFrameGroupName returns the name of the first sub-frame of group i,
// or "" when the group is empty.
func (m *MDL) GetFrameGroupName(i int) string {
	frames := m.FrameGroups[i].Frames()
	if len(frames) == 0 {
		return ""
	}
	return frames[0].Name
}

func swapFloat(f float32) float32 {
	return math.Float32frombits(bits.ReverseBytes32(math.Float32bits(f)))
}

func swapFloats(fs []float32) {
	for i := range fs {
		fs[i] = swapFloat(fs[i])
	}
}
