package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// buildTestMDL returns a small model: a 2x2 skin, three vertices, one
// triangle and a single frame followed by a two-frame group.
func buildTestMDL() *MDL {
	verts := func(base uint8) []MDLVertex {
		return []MDLVertex{
			{Position: [3]uint8{base, 0, 0}, NormalIndex: 0},
			{Position: [3]uint8{0, base, 0}, NormalIndex: 1},
			{Position: [3]uint8{0, 0, base}, NormalIndex: 2},
		}
	}

	return &MDL{
		Header: MDLHeader{
			Scale:          [3]float32{1, 2, 3},
			Translate:      [3]float32{-1, -2, -3},
			BoundingRadius: 10,
			EyePosition:    [3]float32{0, 0, 24},
			SkinWidth:      2,
			SkinHeight:     2,
			Size:           5,
		},
		Skins: []MDLSkin{
			&MDLSingleSkin{Data: []byte{1, 2, 3, 4}},
			&MDLSkinGroup{
				Timestamps: []float32{0.1, 0.2},
				Data:       [][]byte{{5, 6, 7, 8}, {9, 10, 11, 12}},
			},
		},
		TexCoords: []MDLTexCoord{
			{OnSeam: 0, U: 0, V: 0},
			{OnSeam: 1, U: 1, V: 0},
			{OnSeam: 0, U: 0, V: 1},
		},
		Polygons: []MDLPolygon{
			{FacesFront: 1, VertexIndex: [3]uint32{0, 1, 2}},
		},
		FrameGroups: []MDLFrameGroup{
			&MDLSingleFrame{Frame: MDLFrame{Name: "stand1", Vertices: verts(1)}},
			&MDLFrameSet{
				Min:        MDLVertex{Position: [3]uint8{0, 0, 0}},
				Max:        MDLVertex{Position: [3]uint8{9, 9, 9}},
				Timestamps: []float32{0.1, 0.2},
				List: []MDLFrame{
					{Name: "run1", Vertices: verts(2)},
					{Name: "run2", Vertices: verts(3)},
				},
			},
		},
	}
}

func encodeTestMDL(t *testing.T, m *MDL, order binary.ByteOrder) []byte {
	t.Helper()
	data, err := m.Encode(order)
	if err != nil {
		t.Fatalf("encoding test model: %v", err)
	}
	return data
}

func TestParseMDL_MagicValidation(t *testing.T) {
	valid := encodeTestMDL(t, buildTestMDL(), binary.LittleEndian)

	badMagic := bytes.Clone(valid)
	copy(badMagic, "XXXX")

	badVersion := bytes.Clone(valid)
	binary.LittleEndian.PutUint32(badVersion[4:], 8)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid", valid, nil},
		{"invalid magic", badMagic, ErrInvalidMDLMagic},
		{"unsupported version", badVersion, ErrUnsupportedMDLVersion},
		{"empty data", []byte{}, ErrTruncatedMDLData},
		{"short header", valid[:40], ErrTruncatedMDLData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMDL(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseMDL_Contents(t *testing.T) {
	data := encodeTestMDL(t, buildTestMDL(), binary.LittleEndian)

	mdl, err := ParseMDL(data)
	if err != nil {
		t.Fatalf("ParseMDL: %v", err)
	}

	h := mdl.Header
	if h.SkinCount != 2 || h.VertexCount != 3 || h.PolygonCount != 1 || h.FrameCount != 2 {
		t.Errorf("counts = %d/%d/%d/%d, want 2/3/1/2",
			h.SkinCount, h.VertexCount, h.PolygonCount, h.FrameCount)
	}
	if h.Scale != [3]float32{1, 2, 3} {
		t.Errorf("scale = %v", h.Scale)
	}
	if mdl.ByteOrder != binary.LittleEndian {
		t.Errorf("byte order = %v, want little endian", mdl.ByteOrder)
	}

	if got := mdl.GetTotalImageCount(); got != 3 {
		t.Errorf("image count = %d, want 3", got)
	}
	if got := mdl.GetTotalFrameCount(); got != 3 {
		t.Errorf("frame count = %d, want 3", got)
	}

	group, ok := mdl.Skins[1].(*MDLSkinGroup)
	if !ok {
		t.Fatalf("skin 1 is %T, want *MDLSkinGroup", mdl.Skins[1])
	}
	if !reflect.DeepEqual(group.Timestamps, []float32{0.1, 0.2}) {
		t.Errorf("skin times = %v", group.Timestamps)
	}
	if !bytes.Equal(group.Data[1], []byte{9, 10, 11, 12}) {
		t.Errorf("skin image 1 = %v", group.Data[1])
	}

	if mdl.TexCoords[1].OnSeam != 1 || mdl.TexCoords[1].U != 1 {
		t.Errorf("tex coord 1 = %+v", mdl.TexCoords[1])
	}

	set, ok := mdl.FrameGroups[1].(*MDLFrameSet)
	if !ok {
		t.Fatalf("frame group 1 is %T, want *MDLFrameSet", mdl.FrameGroups[1])
	}
	if set.List[1].Name != "run2" {
		t.Errorf("frame name = %q, want run2", set.List[1].Name)
	}
	if set.List[1].Vertices[2].Position != [3]uint8{0, 0, 3} {
		t.Errorf("vertex = %v", set.List[1].Vertices[2])
	}
	if _, max := set.Bounds(); max.Position != [3]uint8{9, 9, 9} {
		t.Errorf("group max = %v", max)
	}
	if mdl.GetFrameGroupName(0) != "stand1" {
		t.Errorf("group 0 name = %q", mdl.GetFrameGroupName(0))
	}
}

func TestParseMDL_BigEndian(t *testing.T) {
	little, err := ParseMDL(encodeTestMDL(t, buildTestMDL(), binary.LittleEndian))
	if err != nil {
		t.Fatalf("little endian: %v", err)
	}
	big, err := ParseMDL(encodeTestMDL(t, buildTestMDL(), binary.BigEndian))
	if err != nil {
		t.Fatalf("big endian: %v", err)
	}

	if big.ByteOrder != binary.BigEndian {
		t.Errorf("byte order = %v, want big endian", big.ByteOrder)
	}
	big.ByteOrder = little.ByteOrder
	if !reflect.DeepEqual(little, big) {
		t.Error("big-endian copy parsed differently from little-endian original")
	}
}

func TestParseMDL_Truncated(t *testing.T) {
	data := encodeTestMDL(t, buildTestMDL(), binary.LittleEndian)

	// Every prefix past the header cuts some record short.
	for n := mdlHeaderSize; n < len(data); n++ {
		_, err := ParseMDL(data[:n])
		if !errors.Is(err, ErrTruncatedMDLData) {
			t.Fatalf("prefix %d: got error %v, want ErrTruncatedMDLData", n, err)
		}
	}
}

func TestParseMDL_HugeCounts(t *testing.T) {
	data := encodeTestMDL(t, buildTestMDL(), binary.LittleEndian)

	tests := []struct {
		name   string
		offset int
	}{
		{"skin count", 48},
		{"skin width", 52},
		{"vertex count", 60},
		{"polygon count", 64},
		{"frame count", 68},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := bytes.Clone(data)
			binary.LittleEndian.PutUint32(corrupt[tt.offset:], 0x7FFFFFFF)
			if _, err := ParseMDL(corrupt); !errors.Is(err, ErrTruncatedMDLData) {
				t.Errorf("got error %v, want ErrTruncatedMDLData", err)
			}
		})
	}
}

func TestParseMDL_InvalidPolygon(t *testing.T) {
	data := encodeTestMDL(t, buildTestMDL(), binary.LittleEndian)

	// Header, single skin (4+4) and group skin (4+4+8+8), three tex coords,
	// then the polygon's third vertex index.
	offset := mdlHeaderSize + 8 + 24 + 3*mdlTexCoordSize + 12
	binary.LittleEndian.PutUint32(data[offset:], 3)

	if _, err := ParseMDL(data); !errors.Is(err, ErrInvalidMDLPolygon) {
		t.Errorf("got error %v, want ErrInvalidMDLPolygon", err)
	}
}

func TestParseMDL_InvalidTimes(t *testing.T) {
	// Header, single skin (4+4), group skin type and count.
	skinTimes := mdlHeaderSize + 8 + 8
	// Then the skin images, tex coords, polygon, the single frame
	// (4+4+4+16+3*4) and the frame set type, count and bounds.
	frameTimes := skinTimes + 8 + 8 + 3*mdlTexCoordSize + mdlPolygonSize + 40 + 16

	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name   string
		offset int
		times  [2]float32
	}{
		{"skin NaN", skinTimes, [2]float32{nan, 1}},
		{"skin infinite", skinTimes, [2]float32{0.1, inf}},
		{"skin zero", skinTimes, [2]float32{0, 0.2}},
		{"skin negative", skinTimes, [2]float32{-0.1, 0.2}},
		{"frame NaN", frameTimes, [2]float32{nan, 0.2}},
		{"frame repeated", frameTimes, [2]float32{0.1, 0.1}},
		{"frame decreasing", frameTimes, [2]float32{0.2, 0.1}},
		{"frame back to zero", frameTimes, [2]float32{math.SmallestNonzeroFloat32, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeTestMDL(t, buildTestMDL(), binary.LittleEndian)
			binary.LittleEndian.PutUint32(data[tt.offset:], math.Float32bits(tt.times[0]))
			binary.LittleEndian.PutUint32(data[tt.offset+4:], math.Float32bits(tt.times[1]))

			if _, err := ParseMDL(data); !errors.Is(err, ErrInvalidMDLTime) {
				t.Errorf("got error %v, want ErrInvalidMDLTime", err)
			}
		})
	}

	t.Run("offsets", func(t *testing.T) {
		data := encodeTestMDL(t, buildTestMDL(), binary.LittleEndian)
		for _, off := range []int{skinTimes, frameTimes} {
			if got := math.Float32frombits(binary.LittleEndian.Uint32(data[off:])); got != 0.1 {
				t.Errorf("time at %d = %v, want 0.1", off, got)
			}
		}
	})
}

func TestParseMDL_EmptySkinGroup(t *testing.T) {
	m := buildTestMDL()
	m.Skins = []MDLSkin{&MDLSkinGroup{}}

	mdl, err := ParseMDL(encodeTestMDL(t, m, binary.LittleEndian))
	if err != nil {
		t.Fatalf("ParseMDL: %v", err)
	}
	if n := len(mdl.Skins[0].Images()); n != 0 {
		t.Errorf("empty skin group has %d images", n)
	}
}

func TestMDLHeader_SwapBytes(t *testing.T) {
	h := buildTestMDL().Header
	h.ID = MDLMagic
	h.Version = MDLVersion
	original := h

	h.SwapBytes()
	if h.Version == original.Version {
		t.Error("SwapBytes left version unchanged")
	}
	h.SwapBytes()
	if h != original {
		t.Errorf("double swap = %+v, want %+v", h, original)
	}
}

func TestMDLRecords_SwapBytes(t *testing.T) {
	tc := MDLTexCoord{OnSeam: 1, U: -5, V: 300}
	want := tc
	tc.SwapBytes()
	tc.SwapBytes()
	if tc != want {
		t.Errorf("tex coord double swap = %+v, want %+v", tc, want)
	}

	p := MDLPolygon{FacesFront: 1, VertexIndex: [3]uint32{1, 2, 3}}
	p.SwapBytes()
	if p.VertexIndex[0] != 1<<24 {
		t.Errorf("swapped index = %#x, want %#x", p.VertexIndex[0], 1<<24)
	}
}

func TestMDL_EncodeValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *MDL)
		wantErr error
	}{
		{
			name:    "short skin image",
			mutate:  func(m *MDL) { m.Skins[0] = &MDLSingleSkin{Data: []byte{1}} },
			wantErr: ErrInvalidMDLSkinSize,
		},
		{
			name:    "missing frame vertex",
			mutate:  func(m *MDL) { m.TexCoords = append(m.TexCoords, MDLTexCoord{}) },
			wantErr: ErrInvalidMDLFrameSize,
		},
		{
			name: "polygon out of range",
			mutate: func(m *MDL) {
				m.Polygons[0].VertexIndex[1] = 7
			},
			wantErr: ErrInvalidMDLPolygon,
		},
		{
			name: "NaN skin time",
			mutate: func(m *MDL) {
				m.Skins[1].(*MDLSkinGroup).Timestamps[0] = float32(math.NaN())
			},
			wantErr: ErrInvalidMDLTime,
		},
		{
			name: "unordered frame times",
			mutate: func(m *MDL) {
				m.FrameGroups[1].(*MDLFrameSet).Timestamps[1] = 0.05
			},
			wantErr: ErrInvalidMDLTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := buildTestMDL()
			tt.mutate(m)
			if _, err := m.Encode(binary.LittleEndian); !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseMDLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.mdl")
	if err := WriteMDLFile(path, buildTestMDL(), binary.BigEndian); err != nil {
		t.Fatalf("WriteMDLFile: %v", err)
	}

	mdl, err := ParseMDLFile(path)
	if err != nil {
		t.Fatalf("ParseMDLFile: %v", err)
	}
	if len(mdl.FrameGroups) != 2 {
		t.Errorf("frame groups = %d, want 2", len(mdl.FrameGroups))
	}

	if _, err := ParseMDLFile(filepath.Join(t.TempDir(), "missing.mdl")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}
