// MDL serialization in either byte order.
package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/mdlcore/pkg/encoding"
)

// mdlWriter keeps the first write error so callers can check once.
type mdlWriter struct {
	w     io.Writer
	order binary.ByteOrder
	err   error
}

func (m *mdlWriter) write(v any) {
	if m.err != nil {
		return
	}
	m.err = binary.Write(m.w, m.order, v)
}

func (m *mdlWriter) raw(b []byte) {
	if m.err != nil {
		return
	}
	_, m.err = m.w.Write(b)
}

// Encode serializes the model in the given byte order.
// The header ID, version and element counts are derived from the model
// contents; every skin image must be SkinWidth*SkinHeight bytes and every
// frame must carry one vertex per texture coordinate.
func (m *MDL) Encode(order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.WriteTo(&buf, order); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo serializes the model to w in the given byte order.
func (m *MDL) WriteTo(w io.Writer, order binary.ByteOrder) error {
	header := m.Header
	header.ID = MDLMagic
	header.Version = MDLVersion
	header.SkinCount = uint32(len(m.Skins))
	header.VertexCount = uint32(len(m.TexCoords))
	header.PolygonCount = uint32(len(m.Polygons))
	header.FrameCount = uint32(len(m.FrameGroups))

	if err := m.validate(&header); err != nil {
		return err
	}

	mw := &mdlWriter{w: w, order: order}
	mw.write(&header)

	for _, skin := range m.Skins {
		switch s := skin.(type) {
		case *MDLSingleSkin:
			mw.write(uint32(0))
			mw.raw(s.Data)
		case *MDLSkinGroup:
			mw.write(uint32(1))
			mw.write(uint32(len(s.Data)))
			if len(s.Data) > 0 {
				mw.write(s.Timestamps)
			}
			for _, img := range s.Data {
				mw.raw(img)
			}
		}
	}

	mw.write(m.TexCoords)
	mw.write(m.Polygons)

	for _, group := range m.FrameGroups {
		switch g := group.(type) {
		case *MDLSingleFrame:
			mw.write(uint32(0))
			mw.writeFrame(&g.Frame)
		case *MDLFrameSet:
			mw.write(uint32(1))
			mw.write(uint32(len(g.List)))
			mw.write(&g.Min)
			mw.write(&g.Max)
			mw.write(g.Timestamps)
			for i := range g.List {
				mw.writeFrame(&g.List[i])
			}
		}
	}

	if mw.err != nil {
		return fmt.Errorf("writing MDL: %w", mw.err)
	}
	return nil
}

func (m *mdlWriter) writeFrame(f *MDLFrame) {
	m.write(&f.Min)
	m.write(&f.Max)
	m.raw(encoding.UTF8ToFixedString(f.Name, MDLFrameNameSize))
	raw := make([]byte, 0, len(f.Vertices)*mdlVertexSize)
	for _, v := range f.Vertices {
		raw = append(raw, v.Position[0], v.Position[1], v.Position[2], v.NormalIndex)
	}
	m.raw(raw)
}

func (m *MDL) validate(h *MDLHeader) error {
	size := h.SkinSize()
	for i, skin := range m.Skins {
		if g, ok := skin.(*MDLSkinGroup); ok && len(g.Timestamps) != len(g.Data) {
			return fmt.Errorf("%w: skin %d has %d times for %d images",
				ErrInvalidMDLSkinSize, i, len(g.Timestamps), len(g.Data))
		}
		if err := checkTimes(skin.Times()); err != nil {
			return fmt.Errorf("skin %d: %w", i, err)
		}
		for _, img := range skin.Images() {
			if uint64(len(img)) != size {
				return fmt.Errorf("%w: skin %d image is %d bytes, want %d",
					ErrInvalidMDLSkinSize, i, len(img), size)
			}
		}
	}

	for i, p := range m.Polygons {
		for _, idx := range p.VertexIndex {
			if idx >= h.VertexCount {
				return fmt.Errorf("%w: polygon %d references vertex %d of %d",
					ErrInvalidMDLPolygon, i, idx, h.VertexCount)
			}
		}
	}

	for i, group := range m.FrameGroups {
		if s, ok := group.(*MDLFrameSet); ok && len(s.Timestamps) != len(s.List) {
			return fmt.Errorf("%w: frame group %d has %d times for %d frames",
				ErrInvalidMDLFrameSize, i, len(s.Timestamps), len(s.List))
		}
		if err := checkTimes(group.Times()); err != nil {
			return fmt.Errorf("frame group %d: %w", i, err)
		}
		for _, f := range group.Frames() {
			if uint32(len(f.Vertices)) != h.VertexCount {
				return fmt.Errorf("%w: frame %q has %d vertices, want %d",
					ErrInvalidMDLFrameSize, f.Name, len(f.Vertices), h.VertexCount)
			}
		}
	}
	return nil
}

// WriteMDLFile writes the model to disk in the given byte order.
func WriteMDLFile(path string, m *MDL, order binary.ByteOrder) error {
	data, err := m.Encode(order)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing MDL file: %w", err)
	}
	return nil
}
