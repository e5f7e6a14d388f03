package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/mdlcore/internal/config"
	"github.com/Faultbox/mdlcore/pkg/formats"
	"github.com/Faultbox/mdlcore/pkg/pak"
)

// writeTestModel writes a three-frame model with "stand" and "run"
// animations and returns its path.
func writeTestModel(t *testing.T, dir string) string {
	t.Helper()

	frame := func(name string, base uint8) formats.MDLFrameGroup {
		return &formats.MDLSingleFrame{Frame: formats.MDLFrame{
			Name: name,
			Vertices: []formats.MDLVertex{
				{Position: [3]uint8{base, 0, 0}},
				{Position: [3]uint8{0, base, 0}},
				{Position: [3]uint8{0, 0, base}},
			},
		}}
	}

	skin := make([]byte, 8*4)
	for i := range skin {
		skin[i] = byte(i)
	}

	m := &formats.MDL{
		Header: formats.MDLHeader{
			Scale:      [3]float32{1, 1, 1},
			SkinWidth:  8,
			SkinHeight: 4,
		},
		Skins: []formats.MDLSkin{&formats.MDLSingleSkin{Data: skin}},
		TexCoords: []formats.MDLTexCoord{
			{U: 0, V: 0}, {U: 4, V: 0}, {U: 0, V: 2},
		},
		Polygons: []formats.MDLPolygon{{FacesFront: 1, VertexIndex: [3]uint32{0, 1, 2}}},
		FrameGroups: []formats.MDLFrameGroup{
			frame("stand1", 1), frame("stand2", 2), frame("run1", 3),
		},
	}

	path := filepath.Join(dir, "test.mdl")
	if err := formats.WriteMDLFile(path, m, binary.LittleEndian); err != nil {
		t.Fatalf("WriteMDLFile: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "catalog.db")
	return cfg
}

func TestRun_InfoAndAnims(t *testing.T) {
	path := writeTestModel(t, t.TempDir())
	cfg := testConfig(t)

	var out bytes.Buffer
	if err := run(&out, cfg, "info", []string{path}); err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"Byte order: LittleEndian", "Triangles:  1", "Animations: 2", "Stride:     8 floats"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := run(&out, cfg, "anims", []string{path}); err != nil {
		t.Fatalf("anims: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "stand") || !strings.Contains(lines[1], "run") {
		t.Errorf("anims output:\n%s", out.String())
	}
}

func TestRun_Play(t *testing.T) {
	path := writeTestModel(t, t.TempDir())
	cfg := testConfig(t)
	cfg.Playback.FPS = 4

	var out bytes.Buffer
	if err := run(&out, cfg, "play", []string{"-tick", "250ms", "-duration", "750ms", path, "stand"}); err != nil {
		t.Fatalf("play: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d ticks, want 3:\n%s", len(lines), out.String())
	}
	for i, want := range []string{"model 1 ", "model 0 ", "model 1 "} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("tick %d = %q, want %q", i, lines[i], want)
		}
	}

	if err := run(&out, cfg, "play", []string{path, "walk"}); err == nil {
		t.Error("expected error for unknown animation")
	}
}

func TestRun_Shape(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"surface"}, "Vertices: 4"},
		{[]string{"box"}, "Buffers:  6"},
		{[]string{"-slices", "4", "-stacks", "2", "sphere"}, "Buffers:  4"},
		{[]string{"-slices", "8", "disk"}, "Vertices: 10"},
		{[]string{"-slices", "4", "-linear", "cylinder"}, "Vertices: 10"},
		{[]string{"-slices", "4", "ring"}, "Vertices: 10"},
		{[]string{"-slices", "4", "-stacks", "3", "spiral"}, "Buffers:  3"},
	}

	for _, tt := range tests {
		t.Run(tt.args[len(tt.args)-1], func(t *testing.T) {
			var out bytes.Buffer
			if err := run(&out, cfg, "shape", tt.args); err != nil {
				t.Fatalf("shape: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}

	if err := run(&bytes.Buffer{}, cfg, "shape", []string{"torus"}); err == nil {
		t.Error("expected error for unknown shape")
	}
}

func TestRun_Skins(t *testing.T) {
	dir := t.TempDir()
	path := writeTestModel(t, dir)
	cfg := testConfig(t)
	cfg.Export.Format = "bmp"

	outDir := filepath.Join(dir, "skins")
	var out bytes.Buffer
	if err := run(&out, cfg, "skins", []string{"-scale", "2", path, outDir}); err != nil {
		t.Fatalf("skins: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "test_skin00.bmp")); err != nil {
		t.Errorf("exported skin missing: %v", err)
	}
}

func TestRun_IndexAndFind(t *testing.T) {
	dir := t.TempDir()
	path := writeTestModel(t, dir)
	cfg := testConfig(t)

	var out bytes.Buffer
	if err := run(&out, cfg, "index", []string{path}); err != nil {
		t.Fatalf("index: %v", err)
	}

	out.Reset()
	if err := run(&out, cfg, "find", []string{"run"}); err != nil {
		t.Fatalf("find: %v", err)
	}
	if !strings.Contains(out.String(), path+"  2-2") || !strings.Contains(out.String(), "(1 models matched)") {
		t.Errorf("find output:\n%s", out.String())
	}

	err := run(&out, cfg, "index", []string{path, filepath.Join(dir, "missing.mdl")})
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("index with missing file = %v", err)
	}
}

func TestRun_Convert(t *testing.T) {
	dir := t.TempDir()
	path := writeTestModel(t, dir)
	outPath := filepath.Join(dir, "big.mdl")

	if err := run(&bytes.Buffer{}, testConfig(t), "convert", []string{path, outPath}); err != nil {
		t.Fatalf("convert: %v", err)
	}

	mdl, err := formats.ParseMDLFile(outPath)
	if err != nil {
		t.Fatalf("ParseMDLFile: %v", err)
	}
	if mdl.ByteOrder != binary.BigEndian || len(mdl.FrameGroups) != 3 {
		t.Errorf("converted model: order %v, %d frame groups", mdl.ByteOrder, len(mdl.FrameGroups))
	}
}

func TestRun_Config(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	if err := run(&out, cfg, "config", nil); err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out.String(), "fps: 10") {
		t.Errorf("config output:\n%s", out.String())
	}
}

func TestRun_ConfigSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdltool.yaml")
	if err := os.WriteFile(path, []byte("playback:\n  fps: 12\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if err := flag.Set("config", path); err != nil {
		t.Fatalf("setting -config: %v", err)
	}
	defer flag.Set("config", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Export.Format = "bmp"

	var out bytes.Buffer
	if err := run(&out, cfg, "config", []string{"-save"}); err != nil {
		t.Fatalf("config -save: %v", err)
	}
	if !strings.Contains(out.String(), "wrote "+path) {
		t.Errorf("output = %q", out.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	if !strings.Contains(string(data), "fps: 12") || !strings.Contains(string(data), "format: bmp") {
		t.Errorf("saved config:\n%s", data)
	}

	if err := run(&out, cfg, "config", []string{"-save", "other.yaml"}); !errors.Is(err, errUsage) {
		t.Errorf("-save with a path: got %v, want errUsage", err)
	}
}

func TestRun_Errors(t *testing.T) {
	cfg := testConfig(t)

	for _, cmd := range []string{"info", "anims", "skins", "play", "shape", "index", "find", "convert"} {
		if err := run(&bytes.Buffer{}, cfg, cmd, nil); !errors.Is(err, errUsage) {
			t.Errorf("%s without arguments: got %v, want errUsage", cmd, err)
		}
	}
	if err := run(&bytes.Buffer{}, cfg, "bogus", nil); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRun_FromArchive(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(writeTestModel(t, dir))
	if err != nil {
		t.Fatal(err)
	}

	pakPath := filepath.Join(dir, "pak0.pak")
	err = pak.WriteFile(pakPath, []pak.File{
		{Name: "progs/test.mdl", Data: data},
		{Name: "gfx/palette.lmp", Data: bytes.Repeat([]byte{0x40}, formats.MDLPaletteSize)},
		{Name: "sound/hit.wav", Data: []byte("RIFF")},
	})
	if err != nil {
		t.Fatalf("pak.WriteFile: %v", err)
	}

	cfg := testConfig(t)
	cfg.Data.PakPaths = []string{pakPath}
	cfg.Model.Palette = "gfx/palette.lmp"

	var out bytes.Buffer
	if err := run(&out, cfg, "info", []string{"progs/test.mdl"}); err != nil {
		t.Fatalf("info: %v", err)
	}
	if !strings.Contains(out.String(), "Animations: 2") {
		t.Errorf("info output:\n%s", out.String())
	}

	out.Reset()
	if err := run(&out, cfg, "ls", nil); err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out.String(), "progs/test.mdl") || strings.Contains(out.String(), "hit.wav") {
		t.Errorf("ls output:\n%s", out.String())
	}

	out.Reset()
	if err := run(&out, cfg, "ls", []string{"-a"}); err != nil {
		t.Fatalf("ls -a: %v", err)
	}
	if !strings.Contains(out.String(), "(3 files)") {
		t.Errorf("ls -a output:\n%s", out.String())
	}

	cfg.Data.PakPaths = []string{filepath.Join(dir, "missing.pak")}
	if err := run(&out, cfg, "info", []string{"progs/test.mdl"}); err == nil {
		t.Error("expected error for missing archive")
	}
}
