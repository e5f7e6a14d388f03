package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/mdlcore/internal/assets"
	"github.com/Faultbox/mdlcore/internal/catalog"
	"github.com/Faultbox/mdlcore/internal/config"
	"github.com/Faultbox/mdlcore/internal/engine/model"
	"github.com/Faultbox/mdlcore/internal/engine/shape"
	"github.com/Faultbox/mdlcore/internal/export"
	"github.com/Faultbox/mdlcore/internal/logger"
	"github.com/Faultbox/mdlcore/pkg/formats"
)

var errUsage = errors.New("missing arguments")

// openAssets opens the configured archives and directories.
func openAssets(cfg *config.Config) (*assets.Manager, error) {
	mgr := assets.NewManager(cfg.Data.CacheMB << 20)
	for _, path := range cfg.Data.PakPaths {
		if err := mgr.AddArchive(path); err != nil {
			mgr.Close()
			return nil, err
		}
	}
	for _, dir := range cfg.Data.Dirs {
		mgr.AddDir(dir)
	}
	return mgr, nil
}

// parseModel reads and parses one model through the asset manager.
func parseModel(mgr *assets.Manager, path string) (*formats.MDL, error) {
	data, err := mgr.Load(path)
	if err != nil {
		return nil, err
	}
	mdl, err := formats.ParseMDL(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return mdl, nil
}

// loadModel parses and populates one model with the configured options.
func loadModel(cfg *config.Config, path string) (*formats.MDL, *model.MDLModel, error) {
	mgr, err := openAssets(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer mgr.Close()
	return loadModelFrom(cfg, mgr, path)
}

func loadModelFrom(cfg *config.Config, mgr *assets.Manager, path string) (*formats.MDL, *model.MDLModel, error) {
	opts, err := cfg.LoadOptions(mgr.Load)
	if err != nil {
		return nil, nil, err
	}
	mdl, err := parseModel(mgr, path)
	if err != nil {
		return nil, nil, err
	}
	m, err := model.BuildMDL(mdl, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("populating %s: %w", path, err)
	}
	return mdl, m, nil
}

func cmdInfo(w io.Writer, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: mdltool info <file.mdl>", errUsage)
	}

	mdl, m, err := loadModel(cfg, args[0])
	if err != nil {
		return err
	}
	h := mdl.Header

	fmt.Fprintf(w, "Model:      %s\n", args[0])
	fmt.Fprintf(w, "Byte order: %s\n", mdl.ByteOrder)
	fmt.Fprintf(w, "Version:    %d\n", h.Version)
	fmt.Fprintf(w, "Scale:      %v\n", h.Scale)
	fmt.Fprintf(w, "Translate:  %v\n", h.Translate)
	fmt.Fprintf(w, "Radius:     %.2f\n", h.BoundingRadius)
	fmt.Fprintf(w, "Eye:        %v\n", h.EyePosition)
	fmt.Fprintf(w, "Flags:      %#x (sync %d)\n", h.Flags, h.SyncType)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Skins:      %d (%dx%d, %d images)\n", h.SkinCount, h.SkinWidth, h.SkinHeight, mdl.GetTotalImageCount())
	fmt.Fprintf(w, "Vertices:   %d\n", h.VertexCount)
	fmt.Fprintf(w, "Triangles:  %d\n", h.PolygonCount)
	fmt.Fprintf(w, "Frames:     %d groups, %d frames\n", h.FrameCount, mdl.GetTotalFrameCount())
	fmt.Fprintf(w, "Animations: %d\n", len(m.Animations))

	if mesh := m.GetMesh(0, 0); mesh != nil {
		if b, ok := mesh.Bounds(); ok {
			fmt.Fprintf(w, "Bounds:     %v - %v (frame 0)\n", b.Min, b.Max)
		}
		if len(mesh.Buffers) > 0 {
			fmt.Fprintf(w, "Stride:     %d floats\n", mesh.Buffers[0].Stride())
		}
	}
	return nil
}

func cmdAnims(w io.Writer, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: mdltool anims <file.mdl>", errUsage)
	}

	_, m, err := loadModel(cfg, args[0])
	if err != nil {
		return err
	}

	for i, a := range m.Animations {
		name := a.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "%3d  %-16s %4d-%-4d (%d frames)\n", i, name, a.Start, a.End, a.Len())
	}
	return nil
}

func cmdSkins(w io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("skins", flag.ContinueOnError)
	scale := fs.Int("scale", cfg.Export.Scale, "Integer upscale factor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("%w: mdltool skins [-scale n] <file.mdl> [output_dir]", errUsage)
	}

	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	outputDir := cfg.Export.OutputDir
	if fs.NArg() > 1 {
		outputDir = fs.Arg(1)
	}

	_, m, err := loadModel(cfg, path)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	written, err := export.WriteTextures(outputDir, base, m.Textures, format, *scale)
	for _, p := range written {
		fmt.Fprintln(w, p)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n(%d skins exported)\n", len(written))
	return nil
}

func cmdPlay(w io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	tick := fs.Duration("tick", cfg.Playback.Tick, "Simulated frame time")
	duration := fs.Duration("duration", cfg.Playback.Duration, "Total simulated time")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("%w: mdltool play [-tick d] [-duration d] <file.mdl> [animation]", errUsage)
	}
	if *tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", *tick)
	}

	_, m, err := loadModel(cfg, fs.Arg(0))
	if err != nil {
		return err
	}

	animIndex := 0
	if fs.NArg() > 1 {
		idx, ok := m.FindAnimation(fs.Arg(1))
		if !ok {
			return fmt.Errorf("animation %q not found", fs.Arg(1))
		}
		animIndex = idx
	}

	playback(w, m, cfg.Playback.FPS, animIndex, *tick, *duration)
	return nil
}

// playback drives the selector at a fixed tick and prints each index triple.
func playback(w io.Writer, m *model.MDLModel, fps, animIndex int, tick, duration time.Duration) {
	var state model.AnimationState
	steps := int(duration / tick)

	for i := 1; i <= steps; i++ {
		tex, mdl, mesh := state.UpdateIndex(m, fps, animIndex, tick.Seconds())
		at := time.Duration(i) * tick
		fmt.Fprintf(w, "%8.3fs  texture %-3d model %-4d mesh %d\n", at.Seconds(), tex, mdl, mesh)
	}
}

func cmdShape(w io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("shape", flag.ContinueOnError)
	width := fs.Float64("width", 1, "Width (surface, box)")
	height := fs.Float64("height", 1, "Height (surface, box, cylinder)")
	depth := fs.Float64("depth", 1, "Depth (box)")
	radius := fs.Float64("radius", 1, "Radius (sphere, cylinder, disk)")
	minRadius := fs.Float64("min-radius", 0.5, "Inner radius (ring, spiral)")
	maxRadius := fs.Float64("max-radius", 1, "Outer radius (ring, spiral)")
	slices := fs.Int("slices", 16, "Angular subdivisions")
	stacks := fs.Int("stacks", 8, "Vertical subdivisions (sphere, spiral)")
	repeat := fs.Bool("repeat", false, "Repeat the texture on each box face")
	linear := fs.Bool("linear", false, "Use linear U mapping on cylinders")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("%w: mdltool shape [options] <surface|box|sphere|cylinder|disk|ring|spiral>", errUsage)
	}

	color, err := cfg.VertexColor()
	if err != nil {
		return err
	}
	format := cfg.VertexFormat()

	var mesh *model.Mesh
	switch kind := fs.Arg(0); kind {
	case "surface":
		mesh, err = shape.Surface(float32(*width), float32(*height), format, color)
	case "box":
		mesh, err = shape.Box(float32(*width), float32(*height), float32(*depth), *repeat, format, color)
	case "sphere":
		mesh, err = shape.Sphere(float32(*radius), *slices, *stacks, format, color)
	case "cylinder":
		mapU := shape.LegacyCylinderU
		if *linear {
			mapU = shape.LinearCylinderU
		}
		mesh, err = shape.CylinderWithMapping(float32(*radius), float32(*height), *slices, mapU, format, color)
	case "disk":
		mesh, err = shape.Disk(0, 0, float32(*radius), *slices, format, color)
	case "ring":
		mesh, err = shape.Ring(0, 0, float32(*minRadius), float32(*maxRadius), *slices, format, color, color)
	case "spiral":
		mesh, err = shape.Spiral(format, shape.SpiralOptions{
			MinRadius: float32(*minRadius),
			MaxRadius: float32(*maxRadius),
			DeltaMin:  0.1,
			DeltaMax:  0.1,
			DeltaZ:    0.1,
			Slices:    *slices,
			Stacks:    *stacks,
			MinColor:  color,
			MaxColor:  color,
		})
	default:
		return fmt.Errorf("unknown shape: %s", kind)
	}
	if err != nil {
		return err
	}

	describeMesh(w, fs.Arg(0), mesh)
	return nil
}

func describeMesh(w io.Writer, name string, mesh *model.Mesh) {
	fmt.Fprintf(w, "Shape:    %s\n", name)
	fmt.Fprintf(w, "Buffers:  %d\n", len(mesh.Buffers))
	fmt.Fprintf(w, "Vertices: %d\n", mesh.VertexCount())
	for i, vb := range mesh.Buffers {
		fmt.Fprintf(w, "  [%d] %-14s %5d vertices, stride %d\n", i, vb.Type, vb.Count(), vb.Stride())
	}
	if b, ok := mesh.Bounds(); ok {
		fmt.Fprintf(w, "Bounds:   %v - %v\n", b.Min, b.Max)
	}
}

func cmdIndex(w io.Writer, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: mdltool index <file.mdl>...", errUsage)
	}

	mgr, err := openAssets(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer cat.Close()

	failed := 0
	for _, path := range args {
		_, m, err := loadModelFrom(cfg, mgr, path)
		if err == nil {
			err = cat.Put(path, m)
		}
		if err != nil {
			logger.Warn("skipping model", zap.String("path", path), zap.Error(err))
			fmt.Fprintf(w, "skipped %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "indexed %s (%d animations)\n", path, len(m.Animations))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d models could not be indexed", failed, len(args))
	}
	return nil
}

func cmdFind(w io.Writer, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: mdltool find <animation>", errUsage)
	}

	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer cat.Close()

	entries, err := cat.FindAnimation(args[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %d-%d (%d frames)\n", e.AssetPath, e.Start, e.End, e.Frames())
	}
	fmt.Fprintf(w, "\n(%d models matched)\n", len(entries))
	return nil
}

func cmdConvert(w io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	order := fs.String("order", "swap", "Output byte order: little, big or swap")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 2 {
		return fmt.Errorf("%w: mdltool convert [-order little|big|swap] <in.mdl> <out.mdl>", errUsage)
	}

	mgr, err := openAssets(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	mdl, err := parseModel(mgr, fs.Arg(0))
	if err != nil {
		return err
	}

	var out binary.ByteOrder
	switch *order {
	case "little":
		out = binary.LittleEndian
	case "big":
		out = binary.BigEndian
	case "swap":
		out = binary.BigEndian
		if mdl.ByteOrder == binary.BigEndian {
			out = binary.LittleEndian
		}
	default:
		return fmt.Errorf("unknown byte order: %s", *order)
	}

	if err := formats.WriteMDLFile(fs.Arg(1), mdl, out); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s -> %s (%s)\n", fs.Arg(0), fs.Arg(1), out)
	return nil
}

func cmdList(w io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	all := fs.Bool("a", false, "List every archived file, not only models")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mgr, err := openAssets(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	pattern := ""
	if fs.NArg() > 0 {
		pattern = strings.ToLower(fs.Arg(0))
	}

	count := 0
	for _, f := range mgr.List() {
		if !*all && filepath.Ext(f) != ".mdl" {
			continue
		}
		if pattern != "" {
			matched, _ := filepath.Match(pattern, filepath.Base(f))
			if !matched && !strings.Contains(f, pattern) {
				continue
			}
		}
		fmt.Fprintln(w, f)
		count++
	}

	fmt.Fprintf(w, "\n(%d files)\n", count)
	return nil
}

func cmdConfig(w io.Writer, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	save := fs.Bool("save", false, "Write back to the loaded config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *save && fs.NArg() > 0:
		return fmt.Errorf("%w: mdltool config [-save | path]", errUsage)
	case *save:
		path, err := cfg.Save()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", path)
		return nil
	case fs.NArg() > 0:
		if err := cfg.SaveTo(fs.Arg(0)); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", fs.Arg(0))
		return nil
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
