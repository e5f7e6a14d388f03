// mdltool is a CLI utility for inspecting Quake-style MDL models and the
// procedural shape generators.
package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/mdlcore/internal/config"
	"github.com/Faultbox/mdlcore/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := config.Args()
	if len(args) < 1 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	if err := run(os.Stdout, cfg, args[0], args[1:]); err != nil {
		logger.Debug("command failed", zap.String("command", args[0]), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches one subcommand.
func run(w io.Writer, cfg *config.Config, command string, args []string) error {
	switch command {
	case "info":
		return cmdInfo(w, cfg, args)
	case "anims":
		return cmdAnims(w, cfg, args)
	case "skins":
		return cmdSkins(w, cfg, args)
	case "play":
		return cmdPlay(w, cfg, args)
	case "shape":
		return cmdShape(w, cfg, args)
	case "index":
		return cmdIndex(w, cfg, args)
	case "find":
		return cmdFind(w, cfg, args)
	case "convert":
		return cmdConvert(w, cfg, args)
	case "ls", "list":
		return cmdList(w, cfg, args)
	case "config":
		return cmdConfig(w, cfg, args)
	case "help", "-h", "--help":
		printUsage(w)
		return nil
	default:
		printUsage(w)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `mdltool - Quake MDL model utility

Usage:
  mdltool [flags] <command> [options]

Flags:
  -config <file>   Config file (default ./mdltool.yaml)
  -debug           Enable debug logging
  -fps <n>         Animation playback rate
  -palette <file>  Custom 768-byte palette
  -format <fmt>    Skin export format (png, bmp, tga, webp)
  -db <file>       Asset catalog database

Commands:
  info <file.mdl>                    Show header and content summary
  anims <file.mdl>                   List detected animations
  skins <file.mdl> [output_dir]      Export every skin image
  play <file.mdl> [animation]        Simulate playback and print indices
  shape <kind>                       Build a procedural shape and describe it
  index <file.mdl>...                Add models to the asset catalog
  find <animation>                   Find indexed models with an animation
  convert <in.mdl> <out.mdl>         Rewrite a model in another byte order
  ls [-a] [pattern]                  List models in the configured archives
  config [-save | path]              Print or write the effective configuration

Models are looked up in the configured PAK archives (newest first), then in
the configured data directories, then on disk.

Examples:
  mdltool info progs/player.mdl
  mdltool ls "*.mdl"
  mdltool -format tga skins progs/ogre.mdl ./skins
  mdltool -fps 10 play -duration 2s progs/player.mdl run
  mdltool shape -slices 16 -stacks 8 sphere
  mdltool -db assets.db find pain`)
}
