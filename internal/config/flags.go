package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagFPS     = flag.Int("fps", 0, "Animation playback rate")
	flagPalette = flag.String("palette", "", "Path to a 768-byte palette file")
	flagFormat  = flag.String("format", "", "Skin export format (png, bmp, tga, webp)")
	flagDB      = flag.String("db", "", "Path to the asset catalog database")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagFPS > 0 {
		cfg.Playback.FPS = *flagFPS
	}
	if *flagPalette != "" {
		cfg.Model.Palette = *flagPalette
	}
	if *flagFormat != "" {
		cfg.Export.Format = *flagFormat
	}
	if *flagDB != "" {
		cfg.Catalog.Path = *flagDB
	}
}
