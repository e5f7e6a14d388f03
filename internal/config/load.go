package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/mdlcore/internal/export"
	"github.com/Faultbox/mdlcore/pkg/formats"
)

// ErrInvalidConfig is returned when loaded settings cannot drive the tool.
var ErrInvalidConfig = errors.New("invalid config")

// Load builds the effective configuration: defaults, then the config file,
// then command-line flags. The result is validated and remembers the file it
// came from so Save writes back to it.
func Load() (*Config, error) {
	cfg := Default()

	// An explicit -config must exist; the standard locations are optional.
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
		cfg.path = configPath
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns ./mdltool.yaml or the user config file, whichever
// exists first.
func findConfigFile() string {
	candidates := []string{
		"./mdltool.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user mdltool config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "mdltool")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "mdltool")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "mdltool")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "mdltool")
	}
}

// loadFromFile merges a YAML file over cfg. Unknown keys are rejected so a
// misspelled setting does not silently fall back to its default.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every setting that would make a command fail later or
// loop without progress.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if _, err := c.VertexColor(); err != nil {
		errs = append(errs, fmt.Errorf("%w: model.color: %w", ErrInvalidConfig, err))
	}
	if p := c.Model.Palette; p != "" {
		// A palette missing from disk may still come from a data archive.
		if info, err := os.Stat(p); err == nil {
			switch {
			case info.IsDir():
				invalid("model.palette %s is a directory", p)
			case info.Size() != formats.MDLPaletteSize:
				invalid("model.palette %s is %d bytes, want %d", p, info.Size(), formats.MDLPaletteSize)
			}
		}
	}

	if c.Playback.FPS < 0 {
		invalid("playback.fps must not be negative, got %d", c.Playback.FPS)
	}
	if c.Playback.Tick <= 0 {
		invalid("playback.tick must be positive, got %v", c.Playback.Tick)
	}
	if c.Playback.Duration < 0 {
		invalid("playback.duration must not be negative, got %v", c.Playback.Duration)
	}

	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		errs = append(errs, fmt.Errorf("%w: export.format: %w", ErrInvalidConfig, err))
	}
	if c.Export.Scale < 1 {
		invalid("export.scale must be at least 1, got %d", c.Export.Scale)
	}

	if c.Catalog.Path == "" {
		invalid("catalog.path is empty")
	}
	if c.Data.CacheMB < 0 {
		invalid("data.cache_mb must not be negative, got %d", c.Data.CacheMB)
	}

	return errors.Join(errs...)
}
