// Package config handles mdltool configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Faultbox/mdlcore/internal/engine/model"
	"github.com/Faultbox/mdlcore/pkg/formats"
)

// ErrInvalidColor is returned for a vertex color that is not 0xRRGGBBAA hex.
var ErrInvalidColor = errors.New("invalid color")

// ErrInvalidPalette is returned for a palette file of the wrong size.
var ErrInvalidPalette = errors.New("invalid palette")

// Config holds all tool settings.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Playback PlaybackConfig `yaml:"playback"`
	Export   ExportConfig   `yaml:"export"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Data     DataConfig     `yaml:"data"`
	Logging  LoggingConfig  `yaml:"logging"`

	path string // File the config was loaded from
}

// DataConfig holds asset search locations.
type DataConfig struct {
	PakPaths []string `yaml:"pak_paths"` // Searched last to first
	Dirs     []string `yaml:"dirs"`
	CacheMB  int      `yaml:"cache_mb"`
}

// ModelConfig holds population settings.
type ModelConfig struct {
	Normals   bool   `yaml:"normals"`
	TexCoords bool   `yaml:"tex_coords"`
	Colors    bool   `yaml:"colors"`
	Color     string `yaml:"color"`   // Vertex color, RRGGBBAA hex
	Palette   string `yaml:"palette"` // Optional 768-byte palette file
}

// PlaybackConfig holds animation playback settings.
type PlaybackConfig struct {
	FPS      int           `yaml:"fps"`
	Tick     time.Duration `yaml:"tick"`
	Duration time.Duration `yaml:"duration"`
}

// ExportConfig holds skin export settings.
type ExportConfig struct {
	Format    string `yaml:"format"`
	Scale     int    `yaml:"scale"`
	OutputDir string `yaml:"output_dir"`
}

// CatalogConfig holds asset index settings.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Normals:   true,
			TexCoords: true,
			Colors:    false,
			Color:     "ffffffff",
		},
		Playback: PlaybackConfig{
			FPS:      10,
			Tick:     50 * time.Millisecond,
			Duration: time.Second,
		},
		Export: ExportConfig{
			Format:    "png",
			Scale:     1,
			OutputDir: ".",
		},
		Catalog: CatalogConfig{
			Path: "mdlcatalog.db",
		},
		Data: DataConfig{
			CacheMB: 64,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// VertexFormat returns the vertex channels selected by the model settings.
func (c *Config) VertexFormat() *model.VertexFormat {
	return &model.VertexFormat{
		HasNormal:   c.Model.Normals,
		HasTexCoord: c.Model.TexCoords,
		HasColor:    c.Model.Colors,
	}
}

// VertexColor parses the configured color as 0xRRGGBBAA.
func (c *Config) VertexColor() (uint32, error) {
	return ParseColor(c.Model.Color)
}

// ParseColor parses an RRGGBBAA hex string with an optional "#" or "0x" prefix.
func ParseColor(s string) (uint32, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "#"), "0x")
	if len(hex) != 8 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return uint32(v), nil
}

// ReadFunc reads a named file.
type ReadFunc func(path string) ([]byte, error)

// LoadPalette reads the configured palette file through read, or from disk
// when read is nil. It returns nil when no palette is configured.
func (c *Config) LoadPalette(read ReadFunc) ([]byte, error) {
	if c.Model.Palette == "" {
		return nil, nil
	}
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(c.Model.Palette)
	if err != nil {
		return nil, fmt.Errorf("reading palette: %w", err)
	}
	if len(data) != formats.MDLPaletteSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrInvalidPalette,
			c.Model.Palette, len(data), formats.MDLPaletteSize)
	}
	return data, nil
}

// LoadOptions assembles population options from the model settings. The
// palette is read through read as in LoadPalette.
func (c *Config) LoadOptions(read ReadFunc) (model.LoadOptions, error) {
	color, err := c.VertexColor()
	if err != nil {
		return model.LoadOptions{}, err
	}
	palette, err := c.LoadPalette(read)
	if err != nil {
		return model.LoadOptions{}, err
	}
	return model.LoadOptions{
		Format:  c.VertexFormat(),
		Palette: palette,
		Color:   color,
	}, nil
}
