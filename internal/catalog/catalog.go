// Package catalog keeps a SQLite index of populated MDL assets and the
// animations detected in them.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Faultbox/mdlcore/internal/engine/model"
	"github.com/Faultbox/mdlcore/internal/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Catalog errors.
var (
	ErrNotFound = errors.New("asset not indexed")
	ErrClosed   = errors.New("catalog closed")
)

// Asset is the indexed summary of one model file.
type Asset struct {
	Path           string `gorm:"primaryKey"`
	Skins          int
	Textures       int
	SkinWidth      int
	SkinHeight     int
	Vertices       int
	Polygons       int
	FrameGroups    int
	Frames         int
	BoundingRadius float32
	Flags          uint32
	Animations     []AnimationEntry `gorm:"foreignKey:AssetPath;references:Path;constraint:OnDelete:CASCADE"`
	UpdatedAt      time.Time
}

// AnimationEntry is one detected animation of an indexed asset.
type AnimationEntry struct {
	AssetPath string `gorm:"primaryKey"`
	Ordinal   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"index:idx_animation_name"`
	Start     int
	End       int
}

// Frames returns the number of frame groups the animation spans.
func (a AnimationEntry) Frames() int {
	return a.End - a.Start + 1
}

// Catalog wraps the asset database.
type Catalog struct {
	db *gorm.DB
}

// Open opens or creates the catalog at path and migrates its tables.
func Open(path string) (*Catalog, error) {
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating catalog directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}

	if path == MemoryPath {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Asset{}, &AnimationEntry{}); err != nil {
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}

	logger.Named("catalog").Debug("catalog opened", zap.String("path", path))
	return &Catalog{db: db}, nil
}

// Close releases the database connection.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.db = nil
	return sqlDB.Close()
}

// NewAsset summarizes a populated model for indexing.
func NewAsset(path string, m *model.MDLModel) Asset {
	a := Asset{
		Path:           path,
		Skins:          int(m.Header.SkinCount),
		Textures:       len(m.Textures),
		SkinWidth:      int(m.Header.SkinWidth),
		SkinHeight:     int(m.Header.SkinHeight),
		Vertices:       int(m.Header.VertexCount),
		Polygons:       int(m.Header.PolygonCount),
		FrameGroups:    len(m.Models),
		BoundingRadius: m.Header.BoundingRadius,
		Flags:          m.Header.Flags,
	}
	for _, mdl := range m.Models {
		a.Frames += len(mdl.Meshes)
	}
	for i, anim := range m.Animations {
		a.Animations = append(a.Animations, AnimationEntry{
			AssetPath: path,
			Ordinal:   i,
			Name:      anim.Name,
			Start:     anim.Start,
			End:       anim.End,
		})
	}
	return a
}

// Put indexes a populated model under path, replacing any previous entry.
func (c *Catalog) Put(path string, m *model.MDLModel) error {
	if c.db == nil {
		return ErrClosed
	}
	if m == nil {
		return model.ErrNilMDL
	}

	asset := NewAsset(path, m)
	anims := asset.Animations
	asset.Animations = nil

	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&asset).Error; err != nil {
			return err
		}
		if err := tx.Where("asset_path = ?", path).Delete(&AnimationEntry{}).Error; err != nil {
			return err
		}
		if len(anims) == 0 {
			return nil
		}
		return tx.Create(&anims).Error
	})
	if err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}

	logger.Named("catalog").Debug("asset indexed",
		zap.String("path", path), zap.Int("animations", len(anims)))
	return nil
}

// Get returns an indexed asset with its animations in order.
func (c *Catalog) Get(path string) (*Asset, error) {
	if c.db == nil {
		return nil, ErrClosed
	}

	var asset Asset
	err := c.db.Preload("Animations", func(db *gorm.DB) *gorm.DB {
		return db.Order("ordinal")
	}).First(&asset, "path = ?", path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// List returns every indexed asset ordered by path, without animations.
func (c *Catalog) List() ([]Asset, error) {
	if c.db == nil {
		return nil, ErrClosed
	}

	var assets []Asset
	if err := c.db.Order("path").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// FindAnimation returns every indexed animation with the given name,
// ordered by asset path.
func (c *Catalog) FindAnimation(name string) ([]AnimationEntry, error) {
	if c.db == nil {
		return nil, ErrClosed
	}

	var entries []AnimationEntry
	err := c.db.Where("name = ?", name).Order("asset_path").Order("ordinal").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Remove drops an asset and its animations from the index.
func (c *Catalog) Remove(path string) error {
	if c.db == nil {
		return ErrClosed
	}

	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset_path = ?", path).Delete(&AnimationEntry{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Asset{}, "path = ?", path)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil
	})
}
