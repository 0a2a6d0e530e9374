package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// FileConfig is the optional YAML tuning file.
//
//	viewport:
//	  min_scale: 0.1
//	  max_scale: 10
//	  focus_scale: 2.5
//	  fit_margin: 0.95
//	  reset: fit
//	image:
//	  url: https://example.com/index.jpg
//	  width: 1600
//	  height: 2262
type FileConfig struct {
	Viewport viewport.Config `yaml:"viewport"`
	Image    catalog.Image   `yaml:"image"`
}

// LoadFileConfig reads path. An empty path or a missing file yields the
// zero config.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// ViewportConfig returns the file's viewport tuning with unset fields taken
// from the defaults.
func (fc FileConfig) ViewportConfig() viewport.Config {
	return fc.Viewport.Normalize()
}

// ApplyImage returns cat with the file's image settings, or cat itself when
// the file sets none.
func (fc FileConfig) ApplyImage(cat *catalog.Catalog) (*catalog.Catalog, error) {
	img := fc.Image
	if img.URL == "" && !img.HasSize() {
		return cat, nil
	}
	merged := cat.Image()
	if img.URL != "" {
		merged.URL = img.URL
	}
	if img.HasSize() {
		merged.Width, merged.Height = img.Width, img.Height
	}
	return catalog.New(merged, cat.All())
}

// LoadCatalog loads the catalog file at path, or the embedded default.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}
