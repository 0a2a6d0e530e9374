package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var defaultData []byte

// Record is the on-disk form of a region.
type Record struct {
	ID            string    `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	LocalizedName string    `yaml:"localized_name,omitempty" json:"localizedName,omitempty"`
	Shape         string    `yaml:"shape" json:"shape"`
	Coords        []float64 `yaml:"coords" json:"coords"`
	Href          string    `yaml:"href" json:"href"`
	Region        string    `yaml:"region,omitempty" json:"region,omitempty"`
	Province      string    `yaml:"province,omitempty" json:"province,omitempty"`
}

// File is the top-level document of a catalog file.
type File struct {
	Image   Image    `yaml:"image" json:"image"`
	Regions []Record `yaml:"regions" json:"regions"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultData)
}

// LoadFile reads a catalog from a .yaml, .yml or .json file.
func LoadFile(path string) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported catalog file type: %s", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a catalog document. JSON is accepted since it is valid YAML.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	regions := make([]Region, 0, len(doc.Regions))
	for _, rec := range doc.Regions {
		r, err := rec.ToRegion()
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return New(doc.Image, regions)
}

// ToRegion converts the record, validating its shape.
func (rec Record) ToRegion() (Region, error) {
	shape, err := ParseShape(rec.Shape, rec.Coords)
	if err != nil {
		return Region{}, fmt.Errorf("region %q: %w", rec.ID, err)
	}
	return Region{
		ID:            rec.ID,
		Name:          rec.Name,
		LocalizedName: rec.LocalizedName,
		Shape:         shape,
		DownloadURL:   rec.Href,
		Region:        rec.Region,
		Province:      rec.Province,
	}, nil
}

// ToRecord is the inverse of Record.ToRegion.
func ToRecord(r Region) Record {
	return Record{
		ID:            r.ID,
		Name:          r.Name,
		LocalizedName: r.LocalizedName,
		Shape:         r.Shape.Kind(),
		Coords:        r.Shape.Coordinates(),
		Href:          r.DownloadURL,
		Region:        r.Region,
		Province:      r.Province,
	}
}
