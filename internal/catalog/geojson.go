package catalog

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders the catalog as GeoJSON. Coordinates stay in
// image-pixel space; no projection is applied.
func (c *Catalog) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range c.regions {
		f := geojson.NewFeature(geometry(r.Shape))
		f.ID = r.ID
		f.Properties["name"] = r.Name
		if r.LocalizedName != "" {
			f.Properties["localized_name"] = r.LocalizedName
		}
		f.Properties["href"] = r.DownloadURL
		f.Properties["shape"] = r.Shape.Kind()
		if r.Region != "" {
			f.Properties["region"] = r.Region
		}
		if r.Province != "" {
			f.Properties["province"] = r.Province
		}
		fc.Append(f)
	}
	return fc
}

func geometry(s Shape) orb.Geometry {
	switch s := s.(type) {
	case Rect:
		return s.Bound().ToPolygon()
	case Polygon:
		return orb.Polygon{s.Closed()}
	}
	return nil
}
