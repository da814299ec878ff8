package kml

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"field-route-service/internal/domain"
)

// ToGeoJSON exports routes as LineString features and stops as Point
// features, for map clients that do not speak KML.
func ToGeoJSON(doc *domain.ParsedDocument) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if doc == nil {
		return fc
	}

	for _, r := range doc.Routes {
		if r == nil || len(r.Path) < 2 {
			continue
		}
		ls := make(orb.LineString, 0, len(r.Path))
		for _, c := range r.Path {
			ls = append(ls, orb.Point{c.Longitude, c.Latitude})
		}
		f := geojson.NewFeature(ls)
		f.ID = r.ID
		f.Properties["name"] = r.Name
		f.Properties["point_count"] = r.PointCount
		if r.Style != "" {
			f.Properties["style"] = r.Style
		}
		if r.Zone != 0 {
			f.Properties["zone"] = r.Zone
		}
		fc.Append(f)
	}

	for _, s := range doc.Stops {
		if s == nil || !s.HasPosition() {
			continue
		}
		f := geojson.NewFeature(orb.Point{s.Longitude, s.Latitude})
		f.ID = s.ID
		f.Properties["name"] = s.Name
		f.Properties["kind"] = "stop"
		fc.Append(f)
	}

	return fc
}
