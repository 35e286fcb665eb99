package zones

import (
	"bytes"
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RawRecord is a record as delivered by the zone feed: an optional top-level
// geometry and a property bag that may carry its own geo_shape.
type RawRecord struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"fields"`
}

// Ingest converts raw records into a zone collection. Records without a usable
// polygon are skipped; one bad record never fails the batch.
func Ingest(records []RawRecord) Collection {
	c, _ := IngestStats(records)
	return c
}

// IngestStats is Ingest that also reports how many records were skipped
func IngestStats(records []RawRecord) (Collection, int) {
	c := make(Collection, 0, len(records))
	skipped := 0

	for _, rec := range records {
		g, ok := recordGeometry(rec)
		if !ok {
			skipped++
			continue
		}
		c = append(c, newFeature(g, Attributes(rec.Properties)))
	}

	return c, skipped
}

// recordGeometry picks the nested geo_shape over the top-level geometry; some
// dataset variants only carry a point at the top level. A nested shape that
// does not decode to a polygon falls back to the top-level geometry.
func recordGeometry(rec RawRecord) (orb.Geometry, bool) {
	if shape, ok := rec.Properties[AttrGeoShape]; ok && shape != nil {
		if data, err := json.Marshal(shape); err == nil {
			if g, ok := decodeGeometry(data); ok {
				return g, true
			}
		}
	}

	return decodeGeometry(rec.Geometry)
}

func decodeGeometry(data []byte) (orb.Geometry, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, false
	}

	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, false
	}

	var g orb.Geometry
	if header.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, false
		}
		g = f.Geometry
	} else {
		geom, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, false
		}
		g = geom.Geometry()
	}

	return polygonal(g)
}

// polygonal accepts polygons and multipolygons with at least one real ring
func polygonal(g orb.Geometry) (orb.Geometry, bool) {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 || len(geom[0]) < 3 {
			return nil, false
		}
		return geom, true
	case orb.MultiPolygon:
		kept := make(orb.MultiPolygon, 0, len(geom))
		for _, p := range geom {
			if len(p) > 0 && len(p[0]) >= 3 {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			return nil, false
		}
		return kept, true
	default:
		return nil, false
	}
}
