// Package zones turns raw open-data records into substation zone polygons and
// matches query points against them.
package zones

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Well-known attribute keys in the primary substation dataset.
const (
	AttrPrimary         = "primary"
	AttrGridSite        = "grid_site"
	AttrGridSupplyPoint = "grid_supply_point"
	AttrHeadroom        = "demandrag"
	AttrGeoShape        = "geo_shape"
)

// Attributes is the open-schema property bag of a zone record
type Attributes map[string]any

// Lookup returns the attribute rendered as a string. Missing keys, nulls and
// blank strings are all reported as absent.
func (a Attributes) Lookup(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		s = val.String()
	case int:
		s = strconv.Itoa(val)
	case bool:
		s = strconv.FormatBool(val)
	default:
		return "", false
	}

	if s == "" {
		return "", false
	}
	return s, true
}

// Feature is one zone polygon with its attributes
type Feature struct {
	Geometry   orb.Geometry // orb.Polygon or orb.MultiPolygon
	Attributes Attributes
	Centroid   orb.Point
	Bound      orb.Bound
}

func newFeature(g orb.Geometry, attrs Attributes) *Feature {
	centroid, _ := planar.CentroidArea(g)
	return &Feature{
		Geometry:   g,
		Attributes: attrs,
		Centroid:   centroid,
		Bound:      g.Bound(),
	}
}

// Name returns the primary substation name, if the record has one
func (f *Feature) Name() string {
	name, _ := f.Attributes.Lookup(AttrPrimary)
	return name
}

// Contains reports whether the zone polygon contains p. Points on the
// boundary count as contained.
func (f *Feature) Contains(p orb.Point) bool {
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	default:
		return false
	}
}

// Collection is an ordered set of zones for a single lookup
type Collection []*Feature

// Within returns the zones whose bounding boxes intersect a square window of
// halfWidth degrees around center. A non-positive halfWidth returns c unchanged.
func (c Collection) Within(center orb.Point, halfWidth float64) Collection {
	if halfWidth <= 0 {
		return c
	}

	window := center.Bound().Pad(halfWidth)
	out := make(Collection, 0, len(c))
	for _, f := range c {
		if f.Bound.Intersects(window) {
			out = append(out, f)
		}
	}
	return out
}
