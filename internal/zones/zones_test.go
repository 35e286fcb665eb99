package zones

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareJSON is a GeoJSON polygon covering [x0,x0+size] x [y0,y0+size]
func squareJSON(x0, y0, size float64) string {
	return fmt.Sprintf(`{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}`,
		x0, y0, x0+size, y0, x0+size, y0+size, x0, y0+size, x0, y0)
}

func decodeMap(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func zone(t *testing.T, name string, x0, y0, size float64) RawRecord {
	t.Helper()
	return RawRecord{
		Geometry:   json.RawMessage(squareJSON(x0, y0, size)),
		Properties: map[string]any{AttrPrimary: name},
	}
}

func TestIngestTopLevelGeometry(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "Alpha", 0, 0, 2)})

	require.Len(t, c, 1)
	assert.Equal(t, "Alpha", c[0].Name())
	assert.IsType(t, orb.Polygon{}, c[0].Geometry)
	assert.InDelta(t, 1.0, c[0].Centroid.X(), 1e-9)
	assert.InDelta(t, 1.0, c[0].Centroid.Y(), 1e-9)
}

func TestIngestPrefersNestedGeoShape(t *testing.T) {
	rec := RawRecord{
		// Top level is only the label point in some dataset variants.
		Geometry: json.RawMessage(`{"type":"Point","coordinates":[50,50]}`),
		Properties: map[string]any{
			AttrPrimary:  "Nested",
			AttrGeoShape: decodeMap(t, squareJSON(10, 10, 2)),
		},
	}

	c := Ingest([]RawRecord{rec})

	require.Len(t, c, 1)
	assert.True(t, c[0].Contains(orb.Point{11, 11}))
	assert.False(t, c[0].Contains(orb.Point{50, 50}))
}

func TestIngestFallsBackWhenNestedShapeIsUnusable(t *testing.T) {
	for name, shape := range map[string]any{
		"not geometry": "garbage",
		"point":        map[string]any{"type": "Point", "coordinates": []any{1.0, 1.0}},
		"short ring":   map[string]any{"type": "Polygon", "coordinates": []any{[]any{[]any{0.0, 0.0}, []any{1.0, 1.0}}}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := zone(t, "TopLevel", 0, 0, 2)
			rec.Properties[AttrGeoShape] = shape

			c, skipped := IngestStats([]RawRecord{rec})

			assert.Equal(t, 0, skipped)
			require.Len(t, c, 1)
			assert.True(t, c[0].Contains(orb.Point{1, 1}))
		})
	}
}

func TestIngestNestedFeatureWrapper(t *testing.T) {
	shape := fmt.Sprintf(`{"type":"Feature","properties":{},"geometry":%s}`, squareJSON(0, 0, 1))
	rec := RawRecord{Properties: map[string]any{AttrGeoShape: decodeMap(t, shape)}}

	c := Ingest([]RawRecord{rec})

	require.Len(t, c, 1)
	assert.True(t, c[0].Contains(orb.Point{0.5, 0.5}))
}

func TestIngestMultiPolygon(t *testing.T) {
	rec := RawRecord{Geometry: json.RawMessage(`{"type":"MultiPolygon","coordinates":[
		[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
		[[[5,5],[6,5],[6,6],[5,6],[5,5]]]
	]}`)}

	c := Ingest([]RawRecord{rec})

	require.Len(t, c, 1)
	assert.True(t, c[0].Contains(orb.Point{5.5, 5.5}))
	assert.True(t, c[0].Contains(orb.Point{0.5, 0.5}))
	assert.False(t, c[0].Contains(orb.Point{3, 3}))
}

func TestIngestSkipsUnusableRecords(t *testing.T) {
	records := []RawRecord{
		zone(t, "Good", 0, 0, 1),
		{Properties: map[string]any{AttrPrimary: "NoGeometry"}},
		{Geometry: json.RawMessage(`null`)},
		{Geometry: json.RawMessage(`{"type":"Point","coordinates":[1,1]}`)},
		{Geometry: json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[1,1]]]}`)},
		{Geometry: json.RawMessage(`{not json`)},
		{Properties: map[string]any{AttrGeoShape: "garbage"}},
		zone(t, "AlsoGood", 2, 2, 1),
	}

	c, skipped := IngestStats(records)

	assert.Equal(t, 6, skipped)
	assert.Len(t, c, len(records)-skipped)
	assert.Equal(t, "Good", c[0].Name())
	assert.Equal(t, "AlsoGood", c[1].Name())
}

func TestIngestKeepsDuplicates(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "Same", 0, 0, 1), zone(t, "Same", 0, 0, 1)})
	assert.Len(t, c, 2)
}

func TestIngestEmpty(t *testing.T) {
	c := Ingest(nil)
	assert.NotNil(t, c)
	assert.Empty(t, c)
}

func TestAttributesLookup(t *testing.T) {
	attrs := Attributes{
		"name":    "  Bow  ",
		"blank":   "",
		"null":    nil,
		"number":  42.5,
		"whole":   11.0,
		"flag":    true,
		"nested":  map[string]any{"a": 1},
		"numeric": json.Number("7"),
	}

	v, ok := attrs.Lookup("name")
	assert.True(t, ok)
	assert.Equal(t, "Bow", v)

	v, ok = attrs.Lookup("number")
	assert.True(t, ok)
	assert.Equal(t, "42.5", v)

	v, _ = attrs.Lookup("whole")
	assert.Equal(t, "11", v)

	v, _ = attrs.Lookup("flag")
	assert.Equal(t, "true", v)

	v, _ = attrs.Lookup("numeric")
	assert.Equal(t, "7", v)

	for _, key := range []string{"blank", "null", "nested", "missing"} {
		_, ok := attrs.Lookup(key)
		assert.False(t, ok, key)
	}
}

func TestResolveContainmentInside(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "A", 0, 0, 2), zone(t, "B", 5, 5, 2)})

	r := Resolve(c, orb.Point{6, 6}, Containment)

	require.NotNil(t, r)
	assert.Equal(t, "B", r.Feature.Name())
	assert.Equal(t, Contains, r.Kind)
	assert.Zero(t, r.Distance)
}

func TestResolveContainmentOutside(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "A", 0, 0, 2), zone(t, "B", 5, 5, 2)})
	assert.Nil(t, Resolve(c, orb.Point{3.5, 3.5}, Containment))
}

func TestResolveEmptyCollection(t *testing.T) {
	assert.Nil(t, Resolve(nil, orb.Point{0, 0}, Containment))
	assert.Nil(t, Resolve(Collection{}, orb.Point{0, 0}, NearestCentroid))
	assert.Nil(t, ResolveWithFallback(nil, orb.Point{0, 0}))
}

func TestResolveUnknownMode(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "A", 0, 0, 2)})
	assert.Nil(t, Resolve(c, orb.Point{1, 1}, Mode(0)))
}

func TestResolveOverlappingFirstWins(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "Outer", 0, 0, 10), zone(t, "Inner", 4, 4, 2)})

	for i := 0; i < 5; i++ {
		r := Resolve(c, orb.Point{5, 5}, Containment)
		require.NotNil(t, r)
		assert.Equal(t, "Outer", r.Feature.Name())
	}
}

func TestResolveNearestCentroid(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "Far", 10, 10, 2), zone(t, "Near", 0, 0, 2)})

	r := Resolve(c, orb.Point{4, 1}, NearestCentroid)

	require.NotNil(t, r)
	assert.Equal(t, "Near", r.Feature.Name())
	assert.Equal(t, Nearest, r.Kind)
	assert.InDelta(t, 3.0, r.Distance, 1e-9)
}

func TestResolveNearestNeverNilForNonEmpty(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "Only", 0, 0, 1)})

	for _, p := range []orb.Point{{0.5, 0.5}, {100, -100}, {-180, 90}} {
		assert.NotNil(t, Resolve(c, p, NearestCentroid), "point %v", p)
	}
}

func TestResolveNearestTieKeepsFirst(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "First", 0, 0, 2), zone(t, "Second", 0, 0, 2)})

	r := Resolve(c, orb.Point{7, 7}, NearestCentroid)

	require.NotNil(t, r)
	assert.Equal(t, "First", r.Feature.Name())
}

func TestModesCanDisagree(t *testing.T) {
	// A large zone whose centroid is far from the point, and a small zone
	// next door whose centroid is close but does not cover it.
	c := Ingest([]RawRecord{zone(t, "Large", 0, 0, 10), zone(t, "Small", 10.5, 9, 1)})
	p := orb.Point{9.8, 9.8}

	contains := Resolve(c, p, Containment)
	nearest := Resolve(c, p, NearestCentroid)

	require.NotNil(t, contains)
	require.NotNil(t, nearest)
	assert.Equal(t, "Large", contains.Feature.Name())
	assert.Equal(t, "Small", nearest.Feature.Name())
}

func TestResolveWithFallback(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "A", 0, 0, 2), zone(t, "B", 5, 5, 2)})

	r := ResolveWithFallback(c, orb.Point{1, 1})
	require.NotNil(t, r)
	assert.Equal(t, Contains, r.Kind)
	assert.Equal(t, "A", r.Feature.Name())

	r = ResolveWithFallback(c, orb.Point{4.5, 4.5})
	require.NotNil(t, r)
	assert.Equal(t, Nearest, r.Kind)
	assert.Equal(t, "B", r.Feature.Name())
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"containment":      Containment,
		" Contains ":       Containment,
		"nearest":          NearestCentroid,
		"NEAREST-CENTROID": NearestCentroid,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("closest")
	assert.Error(t, err)
	assert.Equal(t, "containment", Containment.String())
	assert.Equal(t, "nearest", NearestCentroid.String())
}

func TestCollectionWithin(t *testing.T) {
	c := Ingest([]RawRecord{zone(t, "Local", 0, 0, 0.05), zone(t, "Distant", 1, 1, 0.05)})

	local := c.Within(orb.Point{0.02, 0.02}, 0.1)
	require.Len(t, local, 1)
	assert.Equal(t, "Local", local[0].Name())

	assert.Len(t, c.Within(orb.Point{0.02, 0.02}, 0), 2)
	assert.Empty(t, c.Within(orb.Point{50, 50}, 0.1))
}

func TestRank(t *testing.T) {
	c := Ingest([]RawRecord{
		zone(t, "Far", 20, 20, 2),
		zone(t, "Covering", 0, 0, 10),
		zone(t, "Close", 4, 6.2, 0.5),
	})

	ranked := Rank(c, orb.Point{4, 6})

	require.Len(t, ranked, 3)
	assert.Equal(t, "Close", ranked[0].Feature.Name())
	assert.Equal(t, Nearest, ranked[0].Kind)
	assert.Equal(t, "Covering", ranked[1].Feature.Name())
	assert.Equal(t, Contains, ranked[1].Kind)
	assert.Equal(t, "Far", ranked[2].Feature.Name())
}
