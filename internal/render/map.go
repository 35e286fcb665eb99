// Package render turns check results into an HTML map page and, optionally, a
// PNG screenshot of it.
package render

import (
	"fmt"
	"html/template"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb/geojson"

	"github.com/jgoulah/gridheadroom/internal/checker"
	"github.com/jgoulah/gridheadroom/internal/demand"
	"github.com/jgoulah/gridheadroom/internal/zones"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

// MapData is everything the map page shows. It is read-only input.
type MapData struct {
	Title    string
	Location models.Location
	Report   models.ZoneReport
	Shape    *geojson.Geometry
	Warnings []string
}

// FromResult builds map data for a check result
func FromResult(res *checker.Result) MapData {
	title := res.Address
	if title == "" {
		title = fmt.Sprintf("%.5f, %.5f", res.Location.Lat, res.Location.Lon)
	}
	return MapData{
		Title:    title,
		Location: res.Location,
		Report:   res.Report,
		Shape:    res.Shape,
		Warnings: res.Warnings,
	}
}

type fact struct {
	Label string
	Value string
}

type page struct {
	MapData
	Facts    []fact
	Centroid *models.Location
	Labels   []string
	Amps     []float64
}

func newPage(d MapData) page {
	p := page{MapData: d, Labels: []string{}, Amps: []float64{}}
	r := d.Report
	if !r.Covered() {
		return p
	}

	p.Centroid = r.Centroid
	p.Facts = []fact{
		{"Primary substation", r.Zone},
		{"Grid site", r.GridSite},
		{"Grid supply point", r.GridSupplyPoint},
		{"Headroom", r.Headroom},
		{"Match", r.MatchKind},
	}
	if r.MatchKind == zones.Nearest.String() {
		p.Facts = append(p.Facts, fact{"Centroid distance", humanize.FtoaWithDigits(r.Distance, 4) + "°"})
	}
	if peak, ok := demand.Peak(r.Demand); ok {
		p.Facts = append(p.Facts, fact{"Peak demand", fmt.Sprintf("%s A at %s",
			humanize.FtoaWithDigits(peak.AverageCurrentAmps, 1), peak.TimeOfDay)})
	}

	for _, pt := range r.Demand {
		p.Labels = append(p.Labels, pt.TimeOfDay.String())
		p.Amps = append(p.Amps, pt.AverageCurrentAmps)
	}
	return p
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"></script>
<style>
body { font-family: sans-serif; margin: 0 1em; }
#map { height: 480px; }
.warning { background: #fff3cd; padding: 0.5em; margin: 0.5em 0; }
table { border-collapse: collapse; margin: 1em 0; }
td { padding: 0.2em 1em 0.2em 0; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Warnings}}<div class="warning">⚠ {{.}}</div>
{{end}}
{{if .Report.Covered}}
<table>
{{range .Facts}}<tr><td><b>{{.Label}}</b></td><td>{{.Value}}</td></tr>
{{end}}
</table>
{{else}}
<div class="warning">No primary substation zone covers this location.</div>
{{end}}
<div id="map"></div>
{{if .Labels}}<canvas id="profile"></canvas>{{else if .Report.Covered}}<p>No demand history for this zone.</p>{{end}}
<script>
const loc = [{{.Location.Lat}}, {{.Location.Lon}}];
const map = L.map('map').setView(loc, 13);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
L.marker(loc).addTo(map).bindPopup({{.Title}});
{{if .Shape}}
const zone = L.geoJSON({{.Shape}}, {style: {color: 'blue', weight: 2, fillOpacity: 0.15}}).addTo(map);
map.fitBounds(zone.getBounds());
{{end}}
{{if .Centroid}}
L.circleMarker([{{.Centroid.Lat}}, {{.Centroid.Lon}}], {color: 'red', radius: 6}).addTo(map).bindPopup('Zone centroid');
{{end}}
{{if .Labels}}
new Chart(document.getElementById('profile'), {
  type: 'line',
  data: {
    labels: {{.Labels}},
    datasets: [{label: 'Average current (A)', data: {{.Amps}}, borderColor: 'blue', pointRadius: 0}]
  }
});
{{end}}
</script>
</body>
</html>
`))

// WriteMap renders the map page for d to w
func WriteMap(w io.Writer, d MapData) error {
	if err := mapTemplate.Execute(w, newPage(d)); err != nil {
		return fmt.Errorf("rendering map: %w", err)
	}
	return nil
}
