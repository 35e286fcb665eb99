// Package report builds the presentation-ready zone report.
package report

import (
	"github.com/jgoulah/gridheadroom/internal/zones"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

// NotAvailable stands in for any attribute the matched zone does not carry
const NotAvailable = "N/A"

// Assemble merges a resolver result and an optional demand profile into a
// report. A nil resolved zone yields a bare no-coverage report; a nil or
// empty profile is reported as no demand history.
func Assemble(resolved *zones.Resolved, profile models.DemandProfile) models.ZoneReport {
	if resolved == nil || resolved.Feature == nil {
		return models.ZoneReport{Status: models.StatusNoCoverage}
	}

	f := resolved.Feature
	r := models.ZoneReport{
		Status:          models.StatusCovered,
		Zone:            attribute(f.Attributes, zones.AttrPrimary),
		GridSite:        attribute(f.Attributes, zones.AttrGridSite),
		GridSupplyPoint: attribute(f.Attributes, zones.AttrGridSupplyPoint),
		Headroom:        attribute(f.Attributes, zones.AttrHeadroom),
		MatchKind:       resolved.Kind.String(),
		Centroid:        &models.Location{Lat: f.Centroid.Lat(), Lon: f.Centroid.Lon()},
		DemandStatus:    models.DemandNoHistory,
	}
	if resolved.Kind == zones.Nearest {
		r.Distance = resolved.Distance
	}

	if len(profile) > 0 {
		r.DemandStatus = models.DemandAvailable
		r.Demand = profile
	}

	return r
}

func attribute(attrs zones.Attributes, key string) string {
	if v, ok := attrs.Lookup(key); ok {
		return v
	}
	return NotAvailable
}
