package models

// Location is a geocoded point in WGS84 degrees
type Location struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name,omitempty"` // Display name from the geocoder, if any
}

// CoverageStatus says whether a zone was matched for a point
type CoverageStatus string

const (
	StatusCovered    CoverageStatus = "covered"
	StatusNoCoverage CoverageStatus = "no_coverage"
)

// DemandStatus says whether demand history is attached to a report
type DemandStatus string

const (
	DemandAvailable DemandStatus = "available"
	DemandNoHistory DemandStatus = "no_demand_history"
)

// ZoneReport is the presentation-ready summary of a zone lookup
type ZoneReport struct {
	Status          CoverageStatus `json:"status"`
	Zone            string         `json:"zone,omitempty"`
	GridSite        string         `json:"grid_site,omitempty"`
	GridSupplyPoint string         `json:"grid_supply_point,omitempty"`
	Headroom        string         `json:"headroom,omitempty"`
	MatchKind       string         `json:"match_kind,omitempty"` // "contains" or "nearest"
	Distance        float64        `json:"distance,omitempty"`   // Degrees; 0 for containment
	Centroid        *Location      `json:"centroid,omitempty"`
	DemandStatus    DemandStatus   `json:"demand_status,omitempty"`
	Demand          DemandProfile  `json:"demand,omitempty"`
}

// Covered reports whether a zone was matched
func (r ZoneReport) Covered() bool {
	return r.Status == StatusCovered
}
