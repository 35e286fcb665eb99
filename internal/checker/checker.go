// Package checker wires geocoding, zone and demand fetches around the zone
// resolver and report assembler. Every check owns its own collection; nothing
// is shared between checks.
package checker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/gridheadroom/internal/demand"
	"github.com/jgoulah/gridheadroom/internal/opendata"
	"github.com/jgoulah/gridheadroom/internal/report"
	"github.com/jgoulah/gridheadroom/internal/zones"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

// Geocoder resolves an address to a location
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.Location, error)
}

// ZoneSource supplies raw zone records around a location
type ZoneSource interface {
	FetchZones(ctx context.Context, loc models.Location, radiusMeters int) ([]zones.RawRecord, error)
}

// DemandSource supplies raw demand samples for a zone or transformer id
type DemandSource interface {
	FetchDemand(ctx context.Context, id string) ([]models.DemandSample, error)
}

// Options controls a single check
type Options struct {
	Mode       zones.Mode
	Fallback   bool    // With Containment, use the nearest centroid when nothing contains the point
	Radius     int     // Meters passed to the zone source
	Window     float64 // Candidate window half-width in degrees; 0 disables
	DemandID   string  // Overrides the matched zone name for the demand lookup
	SkipDemand bool
}

// Result is the outcome of one check
type Result struct {
	ID       string            `json:"id"`
	Address  string            `json:"address,omitempty"`
	Location models.Location   `json:"location"`
	Report   models.ZoneReport `json:"report"`
	Shape    *geojson.Geometry `json:"shape,omitempty"` // Matched zone polygon
	Skipped  int               `json:"skipped_records,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Error    string            `json:"error,omitempty"` // Set when the address could not be geocoded

	zone *zones.Feature
}

// Failed reports whether the check stopped before zone resolution
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Zone returns the matched feature, or nil
func (r *Result) Zone() *zones.Feature {
	return r.zone
}

// Checker runs zone checks
type Checker struct {
	geocoder Geocoder
	zones    ZoneSource
	demand   DemandSource
}

// New creates a checker. demandSource may be nil to disable demand lookups.
func New(geocoder Geocoder, zoneSource ZoneSource, demandSource DemandSource) *Checker {
	return &Checker{
		geocoder: geocoder,
		zones:    zoneSource,
		demand:   demandSource,
	}
}

// Check geocodes address and checks the resulting location. Geocoding
// failures, including an unknown address, are returned as errors.
func (c *Checker) Check(ctx context.Context, address string, opts Options) (*Result, error) {
	loc, err := c.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", address, err)
	}

	res := c.CheckLocation(ctx, *loc, opts)
	res.Address = address
	return res, nil
}

// CheckLocation resolves the zone for loc. Upstream failures degrade the
// result to no coverage or no demand history with a warning.
func (c *Checker) CheckLocation(ctx context.Context, loc models.Location, opts Options) *Result {
	res := &Result{
		ID:       uuid.NewString(),
		Location: loc,
	}

	records, err := c.zones.FetchZones(ctx, loc, opts.Radius)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("zone data unavailable: %v", err))
		res.Report = report.Assemble(nil, nil)
		return res
	}

	point := orb.Point{loc.Lon, loc.Lat}
	collection, skipped := zones.IngestStats(records)
	res.Skipped = skipped
	collection = collection.Within(point, opts.Window)

	resolved := resolve(collection, point, opts)
	if resolved == nil {
		res.Report = report.Assemble(nil, nil)
		return res
	}

	res.zone = resolved.Feature
	res.Shape = geojson.NewGeometry(resolved.Feature.Geometry)

	profile, warning := c.profile(ctx, resolved.Feature, opts)
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}

	res.Report = report.Assemble(resolved, profile)
	return res
}

func resolve(c zones.Collection, p orb.Point, opts Options) *zones.Resolved {
	if opts.Mode == zones.Containment && opts.Fallback {
		return zones.ResolveWithFallback(c, p)
	}
	return zones.Resolve(c, p, opts.Mode)
}

func (c *Checker) profile(ctx context.Context, zone *zones.Feature, opts Options) (models.DemandProfile, string) {
	if c.demand == nil || opts.SkipDemand {
		return nil, ""
	}

	id := opts.DemandID
	if id == "" {
		id = zone.Name()
	}
	if id == "" {
		return nil, "no demand id: matched zone has no name"
	}

	samples, err := c.demand.FetchDemand(ctx, id)
	if errors.Is(err, opendata.ErrNoDemandDataset) {
		return nil, ""
	}
	if err != nil {
		return nil, fmt.Sprintf("demand data unavailable: %v", err)
	}

	return demand.Aggregate(samples), ""
}

// CheckAll checks addresses with at most limit checks in flight. Results are
// in input order. An address that fails to geocode gets a no-coverage result
// with Error set; the rest of the batch still runs. The returned error is only
// set when ctx ends before the batch finishes.
func (c *Checker) CheckAll(ctx context.Context, addresses []string, opts Options, limit int) ([]*Result, error) {
	results := make([]*Result, len(addresses))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			res, err := c.Check(ctx, address, opts)
			if err != nil {
				res = &Result{
					ID:      uuid.NewString(),
					Address: address,
					Report:  report.Assemble(nil, nil),
					Error:   err.Error(),
				}
			}
			results[i] = res
			return nil
		})
	}

	g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
