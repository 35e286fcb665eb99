package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/jgoulah/gridheadroom/internal/geocode"
	"github.com/jgoulah/gridheadroom/internal/report"
	"github.com/jgoulah/gridheadroom/internal/zones"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

var (
	zonesLat   float64
	zonesLon   float64
	zonesLimit int
)

var zonesCmd = &cobra.Command{
	Use:   "zones [address]",
	Short: "List nearby primary substation zones by centroid distance",
	Long: `Fetches the zones around an address (or --lat/--lon) and lists them nearest
first, marking any zone that contains the point.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runZones,
}

func init() {
	zonesCmd.Flags().Float64Var(&zonesLat, "lat", 0, "Latitude (instead of an address)")
	zonesCmd.Flags().Float64Var(&zonesLon, "lon", 0, "Longitude (instead of an address)")
	zonesCmd.Flags().IntVar(&zonesLimit, "limit", 10, "Maximum zones to list (0 = no limit)")
	rootCmd.AddCommand(zonesCmd)
}

func runZones(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var loc models.Location
	switch {
	case len(args) == 1:
		found, err := geocode.NewNominatim(cfg.Geocoder).Geocode(ctx, args[0])
		if err != nil {
			return fmt.Errorf("geocoding %q: %w", args[0], err)
		}
		loc = *found
	case cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon"):
		loc = models.Location{Lat: zonesLat, Lon: zonesLon}
	default:
		return fmt.Errorf("give an address or both --lat and --lon")
	}

	records, err := client.FetchZones(ctx, loc, cfg.GetSearchRadius())
	if err != nil {
		return fmt.Errorf("fetching zones: %w", err)
	}

	point := orb.Point{loc.Lon, loc.Lat}
	collection, skipped := zones.IngestStats(records)
	fmt.Printf("Fetched %s records (%s usable, %s skipped)\n",
		humanize.Comma(int64(len(records))), humanize.Comma(int64(len(collection))), humanize.Comma(int64(skipped)))

	ranked := zones.Rank(collection.Within(point, cfg.GetWindowDegrees()), point)
	if len(ranked) == 0 {
		fmt.Println("⚠ No zones near this location")
		return nil
	}
	if zonesLimit > 0 && len(ranked) > zonesLimit {
		ranked = ranked[:zonesLimit]
	}

	fmt.Println("----------------------------------------------------------------")
	fmt.Printf("%-3s  %-30s  %-10s  %10s  %s\n", "#", "Zone", "Headroom", "Distance", "")
	fmt.Println("----------------------------------------------------------------")
	for i, r := range ranked {
		marker := ""
		if r.Kind == zones.Contains {
			marker = "✓ contains"
		}
		headroom, ok := r.Feature.Attributes.Lookup(zones.AttrHeadroom)
		if !ok {
			headroom = report.NotAvailable
		}
		name := r.Feature.Name()
		if name == "" {
			name = report.NotAvailable
		}
		fmt.Printf("%-3d  %-30s  %-10s  %9s°  %s\n", i+1, name, headroom, humanize.FtoaWithDigits(r.Distance, 4), marker)
	}

	return nil
}
