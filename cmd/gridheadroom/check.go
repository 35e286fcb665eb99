package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/gridheadroom/internal/checker"
	"github.com/jgoulah/gridheadroom/internal/demand"
	"github.com/jgoulah/gridheadroom/internal/publisher"
	"github.com/jgoulah/gridheadroom/internal/render"
	"github.com/jgoulah/gridheadroom/internal/zones"
)

var (
	checkMode        string
	checkFallback    bool
	checkTransformer string
	checkNoDemand    bool
	checkJSON        bool
	checkMap         string
	checkPNG         string
	checkPublish     bool
)

var checkCmd = &cobra.Command{
	Use:   "check <address> [address...]",
	Short: "Find the primary substation zone for one or more addresses",
	Long: `Geocodes each address, resolves the covering primary substation zone and prints
its grid site, supply point, headroom and average daily demand profile.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkMode, "mode", "", "Match mode: containment or nearest (default from config)")
	checkCmd.Flags().BoolVar(&checkFallback, "fallback", true, "Use the nearest zone when no zone contains the address")
	checkCmd.Flags().StringVar(&checkTransformer, "transformer", "", "Demand series id to use instead of the zone name")
	checkCmd.Flags().BoolVar(&checkNoDemand, "no-demand", false, "Skip the demand history lookup")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print results as JSON")
	checkCmd.Flags().StringVar(&checkMap, "map", "", "Write an HTML map page to this file")
	checkCmd.Flags().StringVar(&checkPNG, "png", "", "Write a PNG screenshot of the map to this file (needs Chrome)")
	checkCmd.Flags().BoolVar(&checkPublish, "publish", false, "Publish results to MQTT / Home Assistant")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	opts, err := defaultOptions(cfg)
	if err != nil {
		return err
	}
	if checkMode != "" {
		if opts.Mode, err = zones.ParseMode(checkMode); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("fallback") {
		opts.Fallback = checkFallback
	}
	opts.DemandID = checkTransformer
	opts.SkipDemand = checkNoDemand

	c, err := newChecker(cfg)
	if err != nil {
		return err
	}

	var pub *publisher.Publisher
	if checkPublish {
		if pub, err = publisher.New(cfg.MQTT, cfg.HomeAssistant); err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer pub.Close()
	}

	ctx := cmd.Context()
	results, err := c.CheckAll(ctx, args, opts, cfg.GetConcurrency())
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}

	if checkJSON {
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		fmt.Println(string(out))
	} else {
		for _, res := range results {
			printResult(res)
		}
	}

	for i, res := range results {
		if res.Failed() {
			continue
		}
		if err := writeOutputs(ctx, res, i, len(results)); err != nil {
			return err
		}
		if pub != nil {
			if err := pub.Publish(res); err != nil {
				fmt.Fprintf(os.Stderr, "⚠ publishing %s: %v\n", res.Address, err)
				continue
			}
			if !checkJSON {
				fmt.Printf("✓ Published %s\n", res.Address)
			}
		}
	}

	if failed == len(results) {
		return fmt.Errorf("no address could be checked")
	}
	return nil
}

func printResult(res *checker.Result) {
	r := res.Report

	fmt.Printf("\n=== %s ===\n", res.Address)
	if res.Failed() {
		fmt.Printf("⚠ %s\n", res.Error)
		return
	}
	fmt.Printf("Location: %.5f, %.5f\n", res.Location.Lat, res.Location.Lon)
	if res.Location.Name != "" {
		fmt.Printf("          %s\n", res.Location.Name)
	}
	if res.Skipped > 0 {
		fmt.Printf("Skipped %s zone records without usable polygons\n", humanize.Comma(int64(res.Skipped)))
	}

	for _, w := range res.Warnings {
		fmt.Printf("⚠ %s\n", w)
	}

	if !r.Covered() {
		fmt.Println("⚠ No primary substation zone covers this location")
		return
	}

	match := "inside zone"
	if r.MatchKind == zones.Nearest.String() {
		match = fmt.Sprintf("nearest centroid, %s° away", humanize.FtoaWithDigits(r.Distance, 4))
	}
	fmt.Printf("✓ Primary substation: %s (%s)\n", r.Zone, match)
	fmt.Printf("  Grid site:          %s\n", r.GridSite)
	fmt.Printf("  Grid supply point:  %s\n", r.GridSupplyPoint)
	fmt.Printf("  Headroom:           %s\n", r.Headroom)

	peak, ok := demand.Peak(r.Demand)
	if !ok {
		fmt.Println("  Demand:             no history")
		return
	}
	fmt.Printf("  Peak demand:        %s A at %s (%s time slots)\n",
		humanize.FtoaWithDigits(peak.AverageCurrentAmps, 1), peak.TimeOfDay, humanize.Comma(int64(len(r.Demand))))
}

// outputPath numbers path when several results share one flag value
func outputPath(path string, i, n int) string {
	if n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i+1, ext)
}

func writeOutputs(ctx context.Context, res *checker.Result, i, n int) error {
	if checkMap == "" && checkPNG == "" {
		return nil
	}

	htmlPath := outputPath(checkMap, i, n)
	if checkMap == "" {
		tmp, err := os.CreateTemp("", "gridheadroom-*.html")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmp.Close()
		htmlPath = tmp.Name()
		defer os.Remove(htmlPath)
	}

	f, err := os.Create(htmlPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", htmlPath, err)
	}
	if err := render.WriteMap(f, render.FromResult(res)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", htmlPath, err)
	}
	if checkMap != "" && !checkJSON {
		fmt.Printf("✓ Map written to %s\n", htmlPath)
	}

	if checkPNG == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pngPath := outputPath(checkPNG, i, n)
	if err := render.Screenshot(ctx, htmlPath, pngPath, 1280, 1024); err != nil {
		return err
	}
	if !checkJSON {
		fmt.Printf("✓ Screenshot written to %s\n", pngPath)
	}
	return nil
}
