package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/gridheadroom/internal/demand"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

var profileCSV string

var profileCmd = &cobra.Command{
	Use:   "profile [id]",
	Short: "Show the average daily demand profile for a zone or transformer",
	Long: `Fetches the demand history for a zone or transformer id from the configured
demand dataset (or reads it from a local CSV with --csv) and prints the average
current for each time of day.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&profileCSV, "csv", "", "Read samples from a CSV file instead of the open-data API")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var samples []models.DemandSample
	switch {
	case profileCSV != "":
		loc, err := cfg.GetLocation()
		if err != nil {
			return err
		}
		f, err := os.Open(profileCSV)
		if err != nil {
			return fmt.Errorf("opening CSV: %w", err)
		}
		defer f.Close()

		if samples, err = demand.ReadCSV(f, loc); err != nil {
			return err
		}
		fmt.Printf("Read %s samples from %s\n", humanize.Comma(int64(len(samples))), profileCSV)
	case len(args) == 1:
		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		if samples, err = client.FetchDemand(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("fetching demand for %s: %w", args[0], err)
		}
		fmt.Printf("Fetched %s samples for %s\n", humanize.Comma(int64(len(samples))), args[0])
	default:
		return fmt.Errorf("give an id or --csv file")
	}

	profile := demand.Aggregate(samples)
	if len(profile) == 0 {
		fmt.Println("⚠ No valid demand samples")
		return nil
	}

	peak, _ := demand.Peak(profile)

	fmt.Println("----------------------------------------")
	fmt.Printf("%-8s  %12s  %8s\n", "Time", "Avg amps", "Samples")
	fmt.Println("----------------------------------------")
	for _, pt := range profile {
		marker := ""
		if pt.TimeOfDay == peak.TimeOfDay {
			marker = "  ← peak"
		}
		fmt.Printf("%-8s  %12s  %8s%s\n", pt.TimeOfDay, humanize.FtoaWithDigits(pt.AverageCurrentAmps, 2),
			humanize.Comma(int64(pt.Samples)), marker)
	}
	fmt.Println("----------------------------------------")
	fmt.Printf("Peak: %s A at %s (%d time slots)\n", humanize.FtoaWithDigits(peak.AverageCurrentAmps, 1), peak.TimeOfDay, len(profile))
	if dropped := len(samples) - totalSamples(profile); dropped > 0 {
		fmt.Printf("%s invalid samples ignored\n", humanize.Comma(int64(dropped)))
	}

	return nil
}

func totalSamples(profile models.DemandProfile) int {
	n := 0
	for _, pt := range profile {
		n += pt.Samples
	}
	return n
}
